// Package buffer provides an in-memory FIFO that grows on demand and never
// blocks producers.
package buffer

import "sync"

// Growable is a thread-safe FIFO ring. It doubles once 70% full until it
// reaches its limit; past the limit the oldest item is dropped to make room.
type Growable[T any] struct {
	mu     sync.Mutex
	ring   []T
	head   int
	count  int
	limit  int // 0 = unbounded
	closed bool
	ready  chan struct{}

	sent    int64
	drained int64
	dropped int64
	resizes int
}

// Stats is a point-in-time view of a buffer.
type Stats struct {
	Len      int
	Cap      int
	Sent     int64
	Drained  int64
	Dropped  int64
	Resizes  int
	IsClosed bool
}

// New creates a buffer with the given initial capacity and limit.
// A limit of 0 lets the buffer grow without bound.
func New[T any](initial, limit int) *Growable[T] {
	if initial < 1 {
		initial = 1
	}
	if limit > 0 && initial > limit {
		initial = limit
	}
	return &Growable[T]{
		ring:  make([]T, initial),
		limit: limit,
		ready: make(chan struct{}, 1),
	}
}

// Send appends item. It returns false once the buffer is closed.
func (b *Growable[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	if (b.count+1)*10 >= len(b.ring)*7 {
		b.grow()
	}
	if b.count == len(b.ring) {
		// At the limit: overwrite the oldest.
		var zero T
		b.ring[b.head] = zero
		b.head = (b.head + 1) % len(b.ring)
		b.count--
		b.dropped++
	}

	b.ring[(b.head+b.count)%len(b.ring)] = item
	b.count++
	b.sent++

	select {
	case b.ready <- struct{}{}:
	default:
	}
	return true
}

// Ready is signalled after Send. One signal may cover several items.
func (b *Growable[T]) Ready() <-chan struct{} {
	return b.ready
}

// TryReceive pops the oldest item without blocking.
func (b *Growable[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	if b.count == 0 {
		return zero, false
	}
	return b.popLocked(), true
}

// Drain pops up to max items, or every item when max <= 0.
func (b *Growable[T]) Drain(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.count
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]T, n)
	for i := range out {
		out[i] = b.popLocked()
	}
	return out
}

// Close stops accepting items. Buffered items can still be drained.
func (b *Growable[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// Len returns the number of buffered items.
func (b *Growable[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns buffer statistics.
func (b *Growable[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Len:      b.count,
		Cap:      len(b.ring),
		Sent:     b.sent,
		Drained:  b.drained,
		Dropped:  b.dropped,
		Resizes:  b.resizes,
		IsClosed: b.closed,
	}
}

func (b *Growable[T]) popLocked() T {
	var zero T
	item := b.ring[b.head]
	b.ring[b.head] = zero
	b.head = (b.head + 1) % len(b.ring)
	b.count--
	b.drained++
	return item
}

// grow doubles capacity, capped at the limit. Caller holds the lock.
func (b *Growable[T]) grow() {
	size := len(b.ring) * 2
	if b.limit > 0 && size > b.limit {
		size = b.limit
	}
	if size <= len(b.ring) {
		return
	}

	ring := make([]T, size)
	n := copy(ring, b.ring[b.head:min(b.head+b.count, len(b.ring))])
	if n < b.count {
		copy(ring[n:], b.ring[:b.count-n])
	}

	b.ring = ring
	b.head = 0
	b.resizes++
}
