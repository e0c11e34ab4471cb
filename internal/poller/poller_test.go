package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/polymarket-mirror/internal/metrics"
	"github.com/rickgao/polymarket-mirror/internal/model"
)

var base = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

// mockSource returns canned trades per address.
type mockSource struct {
	trades map[string][]model.TradeEvent
	fail   map[string]bool
	delay  time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (m *mockSource) FetchTrades(ctx context.Context, address string, after time.Time) ([]model.TradeEvent, error) {
	current := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		old := m.maxInFlight.Load()
		if current <= old || m.maxInFlight.CompareAndSwap(old, current) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.fail[address] {
		return nil, errors.New("upstream 502")
	}

	var out []model.TradeEvent
	for _, t := range m.trades[address] {
		if t.Timestamp.After(after) {
			out = append(out, t)
		}
	}
	return out, nil
}

// mockCursors records cursor advances.
type mockCursors struct {
	mu       sync.Mutex
	advanced map[string][]time.Time
	err      error
}

func (m *mockCursors) AdvanceCursor(ctx context.Context, address string, cursor time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.advanced == nil {
		m.advanced = make(map[string][]time.Time)
	}
	m.advanced[address] = append(m.advanced[address], cursor)
	return nil
}

func trade(id, addr string, offset time.Duration) model.TradeEvent {
	return model.TradeEvent{ID: id, TraderAddress: addr, MarketID: "m1", Side: model.SideBuy, Timestamp: base.Add(offset)}
}

func TestPoller_Poll(t *testing.T) {
	src := &mockSource{
		trades: map[string][]model.TradeEvent{
			"a": {trade("a1", "a", time.Minute), trade("a2", "a", 2*time.Minute)},
			"b": {},
			"c": {trade("c1", "c", time.Minute)},
		},
		fail: map[string]bool{"c": true},
	}
	cursors := &mockCursors{}
	counters := metrics.New()
	p := New(DefaultConfig(), src, cursors, counters, nil)

	entries := []model.WatchEntry{
		{Address: "c", Cursor: base},
		{Address: "a", Cursor: base},
		{Address: "b", Cursor: base},
	}

	results, err := p.Poll(context.Background(), entries)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}

	// Results follow entry order.
	for i, want := range []string{"c", "a", "b"} {
		if results[i].Address != want {
			t.Errorf("results[%d].Address = %q, want %q", i, results[i].Address, want)
		}
	}

	if !errors.Is(results[0].Err, model.ErrProviderUnavailable) {
		t.Errorf("results[c].Err = %v, want ErrProviderUnavailable", results[0].Err)
	}
	if len(results[1].Trades) != 2 {
		t.Errorf("len(results[a].Trades) = %d, want 2", len(results[1].Trades))
	}

	// Only a had new trades: one advance to its newest trade.
	if got := cursors.advanced["a"]; len(got) != 1 || !got[0].Equal(base.Add(2*time.Minute)) {
		t.Errorf("advanced[a] = %v, want [%v]", got, base.Add(2*time.Minute))
	}
	if _, ok := cursors.advanced["b"]; ok {
		t.Error("cursor advanced for address without trades")
	}
	if _, ok := cursors.advanced["c"]; ok {
		t.Error("cursor advanced for failed fetch")
	}

	s := counters.Snapshot()
	if s.AddressesPolled != 3 || s.FetchErrors != 1 || s.TradesFetched != 2 {
		t.Errorf("counters = %+v, want 3 polled, 1 error, 2 trades", s)
	}
}

func TestPoller_LateTradeInCursorSecond(t *testing.T) {
	src := &mockSource{trades: map[string][]model.TradeEvent{
		"a": {trade("a1", "a", time.Minute)},
	}}
	cursors := &mockCursors{}
	p := New(DefaultConfig(), src, cursors, nil, nil)
	cursor := base.Add(time.Minute)

	ids := func(rs []Result) []string {
		var out []string
		for _, tr := range rs[0].Trades {
			out = append(out, tr.ID)
		}
		return out
	}

	results, err := p.Poll(context.Background(), []model.WatchEntry{{Address: "a", Cursor: base}})
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if got := ids(results); len(got) != 1 || got[0] != "a1" {
		t.Fatalf("first poll = %v, want [a1]", got)
	}

	// a2 shares a1's second but was indexed after the first poll. a0 sits
	// inside the overlap window but before the cursor.
	src.trades["a"] = append(src.trades["a"],
		trade("a2", "a", time.Minute),
		trade("a0", "a", time.Minute-500*time.Millisecond),
	)

	results, err = p.Poll(context.Background(), []model.WatchEntry{{Address: "a", Cursor: cursor}})
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if got := ids(results); len(got) != 1 || got[0] != "a2" {
		t.Errorf("second poll = %v, want [a2]", got)
	}

	results, err = p.Poll(context.Background(), []model.WatchEntry{{Address: "a", Cursor: cursor}})
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if got := ids(results); len(got) != 0 {
		t.Errorf("third poll = %v, want none", got)
	}

	if got := cursors.advanced["a"]; len(got) != 1 || !got[0].Equal(cursor) {
		t.Errorf("advanced[a] = %v, want [%v]", got, cursor)
	}

	// A fresh poller has no memory of the boundary second.
	fresh := New(DefaultConfig(), src, cursors, nil, nil)
	results, err = fresh.Poll(context.Background(), []model.WatchEntry{{Address: "a", Cursor: cursor}})
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if got := ids(results); len(got) != 2 {
		t.Errorf("fresh poll = %v, want [a1 a2]", got)
	}
}

func TestPoller_CursorError(t *testing.T) {
	src := &mockSource{trades: map[string][]model.TradeEvent{"a": {trade("a1", "a", time.Minute)}}}
	cursors := &mockCursors{err: model.ErrInvalidCursor}
	counters := metrics.New()
	p := New(DefaultConfig(), src, cursors, counters, nil)

	results, err := p.Poll(context.Background(), []model.WatchEntry{{Address: "a", Cursor: base}})
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if !errors.Is(results[0].Err, model.ErrInvalidCursor) {
		t.Errorf("Err = %v, want ErrInvalidCursor", results[0].Err)
	}
	if len(results[0].Trades) != 1 {
		t.Errorf("len(Trades) = %d, want 1", len(results[0].Trades))
	}
	if counters.CursorRejections.Load() != 1 {
		t.Errorf("CursorRejections = %d, want 1", counters.CursorRejections.Load())
	}
}

func TestPoller_Concurrency(t *testing.T) {
	src := &mockSource{delay: 20 * time.Millisecond}
	p := New(Config{Concurrency: 3, Timeout: time.Second}, src, &mockCursors{}, nil, nil)

	var entries []model.WatchEntry
	for i := 0; i < 12; i++ {
		entries = append(entries, model.WatchEntry{Address: string(rune('a' + i)), Cursor: base})
	}

	if _, err := p.Poll(context.Background(), entries); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if got := src.maxInFlight.Load(); got > 3 {
		t.Errorf("maxInFlight = %d, want <= 3", got)
	}
}

func TestPoller_Cancelled(t *testing.T) {
	src := &mockSource{delay: time.Second}
	p := New(Config{Concurrency: 2, Timeout: 5 * time.Second}, src, &mockCursors{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.Poll(ctx, []model.WatchEntry{{Address: "a"}, {Address: "b"}, {Address: "c"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
