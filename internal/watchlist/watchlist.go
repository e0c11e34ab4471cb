// Package watchlist persists the watched addresses and their trade cursors.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/polymarket-mirror/internal/database"
	"github.com/rickgao/polymarket-mirror/internal/model"
)

// Backend is the durable storage behind a Watchlist. Addresses passed in are
// already normalized.
type Backend interface {
	// Insert adds the entry unless the address exists. Reports whether it was added.
	Insert(ctx context.Context, e model.WatchEntry) (bool, error)
	// Delete removes the address. Reports whether it existed.
	Delete(ctx context.Context, address string) (bool, error)
	List(ctx context.Context) ([]model.WatchEntry, error)
	// Get returns model.ErrNotFound for unknown addresses.
	Get(ctx context.Context, address string) (model.WatchEntry, error)
	// SetCursor stores cursor only if it is not before the stored one.
	// Reports whether the address exists and the update applied.
	SetCursor(ctx context.Context, address string, cursor time.Time) (bool, error)
	RefreshedAt(ctx context.Context) (time.Time, error)
	MarkRefreshed(ctx context.Context, t time.Time) error
}

// Watchlist is the set of addresses being mirrored.
type Watchlist struct {
	backend  Backend
	lookback time.Duration
	now      func() time.Time
}

// New creates a Watchlist. New addresses start with a cursor of now minus lookback.
func New(backend Backend, lookback time.Duration, now func() time.Time) *Watchlist {
	if now == nil {
		now = time.Now
	}
	return &Watchlist{backend: backend, lookback: lookback, now: now}
}

// Open returns a Watchlist backed by the open store.
func Open(h *database.Handle, lookback time.Duration, now func() time.Time) *Watchlist {
	var backend Backend
	if h.Pool != nil {
		backend = NewPostgres(h.Pool)
	} else {
		backend = NewSQLite(h.SQL)
	}
	return New(backend, lookback, now)
}

// Add watches an address. Adding an address already present is a no-op and
// keeps its cursor. Reports whether the address was new.
func (w *Watchlist) Add(ctx context.Context, address string) (bool, error) {
	addr, err := model.NormalizeAddress(address)
	if err != nil {
		return false, err
	}
	now := w.now().UTC()
	added, err := w.backend.Insert(ctx, model.WatchEntry{
		Address: addr,
		Cursor:  now.Add(-w.lookback),
		AddedAt: now,
	})
	if err != nil {
		return false, fmt.Errorf("add %s: %w", addr, err)
	}
	return added, nil
}

// Remove stops watching an address. Returns model.ErrNotFound if it was not watched.
func (w *Watchlist) Remove(ctx context.Context, address string) error {
	addr, err := model.NormalizeAddress(address)
	if err != nil {
		return err
	}
	existed, err := w.backend.Delete(ctx, addr)
	if err != nil {
		return fmt.Errorf("remove %s: %w", addr, err)
	}
	if !existed {
		return fmt.Errorf("%w: %s", model.ErrNotFound, addr)
	}
	return nil
}

// List returns all watched addresses ordered by address.
func (w *Watchlist) List(ctx context.Context) ([]model.WatchEntry, error) {
	return w.backend.List(ctx)
}

// Get returns one entry.
func (w *Watchlist) Get(ctx context.Context, address string) (model.WatchEntry, error) {
	addr, err := model.NormalizeAddress(address)
	if err != nil {
		return model.WatchEntry{}, err
	}
	return w.backend.Get(ctx, addr)
}

// AdvanceCursor moves an address's cursor forward. A cursor before the stored
// one is rejected with model.ErrInvalidCursor and leaves state unchanged. An
// equal cursor is accepted.
func (w *Watchlist) AdvanceCursor(ctx context.Context, address string, cursor time.Time) error {
	addr, err := model.NormalizeAddress(address)
	if err != nil {
		return err
	}
	ok, err := w.backend.SetCursor(ctx, addr, cursor.UTC())
	if err != nil {
		return fmt.Errorf("advance cursor %s: %w", addr, err)
	}
	if ok {
		return nil
	}

	current, err := w.backend.Get(ctx, addr)
	if errors.Is(err, model.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("advance cursor %s: %w", addr, err)
	}
	return fmt.Errorf("%w: %s cursor %s before %s", model.ErrInvalidCursor, addr,
		cursor.UTC().Format(time.RFC3339), current.Cursor.Format(time.RFC3339))
}

// RefreshedAt returns when traders were last refreshed, zero if never.
func (w *Watchlist) RefreshedAt(ctx context.Context) (time.Time, error) {
	return w.backend.RefreshedAt(ctx)
}

// MarkRefreshed records a trader refresh.
func (w *Watchlist) MarkRefreshed(ctx context.Context, t time.Time) error {
	return w.backend.MarkRefreshed(ctx, t.UTC())
}
