package config

import "sync/atomic"

// Holder publishes the current config snapshot. Readers get an immutable
// pointer; writers swap in a new value between scheduler cycles.
type Holder struct {
	p atomic.Pointer[Config]
}

// NewHolder creates a Holder with an initial config.
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.p.Store(cfg)
	return h
}

// Load returns the current snapshot. Callers must not mutate it.
func (h *Holder) Load() *Config {
	return h.p.Load()
}

// Store replaces the current snapshot.
func (h *Holder) Store(cfg *Config) {
	h.p.Store(cfg)
}

// SetTradingActive flips the kill switch on a copy of the current snapshot.
func (h *Holder) SetTradingActive(active bool) {
	for {
		old := h.p.Load()
		next := old.Clone()
		next.Copy.TradingActive = active
		if h.p.CompareAndSwap(old, next) {
			return
		}
	}
}

// TradingActive reports the current kill switch state.
func (h *Holder) TradingActive() bool {
	return h.p.Load().Copy.TradingActive
}
