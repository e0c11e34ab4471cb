package metrics

import (
	"sync/atomic"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

// Counters are monotonically increasing engine counters. Safe for concurrent use.
type Counters struct {
	Cycles           atomic.Int64
	CycleErrors      atomic.Int64
	AddressesPolled  atomic.Int64
	FetchErrors      atomic.Int64
	TradesFetched    atomic.Int64
	ReplaysSkipped   atomic.Int64
	Approved         atomic.Int64
	Simulated        atomic.Int64
	Executed         atomic.Int64
	ExecutionFailed  atomic.Int64
	CursorRejections atomic.Int64

	rejected map[model.Reason]*atomic.Int64
}

// New creates zeroed counters.
func New() *Counters {
	c := &Counters{rejected: make(map[model.Reason]*atomic.Int64, len(model.Reasons))}
	for _, r := range model.Reasons {
		c.rejected[r] = new(atomic.Int64)
	}
	return c
}

// Reject counts a rejection. Unknown reasons are ignored.
func (c *Counters) Reject(reason model.Reason) {
	if n, ok := c.rejected[reason]; ok {
		n.Add(1)
	}
}

// Snapshot is a copy of the counters.
type Snapshot struct {
	Cycles           int64                  `json:"cycles"`
	CycleErrors      int64                  `json:"cycle_errors"`
	AddressesPolled  int64                  `json:"addresses_polled"`
	FetchErrors      int64                  `json:"fetch_errors"`
	TradesFetched    int64                  `json:"trades_fetched"`
	ReplaysSkipped   int64                  `json:"replays_skipped"`
	Approved         int64                  `json:"approved"`
	Rejected         map[model.Reason]int64 `json:"rejected"`
	Simulated        int64                  `json:"simulated"`
	Executed         int64                  `json:"executed"`
	ExecutionFailed  int64                  `json:"execution_failed"`
	CursorRejections int64                  `json:"cursor_rejections"`
}

// Snapshot returns the current values.
func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{
		Cycles:           c.Cycles.Load(),
		CycleErrors:      c.CycleErrors.Load(),
		AddressesPolled:  c.AddressesPolled.Load(),
		FetchErrors:      c.FetchErrors.Load(),
		TradesFetched:    c.TradesFetched.Load(),
		ReplaysSkipped:   c.ReplaysSkipped.Load(),
		Approved:         c.Approved.Load(),
		Rejected:         make(map[model.Reason]int64, len(c.rejected)),
		Simulated:        c.Simulated.Load(),
		Executed:         c.Executed.Load(),
		ExecutionFailed:  c.ExecutionFailed.Load(),
		CursorRejections: c.CursorRejections.Load(),
	}
	for r, n := range c.rejected {
		s.Rejected[r] = n.Load()
	}
	return s
}

// TotalRejected sums rejections over every reason.
func (s Snapshot) TotalRejected() int64 {
	var total int64
	for _, n := range s.Rejected {
		total += n
	}
	return total
}
