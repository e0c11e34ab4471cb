package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

func entry(id, market string, side model.Side, amount string, ts time.Time) model.LedgerEntry {
	return model.LedgerEntry{
		Timestamp:     ts,
		SourceTradeID: id,
		MarketID:      market,
		Side:          side,
		CopyAmount:    decimal.RequireFromString(amount),
	}
}

func TestCurrentState(t *testing.T) {
	asOf := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	yesterday := time.Date(2024, 3, 9, 23, 59, 59, 0, time.UTC)
	midnight := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	entries := []model.LedgerEntry{
		entry("old", "m1", model.SideBuy, "400", yesterday),
		entry("a", "m1", model.SideBuy, "100", midnight),
		entry("b", "m1", model.SideBuy, "50.5", asOf.Add(-time.Hour)),
		entry("c", "m2", model.SideSell, "25", asOf.Add(-time.Minute)),
		entry("future", "m2", model.SideBuy, "999", tomorrow),
	}

	t.Run("counts the UTC day", func(t *testing.T) {
		s := CurrentState(entries, asOf)

		if s.DailyTradeCount != 3 {
			t.Errorf("DailyTradeCount = %d, want 3", s.DailyTradeCount)
		}
		if !s.DailyAmount.Equal(decimal.RequireFromString("175.5")) {
			t.Errorf("DailyAmount = %s, want 175.5", s.DailyAmount)
		}
		if s.OpenPositionsPerMarket["m1"] != 2 {
			t.Errorf("open[m1] = %d, want 2", s.OpenPositionsPerMarket["m1"])
		}
		if s.OpenPositionsPerMarket["m2"] != 1 {
			t.Errorf("open[m2] = %d, want 1 (sells never close)", s.OpenPositionsPerMarket["m2"])
		}
	})

	t.Run("sells never close positions", func(t *testing.T) {
		var sells []model.LedgerEntry
		for i, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
			sells = append(sells, entry(id, "m1", model.SideSell, "10", midnight.Add(time.Duration(i)*time.Minute)))
		}
		mixed := append([]model.LedgerEntry{entry("b0", "m1", model.SideBuy, "10", midnight)}, sells...)

		tests := []struct {
			name    string
			entries []model.LedgerEntry
			want    int
		}{
			{"sells only", sells, 5},
			{"buy then sells", mixed, 6},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s := CurrentState(tt.entries, asOf)
				if s.OpenPositionsPerMarket["m1"] != tt.want {
					t.Errorf("open[m1] = %d, want %d", s.OpenPositionsPerMarket["m1"], tt.want)
				}
			})
		}
	})

	t.Run("non-UTC asOf uses the UTC day", func(t *testing.T) {
		loc := time.FixedZone("UTC-8", -8*3600)
		// 2024-03-09 20:00 in UTC-8 is 2024-03-10 04:00 UTC.
		local := time.Date(2024, 3, 9, 20, 0, 0, 0, loc)

		s := CurrentState(entries, local)
		if s.DailyTradeCount != 3 {
			t.Errorf("DailyTradeCount = %d, want 3", s.DailyTradeCount)
		}
	})

	t.Run("empty ledger", func(t *testing.T) {
		s := CurrentState(nil, asOf)
		if s.DailyTradeCount != 0 || !s.DailyAmount.IsZero() {
			t.Errorf("state = %+v, want zero", s)
		}
		if s.OpenPositionsPerMarket == nil {
			t.Error("OpenPositionsPerMarket should not be nil")
		}
	})
}

type stubEntries struct {
	since   time.Time
	entries []model.LedgerEntry
	err     error
}

func (s *stubEntries) EntriesSince(_ context.Context, since time.Time) ([]model.LedgerEntry, error) {
	s.since = since
	return s.entries, s.err
}

func TestGuard_CurrentState(t *testing.T) {
	asOf := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

	t.Run("queries from start of day", func(t *testing.T) {
		src := &stubEntries{entries: []model.LedgerEntry{
			entry("a", "m1", model.SideBuy, "100", asOf),
		}}
		g := NewGuard(src)

		s, err := g.CurrentState(context.Background(), asOf)
		if err != nil {
			t.Fatalf("CurrentState failed: %v", err)
		}
		wantSince := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
		if !src.since.Equal(wantSince) {
			t.Errorf("since = %v, want %v", src.since, wantSince)
		}
		if s.DailyTradeCount != 1 {
			t.Errorf("DailyTradeCount = %d, want 1", s.DailyTradeCount)
		}
	})

	t.Run("propagates ledger errors", func(t *testing.T) {
		boom := errors.New("boom")
		g := NewGuard(&stubEntries{err: boom})

		if _, err := g.CurrentState(context.Background(), asOf); !errors.Is(err, boom) {
			t.Errorf("err = %v, want wrapped boom", err)
		}
	})
}
