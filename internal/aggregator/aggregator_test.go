package aggregator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

type fakeSource struct {
	name    string
	records []model.TraderRecord
	err     error
	gotLim  int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchTopTraders(_ context.Context, limit int) ([]model.TraderRecord, error) {
	f.gotLim = limit
	return f.records, f.err
}

func (f *fakeSource) TraderPerformance(_ context.Context, address string) (model.TraderRecord, error) {
	if f.err != nil {
		return model.TraderRecord{}, f.err
	}
	for _, r := range f.records {
		if r.Address == address {
			return r, nil
		}
	}
	return model.TraderRecord{}, model.ErrNotFound
}

func f64(v float64) *float64 { return &v }

func rec(addr string, pnl, wr *float64) model.TraderRecord {
	return model.TraderRecord{Address: addr, PnL: pnl, WinRate: wr}
}

const (
	a1 = "0x0000000000000000000000000000000000000001"
	a2 = "0x0000000000000000000000000000000000000002"
	a3 = "0x0000000000000000000000000000000000000003"
	a4 = "0x0000000000000000000000000000000000000004"
)

func TestSelectDedupFirstSeenWins(t *testing.T) {
	first := &fakeSource{name: "first", records: []model.TraderRecord{
		{Address: a1, Username: "from-first", PnL: f64(100), WinRate: f64(0.8)},
	}}
	second := &fakeSource{name: "second", records: []model.TraderRecord{
		{Address: a1, Username: "from-second", PnL: f64(999), WinRate: f64(0.9)},
		rec(a2, f64(50), f64(0.9)),
	}}

	got := Select(context.Background(), []Source{first, second}, 0, 0, 7)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Address != a1 || got[0].Username != "from-first" || *got[0].PnL != 100 {
		t.Errorf("got[0] = %+v, want first source's record for %s", got[0], a1)
	}
	if first.gotLim != 7 || second.gotLim != 7 {
		t.Errorf("limits = %d,%d, want 7,7", first.gotLim, second.gotLim)
	}
}

func TestSelectFilterAndSort(t *testing.T) {
	src := &fakeSource{name: "s", records: []model.TraderRecord{
		rec(a3, f64(500), f64(0.75)),
		rec(a1, f64(500), f64(0.70)), // ties a3 on pnl, sorts first by address
		rec(a2, f64(900), f64(0.69)), // below win rate
		rec(a4, nil, f64(0.99)),      // missing pnl
		// missing win rate
		rec("0x00000000000000000000000000000000000000ff", f64(2000), nil),
		rec("0x00000000000000000000000000000000000000ee", f64(49.99), f64(0.9)),
		rec("0x00000000000000000000000000000000000000dd", f64(1000), f64(1)),
		// non-finite or out-of-range metrics never qualify
		rec("0x00000000000000000000000000000000000000c1", f64(math.NaN()), f64(math.NaN())),
		rec("0x00000000000000000000000000000000000000c2", f64(math.Inf(1)), f64(0.9)),
		rec("0x00000000000000000000000000000000000000c3", f64(60000), f64(1.5)),
		rec("0x00000000000000000000000000000000000000c4", f64(60000), f64(math.NaN())),
	}}

	got := Select(context.Background(), []Source{src}, 0.7, 50, 10)
	want := []string{"0x00000000000000000000000000000000000000dd", a1, a3}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(want), got)
	}
	for i, addr := range want {
		if got[i].Address != addr {
			t.Errorf("got[%d] = %s, want %s", i, got[i].Address, addr)
		}
	}
}

func TestSelectPartialFailure(t *testing.T) {
	broken := &fakeSource{name: "broken", err: errors.New("503")}
	ok := &fakeSource{name: "ok", records: []model.TraderRecord{rec(a1, f64(100), f64(0.9))}}

	got := Select(context.Background(), []Source{broken, ok}, 0.5, 10, 5)
	if len(got) != 1 || got[0].Address != a1 {
		t.Errorf("got %+v, want only %s", got, a1)
	}
}

func TestSelectAllFail(t *testing.T) {
	got := Select(context.Background(), []Source{
		&fakeSource{name: "a", err: errors.New("down")},
		&fakeSource{name: "b", err: errors.New("down")},
	}, 0, 0, 5)
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	down := &fakeSource{name: "down", err: errors.New("timeout")}
	graph := &fakeSource{name: "graph", records: []model.TraderRecord{rec(a2, f64(10), f64(0.5))}}

	got, err := Lookup(ctx, "0x0000000000000000000000000000000000000002", down, graph)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Address != a2 {
		t.Errorf("Address = %s, want %s", got.Address, a2)
	}

	_, err = Lookup(ctx, a3, down, graph)
	if !errors.Is(err, model.ErrProviderUnavailable) {
		t.Errorf("Lookup(missing) error = %v, want ErrProviderUnavailable", err)
	}

	_, err = Lookup(ctx, "bogus", graph)
	if !errors.Is(err, model.ErrInvalidAddress) {
		t.Errorf("Lookup(bogus) error = %v, want ErrInvalidAddress", err)
	}
}

func TestNormalize(t *testing.T) {
	fields := FieldMap{
		Address:        []string{"address", "id"},
		Username:       "name",
		PnL:            "totalPnl",
		WinRate:        "winRate",
		WinCount:       "winCount",
		LoseCount:      "loseCount",
		TotalPositions: "totalPositions",
		CurrentValue:   "currentValue",
	}

	tests := []struct {
		name    string
		payload Payload
		wantErr bool
		wantWR  *float64
		wantPnL *float64
	}{
		{
			name:    "string numbers and derived win rate",
			payload: Payload{"id": "0x00000000000000000000000000000000000000AB", "totalPnl": "12345.5", "winCount": "3", "loseCount": "1", "totalPositions": float64(9)},
			wantWR:  f64(0.75),
			wantPnL: f64(12345.5),
		},
		{
			name:    "no resolved positions leaves win rate absent",
			payload: Payload{"address": a1, "totalPnl": float64(10), "winCount": "0", "loseCount": "0"},
			wantPnL: f64(10),
		},
		{
			name:    "missing pnl stays nil",
			payload: Payload{"address": a1},
		},
		{
			name:    "NaN strings treated as missing",
			payload: Payload{"address": a1, "totalPnl": "NaN", "winRate": "NaN"},
		},
		{
			name:    "infinite pnl treated as missing",
			payload: Payload{"address": a1, "totalPnl": "+Inf", "winRate": float64(0.8)},
			wantWR:  f64(0.8),
		},
		{
			name:    "win rate above one falls back to counts",
			payload: Payload{"address": a1, "totalPnl": float64(5), "winRate": float64(75), "winCount": "1", "loseCount": "1"},
			wantWR:  f64(0.5),
			wantPnL: f64(5),
		},
		{
			name:    "negative win rate dropped",
			payload: Payload{"address": a1, "winRate": "-0.2"},
		},
		{
			name:    "invalid address",
			payload: Payload{"address": "nobody"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.payload, fields)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (got.WinRate == nil) != (tt.wantWR == nil) || (got.WinRate != nil && *got.WinRate != *tt.wantWR) {
				t.Errorf("WinRate = %v, want %v", got.WinRate, tt.wantWR)
			}
			if (got.PnL == nil) != (tt.wantPnL == nil) || (got.PnL != nil && *got.PnL != *tt.wantPnL) {
				t.Errorf("PnL = %v, want %v", got.PnL, tt.wantPnL)
			}
		})
	}
}

func TestNormalizeLowercasesAddress(t *testing.T) {
	got, err := Normalize(Payload{"id": "0x00000000000000000000000000000000000000AB"}, FieldMap{Address: []string{"address", "id"}})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Address != "0x00000000000000000000000000000000000000ab" {
		t.Errorf("Address = %q, want lowercase", got.Address)
	}
}
