package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

func TestPrintTrader(t *testing.T) {
	pnl, rate := 125000.5, 0.72
	tests := []struct {
		name string
		rank int
		rec  model.TraderRecord
		want []string
		omit []string
	}{
		{
			name: "ranked",
			rank: 2,
			rec:  model.TraderRecord{Address: "0xabc", Username: "whale", PnL: &pnl, WinRate: &rate, TotalPositions: 40},
			want: []string{"2. Address: 0xabc", "Username: whale", "PnL: $125000.50", "Win Rate: 72.00%", "Total Positions: 40"},
		},
		{
			name: "missing metrics",
			rec:  model.TraderRecord{Address: "0xdef"},
			want: []string{"Address: 0xdef", "PnL: n/a", "Win Rate: n/a"},
			omit: []string{"Username", "Current Value", "0. "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printTrader(&buf, tt.rank, tt.rec)
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, o := range tt.omit {
				if strings.Contains(out, o) {
					t.Errorf("output contains %q:\n%s", o, out)
				}
			}
		})
	}
}
