package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"BUY", SideBuy, false},
		{"sell", SideSell, false},
		{" Buy ", SideBuy, false},
		{"hold", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSide(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSide(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSide(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCopyDecision_OrderSize(t *testing.T) {
	t.Run("buy is sized in shares", func(t *testing.T) {
		d := CopyDecision{Side: SideBuy, Price: decimal.RequireFromString("0.25"), CopyAmount: decimal.NewFromInt(50)}
		if got := d.OrderSize(); !got.Equal(decimal.NewFromInt(200)) {
			t.Errorf("OrderSize() = %s, want 200", got)
		}
	})

	t.Run("sell is sized in notional", func(t *testing.T) {
		d := CopyDecision{Side: SideSell, Price: decimal.RequireFromString("0.25"), CopyAmount: decimal.NewFromInt(50)}
		if got := d.OrderSize(); !got.Equal(decimal.NewFromInt(50)) {
			t.Errorf("OrderSize() = %s, want 50", got)
		}
	})

	t.Run("zero price does not divide", func(t *testing.T) {
		d := CopyDecision{Side: SideBuy, CopyAmount: decimal.NewFromInt(50)}
		if got := d.OrderSize(); !got.Equal(decimal.NewFromInt(50)) {
			t.Errorf("OrderSize() = %s, want 50", got)
		}
	})
}

func TestGroupByMarket(t *testing.T) {
	ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	entries := []LedgerEntry{
		{SourceTradeID: "a", MarketID: "m1", Timestamp: ts},
		{SourceTradeID: "b", MarketID: "m2", Timestamp: ts},
		{SourceTradeID: "c", MarketID: "m1", Timestamp: ts.Add(time.Minute)},
	}

	got := GroupByMarket(entries)
	if len(got) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(got))
	}
	if len(got["m1"]) != 2 || got["m1"][0].SourceTradeID != "a" || got["m1"][1].SourceTradeID != "c" {
		t.Errorf("groups[m1] = %+v, want [a c]", got["m1"])
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"mixed case", "0xAbCdEf0123456789abcdef0123456789ABCDEF01", "0xabcdef0123456789abcdef0123456789abcdef01", false},
		{"surrounding space", "  0x00000000000000000000000000000000000000aa ", "0x00000000000000000000000000000000000000aa", false},
		{"no prefix", "abcdef0123456789abcdef0123456789abcdef01", "0xabcdef0123456789abcdef0123456789abcdef01", false},
		{"too short", "0x1234", "", true},
		{"not hex", "0xzzcdef0123456789abcdef0123456789abcdef01", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeAddress(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAddress) {
					t.Fatalf("NormalizeAddress(%q) err = %v, want ErrInvalidAddress", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeAddress(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
