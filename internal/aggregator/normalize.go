package aggregator

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

// Payload is one trader object as decoded from a provider response.
type Payload map[string]any

// FieldMap names the provider keys holding each TraderRecord field.
// Empty names mean the provider does not report that field.
type FieldMap struct {
	Address         []string // First non-empty key wins
	Username        string
	PnL             string
	WinRate         string
	WinCount        string // Used with LoseCount when WinRate is absent
	LoseCount       string
	TotalPositions  string
	ActivePositions string
	TotalWins       string
	TotalLosses     string
	CurrentValue    string
}

// Normalize converts a provider payload into a TraderRecord. A payload
// without a valid address is rejected. PnL and win rate stay nil when the
// provider omitted them.
func Normalize(p Payload, m FieldMap) (model.TraderRecord, error) {
	var rawAddr string
	for _, k := range m.Address {
		if s, ok := p[k].(string); ok && s != "" {
			rawAddr = s
			break
		}
	}
	addr, err := model.NormalizeAddress(rawAddr)
	if err != nil {
		return model.TraderRecord{}, err
	}

	rec := model.TraderRecord{Address: addr}
	if s, ok := p[m.Username].(string); ok {
		rec.Username = strings.TrimSpace(s)
	}
	if v, ok := number(p, m.PnL); ok {
		rec.PnL = &v
	}

	if v, ok := number(p, m.WinRate); ok && validRate(v) {
		rec.WinRate = &v
	} else {
		wins, okW := number(p, m.WinCount)
		losses, okL := number(p, m.LoseCount)
		if okW && okL && wins+losses > 0 {
			rate := wins / (wins + losses)
			rec.WinRate = &rate
		}
	}

	if v, ok := number(p, m.TotalPositions); ok {
		rec.TotalPositions = int(v)
	}
	if v, ok := number(p, m.ActivePositions); ok {
		rec.ActivePositions = int(v)
	}
	rec.TotalWins, _ = number(p, m.TotalWins)
	rec.TotalLosses, _ = number(p, m.TotalLosses)
	rec.CurrentValue, _ = number(p, m.CurrentValue)

	return rec, nil
}

// NormalizeAll converts payloads, dropping those that fail. It returns the
// number dropped so callers can log it.
func NormalizeAll(items []Payload, m FieldMap) ([]model.TraderRecord, int) {
	out := make([]model.TraderRecord, 0, len(items))
	dropped := 0
	for _, p := range items {
		rec, err := Normalize(p, m)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, rec)
	}
	return out, dropped
}

// number reads a numeric field reported as a JSON number or a numeric string.
// NaN and infinities count as missing.
func number(p Payload, key string) (float64, bool) {
	f, ok := rawNumber(p, key)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func validRate(v float64) bool { return v >= 0 && v <= 1 }

func rawNumber(p Payload, key string) (float64, bool) {
	if key == "" {
		return 0, false
	}
	switch v := p[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// String renders a record for logs and CLI output.
func String(r model.TraderRecord) string {
	pnl, wr := "n/a", "n/a"
	if r.PnL != nil {
		pnl = fmt.Sprintf("$%.2f", *r.PnL)
	}
	if r.WinRate != nil {
		wr = fmt.Sprintf("%.2f%%", *r.WinRate*100)
	}
	return fmt.Sprintf("%s (PnL: %s, Win Rate: %s)", r.Address, pnl, wr)
}
