package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-mirror/internal/config"
	"github.com/rickgao/polymarket-mirror/internal/database"
	"github.com/rickgao/polymarket-mirror/internal/ledger"
	"github.com/rickgao/polymarket-mirror/internal/metrics"
	"github.com/rickgao/polymarket-mirror/internal/model"
	"github.com/rickgao/polymarket-mirror/internal/scheduler"
	"github.com/rickgao/polymarket-mirror/internal/watchlist"
)

const addrA = "0x00000000000000000000000000000000000000aa"

type fixedStatus struct{ st scheduler.Status }

func (f fixedStatus) Status() scheduler.Status { return f.st }

type testServer struct {
	srv       *Server
	holder    *config.Holder
	watchlist *watchlist.Watchlist
	ledger    *ledger.SQLiteLedger
	counters  *metrics.Counters
}

func newTestServer(t *testing.T, ping func(context.Context) error) *testServer {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) }
	ts := &testServer{
		holder:    config.NewHolder(config.Default()),
		watchlist: watchlist.New(watchlist.NewSQLite(db), time.Hour, now),
		ledger:    ledger.NewSQLite(db),
		counters:  metrics.New(),
	}
	ts.srv = New(Deps{
		Config:    ts.holder,
		Watchlist: ts.watchlist,
		Ledger:    ts.ledger,
		Counters:  ts.counters,
		Scheduler: fixedStatus{scheduler.Status{State: scheduler.StateSleeping}},
		Ping:      ping,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		ping       func(context.Context) error
		wantCode   int
		wantStatus string
	}{
		{"healthy", func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"storage down", func(context.Context) error { return errors.New("connection refused") }, http.StatusServiceUnavailable, "degraded"},
		{"no ping", nil, http.StatusOK, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.ping)
			rec := ts.do(t, http.MethodGet, "/health", "")
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			body := decode(t, rec)
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
			sched, _ := body["scheduler"].(map[string]any)
			if sched["state"] != "sleeping" {
				t.Errorf("scheduler = %v, want sleeping", body["scheduler"])
			}
		})
	}
}

func TestWatchlistEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/watchlist", `{"address":"0x00000000000000000000000000000000000000AA"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST code = %d, want 201: %s", rec.Code, rec.Body)
	}
	if got := decode(t, rec)["address"]; got != addrA {
		t.Errorf("address = %v, want %s", got, addrA)
	}

	rec = ts.do(t, http.MethodPost, "/watchlist", `{"address":"`+addrA+`"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("repeat POST code = %d, want 200", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/watchlist", "")
	if got := decode(t, rec)["count"]; got != float64(1) {
		t.Errorf("count = %v, want 1", got)
	}

	rec = ts.do(t, http.MethodDelete, "/watchlist/"+addrA, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE code = %d, want 204", rec.Code)
	}
	rec = ts.do(t, http.MethodDelete, "/watchlist/"+addrA, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE code = %d, want 404", rec.Code)
	}
}

func TestWatchlistEndpoints_BadInput(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"invalid address", http.MethodPost, "/watchlist", `{"address":"0x1234"}`},
		{"missing address", http.MethodPost, "/watchlist", `{}`},
		{"malformed body", http.MethodPost, "/watchlist", `{`},
		{"invalid delete", http.MethodDelete, "/watchlist/not-hex", ""},
	}

	ts := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("code = %d, want 400", rec.Code)
			}
		})
	}
}

func TestLedger(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	for i, m := range []string{"m1", "m1", "m2"} {
		err := ts.ledger.Append(ctx, model.LedgerEntry{
			Timestamp:       at.Add(time.Duration(i) * time.Minute),
			SourceTradeID:   "t" + string(rune('1'+i)),
			MarketID:        m,
			Side:            model.SideBuy,
			Price:           decimal.RequireFromString("0.4"),
			CopyAmount:      decimal.NewFromInt(60),
			ExecutedOrderID: "o",
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	body := decode(t, ts.do(t, http.MethodGet, "/ledger", ""))
	if body["count"] != float64(3) {
		t.Errorf("count = %v, want 3", body["count"])
	}
	markets, _ := body["markets"].(map[string]any)
	if len(markets) != 2 {
		t.Errorf("markets = %d, want 2", len(markets))
	}

	body = decode(t, ts.do(t, http.MethodGet, "/ledger?market=m1", ""))
	if body["count"] != float64(2) {
		t.Errorf("filtered count = %v, want 2", body["count"])
	}
}

func TestStats(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.counters.Executed.Add(2)
	ts.counters.Reject(model.ReasonBelowMinimum)

	rec := ts.do(t, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	body := decode(t, rec)
	counters, _ := body["counters"].(map[string]any)
	if counters["executed"] != float64(2) {
		t.Errorf("executed = %v, want 2", counters["executed"])
	}
	rejected, _ := counters["rejected"].(map[string]any)
	if rejected["below_minimum"] != float64(1) {
		t.Errorf("rejected = %v, want below_minimum 1", rejected)
	}
	stats, _ := body["statistics"].(map[string]any)
	if stats["total_trades"] != float64(0) {
		t.Errorf("total_trades = %v, want 0", stats["total_trades"])
	}
}

func TestTrading(t *testing.T) {
	ts := newTestServer(t, nil)

	if got := decode(t, ts.do(t, http.MethodGet, "/trading", ""))["active"]; got != false {
		t.Errorf("initial active = %v, want false", got)
	}

	rec := ts.do(t, http.MethodPut, "/trading", `{"active":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT code = %d, want 200", rec.Code)
	}
	if !ts.holder.TradingActive() {
		t.Error("TradingActive() = false after PUT true")
	}

	rec = ts.do(t, http.MethodPut, "/trading", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("PUT {} code = %d, want 400", rec.Code)
	}
	if !ts.holder.TradingActive() {
		t.Error("bad request changed the kill switch")
	}
}

func TestTrading_PersistsToConfigFile(t *testing.T) {
	t.Setenv(config.EnvTradingActive, "")
	path := filepath.Join(t.TempDir(), "copytrader.yaml")
	if err := config.Save(path, config.Default()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ts := newTestServer(t, nil)
	ts.srv.d.ConfigPath = path

	if rec := ts.do(t, http.MethodPut, "/trading", `{"active":true}`); rec.Code != http.StatusOK {
		t.Fatalf("PUT code = %d, want 200", rec.Code)
	}

	// A reload reads the file, so the switch must be there.
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if !cfg.Copy.TradingActive {
		t.Error("TradingActive in file = false after PUT true")
	}

	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	ts.srv.d.ConfigPath = filepath.Join(blocker, "copytrader.yaml")
	rec := ts.do(t, http.MethodPut, "/trading", `{"active":false}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("PUT with unwritable path code = %d, want 500", rec.Code)
	}
	if !ts.holder.TradingActive() {
		t.Error("kill switch changed although persisting failed")
	}
}

func TestStartShutdown(t *testing.T) {
	ts := newTestServer(t, nil)
	if err := ts.srv.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ts.srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown = %v, want nil", err)
	}
}
