// Package httpapi serves the operator API: health, statistics, watchlist
// management, ledger inspection, the kill switch and the live feed.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/polymarket-mirror/internal/aggregator"
	"github.com/rickgao/polymarket-mirror/internal/config"
	"github.com/rickgao/polymarket-mirror/internal/metrics"
	"github.com/rickgao/polymarket-mirror/internal/model"
	"github.com/rickgao/polymarket-mirror/internal/scheduler"
)

// requestTimeout bounds storage calls made by a handler.
const requestTimeout = 5 * time.Second

// WatchStore manages watched addresses.
type WatchStore interface {
	Add(ctx context.Context, address string) (bool, error)
	Remove(ctx context.Context, address string) error
	List(ctx context.Context) ([]model.WatchEntry, error)
}

// LedgerReader reads mirrored trades.
type LedgerReader interface {
	Entries(ctx context.Context) ([]model.LedgerEntry, error)
	MarketEntries(ctx context.Context, marketID string) ([]model.LedgerEntry, error)
}

// StatusReporter reports the scheduler phase.
type StatusReporter interface {
	Status() scheduler.Status
}

// Deps are the API's collaborators. Config, Watchlist and Ledger are required.
type Deps struct {
	Config *config.Holder
	// ConfigPath, when set, receives kill-switch changes so they survive
	// reloads and restarts.
	ConfigPath string
	Watchlist  WatchStore
	Ledger     LedgerReader
	Counters   *metrics.Counters
	Scheduler  StatusReporter
	Ping       func(ctx context.Context) error // storage health, optional
	Feed       http.Handler                    // served at /ws when set
	Lookups    []aggregator.PerformanceSource
	Logger     *slog.Logger
}

// Server is the operator HTTP API.
type Server struct {
	d      Deps
	engine *gin.Engine
	srv    *http.Server
}

// New builds the router.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Counters == nil {
		d.Counters = metrics.New()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger))

	s := &Server{d: d, engine: r}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/health", s.handleHealth)
	r.GET("/stats", s.handleStats)

	r.GET("/watchlist", s.handleListWatchlist)
	r.POST("/watchlist", s.handleAddWatchlist)
	r.DELETE("/watchlist/:address", validAddress(), s.handleRemoveWatchlist)

	r.GET("/ledger", s.handleLedger)

	r.GET("/trading", s.handleGetTrading)
	r.PUT("/trading", s.handleSetTrading)

	if s.d.Feed != nil {
		r.GET("/ws", gin.WrapH(s.d.Feed))
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.srv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.d.Logger.Error("http server stopped", "err", err)
		}
	}()

	s.d.Logger.Info("http api listening", "addr", ln.Addr().String())
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
// Long-lived websocket connections are not tracked; close the feed first.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
