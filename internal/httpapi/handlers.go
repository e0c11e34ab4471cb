package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/polymarket-mirror/internal/config"
	"github.com/rickgao/polymarket-mirror/internal/model"
	"github.com/rickgao/polymarket-mirror/internal/report"
	"github.com/rickgao/polymarket-mirror/internal/version"
)

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":         "ok",
		"version":        version.Get(),
		"trading_active": s.d.Config.TradingActive(),
		"storage":        "ok",
	}
	if s.d.Scheduler != nil {
		body["scheduler"] = s.d.Scheduler.Status()
	}

	code := http.StatusOK
	if s.d.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		if err := s.d.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["storage"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, body)
}

// handleStats returns ledger statistics and engine counters. Trader
// performance lookups hit external providers and run only with ?traders=true.
func (s *Server) handleStats(c *gin.Context) {
	lookups := s.d.Lookups
	if ok, _ := strconv.ParseBool(c.Query("traders")); !ok {
		lookups = nil
	}

	st, err := report.Build(c.Request.Context(), s.d.Ledger, s.d.Watchlist, s.d.Logger, lookups...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"statistics": st,
		"counters":   s.d.Counters.Snapshot(),
	})
}

func (s *Server) handleListWatchlist(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	list, err := s.d.Watchlist.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"traders": list, "count": len(list)})
}

func (s *Server) handleAddWatchlist(c *gin.Context) {
	var req struct {
		Address string `json:"address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	added, err := s.d.Watchlist.Add(ctx, req.Address)
	switch {
	case errors.Is(err, model.ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	addr, _ := model.NormalizeAddress(req.Address)
	if added {
		s.d.Logger.Info("trader added via api", "address", addr)
		c.JSON(http.StatusCreated, gin.H{"address": addr, "added": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "added": false})
}

func (s *Server) handleRemoveWatchlist(c *gin.Context) {
	addr := c.GetString(addressKey)

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	err := s.d.Watchlist.Remove(ctx, addr)
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "trader not watched"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.d.Logger.Info("trader removed via api", "address", addr)
	c.Status(http.StatusNoContent)
}

// handleLedger returns mirrored trades grouped by market id.
func (s *Server) handleLedger(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	var (
		entries []model.LedgerEntry
		err     error
	)
	if market := c.Query("market"); market != "" {
		entries, err = s.d.Ledger.MarketEntries(ctx, market)
	} else {
		entries, err = s.d.Ledger.Entries(ctx)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"markets": model.GroupByMarket(entries),
		"count":   len(entries),
	})
}

func (s *Server) handleGetTrading(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"active": s.d.Config.TradingActive()})
}

// handleSetTrading flips the kill switch and persists it to the config file
// when one is configured. It takes effect before the next order submission;
// in-flight orders are not recalled.
func (s *Server) handleSetTrading(c *gin.Context) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"active\": true|false}"})
		return
	}

	if s.d.ConfigPath != "" {
		active := *req.Active
		if _, err := config.Update(s.d.ConfigPath, func(cfg *config.Config) {
			cfg.Copy.TradingActive = active
		}); err != nil {
			s.d.Logger.Error("failed to persist kill switch", "path", s.d.ConfigPath, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist trading state"})
			return
		}
	}

	s.d.Config.SetTradingActive(*req.Active)
	s.d.Logger.Warn("trading kill switch changed via api", "active", *req.Active)
	c.JSON(http.StatusOK, gin.H{"active": *req.Active})
}
