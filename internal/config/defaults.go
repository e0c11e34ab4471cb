package config

import (
	"os"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultLogLevel              = "info"
	DefaultMinAmountToCopy       = 50.0
	DefaultMaxAmountToCopy       = 500.0
	DefaultCopyPercentage        = 0.1
	DefaultMinCopyDelay          = 30 * time.Second
	DefaultMaxCopyDelay          = 300 * time.Second
	DefaultMaxPositionsPerMarket = 3
	DefaultMaxDailyTrades        = 10
	DefaultMaxDailyAmount        = 1000.0
	DefaultPollingInterval       = 60 * time.Second
	DefaultErrorBackoff          = 30 * time.Second
	DefaultInitialLookback       = 60 * time.Minute
	DefaultMinWinRate            = 0.7
	DefaultMinPnL                = 50000.0
	DefaultMaxAutoTraders        = 5
	DefaultUpdateInterval        = 24 * time.Hour
	DefaultPerSourceLimit        = 20
	DefaultAnalyticsTimeout      = 30 * time.Second
	DefaultCLOBURL               = "https://clob.polymarket.com"
	DefaultChainID               = 137
	DefaultCLOBTimeout           = 30 * time.Second
	DefaultMaxRetries            = 3
	DefaultGatewayMode           = "paper"
	DefaultStorageDriver         = "sqlite"
	DefaultSQLitePath            = "data/copytrader.db"
	DefaultDBPort                = 5432
	DefaultDBSSLMode             = "prefer"
	DefaultMaxConns              = 10
	DefaultMinConns              = 2
	DefaultCacheDriver           = "file"
	DefaultCacheDir              = "data/analytics_cache"
	DefaultCacheTTL              = 24 * time.Hour
	DefaultRedisPrefix           = "copytrader:"
	DefaultAuditTopic            = "copytrader.decisions"
	DefaultAuditBatchSize        = 100
	DefaultAuditFlushInterval    = 1 * time.Second
	DefaultAuditBufferSize       = 1000
	DefaultPollConcurrency       = 4
	DefaultPollTimeout           = 30 * time.Second
	DefaultHTTPAddr              = ":8080"
)

// Analytics provider names.
const (
	SourceAnalytics = "polymarketanalytics"
	SourceWhales    = "polymarketwhales"
	SourceSubgraph  = "subgraph"
)

// DefaultSources returns the stock provider list in query order.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{
			Name:   SourceAnalytics,
			URL:    "https://api.polymarketanalytics.com/v1/traders",
			APIKey: os.Getenv("POLYMARKET_ANALYTICS_API_KEY"),
		},
		{
			Name:   SourceWhales,
			URL:    "https://api.polymarketwhales.info/traders",
			APIKey: os.Getenv("POLYMARKET_WHALES_API_KEY"),
		},
		{
			Name: SourceSubgraph,
			URL:  "https://api.thegraph.com/subgraphs/name/polymarket/polymarket-matic",
		},
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	// Copy defaults
	if c.Copy.MinAmountToCopy == 0 {
		c.Copy.MinAmountToCopy = DefaultMinAmountToCopy
	}
	if c.Copy.MaxAmountToCopy == 0 {
		c.Copy.MaxAmountToCopy = DefaultMaxAmountToCopy
	}
	if c.Copy.CopyPercentage == 0 {
		c.Copy.CopyPercentage = DefaultCopyPercentage
	}
	if c.Copy.MinCopyDelay == 0 {
		c.Copy.MinCopyDelay = DefaultMinCopyDelay
	}
	if c.Copy.MaxCopyDelay == 0 {
		c.Copy.MaxCopyDelay = DefaultMaxCopyDelay
	}
	if c.Copy.CopyBuys == nil {
		c.Copy.CopyBuys = Bool(true)
	}
	if c.Copy.CopySells == nil {
		c.Copy.CopySells = Bool(true)
	}
	if c.Copy.MaxPositionsPerMarket == 0 {
		c.Copy.MaxPositionsPerMarket = DefaultMaxPositionsPerMarket
	}
	if c.Copy.MaxDailyTrades == 0 {
		c.Copy.MaxDailyTrades = DefaultMaxDailyTrades
	}
	if c.Copy.MaxDailyAmount == 0 {
		c.Copy.MaxDailyAmount = DefaultMaxDailyAmount
	}
	if c.Copy.AutoClosePositions == nil {
		c.Copy.AutoClosePositions = Bool(true)
	}
	if c.Copy.PollingInterval == 0 {
		c.Copy.PollingInterval = DefaultPollingInterval
	}
	if c.Copy.ErrorBackoff == 0 {
		c.Copy.ErrorBackoff = DefaultErrorBackoff
	}
	if c.Copy.InitialLookback == 0 {
		c.Copy.InitialLookback = DefaultInitialLookback
	}

	// Analytics defaults
	if c.Analytics.Enabled == nil {
		c.Analytics.Enabled = Bool(true)
	}
	if c.Analytics.MinWinRate == 0 {
		c.Analytics.MinWinRate = DefaultMinWinRate
	}
	if c.Analytics.MinPnL == 0 {
		c.Analytics.MinPnL = DefaultMinPnL
	}
	if c.Analytics.MaxAutoTraders == 0 {
		c.Analytics.MaxAutoTraders = DefaultMaxAutoTraders
	}
	if c.Analytics.UpdateInterval == 0 {
		c.Analytics.UpdateInterval = DefaultUpdateInterval
	}
	if c.Analytics.PerSourceLimit == 0 {
		c.Analytics.PerSourceLimit = DefaultPerSourceLimit
	}
	if c.Analytics.Timeout == 0 {
		c.Analytics.Timeout = DefaultAnalyticsTimeout
	}
	if len(c.Analytics.Sources) == 0 {
		c.Analytics.Sources = DefaultSources()
	}

	// CLOB defaults
	if c.CLOB.URL == "" {
		c.CLOB.URL = DefaultCLOBURL
	}
	if c.CLOB.ChainID == 0 {
		c.CLOB.ChainID = DefaultChainID
	}
	if c.CLOB.Timeout == 0 {
		c.CLOB.Timeout = DefaultCLOBTimeout
	}
	if c.CLOB.MaxRetries == 0 {
		c.CLOB.MaxRetries = DefaultMaxRetries
	}

	if c.Gateway.Mode == "" {
		c.Gateway.Mode = DefaultGatewayMode
	}

	// Storage defaults
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = DefaultSQLitePath
	}
	applyDBDefaults(&c.Storage.Postgres)

	// Cache defaults
	if c.Cache.Driver == "" {
		c.Cache.Driver = DefaultCacheDriver
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = DefaultCacheDir
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = DefaultRedisPrefix
	}

	// Audit defaults
	if c.Audit.Topic == "" {
		c.Audit.Topic = DefaultAuditTopic
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = DefaultAuditBatchSize
	}
	if c.Audit.FlushInterval == 0 {
		c.Audit.FlushInterval = DefaultAuditFlushInterval
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = DefaultAuditBufferSize
	}

	// Poller defaults
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
