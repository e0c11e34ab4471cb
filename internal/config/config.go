package config

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-mirror/internal/policy"
)

// Config is the root configuration for the copy trader.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Copy      CopyConfig      `yaml:"copy"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	CLOB      CLOBConfig      `yaml:"clob"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Audit     AuditConfig     `yaml:"audit"`
	Poller    PollerConfig    `yaml:"poller"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SlogLevel maps Level to a slog level. Unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// CopyConfig holds mirroring thresholds and loop timing.
type CopyConfig struct {
	WatchedTraders        []string      `yaml:"watched_traders"`
	MinAmountToCopy       float64       `yaml:"min_amount_to_copy"`
	MaxAmountToCopy       float64       `yaml:"max_amount_to_copy"`
	CopyPercentage        float64       `yaml:"copy_percentage"`
	MinCopyDelay          time.Duration `yaml:"min_copy_delay"`
	MaxCopyDelay          time.Duration `yaml:"max_copy_delay"`
	BlacklistedMarkets    []string      `yaml:"blacklisted_markets"`
	WhitelistOnly         bool          `yaml:"whitelist_only"`
	WhitelistedMarkets    []string      `yaml:"whitelisted_markets"`
	CopyBuys              *bool         `yaml:"copy_buys"`
	CopySells             *bool         `yaml:"copy_sells"`
	MaxPositionsPerMarket int           `yaml:"max_positions_per_market"`
	MaxDailyTrades        int           `yaml:"max_daily_trades"`
	MaxDailyAmount        float64       `yaml:"max_daily_amount"`
	AutoClosePositions    *bool         `yaml:"auto_close_positions"`
	TradingActive         bool          `yaml:"trading_active"`
	PollingInterval       time.Duration `yaml:"polling_interval"`
	ErrorBackoff          time.Duration `yaml:"error_backoff"`
	InitialLookback       time.Duration `yaml:"initial_lookback"` // Cursor offset for newly added addresses
}

// AnalyticsConfig holds trader discovery settings.
type AnalyticsConfig struct {
	Enabled           *bool          `yaml:"enabled"`
	MinWinRate        float64        `yaml:"min_win_rate"`
	MinPnL            float64        `yaml:"min_pnl"`
	AutoUpdateTraders bool           `yaml:"auto_update_traders"`
	MaxAutoTraders    int            `yaml:"max_auto_traders"`
	UpdateInterval    time.Duration  `yaml:"update_interval"`
	PerSourceLimit    int            `yaml:"per_source_limit"`
	Timeout           time.Duration  `yaml:"timeout"`
	Sources           []SourceConfig `yaml:"sources"` // Queried in order; earlier sources win dedup
}

// SourceConfig is a single analytics provider.
type SourceConfig struct {
	Name   string `yaml:"name"` // polymarketanalytics, polymarketwhales, subgraph
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// CLOBConfig holds Polymarket CLOB API settings.
type CLOBConfig struct {
	URL           string        `yaml:"url"`
	ChainID       int64         `yaml:"chain_id"`
	PrivateKey    string        `yaml:"private_key"` // Hex secp256k1 key used for order signing
	APIKey        string        `yaml:"api_key"`
	APISecret     string        `yaml:"api_secret"`
	APIPassphrase string        `yaml:"api_passphrase"`
	FunderAddress string        `yaml:"funder_address"` // Proxy wallet holding funds, if any
	SignatureType int           `yaml:"signature_type"` // 0=EOA, 1=email/magic, 2=browser proxy
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
}

// GatewayConfig selects the order gateway.
type GatewayConfig struct {
	Mode string `yaml:"mode"` // paper or clob
}

// StorageConfig selects where the watchlist and ledger live.
type StorageConfig struct {
	Driver     string   `yaml:"driver"` // sqlite or postgres
	SQLitePath string   `yaml:"sqlite_path"`
	Postgres   DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// CacheConfig holds provider response cache settings.
type CacheConfig struct {
	Driver string        `yaml:"driver"` // file, redis or none
	Dir    string        `yaml:"dir"`
	TTL    time.Duration `yaml:"ttl"`
	Redis  RedisConfig   `yaml:"redis"`
}

// RedisConfig holds a Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// AuditConfig holds the decision stream settings. Disabled without brokers.
type AuditConfig struct {
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// PollerConfig holds trade poller settings.
type PollerConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// HTTPConfig holds the operator API settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Policy returns the policy engine thresholds from the copy section.
func (c *Config) Policy() policy.Config {
	return policy.Config{
		MinAmountToCopy:       decimal.NewFromFloat(c.Copy.MinAmountToCopy),
		MaxAmountToCopy:       decimal.NewFromFloat(c.Copy.MaxAmountToCopy),
		CopyPercentage:        decimal.NewFromFloat(c.Copy.CopyPercentage),
		BlacklistedMarkets:    append([]string(nil), c.Copy.BlacklistedMarkets...),
		WhitelistOnly:         c.Copy.WhitelistOnly,
		WhitelistedMarkets:    append([]string(nil), c.Copy.WhitelistedMarkets...),
		CopyBuys:              boolOr(c.Copy.CopyBuys, true),
		CopySells:             boolOr(c.Copy.CopySells, true),
		MaxPositionsPerMarket: c.Copy.MaxPositionsPerMarket,
		MaxDailyTrades:        c.Copy.MaxDailyTrades,
		MaxDailyAmount:        decimal.NewFromFloat(c.Copy.MaxDailyAmount),
	}
}

// AutoClose reports the auto_close_positions setting. It is accepted for
// compatibility with existing config files and logged at startup; position
// counts ignore it.
func (c *Config) AutoClose() bool {
	return boolOr(c.Copy.AutoClosePositions, true)
}

// AnalyticsEnabled reports whether analytics-based trader discovery is on.
func (c *Config) AnalyticsEnabled() bool {
	return boolOr(c.Analytics.Enabled, true)
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	out := *c
	out.Copy.WatchedTraders = append([]string(nil), c.Copy.WatchedTraders...)
	out.Copy.BlacklistedMarkets = append([]string(nil), c.Copy.BlacklistedMarkets...)
	out.Copy.WhitelistedMarkets = append([]string(nil), c.Copy.WhitelistedMarkets...)
	out.Copy.CopyBuys = clonePtr(c.Copy.CopyBuys)
	out.Copy.CopySells = clonePtr(c.Copy.CopySells)
	out.Copy.AutoClosePositions = clonePtr(c.Copy.AutoClosePositions)
	out.Analytics.Enabled = clonePtr(c.Analytics.Enabled)
	out.Analytics.Sources = append([]SourceConfig(nil), c.Analytics.Sources...)
	out.Audit.Brokers = append([]string(nil), c.Audit.Brokers...)
	return &out
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Bool returns a pointer to b. Used when setting optional flags.
func Bool(b bool) *bool {
	return &b
}
