package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	if err := c.Copy.validate(); err != nil {
		return err
	}
	if err := c.Analytics.validate(); err != nil {
		return err
	}

	switch c.Gateway.Mode {
	case "paper":
	case "clob":
		if c.CLOB.PrivateKey == "" {
			return errors.New("clob.private_key is required when gateway.mode is clob")
		}
		if c.CLOB.APIKey == "" || c.CLOB.APISecret == "" || c.CLOB.APIPassphrase == "" {
			return errors.New("clob.api_key, clob.api_secret and clob.api_passphrase are required when gateway.mode is clob")
		}
	default:
		return fmt.Errorf("gateway.mode must be paper or clob, got %q", c.Gateway.Mode)
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required")
		}
	case "postgres":
		if err := c.Storage.Postgres.validate("storage.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.driver must be sqlite or postgres, got %q", c.Storage.Driver)
	}

	switch c.Cache.Driver {
	case "none", "file":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required when cache.driver is redis")
		}
	default:
		return fmt.Errorf("cache.driver must be none, file or redis, got %q", c.Cache.Driver)
	}

	if len(c.Audit.Brokers) > 0 {
		if c.Audit.Topic == "" {
			return errors.New("audit.topic is required")
		}
		if c.Audit.BatchSize < 1 {
			return errors.New("audit.batch_size must be >= 1")
		}
	}

	if c.Poller.Concurrency < 1 {
		return errors.New("poller.concurrency must be >= 1")
	}

	return nil
}

func (cc *CopyConfig) validate() error {
	if cc.MinAmountToCopy < 0 {
		return errors.New("copy.min_amount_to_copy must be >= 0")
	}
	if cc.MaxAmountToCopy < cc.MinAmountToCopy {
		return fmt.Errorf("copy.max_amount_to_copy (%g) cannot be below min_amount_to_copy (%g)", cc.MaxAmountToCopy, cc.MinAmountToCopy)
	}
	if cc.CopyPercentage <= 0 || cc.CopyPercentage > 1 {
		return fmt.Errorf("copy.copy_percentage must be in (0, 1], got %g", cc.CopyPercentage)
	}
	if cc.MinCopyDelay < 0 {
		return errors.New("copy.min_copy_delay must be >= 0")
	}
	if cc.MaxCopyDelay < cc.MinCopyDelay {
		return fmt.Errorf("copy.max_copy_delay (%s) cannot be below min_copy_delay (%s)", cc.MaxCopyDelay, cc.MinCopyDelay)
	}
	if cc.MaxPositionsPerMarket < 1 {
		return errors.New("copy.max_positions_per_market must be >= 1")
	}
	if cc.MaxDailyTrades < 1 {
		return errors.New("copy.max_daily_trades must be >= 1")
	}
	if cc.MaxDailyAmount <= 0 {
		return errors.New("copy.max_daily_amount must be > 0")
	}
	if cc.PollingInterval <= 0 {
		return errors.New("copy.polling_interval must be > 0")
	}
	if cc.ErrorBackoff <= 0 {
		return errors.New("copy.error_backoff must be > 0")
	}
	return nil
}

func (ac *AnalyticsConfig) validate() error {
	if ac.MinWinRate < 0 || ac.MinWinRate > 1 {
		return fmt.Errorf("analytics.min_win_rate must be in [0, 1], got %g", ac.MinWinRate)
	}
	if ac.MaxAutoTraders < 0 {
		return errors.New("analytics.max_auto_traders must be >= 0")
	}
	if ac.PerSourceLimit < 1 {
		return errors.New("analytics.per_source_limit must be >= 1")
	}
	for i, s := range ac.Sources {
		switch s.Name {
		case SourceAnalytics, SourceWhales, SourceSubgraph:
		default:
			return fmt.Errorf("analytics.sources[%d].name %q is not a known provider", i, s.Name)
		}
		if s.URL == "" {
			return fmt.Errorf("analytics.sources[%d].url is required", i)
		}
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
