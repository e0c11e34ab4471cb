// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A .env file, when present, is loaded into the environment before expansion.
// COPY_TRADER_ACTIVE=true|false overrides copy.trading_active.
package config
