// Package clob is the Polymarket CLOB client used for trade discovery and
// live order submission.
package clob

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rickgao/polymarket-mirror/internal/api"
	"github.com/rickgao/polymarket-mirror/internal/auth"
	"github.com/rickgao/polymarket-mirror/internal/config"
	"github.com/rickgao/polymarket-mirror/internal/market"
)

// Client talks to the CLOB REST API.
type Client struct {
	rest    *api.Client
	signer  *auth.Signer // nil when no private key is configured
	creds   auth.Credentials
	funder  string
	sigType uint8
	markets *market.Registry
	logger  *slog.Logger
	salt    func() int64
}

// Option configures a Client.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry market.Config
	rest     []api.ClientOption
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMarketConfig sets the market registry cache settings.
func WithMarketConfig(cfg market.Config) Option {
	return func(o *options) {
		o.registry = cfg
	}
}

// WithRESTOptions passes options through to the underlying REST client.
func WithRESTOptions(opts ...api.ClientOption) Option {
	return func(o *options) {
		o.rest = append(o.rest, opts...)
	}
}

// New creates a CLOB client. A private key is only required to submit orders.
func New(cfg config.CLOBConfig, opts ...Option) (*Client, error) {
	o := options{logger: slog.Default(), registry: market.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		creds: auth.Credentials{
			APIKey:     cfg.APIKey,
			Secret:     cfg.APISecret,
			Passphrase: cfg.APIPassphrase,
		},
		sigType: uint8(cfg.SignatureType),
		logger:  o.logger,
		salt:    func() int64 { return time.Now().UnixNano() % 1_000_000_000 },
	}

	address := strings.ToLower(cfg.FunderAddress)
	if cfg.PrivateKey != "" {
		s, err := auth.NewSigner(cfg.PrivateKey, cfg.ChainID)
		if err != nil {
			return nil, fmt.Errorf("create order signer: %w", err)
		}
		c.signer = s
		address = s.Address().Hex()
	}
	c.funder = cfg.FunderAddress
	if c.funder == "" && c.signer != nil {
		c.funder = c.signer.Address().Hex()
	}

	restOpts := []api.ClientOption{
		api.WithTimeout(cfg.Timeout),
		api.WithRetries(cfg.MaxRetries, time.Second),
		api.WithLogger(o.logger),
	}
	if c.creds.Validate() == nil {
		restOpts = append(restOpts, api.WithSigner(auth.NewRequestSigner(c.creds, address)))
	} else {
		o.logger.Warn("clob api credentials not configured, requests are unauthenticated")
	}
	c.rest = api.NewClient(strings.TrimRight(cfg.URL, "/"), append(restOpts, o.rest...)...)

	c.markets = market.NewRegistry(o.registry, market.FetcherFunc(c.GetMarket), o.logger)
	return c, nil
}

// Markets returns the market metadata cache backing order construction.
func (c *Client) Markets() *market.Registry {
	return c.markets
}
