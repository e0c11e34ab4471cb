package api

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestSigner adds authentication to an outgoing request. body is the exact
// request body, or nil for requests without one.
type RequestSigner interface {
	Sign(req *http.Request, body []byte) error
}

// Client is a JSON REST client bound to one base URL.
type Client struct {
	baseURL    string
	headers    http.Header
	signer     RequestSigner
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		headers: make(http.Header),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the URL all request paths are appended to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithHeader sets a header sent on every request. Empty values are skipped.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		if value != "" {
			c.headers.Set(key, value)
		}
	}
}

// WithBearer sets an Authorization bearer token. Empty tokens are skipped.
func WithBearer(token string) ClientOption {
	return func(c *Client) {
		if token != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithSigner signs every request.
func WithSigner(s RequestSigner) ClientOption {
	return func(c *Client) {
		c.signer = s
	}
}
