package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// L2 header names.
const (
	HeaderAddress    = "POLY_ADDRESS"
	HeaderAPIKey     = "POLY_API_KEY"
	HeaderPassphrase = "POLY_PASSPHRASE"
	HeaderTimestamp  = "POLY_TIMESTAMP"
	HeaderSignature  = "POLY_SIGNATURE"
)

// Credentials holds the CLOB API key triple.
type Credentials struct {
	APIKey     string
	Secret     string // URL-safe base64
	Passphrase string
}

// Validate reports missing fields.
func (c Credentials) Validate() error {
	if c.APIKey == "" || c.Secret == "" || c.Passphrase == "" {
		return errors.New("api key, secret and passphrase are required")
	}
	return nil
}

// L2Headers generates authentication headers for a CLOB request.
// Message format: unix_seconds + method + path + body
func (c Credentials) L2Headers(address, method, path string, body []byte, ts time.Time) (map[string]string, error) {
	timestamp := strconv.FormatInt(ts.Unix(), 10)

	signature, err := HMACSignature(c.Secret, timestamp+method+path+string(body))
	if err != nil {
		return nil, err
	}

	return map[string]string{
		HeaderAddress:    address,
		HeaderAPIKey:     c.APIKey,
		HeaderPassphrase: c.Passphrase,
		HeaderTimestamp:  timestamp,
		HeaderSignature:  signature,
	}, nil
}

// HMACSignature signs message with a base64 secret and returns URL-safe base64.
func HMACSignature(secret, message string) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(h.Sum(nil)), nil
}

func decodeSecret(secret string) ([]byte, error) {
	if key, err := base64.URLEncoding.DecodeString(secret); err == nil {
		return key, nil
	}
	return base64.StdEncoding.DecodeString(secret)
}

// RequestSigner adds L2 headers to outgoing requests.
type RequestSigner struct {
	creds   Credentials
	address string
	now     func() time.Time
}

// NewRequestSigner creates a signer for the given account address.
func NewRequestSigner(creds Credentials, address string) *RequestSigner {
	return &RequestSigner{creds: creds, address: address, now: time.Now}
}

// Sign sets the L2 headers on req.
func (s *RequestSigner) Sign(req *http.Request, body []byte) error {
	headers, err := s.creds.L2Headers(s.address, req.Method, req.URL.Path, body, s.now())
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return nil
}
