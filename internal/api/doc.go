// Package api provides the JSON-over-HTTP client shared by the analytics
// providers and the Polymarket CLOB client.
//
// GET requests are retried with jittered exponential backoff on 5xx and 429.
// POST requests are sent once; order submission must never be duplicated.
package api
