// Package sources implements the analytics providers that rank Polymarket
// traders:
//   - polymarketanalytics: REST, X-API-KEY header
//   - polymarketwhales: REST, bearer token
//   - subgraph: The Graph GraphQL endpoint, no auth
//
// Every provider decodes its own wire shape into aggregator payloads and
// normalizes them. CachedSource wraps any provider with an expiring cache.
package sources
