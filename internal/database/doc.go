// Package database opens the durable store shared by the watchlist and ledger.
//
// Two drivers are supported:
//   - sqlite (default): a single file, pure-Go driver, one writer connection
//   - postgres: a pgx connection pool for shared or hosted deployments
//
// Both drivers carry the same three tables: watchlist, ledger and meta.
package database
