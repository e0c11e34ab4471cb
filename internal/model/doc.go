// Package model defines shared data types used across the mirroring engine.
//
// Conventions:
//   - Addresses: lowercase 0x-prefixed hex (see NormalizeAddress)
//   - Money, prices and sizes: shopspring decimal.Decimal, USD for amounts
//   - Timestamps: time.Time in UTC
//   - IDs: provider-assigned strings for trades, exchange strings for orders
package model
