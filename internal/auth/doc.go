// Package auth provides Polymarket CLOB authentication.
//
// Two levels are used:
//   - L2: HMAC-SHA256 request headers derived from API key credentials
//   - Order signing: EIP-712 signatures over CTF Exchange orders with a
//     secp256k1 key
package auth
