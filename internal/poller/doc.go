// Package poller implements the Trade Poller component.
//
// The Trade Poller:
//   - Fetches trades newer than each watched address's cursor
//   - Runs per-address fetches on a bounded pool
//   - Advances each cursor once, right after that address's fetch succeeds
//   - Skips failing addresses without failing the batch
package poller
