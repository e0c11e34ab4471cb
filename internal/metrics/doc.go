// Package metrics provides in-process counters for monitoring the engine.
//
// Key metrics:
//   - Cycle counts and cycle errors
//   - Addresses polled, fetch errors and trades fetched
//   - Decisions approved, and rejected per reason
//   - Simulated, executed and failed executions
//   - Cursor rejections
package metrics
