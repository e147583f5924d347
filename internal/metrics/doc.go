// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Session connection state, connect/reconnect counts
//   - Message rates in both directions
//   - Frame decode failures and pending-queue evictions
//   - Heartbeat round-trip latency
package metrics
