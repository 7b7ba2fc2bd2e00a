// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection state, connect attempts and keepalive timeouts
//   - Inbound messages by type and malformed lines
//   - Chunk requests, loads, rollbacks and expiries
//   - Pixel queue depth, drops and batch sizes
package metrics
