// Package status serves the client's health, debug and metrics endpoints.
//
// Routes:
//
//	GET /health        connection health, 503 unless connected
//	GET /debug/status  full status snapshot
//	GET /debug/chunks  chunk set sizes and the loaded chunk list
//	GET /metrics       Prometheus exposition
//	GET /ws/status     websocket stream of status snapshots
package status
