// Package connection implements the Connection Manager and Keepalive Monitor.
//
// The Connection Manager:
//   - Owns the single TCP connection to the canvas server
//   - Handshakes with ping/pong before declaring the link connected
//   - Reconnects with exponential backoff (1s, ×1.5, capped at 10s)
//   - Drops the link when no pong has arrived within the keepalive timeout
//   - Clears chunk lifecycle state whenever the link is lost
//
// Each successful connect produces a new Session. Tasks report failures
// against the Session they used, so a late error from an old socket never
// tears down its replacement.
package connection
