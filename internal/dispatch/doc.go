// Package dispatch reads inbound messages and applies them.
//
// The Listener is the only task that blocks indefinitely: it waits for a
// connected session, reads lines until the stream fails, and reports the
// failure back to the connection manager. Every decoded message goes to the
// Dispatcher, which is the only writer into the canvas store and the only
// place chunks become loaded.
//
// Routing:
//
//	pong             record liveness
//	chunk_data       apply coloured entries, mark the chunk loaded
//	canvas_chunk     apply coloured entries, log progress
//	canvas_complete  log the total pixel count
//	pixel_update     set, or remove when colour is null
//	ping             answer with pong
//
// Outbound-only tags (pixel_batch, request_chunk) are counted and ignored.
package dispatch
