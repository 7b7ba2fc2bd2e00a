// Package protocol implements the wire codec for the canvas server.
//
// Framing is one compact JSON object per line, terminated by '\n'. Every
// object carries a "type" tag that selects one of a closed set of message
// variants:
//   - ping / pong: keepalive and handshake
//   - request_chunk: client asks for one chunk of the canvas
//   - chunk_data: server answers a chunk request
//   - canvas_chunk / canvas_complete: legacy whole-canvas transfer
//   - pixel_batch: client-originated edits (outbound only)
//   - pixel_update: edits broadcast by the server
//
// Lines are decoded once at the boundary; the rest of the client only sees
// the typed variants.
package protocol
