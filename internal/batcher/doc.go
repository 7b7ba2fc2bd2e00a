// Package batcher implements the Pixel Batcher component.
//
// The Pixel Batcher:
//   - Accepts locally drawn edits without ever blocking the caller
//   - Drops the newest edit when the queue is at its cap (counted, not fatal)
//   - Flushes up to BatchSize edits as one pixel_batch every FlushInterval
//   - Pauses draining while disconnected so edits survive a reconnect
package batcher
