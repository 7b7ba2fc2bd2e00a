// Package chunk implements demand-driven chunk loading.
//
// The Chunk Loader:
//   - Maps a viewport to the rectangle of chunks it needs (plus a buffer margin)
//   - Tracks each chunk through requested → loading → loaded
//   - Sends at most one outstanding request per chunk
//   - Rolls markers back when a request cannot be sent
//   - Expires requests that were never answered
//   - Throttles evaluation while the camera pans continuously
package chunk
