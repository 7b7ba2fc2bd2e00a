// Package model defines shared data types used across the canvas sync client.
//
// Conventions:
//   - Coordinates: integer pixel positions in [0, GridSize)
//   - Colors: 8-bit RGB; a nil *Color means "absent" (erased / unpainted white)
//   - Chunks: square regions of ChunkSize×ChunkSize pixels addressed by ChunkID
package model
