package model

import "fmt"

const (
	// GridSize is the width and height of the shared canvas in pixels.
	GridSize = 50000

	// ChunkSize is the default edge length of a demand-loaded chunk.
	ChunkSize = 512
)

// -----------------------------------------------------------------------------
// Pixels
// -----------------------------------------------------------------------------

// Coord identifies one pixel on the canvas.
type Coord struct {
	X int
	Y int
}

// InBounds reports whether the coordinate lies on the canvas.
func (c Coord) InBounds() bool {
	return c.X >= 0 && c.X < GridSize && c.Y >= 0 && c.Y < GridSize
}

// Chunk returns the chunk containing this coordinate for the given chunk size.
func (c Coord) Chunk(size int) ChunkID {
	return ChunkID{X: floorDiv(c.X, size), Y: floorDiv(c.Y, size)}
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Color is an RGB pixel color.
type Color struct {
	R uint8
	G uint8
	B uint8
}

// White is the canvas background. Painting white is an erase.
var White = Color{R: 255, G: 255, B: 255}

// RGB returns a pointer to a new Color, for building edits inline.
func RGB(r, g, b uint8) *Color {
	return &Color{R: r, G: g, B: b}
}

// Edit is a single pixel change. A nil Color erases the pixel.
type Edit struct {
	Coord Coord
	Color *Color
}

// IsErase reports whether the edit removes the pixel.
func (e Edit) IsErase() bool {
	return e.Color == nil
}

// -----------------------------------------------------------------------------
// Chunks
// -----------------------------------------------------------------------------

// ChunkID addresses the region [X*S, (X+1)*S) × [Y*S, (Y+1)*S).
type ChunkID struct {
	X int
	Y int
}

// Origin returns the top-left pixel of the chunk for the given chunk size.
func (id ChunkID) Origin(size int) Coord {
	return Coord{X: id.X * size, Y: id.Y * size}
}

func (id ChunkID) String() string {
	return fmt.Sprintf("chunk(%d,%d)", id.X, id.Y)
}

// ChunksPerSide returns how many chunks span one side of the grid,
// counting a trailing partial chunk.
func ChunksPerSide(size int) int {
	return (GridSize + size - 1) / size
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
