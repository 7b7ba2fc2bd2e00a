package chunk

import (
	"math"

	"github.com/rickgao/canvas-sync/internal/model"
)

// Viewport is what the renderer sees: the camera center in world pixels,
// the zoom factor (screen pixels per world pixel) and the window extents.
type Viewport struct {
	CameraX float64
	CameraY float64
	Zoom    float64
	Width   float64
	Height  float64
}

// Valid reports whether the viewport can be mapped to chunks.
func (v Viewport) Valid() bool {
	return v.Zoom > 0 && v.Width >= 0 && v.Height >= 0 &&
		finite(v.CameraX) && finite(v.CameraY) && finite(v.Zoom) &&
		finite(v.Width) && finite(v.Height)
}

// ScreenToGrid maps a window position to the grid coordinate under it.
func (v Viewport) ScreenToGrid(sx, sy float64) model.Coord {
	wx := (sx-math.Floor(v.Width/2))/v.Zoom + v.CameraX
	wy := (sy-math.Floor(v.Height/2))/v.Zoom + v.CameraY
	return model.Coord{X: int(math.Floor(wx)), Y: int(math.Floor(wy))}
}

// Range is an inclusive rectangle of chunk indices. It is empty when
// MaxX < MinX or MaxY < MinY.
type Range struct {
	MinX, MinY int
	MaxX, MaxY int
}

// Empty reports whether the range holds no chunks.
func (r Range) Empty() bool {
	return r.MaxX < r.MinX || r.MaxY < r.MinY
}

// Len returns the number of chunks in the range.
func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// Contains reports whether id lies in the range.
func (r Range) Contains(id model.ChunkID) bool {
	return id.X >= r.MinX && id.X <= r.MaxX && id.Y >= r.MinY && id.Y <= r.MaxY
}

// Chunks lists the range row by row.
func (r Range) Chunks() []model.ChunkID {
	if r.Empty() {
		return nil
	}
	ids := make([]model.ChunkID, 0, r.Len())
	for y := r.MinY; y <= r.MaxY; y++ {
		for x := r.MinX; x <= r.MaxX; x++ {
			ids = append(ids, model.ChunkID{X: x, Y: y})
		}
	}
	return ids
}

// RequiredChunks returns the chunks covering the visible area of v grown by
// buffer chunks on every side, clamped to the grid. A viewport entirely off
// the grid yields an empty range.
//
//	half = extent / (2*zoom) + buffer*size
//	min  = floor((camera - half) / size)
//	max  = floor((camera + half) / size)
func RequiredChunks(v Viewport, size, buffer int) Range {
	if !v.Valid() || size <= 0 {
		return Range{MinX: 0, MinY: 0, MaxX: -1, MaxY: -1}
	}

	s := float64(size)
	margin := float64(buffer) * s
	halfW := v.Width/(2*v.Zoom) + margin
	halfH := v.Height/(2*v.Zoom) + margin
	last := model.ChunksPerSide(size) - 1

	return Range{
		MinX: max(0, int(math.Floor((v.CameraX-halfW)/s))),
		MinY: max(0, int(math.Floor((v.CameraY-halfH)/s))),
		MaxX: min(last, int(math.Floor((v.CameraX+halfW)/s))),
		MaxY: min(last, int(math.Floor((v.CameraY+halfH)/s))),
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
