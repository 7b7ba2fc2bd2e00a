package chunk

import (
	"math"
	"sync"
	"time"
)

// Throttle decides when a moving viewport is worth re-evaluating.
// It allows a pass when the camera moved more than a quarter chunk on either
// axis, the zoom changed by more than 10%, or Interval has elapsed.
type Throttle struct {
	chunkSize int
	interval  time.Duration

	mu     sync.Mutex
	primed bool
	last   Viewport
	lastAt time.Time
}

// NewThrottle creates a throttle for the given chunk size and idle interval.
func NewThrottle(chunkSize int, interval time.Duration) *Throttle {
	return &Throttle{chunkSize: chunkSize, interval: interval}
}

// Allow reports whether v should be evaluated at now, and records it if so.
func (t *Throttle) Allow(v Viewport, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.primed && !t.changedLocked(v) && now.Sub(t.lastAt) <= t.interval {
		return false
	}

	t.primed = true
	t.last = v
	t.lastAt = now
	return true
}

func (t *Throttle) changedLocked(v Viewport) bool {
	step := float64(t.chunkSize / 4)
	return math.Abs(v.CameraX-t.last.CameraX) > step ||
		math.Abs(v.CameraY-t.last.CameraY) > step ||
		math.Abs(v.Zoom-t.last.Zoom) > v.Zoom*0.1
}
