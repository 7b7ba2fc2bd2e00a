package chunk

import (
	"sync"
	"time"

	"github.com/rickgao/canvas-sync/internal/model"
)

// Phase is where a chunk sits in its lifecycle.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseRequested
	PhaseLoading
	PhaseLoaded
)

func (p Phase) String() string {
	switch p {
	case PhaseRequested:
		return "requested"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	default:
		return "none"
	}
}

// Counts is a snapshot of the lifecycle set sizes.
type Counts struct {
	Requested int `json:"requested"`
	Loading   int `json:"loading"`
	Loaded    int `json:"loaded"`
}

// Tracker holds the requested/loading/loaded sets.
//
// A chunk is never in both loading and loaded. requested is the superset of
// everything asked for since the last Reset. Every Reset starts a new
// generation; completions tagged with an older one are dropped.
type Tracker struct {
	mu        sync.Mutex
	gen       uint64
	requested map[model.ChunkID]struct{}
	loading   map[model.ChunkID]time.Time // value: when the request was marked
	loaded    map[model.ChunkID]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.resetLocked()
	return t
}

// TryMark marks id requested and loading unless it is already requested or
// loaded. It returns true when the caller now owns the outstanding request.
func (t *Tracker) TryMark(id model.ChunkID, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.requested[id]; ok {
		return false
	}
	if _, ok := t.loaded[id]; ok {
		return false
	}
	t.requested[id] = struct{}{}
	t.loading[id] = now
	return true
}

// Rollback undoes TryMark after a request could not be sent.
// It leaves a chunk that was loaded in the meantime alone.
func (t *Tracker) Rollback(id model.ChunkID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.loaded[id]; ok {
		return
	}
	delete(t.requested, id)
	delete(t.loading, id)
}

// MarkLoaded moves id to loaded. Unsolicited chunks are accepted too.
func (t *Tracker) MarkLoaded(id model.ChunkID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markLoadedLocked(id)
}

// MarkLoadedIn is MarkLoaded for a chunk received in generation gen.
// It reports false and changes nothing if a Reset happened since.
func (t *Tracker) MarkLoadedIn(id model.ChunkID, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		return false
	}
	t.markLoadedLocked(id)
	return true
}

// Generation returns the number of Resets so far.
func (t *Tracker) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

func (t *Tracker) markLoadedLocked(id model.ChunkID) {
	delete(t.loading, id)
	t.loaded[id] = struct{}{}
	t.requested[id] = struct{}{}
}

// Expire drops every loading chunk marked before cutoff from both loading
// and requested, so the next pass re-requests it. It returns the expired ids.
func (t *Tracker) Expire(cutoff time.Time) []model.ChunkID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []model.ChunkID
	for id, at := range t.loading {
		if at.Before(cutoff) {
			delete(t.loading, id)
			delete(t.requested, id)
			expired = append(expired, id)
		}
	}
	return expired
}

// Reset clears all three sets and starts a new generation.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.resetLocked()
}

// Phase returns the furthest lifecycle phase of id.
func (t *Tracker) Phase(id model.ChunkID) Phase {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.loaded[id]; ok {
		return PhaseLoaded
	}
	if _, ok := t.loading[id]; ok {
		return PhaseLoading
	}
	if _, ok := t.requested[id]; ok {
		return PhaseRequested
	}
	return PhaseNone
}

// Counts returns the current set sizes.
func (t *Tracker) Counts() Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Counts{
		Requested: len(t.requested),
		Loading:   len(t.loading),
		Loaded:    len(t.loaded),
	}
}

// Loaded returns a copy of the loaded set.
func (t *Tracker) Loaded() []model.ChunkID {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]model.ChunkID, 0, len(t.loaded))
	for id := range t.loaded {
		ids = append(ids, id)
	}
	return ids
}

// resetLocked allocates fresh sets. Must be called with lock held.
func (t *Tracker) resetLocked() {
	t.requested = make(map[model.ChunkID]struct{})
	t.loading = make(map[model.ChunkID]time.Time)
	t.loaded = make(map[model.ChunkID]struct{})
}
