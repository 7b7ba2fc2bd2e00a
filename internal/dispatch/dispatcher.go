package dispatch

import (
	"log/slog"
	"sync/atomic"

	"github.com/rickgao/canvas-sync/internal/canvas"
	"github.com/rickgao/canvas-sync/internal/metrics"
	"github.com/rickgao/canvas-sync/internal/model"
	"github.com/rickgao/canvas-sync/internal/protocol"
)

// Link is the connection-side collaborator: liveness and replies.
type Link interface {
	RecordPong()
	Send(msg protocol.Message) error
}

// ChunkSink receives chunk completions. A completion carries the sink
// generation its session was opened in and is dropped if that is stale.
type ChunkSink interface {
	Generation() uint64
	MarkLoadedIn(id model.ChunkID, gen uint64) bool
}

// Stats contains runtime statistics.
type Stats struct {
	MessagesHandled int64 `json:"messages_handled"`
	PixelsApplied   int64 `json:"pixels_applied"`
	PixelsSkipped   int64 `json:"pixels_skipped"`
	Ignored         int64 `json:"ignored"`
	ChunksReceived  int64 `json:"chunks_received"`
	ChunksStale     int64 `json:"chunks_stale"`
	CanvasTotal     int64 `json:"canvas_total"`
}

// Dispatcher routes decoded messages by type.
type Dispatcher struct {
	store   canvas.Store
	chunks  ChunkSink
	link    Link
	metrics *metrics.Metrics
	logger  *slog.Logger

	handled  atomic.Int64
	applied  atomic.Int64
	skipped  atomic.Int64
	ignored  atomic.Int64
	chunkCnt atomic.Int64
	stale    atomic.Int64
	total    atomic.Int64
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(store canvas.Store, chunks ChunkSink, link Link, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}

	return &Dispatcher{
		store:   store,
		chunks:  chunks,
		link:    link,
		metrics: m,
		logger:  logger,
	}
}

// Handle applies one message against the current chunk generation.
func (d *Dispatcher) Handle(msg protocol.Message) {
	d.HandleIn(msg, d.chunks.Generation())
}

// HandleIn applies one message read from a session opened in chunk
// generation gen.
func (d *Dispatcher) HandleIn(msg protocol.Message, gen uint64) {
	d.handled.Add(1)
	d.metrics.MessagesReceived.WithLabelValues(msg.Type()).Inc()

	switch m := msg.(type) {
	case protocol.Pong:
		d.link.RecordPong()

	case protocol.Ping:
		if err := d.link.Send(protocol.Pong{}); err != nil {
			d.logger.Debug("pong reply failed", "error", err)
		}

	case protocol.ChunkData:
		n := d.applyColoured(m.Pixels)
		id := model.ChunkID{X: m.ChunkX, Y: m.ChunkY}
		if !d.chunks.MarkLoadedIn(id, gen) {
			d.stale.Add(1)
			d.logger.Debug("chunk from a reset session, not marking loaded", "chunk", id.String())
			return
		}
		d.chunkCnt.Add(1)
		d.metrics.ChunksLoaded.Inc()
		d.logger.Debug("chunk loaded", "chunk", id.String(), "pixels", n)

	case protocol.CanvasChunk:
		n := d.applyColoured(m.Pixels)
		d.logger.Info("canvas chunk received",
			"index", m.Index+1,
			"total", m.Total,
			"pixels", n,
		)

	case protocol.CanvasComplete:
		d.total.Store(int64(m.TotalPixels))
		d.logger.Info("canvas transfer complete", "total_pixels", m.TotalPixels)

	case protocol.PixelUpdate:
		d.applyAll(m.Pixels)

	default:
		d.ignored.Add(1)
		d.logger.Debug("ignoring outbound-only message", "type", msg.Type())
	}
}

// applyColoured writes entries that carry a colour. Entries without one
// are a no-op on the chunk paths.
func (d *Dispatcher) applyColoured(pixels []protocol.Pixel) int {
	n := 0
	for _, p := range pixels {
		e, ok := d.edit(p)
		if !ok || e.IsErase() {
			continue
		}
		canvas.Apply(d.store, e)
		n++
	}
	d.count(n)
	return n
}

// applyAll sets coloured entries and removes null ones.
func (d *Dispatcher) applyAll(pixels []protocol.Pixel) int {
	n := 0
	for _, p := range pixels {
		e, ok := d.edit(p)
		if !ok {
			continue
		}
		canvas.Apply(d.store, e)
		n++
	}
	d.count(n)
	return n
}

func (d *Dispatcher) edit(p protocol.Pixel) (model.Edit, bool) {
	e, ok := p.Edit()
	if !ok || !e.Coord.InBounds() {
		d.skipped.Add(1)
		return model.Edit{}, false
	}
	return e, true
}

func (d *Dispatcher) count(n int) {
	if n == 0 {
		return
	}
	d.applied.Add(int64(n))
	d.metrics.PixelsApplied.Add(float64(n))
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		MessagesHandled: d.handled.Load(),
		PixelsApplied:   d.applied.Load(),
		PixelsSkipped:   d.skipped.Load(),
		Ignored:         d.ignored.Load(),
		ChunksReceived:  d.chunkCnt.Load(),
		ChunksStale:     d.stale.Load(),
		CanvasTotal:     d.total.Load(),
	}
}
