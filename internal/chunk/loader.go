package chunk

import (
	"log/slog"
	"time"

	"github.com/rickgao/canvas-sync/internal/metrics"
	"github.com/rickgao/canvas-sync/internal/model"
	"github.com/rickgao/canvas-sync/internal/protocol"
)

// Sender delivers an outbound message over the current connection.
type Sender interface {
	Send(msg protocol.Message) error
}

// Config holds chunk loading settings.
type Config struct {
	Size           int           // Chunk edge length in pixels (default: 512)
	Buffer         int           // Extra chunks loaded around the viewport (default: 2)
	RequestTimeout time.Duration // Expire unanswered requests after this long (0 = never)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Size:           model.ChunkSize,
		Buffer:         2,
		RequestTimeout: 30 * time.Second,
	}
}

// Loader issues chunk requests for a viewport.
type Loader struct {
	cfg     Config
	tracker *Tracker
	sender  Sender
	metrics *metrics.Metrics
	logger  *slog.Logger

	now func() time.Time
}

// NewLoader creates a Loader that records lifecycle state in tracker.
func NewLoader(cfg Config, tracker *Tracker, sender Sender, m *metrics.Metrics, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Loader{
		cfg:     cfg,
		tracker: tracker,
		sender:  sender,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// RequiredChunks returns the chunk rectangle for v under this loader's config.
func (l *Loader) RequiredChunks(v Viewport) Range {
	return RequiredChunks(v, l.cfg.Size, l.cfg.Buffer)
}

// EnsureLoaded requests every chunk of v that is neither requested nor
// loaded. It returns how many requests were sent. The first send failure
// rolls that chunk back and ends the pass; later chunks stay unmarked.
func (l *Loader) EnsureLoaded(v Viewport) int {
	now := l.now()

	if l.cfg.RequestTimeout > 0 {
		expired := l.tracker.Expire(now.Add(-l.cfg.RequestTimeout))
		for _, id := range expired {
			l.logger.Warn("chunk request timed out", "chunk", id, "timeout", l.cfg.RequestTimeout)
		}
		l.metrics.ChunksExpired.Add(float64(len(expired)))
	}

	sent := 0
	for _, id := range l.RequiredChunks(v).Chunks() {
		if !l.tracker.TryMark(id, now) {
			continue
		}

		err := l.sender.Send(protocol.RequestChunk{
			ChunkX:    id.X,
			ChunkY:    id.Y,
			ChunkSize: l.cfg.Size,
		})
		if err != nil {
			l.tracker.Rollback(id)
			l.metrics.ChunkRollbacks.Inc()
			l.logger.Debug("chunk request not sent", "chunk", id, "error", err)
			break
		}

		sent++
		l.metrics.ChunkRequests.Inc()
		l.logger.Debug("requested chunk", "chunk", id)
	}

	return sent
}
