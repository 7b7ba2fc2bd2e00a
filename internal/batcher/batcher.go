package batcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/canvas-sync/internal/metrics"
	"github.com/rickgao/canvas-sync/internal/model"
	"github.com/rickgao/canvas-sync/internal/protocol"
)

// ErrQueueOverflow is returned by Enqueue when the edit was dropped.
var ErrQueueOverflow = errors.New("pixel queue full")

// Conn is the part of the connection the batcher needs.
type Conn interface {
	Send(msg protocol.Message) error
	IsConnected() bool
}

// Config holds batcher settings.
type Config struct {
	FlushInterval   time.Duration // Time between flushes (default: 150ms)
	BatchSize       int           // Max edits per pixel_batch (default: 1000)
	QueueCapacity   int           // Max queued edits before dropping (default: 1,000,000)
	InitialCapacity int           // Initial ring size (default: 4096)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FlushInterval:   150 * time.Millisecond,
		BatchSize:       1000,
		QueueCapacity:   1_000_000,
		InitialCapacity: 4096,
	}
}

// Batcher buffers local edits and sends them in bounded batches.
type Batcher struct {
	cfg     Config
	conn    Conn
	queue   *Queue[model.Edit]
	metrics *metrics.Metrics
	logger  *slog.Logger

	// flushMu serializes drain, send and requeue so batches leave in FIFO order.
	flushMu sync.Mutex
}

// New creates a Batcher that sends through conn.
func New(cfg Config, conn Conn, m *metrics.Metrics, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Batcher{
		cfg:     cfg,
		conn:    conn,
		queue:   NewQueue[model.Edit](cfg.InitialCapacity, cfg.QueueCapacity),
		metrics: m,
		logger:  logger,
	}
}

// Enqueue queues an edit for the next flush. It never blocks; when the queue
// is full the edit is dropped and ErrQueueOverflow is returned.
func (b *Batcher) Enqueue(e model.Edit) error {
	if !b.queue.TrySend(e) {
		b.metrics.PixelsDropped.Inc()
		b.logger.Debug("pixel queue full, dropping edit", "coord", e.Coord)
		return ErrQueueOverflow
	}
	b.metrics.PixelsEnqueued.Inc()
	b.metrics.QueueDepth.Inc()
	return nil
}

// Pending returns the number of queued edits.
func (b *Batcher) Pending() int {
	return b.queue.Len()
}

// Stats returns queue statistics.
func (b *Batcher) Stats() QueueStats {
	return b.queue.Stats()
}

// Run flushes on every tick until ctx is cancelled.
func (b *Batcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	b.logger.Info("pixel batcher started",
		"flush_interval", b.cfg.FlushInterval,
		"batch_size", b.cfg.BatchSize,
		"queue_capacity", b.cfg.QueueCapacity,
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := b.Flush(); err != nil {
				b.logger.Debug("pixel batch not sent", "error", err)
			}
		}
	}
}

// Flush sends one batch of at most BatchSize edits. While disconnected it
// does nothing. If the send fails the edits go back to the head of the queue.
// Concurrent calls take turns.
func (b *Batcher) Flush() (int, error) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	if !b.conn.IsConnected() {
		return 0, nil
	}

	edits := b.queue.DrainTo(b.cfg.BatchSize)
	if len(edits) == 0 {
		return 0, nil
	}

	if err := b.conn.Send(protocol.PixelBatch{Pixels: protocol.PixelsFromEdits(edits)}); err != nil {
		b.queue.PushFront(edits)
		return 0, err
	}

	b.metrics.QueueDepth.Sub(float64(len(edits)))
	b.metrics.BatchSize.Observe(float64(len(edits)))
	b.logger.Debug("sent pixel batch", "pixels", len(edits), "pending", b.queue.Len())

	return len(edits), nil
}
