package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/canvas-sync/internal/batcher"
	"github.com/rickgao/canvas-sync/internal/canvas"
	"github.com/rickgao/canvas-sync/internal/chunk"
	"github.com/rickgao/canvas-sync/internal/connection"
	"github.com/rickgao/canvas-sync/internal/dispatch"
	"github.com/rickgao/canvas-sync/internal/metrics"
	"github.com/rickgao/canvas-sync/internal/model"
)

// MinDrawZoom is the smallest zoom at which screen positions may be painted.
const MinDrawZoom = 4.64

// Errors
var (
	ErrOutOfBounds    = errors.New("coordinate outside canvas")
	ErrZoomTooLow     = fmt.Errorf("zoom in to draw (min %.2fx)", MinDrawZoom)
	ErrAlreadyRunning = errors.New("client already running")
)

// Config bundles the per-component configs.
type Config struct {
	Connection       connection.Config
	Chunks           chunk.Config
	Batcher          batcher.Config
	ThrottleInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Connection:       connection.DefaultConfig(),
		Chunks:           chunk.DefaultConfig(),
		Batcher:          batcher.DefaultConfig(),
		ThrottleInterval: time.Second,
	}
}

// Client is the explicit connection context shared by all tasks.
type Client struct {
	id      uuid.UUID
	cfg     Config
	store   canvas.Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	mgr       *connection.Manager
	tracker   *chunk.Tracker
	loader    *chunk.Loader
	throttle  *chunk.Throttle
	batcher   *batcher.Batcher
	disp      *dispatch.Dispatcher
	listener  *dispatch.Listener
	heartbeat *connection.Heartbeat

	running chan struct{}
}

// New builds a Client. store receives every inbound and local edit.
func New(cfg Config, store canvas.Store, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if store == nil {
		store = canvas.NewMemory()
	}

	id := uuid.New()
	logger = logger.With("client", id.String()[:8])

	c := &Client{
		id:      id,
		cfg:     cfg,
		store:   store,
		metrics: m,
		logger:  logger,
		tracker: chunk.NewTracker(),
		running: make(chan struct{}, 1),
	}

	c.mgr = connection.NewManager(cfg.Connection, c.tracker, m, logger.With("component", "connection"))
	c.loader = chunk.NewLoader(cfg.Chunks, c.tracker, c.mgr, m, logger.With("component", "chunks"))
	c.throttle = chunk.NewThrottle(cfg.Chunks.Size, cfg.ThrottleInterval)
	c.batcher = batcher.New(cfg.Batcher, c.mgr, m, logger.With("component", "batcher"))
	c.disp = dispatch.NewDispatcher(store, c.tracker, c.mgr, m, logger.With("component", "dispatch"))
	c.listener = dispatch.NewListener(c.mgr, c.disp, m, logger.With("component", "listener"))
	c.heartbeat = connection.NewHeartbeat(c.mgr, cfg.Connection.PingInterval, logger.With("component", "heartbeat"))

	return c
}

// ID identifies this client instance.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// Run starts the reconnect loop, pixel sender, network listener and
// heartbeat, and blocks until ctx is cancelled or one of them fails.
func (c *Client) Run(ctx context.Context) error {
	select {
	case c.running <- struct{}{}:
		defer func() { <-c.running }()
	default:
		return ErrAlreadyRunning
	}

	c.logger.Info("client starting", "addr", c.cfg.Connection.Addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.mgr.Run(ctx) })
	g.Go(func() error { return c.batcher.Run(ctx) })
	g.Go(func() error { return c.listener.Run(ctx) })
	g.Go(func() error { return c.heartbeat.Run(ctx) })

	err := g.Wait()
	c.logger.Info("client stopped", "pending", c.batcher.Pending())
	return err
}

// UpdateViewport re-evaluates chunk needs when the throttle allows it.
// It returns the number of chunk requests sent.
func (c *Client) UpdateViewport(v chunk.Viewport) int {
	if !c.throttle.Allow(v, time.Now()) {
		return 0
	}
	return c.EnsureLoaded(v)
}

// EnsureLoaded requests every missing chunk for v, bypassing the throttle.
func (c *Client) EnsureLoaded(v chunk.Viewport) int {
	return c.loader.EnsureLoaded(v)
}

// Paint sets a pixel locally and queues it for the server. Painting white
// is an erase.
func (c *Client) Paint(at model.Coord, color model.Color) error {
	if color == model.White {
		return c.Erase(at)
	}
	return c.apply(model.Edit{Coord: at, Color: &color})
}

// Erase removes a pixel locally and queues the removal.
func (c *Client) Erase(at model.Coord) error {
	return c.apply(model.Edit{Coord: at})
}

// PaintAt paints the pixel under a window position. Drawing is refused
// while zoomed out past MinDrawZoom.
func (c *Client) PaintAt(v chunk.Viewport, sx, sy float64, color model.Color) error {
	if v.Zoom < MinDrawZoom {
		return ErrZoomTooLow
	}
	return c.Paint(v.ScreenToGrid(sx, sy), color)
}

func (c *Client) apply(e model.Edit) error {
	if !e.Coord.InBounds() {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, e.Coord)
	}
	canvas.Apply(c.store, e)
	return c.batcher.Enqueue(e)
}

// Flush sends one batch now instead of waiting for the next tick.
func (c *Client) Flush() (int, error) {
	return c.batcher.Flush()
}

// State returns the connection state.
func (c *Client) State() connection.State {
	return c.mgr.State()
}

// IsConnected reports whether the link is up.
func (c *Client) IsConnected() bool {
	return c.mgr.IsConnected()
}

// Loaded returns the chunks currently loaded.
func (c *Client) Loaded() []model.ChunkID {
	return c.tracker.Loaded()
}
