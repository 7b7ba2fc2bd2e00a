package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/canvas-sync/internal/client"
	"github.com/rickgao/canvas-sync/internal/connection"
	"github.com/rickgao/canvas-sync/internal/model"
)

// Source is what the status server reports on. *client.Client implements it.
type Source interface {
	Status() client.Status
	Loaded() []model.ChunkID
}

// Config configures the status server.
type Config struct {
	Addr         string
	PushInterval time.Duration // websocket snapshot period
	Version      string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		PushInterval: time.Second,
	}
}

// Server is the status HTTP server.
type Server struct {
	cfg      Config
	src      Source
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	engine   *gin.Engine
	upgrader websocket.Upgrader
}

// New creates the server. A nil gatherer uses the default registry.
func New(cfg Config, src Source, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = time.Second
	}

	s := &Server{
		cfg:      cfg,
		src:      src,
		gatherer: gatherer,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/debug/status", s.handleStatus)
	r.GET("/debug/chunks", s.handleChunks)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	r.GET("/ws/status", s.handleStream)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting status server", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("status server shutdown", "error", err)
	}
	return nil
}

type healthResponse struct {
	Status     string            `json:"status"`
	Line       string            `json:"line"`
	Version    string            `json:"version,omitempty"`
	Connection connection.Status `json:"connection"`
}

func (s *Server) handleHealth(c *gin.Context) {
	st := s.src.Status()

	resp := healthResponse{
		Status:     "healthy",
		Line:       st.Line,
		Version:    s.cfg.Version,
		Connection: st.Connection,
	}
	code := http.StatusOK

	switch {
	case st.Connection.State != connection.StateConnected:
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	case st.Queue.TotalDropped > 0:
		resp.Status = "degraded"
	}

	c.JSON(code, resp)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.src.Status())
}

func (s *Server) handleChunks(c *gin.Context) {
	st := s.src.Status()
	loaded := s.src.Loaded()

	ids := make([]string, len(loaded))
	for i, id := range loaded {
		ids[i] = id.String()
	}
	slices.Sort(ids)

	c.JSON(http.StatusOK, gin.H{
		"requested": st.Chunks.Requested,
		"loading":   st.Chunks.Loading,
		"loaded":    st.Chunks.Loaded,
		"chunks":    ids,
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
