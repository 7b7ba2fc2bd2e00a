package connection

import (
	"context"
	"log/slog"
	"time"

	"github.com/rickgao/canvas-sync/internal/protocol"
)

// Link is the part of the Manager the heartbeat needs.
type Link interface {
	Send(msg protocol.Message) error
	IsConnected() bool
}

// Heartbeat sends a ping every interval while the link is connected.
// Pong liveness is tracked by the Manager's keepalive check.
type Heartbeat struct {
	link     Link
	interval time.Duration
	logger   *slog.Logger
}

// NewHeartbeat creates a heartbeat task.
func NewHeartbeat(link Link, interval time.Duration, logger *slog.Logger) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{link: link, interval: interval, logger: logger}
}

// Run pings until ctx is cancelled.
func (h *Heartbeat) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !h.link.IsConnected() {
				continue
			}
			if err := h.link.Send(protocol.Ping{}); err != nil {
				h.logger.Debug("heartbeat ping failed", "error", err)
			}
		}
	}
}
