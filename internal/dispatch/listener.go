package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rickgao/canvas-sync/internal/connection"
	"github.com/rickgao/canvas-sync/internal/metrics"
	"github.com/rickgao/canvas-sync/internal/protocol"
)

// Source hands out connected sessions and takes back failures.
type Source interface {
	Await(ctx context.Context) (*connection.Session, error)
	Current() *connection.Session
	Fail(sess *connection.Session, err error)
}

// Listener reads from the current session and feeds the Dispatcher.
type Listener struct {
	src     Source
	disp    *Dispatcher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewListener creates a Listener.
func NewListener(src Source, disp *Dispatcher, m *metrics.Metrics, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Listener{src: src, disp: disp, metrics: m, logger: logger}
}

// Run reads until ctx is cancelled. Cancellation takes effect once the
// connection manager closes the socket, which unblocks the pending read.
func (l *Listener) Run(ctx context.Context) error {
	for {
		sess, err := l.src.Await(ctx)
		if err != nil {
			return nil
		}
		// The source resets the chunk sink and retires a session in one
		// step, so a session that is still current was opened in gen.
		gen := l.disp.chunks.Generation()
		if l.src.Current() != sess {
			continue
		}
		l.serve(ctx, sess, gen)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// serve reads one session to failure.
func (l *Listener) serve(ctx context.Context, sess *connection.Session, gen uint64) {
	for {
		msg, err := sess.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, protocol.ErrMalformedMessage) {
				l.metrics.MalformedMessages.Inc()
			}
			l.src.Fail(sess, err)
			return
		}
		l.disp.HandleIn(msg, gen)
	}
}
