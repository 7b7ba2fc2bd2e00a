package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/canvas-sync/internal/metrics"
	"github.com/rickgao/canvas-sync/internal/protocol"
)

// Resetter is cleared every time the link is lost. The chunk tracker
// implements it. Reset runs under the manager lock, in the same step that
// retires the session, so it must not call back into the Manager.
type Resetter interface {
	Reset()
}

// DialFunc opens the raw connection.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Manager owns the connection state machine. The reconnect loop (Run) is
// the only writer of Connecting and Connected; any task may move the state
// out of Connected by reporting a failure.
type Manager struct {
	cfg      Config
	resetter Resetter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	dial     DialFunc
	now      func() time.Time

	mu          sync.Mutex
	state       State
	session     *Session
	ready       chan struct{} // closed while a session is connected
	connectedAt time.Time
	lastErr     error
	backoff     *Backoff

	lastPong   atomic.Int64 // unix nanos
	attempts   atomic.Int64
	reconnects atomic.Int64
}

// NewManager creates a Connection Manager. resetter may be nil.
func NewManager(cfg Config, resetter Resetter, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}

	return &Manager{
		cfg:      cfg,
		resetter: resetter,
		metrics:  m,
		logger:   logger,
		dial:     dialer.DialContext,
		now:      time.Now,
		state:    StateDisconnected,
		ready:    make(chan struct{}),
		backoff:  NewBackoff(cfg.ReconnectBaseWait, cfg.ReconnectMaxWait, cfg.ReconnectMultiplier),
	}
}

// SetDialer replaces the dial function. Must be called before Run.
func (m *Manager) SetDialer(dial DialFunc) {
	m.dial = dial
}

// Run drives the reconnect loop until ctx is cancelled. On return the
// current session is closed and the state is Disconnected.
func (m *Manager) Run(ctx context.Context) error {
	defer m.shutdown()

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	m.logger.Info("connection manager started", "addr", m.cfg.Addr)

	for {
		m.checkKeepalive()

		if !m.IsConnected() {
			if err := m.connect(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				delay := m.nextDelay()
				m.logger.Warn("connect failed, retrying",
					"addr", m.cfg.Addr,
					"error", err,
					"retry_in", delay,
				)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
				continue
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Manager) nextDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backoff.Next()
}

// connect performs one connect attempt: dial, handshake, publish.
func (m *Manager) connect(ctx context.Context) error {
	m.mu.Lock()
	prev := m.session
	m.session = nil
	m.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	m.setState(StateConnecting, nil)
	n := m.attempts.Add(1)

	dialCtx := ctx
	if m.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, m.cfg.ConnectTimeout)
		defer cancel()
	}

	conn, err := m.dial(dialCtx, "tcp", m.cfg.Addr)
	if err != nil {
		err = fmt.Errorf("%w: dial %s: %w", ErrConnectFailure, m.cfg.Addr, err)
		m.connectFailed(err)
		return err
	}

	sess := newSession(conn, m.cfg.WriteTimeout, m.logger)
	if err := sess.handshake(m.cfg.ConnectTimeout); err != nil {
		sess.Close()
		err = fmt.Errorf("%w: %w", ErrConnectFailure, err)
		m.connectFailed(err)
		return err
	}

	now := m.now()
	m.lastPong.Store(now.UnixNano())

	m.mu.Lock()
	m.session = sess
	m.state = StateConnected
	m.connectedAt = now
	m.lastErr = nil
	m.backoff.Reset()
	close(m.ready)
	m.mu.Unlock()

	if n > 1 {
		m.reconnects.Add(1)
	}
	m.metrics.ConnectAttempts.WithLabelValues("ok").Inc()
	m.metrics.ConnectionState.Set(float64(StateConnected))
	m.logger.Info("connected", "addr", m.cfg.Addr, "session", sess.ID.String(), "attempt", n)
	return nil
}

func (m *Manager) connectFailed(err error) {
	m.metrics.ConnectAttempts.WithLabelValues("failed").Inc()
	m.setState(StateFailed, err)
}

// setState moves to a non-connected state. Chunk state is cleared on
// every such transition.
func (m *Manager) setState(s State, cause error) {
	m.mu.Lock()
	m.setStateLocked(s, cause)
	m.mu.Unlock()

	m.metrics.ConnectionState.Set(float64(s))
}

func (m *Manager) setStateLocked(s State, cause error) {
	if m.state == StateConnected && s != StateConnected {
		m.ready = make(chan struct{})
	}
	m.state = s
	if cause != nil {
		m.lastErr = cause
	}
	if s != StateConnecting && m.resetter != nil {
		m.resetter.Reset()
	}
}

// checkKeepalive drops the link when no pong has arrived in time.
func (m *Manager) checkKeepalive() {
	if m.cfg.KeepaliveTimeout <= 0 {
		return
	}

	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	last := time.Unix(0, m.lastPong.Load())
	silent := m.now().Sub(last)
	if silent <= m.cfg.KeepaliveTimeout {
		m.mu.Unlock()
		return
	}
	sess := m.session
	m.session = nil
	m.setStateLocked(StateKeepaliveTimeout, ErrKeepaliveTimeout)
	m.mu.Unlock()

	m.logger.Warn("keepalive timeout, dropping connection", "silent_for", silent.Round(time.Millisecond))
	if sess != nil {
		sess.Close()
	}
	m.metrics.KeepaliveTimeouts.Inc()
	m.metrics.Disconnects.WithLabelValues("keepalive_timeout").Inc()
	m.metrics.ConnectionState.Set(float64(StateKeepaliveTimeout))
}

// Fail reports that sess is unusable. Failures for any session other than
// the current one are ignored.
func (m *Manager) Fail(sess *Session, err error) {
	if sess == nil {
		return
	}

	m.mu.Lock()
	if m.session != sess {
		m.mu.Unlock()
		return
	}
	m.session = nil
	m.setStateLocked(StateDisconnected, err)
	m.mu.Unlock()

	reason := "io_error"
	if errors.Is(err, ErrStreamClosed) {
		reason = "stream_closed"
	} else if errors.Is(err, protocol.ErrMalformedMessage) {
		reason = "malformed"
	}
	m.logger.Warn("connection lost", "reason", reason, "error", err)

	sess.Close()
	m.metrics.Disconnects.WithLabelValues(reason).Inc()
	m.metrics.ConnectionState.Set(float64(StateDisconnected))
}

// Send writes msg on the current session. A write error fails the session.
func (m *Manager) Send(msg protocol.Message) error {
	sess := m.Current()
	if sess == nil {
		return ErrNotConnected
	}
	if err := sess.Send(msg); err != nil {
		m.Fail(sess, err)
		return err
	}
	m.metrics.MessagesSent.WithLabelValues(msg.Type()).Inc()
	return nil
}

// Current returns the connected session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected {
		return nil
	}
	return m.session
}

// Await blocks until a session is connected or ctx is done.
func (m *Manager) Await(ctx context.Context) (*Session, error) {
	for {
		m.mu.Lock()
		if m.state == StateConnected && m.session != nil {
			s := m.session
			m.mu.Unlock()
			return s, nil
		}
		ready := m.ready
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ready:
		}
	}
}

// RecordPong marks the link as alive. It never changes the state.
func (m *Manager) RecordPong() {
	m.lastPong.Store(m.now().UnixNano())
}

// IsConnected reports whether the state is Connected.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns a snapshot for display.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		State:      m.state,
		StateName:  m.state.String(),
		Label:      m.state.Label(),
		Addr:       m.cfg.Addr,
		RetryDelay: m.backoff.Current().String(),
		Attempts:   m.attempts.Load(),
		Reconnects: m.reconnects.Load(),
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	if m.state == StateConnected && m.session != nil {
		st.SessionID = m.session.ID.String()
		st.ConnectedAt = m.connectedAt
		st.LastPongAt = time.Unix(0, m.lastPong.Load())
	}
	return st
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	sess := m.session
	m.session = nil
	m.setStateLocked(StateDisconnected, nil)
	m.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
	m.metrics.ConnectionState.Set(float64(StateDisconnected))
	m.logger.Info("connection manager stopped")
}
