package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrConnectFailure   = errors.New("connect failed")
	ErrHandshakeFailure = errors.New("handshake failed (no pong)")
	ErrStreamClosed     = errors.New("stream closed by peer")
	ErrKeepaliveTimeout = errors.New("keepalive timeout")
)

// State is the connection state shown to the user.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
	StateKeepaliveTimeout
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateKeepaliveTimeout:
		return "keepalive_timeout"
	default:
		return "unknown"
	}
}

// Label is the status-bar text for the state.
func (s State) Label() string {
	switch s {
	case StateConnecting:
		return "Connecting..."
	case StateConnected:
		return "Connected"
	case StateFailed:
		return "Connection failed"
	case StateKeepaliveTimeout:
		return "Keepalive timeout"
	default:
		return "Disconnected"
	}
}

// Config configures the Connection Manager.
type Config struct {
	Addr                string        // host:port of the canvas server
	ConnectTimeout      time.Duration // Dial and handshake timeout
	WriteTimeout        time.Duration // Write deadline for sends
	ReconnectBaseWait   time.Duration // First retry delay
	ReconnectMaxWait    time.Duration // Retry delay cap
	ReconnectMultiplier float64       // Growth factor per failed attempt
	CheckInterval       time.Duration // Reconnect loop period
	PingInterval        time.Duration // Heartbeat period
	KeepaliveTimeout    time.Duration // Max time without pong while connected
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:                "127.0.0.1:9062",
		ConnectTimeout:      5 * time.Second,
		WriteTimeout:        5 * time.Second,
		ReconnectBaseWait:   1 * time.Second,
		ReconnectMaxWait:    10 * time.Second,
		ReconnectMultiplier: 1.5,
		CheckInterval:       1 * time.Second,
		PingInterval:        10 * time.Second,
		KeepaliveTimeout:    30 * time.Second,
	}
}

// Status is a point-in-time view of the connection.
type Status struct {
	State       State     `json:"-"`
	StateName   string    `json:"state"`
	Label       string    `json:"label"`
	Addr        string    `json:"addr"`
	SessionID   string    `json:"session_id,omitempty"`
	ConnectedAt time.Time `json:"connected_at,omitempty"`
	LastPongAt  time.Time `json:"last_pong_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	RetryDelay  string    `json:"retry_delay"`
	Attempts    int64     `json:"attempts"`
	Reconnects  int64     `json:"reconnects"`
}
