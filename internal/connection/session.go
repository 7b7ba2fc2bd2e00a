package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/canvas-sync/internal/protocol"
)

// Session is one established TCP connection. A reconnect always produces
// a new Session with a new ID.
type Session struct {
	ID       uuid.UUID
	OpenedAt time.Time

	conn         net.Conn
	reader       *bufio.Reader
	writeTimeout time.Duration
	logger       *slog.Logger

	// Write serialization
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newSession(conn net.Conn, writeTimeout time.Duration, logger *slog.Logger) *Session {
	id := uuid.New()
	return &Session{
		ID:           id,
		OpenedAt:     time.Now(),
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, 64*1024),
		writeTimeout: writeTimeout,
		logger:       logger.With("session", id.String()[:8]),
	}
}

// Send encodes msg and writes it as a single line.
func (s *Session) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return s.write(data)
}

func (s *Session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// ReadLine blocks until a full newline-terminated line arrives.
// A clean close by the peer is reported as ErrStreamClosed.
func (s *Session) ReadLine() ([]byte, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrStreamClosed
		}
		return nil, fmt.Errorf("read: %w", err)
	}
	return line, nil
}

// Receive reads and decodes the next message.
func (s *Session) Receive() (protocol.Message, error) {
	line, err := s.ReadLine()
	if err != nil {
		return nil, err
	}
	return protocol.Decode(line)
}

// Close closes the socket. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// handshake sends a ping and requires the first reply to be a pong,
// all within timeout.
func (s *Session) handshake(timeout time.Duration) error {
	if timeout > 0 {
		if err := s.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}
	}
	if err := s.Send(protocol.Ping{}); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeFailure, err)
	}
	msg, err := s.Receive()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeFailure, err)
	}
	if _, ok := msg.(protocol.Pong); !ok {
		return fmt.Errorf("%w: got %s", ErrHandshakeFailure, msg.Type())
	}
	if err := s.conn.SetDeadline(time.Time{}); err != nil {
		return fmt.Errorf("clear deadline: %w", err)
	}
	if tc, ok := s.conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			s.logger.Warn("set nodelay failed", "error", err)
		}
	}
	return nil
}

// Probe opens a connection, performs the ping/pong handshake and closes
// it again. It returns the handshake round-trip time.
func Probe(ctx context.Context, cfg Config) (time.Duration, error) {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return 0, fmt.Errorf("%w: dial %s: %w", ErrConnectFailure, cfg.Addr, err)
	}

	sess := newSession(conn, cfg.WriteTimeout, slog.Default())
	defer sess.Close()

	start := time.Now()
	if err := sess.handshake(cfg.ConnectTimeout); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConnectFailure, err)
	}
	return time.Since(start), nil
}
