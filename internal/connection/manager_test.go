package connection

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rickgao/canvas-sync/internal/metrics"
	"github.com/rickgao/canvas-sync/internal/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeServer is a line-oriented TCP server. It answers pings with pongs
// unless told otherwise and records every other line it receives.
type fakeServer struct {
	ln      net.Listener
	reply   func(n int) string // reply to the n-th ping on a connection (0-based)
	lines   chan string
	accepts atomic.Int32

	mu    sync.Mutex
	conns []net.Conn
	wg    sync.WaitGroup
}

func newFakeServer(t *testing.T, reply func(n int) string) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	if reply == nil {
		reply = func(int) string { return `{"type":"pong"}` }
	}
	s := &fakeServer{ln: ln, reply: reply, lines: make(chan string, 100)}

	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

func (s *fakeServer) Addr() string { return s.ln.Addr().String() }

func (s *fakeServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.accepts.Add(1)
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *fakeServer) serve(conn net.Conn) {
	defer s.wg.Done()
	r := bufio.NewReader(conn)
	pings := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		if strings.Contains(line, `"ping"`) {
			if out := s.reply(pings); out != "" {
				conn.Write([]byte(out + "\n"))
			}
			pings++
			continue
		}
		select {
		case s.lines <- strings.TrimSpace(line):
		default:
		}
	}
}

// DropAll closes every accepted connection from the server side.
func (s *fakeServer) DropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *fakeServer) Close() {
	s.ln.Close()
	s.DropAll()
	s.wg.Wait()
}

type countingResetter struct{ n atomic.Int32 }

func (r *countingResetter) Reset() { r.n.Add(1) }

func testConfig(addr string) Config {
	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.ConnectTimeout = time.Second
	cfg.ReconnectBaseWait = 10 * time.Millisecond
	cfg.ReconnectMaxWait = 50 * time.Millisecond
	cfg.CheckInterval = 10 * time.Millisecond
	return cfg
}

func runManager(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestBackoff_Sequence(t *testing.T) {
	b := NewBackoff(time.Second, 10*time.Second, 1.5)

	want := []time.Duration{
		1000 * time.Millisecond,
		1500 * time.Millisecond,
		2250 * time.Millisecond,
		3375 * time.Millisecond,
		5062500 * time.Microsecond,
		7593750 * time.Microsecond,
		10 * time.Second,
		10 * time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i, got, w)
		}
	}

	b.Reset()
	if got := b.Next(); got != time.Second {
		t.Errorf("Next() after Reset = %v, want 1s", got)
	}
}

func TestManager_Connects(t *testing.T) {
	srv := newFakeServer(t, nil)
	met := metrics.New(nil)
	m := NewManager(testConfig(srv.Addr()), nil, met, nil)

	assert.Equal(t, StateDisconnected, m.State())
	runManager(t, m)

	require.Eventually(t, m.IsConnected, 2*time.Second, 5*time.Millisecond)

	st := m.Status()
	assert.Equal(t, "connected", st.StateName)
	assert.Equal(t, "Connected", st.Label)
	assert.NotEmpty(t, st.SessionID)
	assert.Equal(t, 1.0, testutil.ToFloat64(met.ConnectAttempts.WithLabelValues("ok")))
	assert.Equal(t, float64(StateConnected), testutil.ToFloat64(met.ConnectionState))
}

func TestManager_HandshakeRequiresPong(t *testing.T) {
	srv := newFakeServer(t, func(int) string { return `{"type":"ping"}` })
	met := metrics.New(nil)
	m := NewManager(testConfig(srv.Addr()), nil, met, nil)
	runManager(t, m)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(met.ConnectAttempts.WithLabelValues("failed")) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.False(t, m.IsConnected())
	assert.Contains(t, m.Status().LastError, "handshake")
}

func TestManager_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	res := &countingResetter{}
	m := NewManager(testConfig(addr), res, nil, nil)
	runManager(t, m)

	require.Eventually(t, func() bool {
		return m.State() == StateFailed || m.Status().Attempts >= 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.False(t, m.IsConnected())
	assert.Positive(t, res.n.Load())
	assert.ErrorIs(t, m.Send(protocol.Ping{}), ErrNotConnected)
}

func TestManager_RetryDelayResetsAfterConnect(t *testing.T) {
	srv := newFakeServer(t, nil)
	met := metrics.New(nil)

	// Real retry schedule: waits 1s then 1.5s before the third attempt.
	cfg := DefaultConfig()
	cfg.Addr = srv.Addr()
	cfg.CheckInterval = 10 * time.Millisecond
	m := NewManager(cfg, nil, met, nil)

	var dials atomic.Int32
	var d net.Dialer
	m.SetDialer(func(ctx context.Context, network, addr string) (net.Conn, error) {
		if dials.Add(1) <= 2 {
			return nil, errors.New("connection refused")
		}
		return d.DialContext(ctx, network, addr)
	})
	runManager(t, m)

	require.Eventually(t, m.IsConnected, 5*time.Second, 10*time.Millisecond)

	st := m.Status()
	assert.Equal(t, "1s", st.RetryDelay)
	assert.Equal(t, int64(3), st.Attempts)
	assert.Equal(t, 2.0, testutil.ToFloat64(met.ConnectAttempts.WithLabelValues("failed")))
}

func TestManager_KeepaliveTimeout(t *testing.T) {
	// Only the handshake ping gets an answer.
	srv := newFakeServer(t, func(n int) string {
		if n == 0 {
			return `{"type":"pong"}`
		}
		return ""
	})
	met := metrics.New(nil)
	res := &countingResetter{}
	cfg := testConfig(srv.Addr())
	cfg.KeepaliveTimeout = 100 * time.Millisecond
	m := NewManager(cfg, res, met, nil)
	runManager(t, m)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(met.KeepaliveTimeouts) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Positive(t, res.n.Load())

	// The loop reconnects on its own.
	require.Eventually(t, func() bool {
		return srv.accepts.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManager_RecordPongKeepsAlive(t *testing.T) {
	srv := newFakeServer(t, nil)
	met := metrics.New(nil)
	cfg := testConfig(srv.Addr())
	cfg.KeepaliveTimeout = 100 * time.Millisecond
	m := NewManager(cfg, nil, met, nil)
	runManager(t, m)

	require.Eventually(t, m.IsConnected, 2*time.Second, 5*time.Millisecond)

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		m.RecordPong()
		time.Sleep(20 * time.Millisecond)
	}

	assert.True(t, m.IsConnected())
	assert.Equal(t, 0.0, testutil.ToFloat64(met.KeepaliveTimeouts))
}

func TestManager_FailIgnoresStaleSession(t *testing.T) {
	srv := newFakeServer(t, nil)
	res := &countingResetter{}
	m := NewManager(testConfig(srv.Addr()), res, nil, nil)
	runManager(t, m)

	require.Eventually(t, m.IsConnected, 2*time.Second, 5*time.Millisecond)
	first := m.Current()
	require.NotNil(t, first)

	m.Fail(first, ErrStreamClosed)
	assert.Equal(t, int32(1), res.n.Load())

	require.Eventually(t, func() bool {
		s := m.Current()
		return s != nil && s != first
	}, 2*time.Second, 5*time.Millisecond)
	second := m.Current()
	assert.NotEqual(t, first.ID, second.ID)

	// A late failure from the old socket must not drop the new one.
	m.Fail(first, errors.New("late read error"))
	assert.True(t, m.IsConnected())
	assert.Same(t, second, m.Current())
}

func TestManager_PeerCloseThenReconnect(t *testing.T) {
	srv := newFakeServer(t, nil)
	m := NewManager(testConfig(srv.Addr()), nil, nil, nil)
	runManager(t, m)

	require.Eventually(t, m.IsConnected, 2*time.Second, 5*time.Millisecond)
	sess := m.Current()

	srv.DropAll()

	_, err := sess.ReadLine()
	require.Error(t, err)
	m.Fail(sess, err)

	require.Eventually(t, func() bool {
		s := m.Current()
		return s != nil && s != sess
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), m.Status().Reconnects)
}

func TestManager_SendReachesServer(t *testing.T) {
	srv := newFakeServer(t, nil)
	met := metrics.New(nil)
	m := NewManager(testConfig(srv.Addr()), nil, met, nil)
	runManager(t, m)

	require.Eventually(t, m.IsConnected, 2*time.Second, 5*time.Millisecond)

	err := m.Send(protocol.RequestChunk{ChunkX: 1, ChunkY: 2, ChunkSize: 512})
	require.NoError(t, err)

	select {
	case line := <-srv.lines:
		assert.Equal(t, `{"type":"request_chunk","chunk_x":1,"chunk_y":2,"chunk_size":512}`, line)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received request_chunk")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(met.MessagesSent.WithLabelValues(protocol.TypeRequestChunk)))
}

func TestManager_Await(t *testing.T) {
	m := NewManager(testConfig("127.0.0.1:1"), nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	s, err := m.Await(ctx)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	srv := newFakeServer(t, nil)
	m2 := NewManager(testConfig(srv.Addr()), nil, nil, nil)
	runManager(t, m2)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	s, err = m2.Await(ctx2)
	require.NoError(t, err)
	assert.Same(t, m2.Current(), s)
}

func TestManager_StopClosesSession(t *testing.T) {
	srv := newFakeServer(t, nil)
	m := NewManager(testConfig(srv.Addr()), nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()

	require.Eventually(t, m.IsConnected, 2*time.Second, 5*time.Millisecond)
	sess := m.Current()

	cancel()
	<-done

	assert.Equal(t, StateDisconnected, m.State())
	_, err := sess.ReadLine()
	assert.Error(t, err)
}

type fakeLink struct {
	connected atomic.Bool
	pings     atomic.Int32
}

func (f *fakeLink) Send(msg protocol.Message) error {
	if _, ok := msg.(protocol.Ping); ok {
		f.pings.Add(1)
	}
	return nil
}

func (f *fakeLink) IsConnected() bool { return f.connected.Load() }

func TestHeartbeat_PingsOnlyWhenConnected(t *testing.T) {
	link := &fakeLink{}
	hb := NewHeartbeat(link, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hb.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), link.pings.Load())

	link.connected.Store(true)
	require.Eventually(t, func() bool { return link.pings.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestProbe(t *testing.T) {
	srv := newFakeServer(t, nil)

	rtt, err := Probe(context.Background(), testConfig(srv.Addr()))
	require.NoError(t, err)
	assert.Positive(t, rtt)

	bad := newFakeServer(t, func(int) string { return `{"type":"pixel_update","pixels":[]}` })
	_, err = Probe(context.Background(), testConfig(bad.Addr()))
	assert.ErrorIs(t, err, ErrConnectFailure)
	assert.ErrorIs(t, err, ErrHandshakeFailure)
}
