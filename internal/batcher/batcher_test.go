package batcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/rickgao/canvas-sync/internal/metrics"
	"github.com/rickgao/canvas-sync/internal/model"
	"github.com/rickgao/canvas-sync/internal/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeConn records pixel batches.
type fakeConn struct {
	mu        sync.Mutex
	connected bool
	failNext  bool
	batches   []protocol.PixelBatch
}

func (c *fakeConn) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return errors.New("not connected")
	}
	if c.failNext {
		c.failNext = false
		return errors.New("broken pipe")
	}
	c.batches = append(c.batches, msg.(protocol.PixelBatch))
	return nil
}

func (c *fakeConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) set(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
}

func (c *fakeConn) batchSizes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	sizes := make([]int, len(c.batches))
	for i, b := range c.batches {
		sizes[i] = len(b.Pixels)
	}
	return sizes
}

func edit(x, y int) model.Edit {
	return model.Edit{Coord: model.Coord{X: x, Y: y}, Color: model.RGB(255, 0, 0)}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.FlushInterval != 150*time.Millisecond {
		t.Errorf("FlushInterval = %v, want 150ms", cfg.FlushInterval)
	}
	if cfg.BatchSize != 1000 {
		t.Errorf("BatchSize = %d, want 1000", cfg.BatchSize)
	}
}

func TestBatcher_BurstFlushesInThree(t *testing.T) {
	conn := &fakeConn{connected: true}
	b := New(DefaultConfig(), conn, nil, nil)

	for i := 0; i < 2500; i++ {
		if err := b.Enqueue(edit(i%testRowWidth, i/testRowWidth)); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	for i := 0; i < 4; i++ {
		if _, err := b.Flush(); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
	}

	sizes := conn.batchSizes()
	if len(sizes) != 3 || sizes[0] != 1000 || sizes[1] != 1000 || sizes[2] != 500 {
		t.Errorf("batch sizes = %v, want [1000 1000 500]", sizes)
	}

	// FIFO across batches.
	first := conn.batches[1].Pixels[0]
	if *first.X != 1000%testRowWidth || *first.Y != 1000/testRowWidth {
		t.Errorf("second batch starts at (%d,%d), want edit #1000", *first.X, *first.Y)
	}
}

// testRowWidth keeps generated test coordinates small.
const testRowWidth = 100

func TestBatcher_PausedWhileDisconnected(t *testing.T) {
	conn := &fakeConn{connected: false}
	b := New(DefaultConfig(), conn, nil, nil)

	b.Enqueue(edit(10, 20))
	n, err := b.Flush()
	if n != 0 || err != nil {
		t.Errorf("Flush() = %d, %v while disconnected, want 0, nil", n, err)
	}
	if b.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1 (kept while disconnected)", b.Pending())
	}

	conn.set(true)
	n, err = b.Flush()
	if n != 1 || err != nil {
		t.Errorf("Flush() = %d, %v after reconnect, want 1, nil", n, err)
	}
}

func TestBatcher_FailedSendRequeues(t *testing.T) {
	conn := &fakeConn{connected: true, failNext: true}
	b := New(DefaultConfig(), conn, nil, nil)

	b.Enqueue(edit(1, 1))
	b.Enqueue(edit(2, 2))

	if _, err := b.Flush(); err == nil {
		t.Fatal("expected send error")
	}
	if b.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2 after failed send", b.Pending())
	}

	b.Enqueue(edit(3, 3))
	if n, _ := b.Flush(); n != 3 {
		t.Fatalf("Flush() sent %d, want 3", n)
	}
	px := conn.batches[0].Pixels
	if *px[0].X != 1 || *px[2].X != 3 {
		t.Errorf("order after requeue = %d..%d, want 1..3", *px[0].X, *px[2].X)
	}
}

func TestBatcher_OverflowDropsAndCounts(t *testing.T) {
	m := metrics.New(nil)
	cfg := DefaultConfig()
	cfg.QueueCapacity = 3
	cfg.InitialCapacity = 2
	b := New(cfg, &fakeConn{}, m, nil)

	for i := 0; i < 3; i++ {
		if err := b.Enqueue(edit(i, 0)); err != nil {
			t.Fatalf("Enqueue(%d) failed: %v", i, err)
		}
	}
	if err := b.Enqueue(edit(9, 9)); !errors.Is(err, ErrQueueOverflow) {
		t.Errorf("Enqueue at cap = %v, want ErrQueueOverflow", err)
	}

	if got := testutil.ToFloat64(m.PixelsDropped); got != 1 {
		t.Errorf("PixelsDropped = %v, want 1", got)
	}
	if got := b.Stats().TotalDropped; got != 1 {
		t.Errorf("TotalDropped = %d, want 1", got)
	}
}

func TestBatcher_RunSendsOnTick(t *testing.T) {
	conn := &fakeConn{connected: true}
	cfg := DefaultConfig()
	cfg.FlushInterval = 10 * time.Millisecond
	b := New(cfg, conn, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	b.Enqueue(model.Edit{Coord: model.Coord{X: 10, Y: 20}, Color: model.RGB(255, 0, 0)})

	deadline := time.After(time.Second)
	for len(conn.batchSizes()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for batch")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}

	conn.mu.Lock()
	px := conn.batches[0].Pixels[0]
	conn.mu.Unlock()
	if *px.X != 10 || *px.Y != 20 || *px.Color != (protocol.WireColor{255, 0, 0}) {
		t.Errorf("sent pixel = (%d,%d,%v), want (10,20,[255 0 0])", *px.X, *px.Y, *px.Color)
	}
}

// gatedConn blocks the first Send until released, then fails it.
type gatedConn struct {
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
	sent  []int
}

func (c *gatedConn) Send(msg protocol.Message) error {
	c.mu.Lock()
	c.calls++
	first := c.calls == 1
	c.mu.Unlock()

	if first {
		close(c.entered)
		<-c.release
		return errors.New("broken pipe")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, px := range msg.(protocol.PixelBatch).Pixels {
		c.sent = append(c.sent, *px.X)
	}
	return nil
}

func (c *gatedConn) IsConnected() bool { return true }

func TestBatcher_ConcurrentFlushKeepsOrder(t *testing.T) {
	conn := &gatedConn{entered: make(chan struct{}), release: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	b := New(cfg, conn, nil, nil)

	for i := 0; i < 4; i++ {
		b.Enqueue(edit(i, 0))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := b.Flush(); err == nil {
			t.Error("first Flush: expected send error")
		}
	}()
	<-conn.entered

	go func() {
		defer wg.Done()
		b.Flush()
	}()

	// Give the second flush time to overtake if it could.
	time.Sleep(20 * time.Millisecond)
	close(conn.release)
	wg.Wait()

	for b.Pending() > 0 {
		if _, err := b.Flush(); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	want := []int{0, 1, 2, 3}
	if len(conn.sent) != len(want) {
		t.Fatalf("sent = %v, want %v", conn.sent, want)
	}
	for i := range want {
		if conn.sent[i] != want[i] {
			t.Fatalf("sent = %v, want %v", conn.sent, want)
		}
	}
}
