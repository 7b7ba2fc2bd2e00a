package status

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/canvas-sync/internal/chunk"
	"github.com/rickgao/canvas-sync/internal/client"
	"github.com/rickgao/canvas-sync/internal/connection"
	"github.com/rickgao/canvas-sync/internal/metrics"
	"github.com/rickgao/canvas-sync/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSource struct {
	mu     sync.Mutex
	status client.Status
	loaded []model.ChunkID
}

func (f *fakeSource) Status() client.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSource) Loaded() []model.ChunkID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

func (f *fakeSource) set(st connection.State, line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.Connection.State = st
	f.status.Connection.StateName = st.String()
	f.status.Line = line
}

func newTestServer(t *testing.T, src Source, reg *prometheus.Registry) *httptest.Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PushInterval = 40 * time.Millisecond
	cfg.Version = "test"
	srv := httptest.NewServer(New(cfg, src, reg, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	src := &fakeSource{}
	srv := newTestServer(t, src, prometheus.NewRegistry())

	tests := []struct {
		name       string
		state      connection.State
		dropped    int64
		wantCode   int
		wantStatus string
	}{
		{"disconnected", connection.StateDisconnected, 0, http.StatusServiceUnavailable, "unhealthy"},
		{"keepalive timeout", connection.StateKeepaliveTimeout, 0, http.StatusServiceUnavailable, "unhealthy"},
		{"connected", connection.StateConnected, 0, http.StatusOK, "healthy"},
		{"connected with drops", connection.StateConnected, 4, http.StatusOK, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src.set(tt.state, "")
			src.mu.Lock()
			src.status.Queue.TotalDropped = tt.dropped
			src.mu.Unlock()

			var body healthResponse
			code := getJSON(t, srv.URL+"/health", &body)

			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if body.Version != "test" {
				t.Errorf("version = %q, want test", body.Version)
			}
		})
	}
}

func TestDebugChunks(t *testing.T) {
	src := &fakeSource{
		status: client.Status{Chunks: chunk.Counts{Requested: 3, Loading: 1, Loaded: 2}},
		loaded: []model.ChunkID{{X: 2, Y: 0}, {X: 1, Y: 0}},
	}
	srv := newTestServer(t, src, prometheus.NewRegistry())

	var body struct {
		Requested int      `json:"requested"`
		Loading   int      `json:"loading"`
		Loaded    int      `json:"loaded"`
		Chunks    []string `json:"chunks"`
	}
	code := getJSON(t, srv.URL+"/debug/chunks", &body)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, body.Requested)
	assert.Equal(t, 1, body.Loading)
	assert.Equal(t, 2, body.Loaded)
	assert.Equal(t, []string{model.ChunkID{X: 1}.String(), model.ChunkID{X: 2}.String()}, body.Chunks)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.PixelsEnqueued.Add(3)

	srv := newTestServer(t, &fakeSource{}, reg)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "canvas_pixels_enqueued_total 3")
}

func TestStatusStream(t *testing.T) {
	src := &fakeSource{}
	src.set(connection.StateConnecting, "Connecting...")
	srv := newTestServer(t, src, prometheus.NewRegistry())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() client.Status {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var st client.Status
		require.NoError(t, json.Unmarshal(data, &st))
		return st
	}

	first := read()
	assert.Equal(t, "Connecting...", first.Line)

	src.set(connection.StateConnected, "Connected • 0 pending • 0 chunks")
	for i := 0; i < 10; i++ {
		if st := read(); st.Line == "Connected • 0 pending • 0 chunks" {
			assert.Equal(t, "connected", st.Connection.StateName)
			return
		}
	}
	t.Fatal("status change never pushed")
}
