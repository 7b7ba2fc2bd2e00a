package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID       = "canvas-client"
	DefaultServerAddr       = "127.0.0.1:9062"
	DefaultConnectTimeout   = 5 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultReconnectBase    = 1 * time.Second
	DefaultReconnectMax     = 10 * time.Second
	DefaultReconnectFactor  = 1.5
	DefaultCheckInterval    = 1 * time.Second
	DefaultPingInterval     = 10 * time.Second
	DefaultKeepaliveTimeout = 30 * time.Second
	DefaultChunkSize        = 512
	DefaultChunkBuffer      = 2
	DefaultRequestTimeout   = 30 * time.Second
	DefaultThrottleInterval = 1 * time.Second
	DefaultFlushInterval    = 150 * time.Millisecond
	DefaultBatchSize        = 1000
	DefaultQueueCapacity    = 1_000_000
	DefaultInitialQueueSize = 4096
	DefaultViewportZoom     = 1.0
	DefaultViewportWidth    = 1200
	DefaultViewportHeight   = 900
	DefaultStatusPort       = 8080
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	defaultViewportCenter   = 25000
)

func (c *ClientConfig) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.ConnectTimeout == 0 {
		c.Server.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}

	// Reconnect defaults
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultReconnectBase
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultReconnectMax
	}
	if c.Reconnect.Multiplier == 0 {
		c.Reconnect.Multiplier = DefaultReconnectFactor
	}
	if c.Reconnect.CheckInterval == 0 {
		c.Reconnect.CheckInterval = DefaultCheckInterval
	}

	// Keepalive defaults
	if c.Keepalive.PingInterval == 0 {
		c.Keepalive.PingInterval = DefaultPingInterval
	}
	if c.Keepalive.Timeout == 0 {
		c.Keepalive.Timeout = DefaultKeepaliveTimeout
	}

	// Chunk defaults
	if c.Chunks.Size == 0 {
		c.Chunks.Size = DefaultChunkSize
	}
	if c.Chunks.Buffer == 0 {
		c.Chunks.Buffer = DefaultChunkBuffer
	}
	if c.Chunks.RequestTimeout == 0 {
		c.Chunks.RequestTimeout = DefaultRequestTimeout
	}
	if c.Chunks.ThrottleInterval == 0 {
		c.Chunks.ThrottleInterval = DefaultThrottleInterval
	}

	// Batcher defaults
	if c.Batcher.FlushInterval == 0 {
		c.Batcher.FlushInterval = DefaultFlushInterval
	}
	if c.Batcher.BatchSize == 0 {
		c.Batcher.BatchSize = DefaultBatchSize
	}
	if c.Batcher.QueueCapacity == 0 {
		c.Batcher.QueueCapacity = DefaultQueueCapacity
	}
	if c.Batcher.InitialCapacity == 0 {
		c.Batcher.InitialCapacity = DefaultInitialQueueSize
	}

	// Viewport defaults: grid center
	if c.Viewport.Zoom == 0 {
		c.Viewport.Zoom = DefaultViewportZoom
	}
	if c.Viewport.Width == 0 {
		c.Viewport.Width = DefaultViewportWidth
	}
	if c.Viewport.Height == 0 {
		c.Viewport.Height = DefaultViewportHeight
	}
	if c.Viewport.CameraX == 0 && c.Viewport.CameraY == 0 {
		c.Viewport.CameraX = defaultViewportCenter
		c.Viewport.CameraY = defaultViewportCenter
	}

	// Status defaults
	if c.Status.Port == 0 {
		c.Status.Port = DefaultStatusPort
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
