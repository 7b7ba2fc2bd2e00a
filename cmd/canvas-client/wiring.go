package main

import (
	"github.com/rickgao/canvas-sync/internal/batcher"
	"github.com/rickgao/canvas-sync/internal/chunk"
	"github.com/rickgao/canvas-sync/internal/client"
	"github.com/rickgao/canvas-sync/internal/config"
	"github.com/rickgao/canvas-sync/internal/connection"
)

// clientConfig maps the YAML sections onto component configs.
func clientConfig(c *config.ClientConfig) client.Config {
	requestTimeout := c.Chunks.RequestTimeout
	if requestTimeout < 0 {
		requestTimeout = 0
	}

	return client.Config{
		Connection: connectionConfig(c),
		Chunks: chunk.Config{
			Size:           c.Chunks.Size,
			Buffer:         c.Chunks.Buffer,
			RequestTimeout: requestTimeout,
		},
		Batcher: batcher.Config{
			FlushInterval:   c.Batcher.FlushInterval,
			BatchSize:       c.Batcher.BatchSize,
			QueueCapacity:   c.Batcher.QueueCapacity,
			InitialCapacity: c.Batcher.InitialCapacity,
		},
		ThrottleInterval: c.Chunks.ThrottleInterval,
	}
}

func connectionConfig(c *config.ClientConfig) connection.Config {
	return connection.Config{
		Addr:                c.Server.Addr,
		ConnectTimeout:      c.Server.ConnectTimeout,
		WriteTimeout:        c.Server.WriteTimeout,
		ReconnectBaseWait:   c.Reconnect.BaseDelay,
		ReconnectMaxWait:    c.Reconnect.MaxDelay,
		ReconnectMultiplier: c.Reconnect.Multiplier,
		CheckInterval:       c.Reconnect.CheckInterval,
		PingInterval:        c.Keepalive.PingInterval,
		KeepaliveTimeout:    c.Keepalive.Timeout,
	}
}

func viewport(c *config.ClientConfig) chunk.Viewport {
	return chunk.Viewport{
		CameraX: c.Viewport.CameraX,
		CameraY: c.Viewport.CameraY,
		Zoom:    c.Viewport.Zoom,
		Width:   c.Viewport.Width,
		Height:  c.Viewport.Height,
	}
}
