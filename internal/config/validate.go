package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate checks that all required fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("server.addr %q: %w", c.Server.Addr, err)
	}
	if c.Server.ConnectTimeout <= 0 {
		return errors.New("server.connect_timeout must be > 0")
	}

	if c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay (%v) cannot be less than base_delay (%v)", c.Reconnect.MaxDelay, c.Reconnect.BaseDelay)
	}
	if c.Reconnect.Multiplier < 1 {
		return fmt.Errorf("reconnect.multiplier must be >= 1, got %v", c.Reconnect.Multiplier)
	}
	if c.Reconnect.CheckInterval <= 0 {
		return errors.New("reconnect.check_interval must be > 0")
	}

	if c.Keepalive.PingInterval <= 0 {
		return errors.New("keepalive.ping_interval must be > 0")
	}
	if c.Keepalive.Timeout <= c.Keepalive.PingInterval {
		return fmt.Errorf("keepalive.timeout (%v) must exceed ping_interval (%v)", c.Keepalive.Timeout, c.Keepalive.PingInterval)
	}

	if c.Chunks.Size < 1 {
		return errors.New("chunks.size must be >= 1")
	}
	if c.Chunks.Buffer < 0 {
		return errors.New("chunks.buffer must be >= 0")
	}

	if c.Batcher.BatchSize < 1 {
		return errors.New("batcher.batch_size must be >= 1")
	}
	if c.Batcher.QueueCapacity < c.Batcher.BatchSize {
		return fmt.Errorf("batcher.queue_capacity (%d) cannot be less than batch_size (%d)", c.Batcher.QueueCapacity, c.Batcher.BatchSize)
	}
	if c.Batcher.FlushInterval <= 0 {
		return errors.New("batcher.flush_interval must be > 0")
	}

	if c.Viewport.Zoom <= 0 {
		return errors.New("viewport.zoom must be > 0")
	}

	if c.Status.Port < 1 || c.Status.Port > 65535 {
		return fmt.Errorf("status.port must be between 1 and 65535, got %d", c.Status.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}
