package config

import "time"

// ClientConfig is the root configuration for a canvas client.
type ClientConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Server    ServerConfig    `yaml:"server"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Keepalive KeepaliveConfig `yaml:"keepalive"`
	Chunks    ChunksConfig    `yaml:"chunks"`
	Batcher   BatcherConfig   `yaml:"batcher"`
	Viewport  ViewportConfig  `yaml:"viewport"`
	Status    StatusConfig    `yaml:"status"`
	Log       LogConfig       `yaml:"log"`
}

// InstanceConfig identifies this client in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the canvas server address and socket timeouts.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// ReconnectConfig holds retry backoff settings.
type ReconnectConfig struct {
	BaseDelay     time.Duration `yaml:"base_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	Multiplier    float64       `yaml:"multiplier"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

// KeepaliveConfig holds heartbeat settings.
type KeepaliveConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ChunksConfig holds chunk loading settings.
type ChunksConfig struct {
	Size             int           `yaml:"size"`
	Buffer           int           `yaml:"buffer"`
	RequestTimeout   time.Duration `yaml:"request_timeout"` // negative disables
	ThrottleInterval time.Duration `yaml:"throttle_interval"`
}

// BatcherConfig holds outbound pixel batching settings.
type BatcherConfig struct {
	FlushInterval   time.Duration `yaml:"flush_interval"`
	BatchSize       int           `yaml:"batch_size"`
	QueueCapacity   int           `yaml:"queue_capacity"`
	InitialCapacity int           `yaml:"initial_capacity"`
}

// ViewportConfig is the camera a headless client keeps loaded.
type ViewportConfig struct {
	CameraX float64 `yaml:"camera_x"`
	CameraY float64 `yaml:"camera_y"`
	Zoom    float64 `yaml:"zoom"`
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
}

// StatusConfig holds the status HTTP server settings.
type StatusConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}
