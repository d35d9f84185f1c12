package config

import "time"

// WatcherConfig is the root configuration for a dashsync watcher instance.
type WatcherConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Sync      SyncConfig      `yaml:"sync"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Channel   ChannelConfig   `yaml:"channel"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Poll      PollConfig      `yaml:"poll"`
	Log       LogConfig       `yaml:"log"`
}

// InstanceConfig identifies this watcher.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// SyncConfig holds the live channel endpoint and credentials.
type SyncConfig struct {
	WSURL     string `yaml:"ws_url"`
	AuthToken string `yaml:"auth_token"` // usually ${DASHSYNC_TOKEN}
}

// SnapshotConfig holds the HTTP snapshot endpoint settings.
type SnapshotConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ChannelConfig holds low-level WebSocket settings.
type ChannelConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
}

// ReconnectConfig holds the reconnection policy parameters.
type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// PollConfig holds fallback polling settings.
type PollConfig struct {
	Interval     time.Duration `yaml:"interval"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}
