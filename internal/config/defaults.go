package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultSnapshotTimeout    = 10 * time.Second
	DefaultSnapshotMaxRetries = 3
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultBufferSize         = 256
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultMaxAttempts        = 5
	DefaultPollInterval       = 10 * time.Second
	DefaultFetchTimeout       = 10 * time.Second
	DefaultLogLevel           = "info"
)

func (c *WatcherConfig) applyDefaults() {
	// Snapshot defaults
	if c.Snapshot.Timeout == 0 {
		c.Snapshot.Timeout = DefaultSnapshotTimeout
	}
	if c.Snapshot.MaxRetries == 0 {
		c.Snapshot.MaxRetries = DefaultSnapshotMaxRetries
	}

	// Channel defaults
	if c.Channel.HandshakeTimeout == 0 {
		c.Channel.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Channel.PingTimeout == 0 {
		c.Channel.PingTimeout = DefaultPingTimeout
	}
	if c.Channel.WriteTimeout == 0 {
		c.Channel.WriteTimeout = DefaultWriteTimeout
	}
	if c.Channel.BufferSize == 0 {
		c.Channel.BufferSize = DefaultBufferSize
	}

	// Reconnect defaults
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultReconnectBaseDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultMaxAttempts
	}

	// Poll defaults
	if c.Poll.Interval == 0 {
		c.Poll.Interval = DefaultPollInterval
	}
	if c.Poll.FetchTimeout == 0 {
		c.Poll.FetchTimeout = DefaultFetchTimeout
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
