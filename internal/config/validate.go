package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *WatcherConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Sync.WSURL == "" {
		return errors.New("sync.ws_url is required")
	}
	if !strings.HasPrefix(c.Sync.WSURL, "ws://") && !strings.HasPrefix(c.Sync.WSURL, "wss://") {
		return fmt.Errorf("sync.ws_url must use ws:// or wss://, got %q", c.Sync.WSURL)
	}

	if c.Snapshot.BaseURL == "" {
		return errors.New("snapshot.base_url is required")
	}
	if c.Snapshot.MaxRetries < 0 {
		return errors.New("snapshot.max_retries must be >= 0")
	}

	if c.Channel.BufferSize < 1 {
		return errors.New("channel.buffer_size must be >= 1")
	}

	if c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay (%v) cannot be below base_delay (%v)", c.Reconnect.MaxDelay, c.Reconnect.BaseDelay)
	}
	if c.Reconnect.MaxAttempts < 1 {
		return errors.New("reconnect.max_attempts must be >= 1")
	}

	if c.Poll.Interval <= 0 {
		return errors.New("poll.interval must be > 0")
	}
	if c.Poll.FetchTimeout <= 0 {
		return errors.New("poll.fetch_timeout must be > 0")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	return nil
}
