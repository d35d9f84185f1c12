package fetch

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client fetches update snapshots from the sync REST API. It serves exactly
// one endpoint; auth and retry policy are baked into Snapshot rather than
// spread over a generic request layer.
type Client struct {
	snapshotURL string
	authToken   string
	httpClient  *http.Client
	logger      *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new snapshot client.
func NewClient(baseURL, authToken string, opts ...ClientOption) *Client {
	c := &Client{
		snapshotURL: strings.TrimSuffix(baseURL, "/") + "/snapshot",
		authToken:   authToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}
