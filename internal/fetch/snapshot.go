package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/pulseboard/dashsync/internal/event"
)

// APIError is a non-2xx response from the sync API. The server wraps
// failures as {"error":{"code","message"}}; when the body is not that shape
// the HTTP status text stands in.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("sync api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("sync api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Message:    http.StatusText(statusCode),
	}

	var wire struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Error.Message != "" {
		apiErr.Code = wire.Error.Code
		apiErr.Message = wire.Error.Message
	}

	return apiErr
}

// snapshotResponse is the wire shape of the snapshot endpoint.
type snapshotResponse struct {
	Events []event.Envelope `json:"events"`
}

// Snapshot fetches every update newer than sinceSeq, retrying transient
// failures (5xx, 429) with jittered exponential backoff. The server may
// return entries at or below sinceSeq anyway; callers are expected to gate
// on their own cursor. Satisfies the poller's fetch signature.
func (c *Client) Snapshot(ctx context.Context, sinceSeq int64) ([]event.Envelope, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int63n(int64(backoff)))
			c.logger.Debug("retrying snapshot fetch",
				"attempt", attempt,
				"backoff", jitter,
				"since_seq", sinceSeq,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		events, err := c.fetchOnce(ctx, sinceSeq)
		if err == nil {
			return events, nil
		}

		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// fetchOnce performs one snapshot request.
func (c *Client) fetchOnce(ctx context.Context, sinceSeq int64) ([]event.Envelope, error) {
	url := c.snapshotURL + "?since_seq=" + strconv.FormatInt(sinceSeq, 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp.StatusCode, body)
	}

	var snap snapshotResponse
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	return snap.Events, nil
}
