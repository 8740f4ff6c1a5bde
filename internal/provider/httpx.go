package provider

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// FetchFunc performs one HTTP round trip and returns the raw response
// body plus status code.
type FetchFunc func(ctx context.Context, req *http.Request) (status int, body []byte, err error)

// HTTPDo issues req via client, reading the full body into memory —
// response payloads here are small JSON documents, not streams.
func HTTPDo(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// RetryConfig is a fixed attempt budget with exponential backoff
// between attempts.
type RetryConfig struct {
	MaxRetries  int
	BackoffBase time.Duration
}

// DefaultRetryConfig allows 3 retries with a 2-second backoff base.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BackoffBase: 2 * time.Second}
}

// backoffFor returns BackoffBase * 2^attempt.
func (c RetryConfig) backoffFor(attempt int) time.Duration {
	return time.Duration(float64(c.BackoffBase) * math.Pow(2, float64(attempt)))
}

// WithRetry runs fetch up to MaxRetries+1 times, classifying the
// outcome of each attempt via classify. classify returns (done, retry):
// done=true means stop and return this outcome; retry=true (with
// done=false) means sleep and try again. The status-code dispatch is a
// caller-supplied decision so each adapter can apply it to its own
// response shape.
func WithRetry(ctx context.Context, cfg RetryConfig, fetch FetchFunc, req *http.Request, classify func(status int, body []byte, err error) (done, retry bool)) (int, []byte, error) {
	var lastStatus int
	var lastBody []byte
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		status, body, err := fetch(ctx, req)
		lastStatus, lastBody, lastErr = status, body, err

		done, retry := classify(status, body, err)
		if done {
			return status, body, err
		}
		if !retry || attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return lastStatus, lastBody, ctx.Err()
		case <-time.After(cfg.backoffFor(attempt)):
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("request failed after %d attempts (last status %d)", cfg.MaxRetries+1, lastStatus)
	}
	return lastStatus, lastBody, lastErr
}
