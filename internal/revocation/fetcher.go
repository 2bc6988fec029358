package revocation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher downloads revocation material over HTTP with bounded retry.
// Authority endpoints flap; a failed fetch is retried with doubling
// backoff before the tier is given up on.
type Fetcher struct {
	client   *http.Client
	attempts int
	backoff  time.Duration
	maxBody  int64
}

// NewFetcher creates a Fetcher. timeout bounds each individual attempt.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		attempts: 3,
		backoff:  500 * time.Millisecond,
		maxBody:  16 << 20,
	}
}

// Get downloads url, retrying transient failures.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	return f.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

// Post sends body to url, retrying transient failures. Used for OCSP.
func (f *Fetcher) Post(ctx context.Context, url, contentType string, body []byte) ([]byte, error) {
	return f.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
}

func (f *Fetcher) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	backoff := f.backoff
	for attempt := 1; attempt <= f.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		body, err := f.once(req)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", f.attempts, lastErr)
}

func (f *Fetcher) once(req *http.Request) ([]byte, error) {
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", req.URL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
