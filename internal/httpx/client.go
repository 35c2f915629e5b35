// Package httpx holds the HTTP plumbing shared by the source and destination
// cloud clients: client construction with a cookie jar, bounded response
// reading, and a retry wrapper for transient failures.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	// DefaultTimeout bounds a single request attempt.
	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 4 << 20

	retryBase  = 500 * time.Millisecond
	maxRetries = 3
)

// NewClient builds an HTTP client with a cookie jar. Both cloud APIs carry
// session state in cookies, so the jar is load-bearing, not a convenience.
func NewClient() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &http.Client{Jar: jar, Timeout: DefaultTimeout}, nil
}

// ReadBody drains and returns the response body with a size cap, always
// closing it.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}

// DoWithRetry executes the request produced by build, retrying network
// failures and 5xx responses with fibonacci backoff. build is invoked per
// attempt so request bodies are replayed from scratch. The caller owns the
// returned response body.
func DoWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response

	backoff := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := build()
		if err != nil {
			return err
		}

		r, err := client.Do(req.WithContext(ctx))
		if err != nil {
			return retry.RetryableError(err)
		}
		if r.StatusCode >= http.StatusInternalServerError {
			r.Body.Close()
			return retry.RetryableError(fmt.Errorf("server error: %s", r.Status))
		}

		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
