// Package httpds implements the HTTP dataset source: a download client that
// retries transient failures, and a datasource.Source over the emissions
// archive that can keep a cached copy on disk between runs.
package httpds

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// UserAgent is sent unless the caller overrides it.
const UserAgent = "echoair-dataset-fetch/1"

// Config configures the download client. Zero values take defaults: 60s
// timeout, no retries, 200ms first backoff, 5s backoff cap.
type Config struct {
	// Timeout bounds a whole attempt including the body transfer. Dataset
	// archives are tens of megabytes.
	Timeout time.Duration

	// MaxRetries is the number of attempts after the first.
	MaxRetries int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	InsecureSkipVerify bool

	// Header is added to every request.
	Header http.Header

	// Transport replaces the default transport; tests inject fakes here.
	Transport http.RoundTripper
}

// Client downloads with retry on transport errors, 429 and 5xx.
type Client struct {
	http    *http.Client
	retries int
	first   time.Duration
	ceiling time.Duration
	header  http.Header

	// wait sleeps between attempts; tests replace it to observe backoff.
	wait func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) *Client {
	c := &Client{
		retries: max(cfg.MaxRetries, 0),
		first:   cfg.InitialBackoff,
		ceiling: cfg.MaxBackoff,
		header:  cfg.Header.Clone(),
		wait:    sleep,
	}
	if c.first <= 0 {
		c.first = 200 * time.Millisecond
	}
	if c.ceiling <= 0 {
		c.ceiling = 5 * time.Second
	}
	if c.header == nil {
		c.header = http.Header{}
	}
	if c.header.Get("User-Agent") == "" {
		c.header.Set("User-Agent", UserAgent)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	rt := cfg.Transport
	if rt == nil {
		rt = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // opt-in
		}
	}
	c.http = &http.Client{Timeout: timeout, Transport: rt}
	return c
}

// StatusError is a non-success response that ended the download.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpds: GET %s: status %d", e.URL, e.Code)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Get fetches url. A 2xx response is returned open; the caller closes its
// body. Other statuses become a *StatusError. Transient failures are retried
// with exponential backoff, honoring Retry-After when the server sends one.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	if url == "" {
		return nil, errors.New("httpds: empty url")
	}
	var err error
	for attempt := 0; ; attempt++ {
		var resp *http.Response
		var hint time.Duration
		resp, hint, err = c.try(ctx, url)
		if err == nil {
			return resp, nil
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return nil, err
		}
		if ctx.Err() != nil || attempt >= c.retries {
			break
		}
		d := c.backoff(attempt)
		if hint > 0 {
			d = min(hint, c.ceiling)
		}
		if werr := c.wait(ctx, d); werr != nil {
			return nil, werr
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, err
}

// try makes one attempt. On a non-2xx status the body is closed and the
// Retry-After hint, if any, is returned.
func (c *Client) try(ctx context.Context, url string) (*http.Response, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("httpds: build request: %w", err)
	}
	req.Header = c.header.Clone()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, 0, nil
	}
	resp.Body.Close()
	return nil, retryAfter(resp.Header.Get("Retry-After")), &StatusError{URL: url, Code: resp.StatusCode}
}

// backoff doubles from the first delay per attempt, capped at the ceiling.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.first
	for i := 0; i < attempt && d < c.ceiling; i++ {
		d *= 2
	}
	return min(d, c.ceiling)
}

// retryAfter parses the delta-seconds form of Retry-After.
func retryAfter(v string) time.Duration {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
