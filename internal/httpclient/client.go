package httpclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "MediaMonitor/1.0"

// Options tunes the shared resty client.
type Options struct {
	Timeout    time.Duration
	RetryCount int
	UserAgent  string
}

// Client wraps resty for requests to feeds, search APIs and AI services.
type Client struct {
	r *resty.Client
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned %s", e.URL, e.Status)
	}
	return fmt.Sprintf("%s returned %s: %s", e.URL, e.Status, e.Body)
}

// New creates a client with sensible defaults.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	r := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("User-Agent", opts.UserAgent)

	return &Client{r: r}
}

// Request returns a new resty request bound to ctx.
func (c *Client) Request(ctx context.Context) *resty.Request {
	return c.r.R().SetContext(ctx)
}

// Get fetches url with optional query parameters and returns the body.
func (c *Client) Get(ctx context.Context, url string, query map[string]string) ([]byte, error) {
	req := c.Request(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	if err := CheckResponse(resp); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// CheckResponse converts non-2xx responses into a StatusError.
func CheckResponse(resp *resty.Response) error {
	if resp == nil || !resp.IsError() {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	if len(body) > 512 {
		body = body[:512]
	}
	return &StatusError{
		URL:        resp.Request.URL,
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Body:       body,
	}
}
