package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/tpepels/tidal-ui-sub001/internal/errors"
)

const defaultTimeout = 2 * time.Minute

// Response is the result of a successful fetch. ContentLength is -1 when
// the server did not report a size.
type Response struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
}

// Client fetches catalog media over HTTP with a request timeout and
// exponential-backoff retry on transient failures. Retry wraps connection
// setup and response status only; an interrupted body read surfaces to the
// caller as a plain read error.
type Client struct {
	http  *http.Client
	retry *apperrors.RetryConfig
}

// New creates a new transport client. A zero timeout uses the default.
func New(timeout time.Duration, retry *apperrors.RetryConfig) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if retry == nil {
		retry = apperrors.TransportRetryConfig()
	}
	return &Client{
		http:  &http.Client{Timeout: timeout},
		retry: retry,
	}
}

// Fetch performs a GET against url, retrying transient failures.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	return apperrors.RetryWithResult(ctx, c.retry, func(ctx context.Context) (*Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			if apperrors.HTTPRetryableStatus(resp.StatusCode) {
				// Message includes the status so the retry layer sees it as transient.
				return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
			}
			return nil, fmt.Errorf("fetch %s: server returned status %d", url, resp.StatusCode)
		}

		return &Response{
			Body:          resp.Body,
			ContentLength: resp.ContentLength,
			ContentType:   resp.Header.Get("Content-Type"),
		}, nil
	})
}
