package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const maxResponseBytes = 4 << 20

// Client is a small JSON-over-HTTP helper shared by the provider clients. Every
// request waits on the provider's limiter before it is sent.
type Client struct {
	Provider   string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

func New(provider string, limiter *rate.Limiter) *Client {
	return &Client{
		Provider:   provider,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Limiter:    limiter,
	}
}

// Do sends method url with an optional JSON body and decodes a 2xx response
// into out. Non-2xx responses become *APIError; rate limiting, 5xx and network
// failures are wrapped in *TransientError.
func (c *Client) Do(ctx context.Context, op, method, url string, header http.Header, body, out any) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode %s request: %w", c.Provider, op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s: build %s request: %w", c.Provider, op, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientError{Err: fmt.Errorf("%s: %s: %s", c.Provider, op, Redact(err.Error()))}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransientError{Err: fmt.Errorf("%s: read %s response: %w", c.Provider, op, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(&APIError{
			Provider:   c.Provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Snippet:    snippet(respBody),
		})
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrDecode, c.Provider, op, err)
	}
	return nil
}
