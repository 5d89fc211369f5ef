// Package neverbounce verifies email deliverability through the NeverBounce
// v4 API.
package neverbounce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/znz-systems/coldpipe/internal/apiclient"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.neverbounce.com/v4"

// Result codes returned by single/check.
const (
	ResultValid      = "valid"
	ResultInvalid    = "invalid"
	ResultDisposable = "disposable"
	ResultCatchall   = "catchall"
	ResultUnknown    = "unknown"
)

type Client struct {
	api     *apiclient.Client
	baseURL string
	apiKey  string
}

func NewClient(apiKey string, limiter *rate.Limiter) *Client {
	return &Client{
		api:     apiclient.New("neverbounce", limiter),
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
	}
}

// WithBaseURL points the client at another server. Used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type accountInfoResponse struct {
	envelope
	CreditsInfo struct {
		PaidCreditsUsed      int64 `json:"paid_credits_used"`
		FreeCreditsUsed      int64 `json:"free_credits_used"`
		PaidCreditsRemaining int64 `json:"paid_credits_remaining"`
		FreeCreditsRemaining int64 `json:"free_credits_remaining"`
	} `json:"credits_info"`
}

// CheckResponse is the outcome of a single verification.
type CheckResponse struct {
	envelope
	Result              string   `json:"result"`
	Flags               []string `json:"flags"`
	SuggestedCorrection string   `json:"suggested_correction"`
	ExecutionTime       int64    `json:"execution_time"`
}

// Valid reports whether the address is deliverable. Catch-all, disposable and
// unknown results are not treated as valid.
func (r *CheckResponse) Valid() bool {
	return r.Result == ResultValid
}

// Credits returns the remaining verification credits, paid and free combined.
func (c *Client) Credits(ctx context.Context) (int64, error) {
	q := url.Values{"key": {c.apiKey}}
	var resp accountInfoResponse
	if err := c.api.Do(ctx, "account/info", http.MethodGet, c.baseURL+"/account/info?"+q.Encode(), nil, nil, &resp); err != nil {
		return 0, err
	}
	if err := checkStatus("account/info", resp.envelope); err != nil {
		return 0, err
	}
	return resp.CreditsInfo.PaidCreditsRemaining + resp.CreditsInfo.FreeCreditsRemaining, nil
}

// Verify checks a single address.
func (c *Client) Verify(ctx context.Context, email string) (*CheckResponse, error) {
	q := url.Values{"key": {c.apiKey}, "email": {email}}
	var resp CheckResponse
	if err := c.api.Do(ctx, "single/check", http.MethodGet, c.baseURL+"/single/check?"+q.Encode(), nil, nil, &resp); err != nil {
		return nil, err
	}
	if err := checkStatus("single/check", resp.envelope); err != nil {
		return nil, err
	}
	if resp.Result == "" {
		return nil, fmt.Errorf("neverbounce: single/check returned no result")
	}
	return &resp, nil
}

// checkStatus turns a non-success envelope into an error. NeverBounce reports
// failures with HTTP 200 and a status string.
func checkStatus(op string, env envelope) error {
	if env.Status == "success" {
		return nil
	}
	err := &apiclient.APIError{
		Provider:   "neverbounce",
		Op:         op,
		StatusCode: http.StatusOK,
		Status:     env.Status,
		Snippet:    apiclient.Redact(env.Message),
	}
	switch env.Status {
	case "throttle_triggered", "temp_unavail":
		return &apiclient.TransientError{Err: err}
	}
	return err
}
