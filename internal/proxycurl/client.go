// Package proxycurl fetches LinkedIn person profiles from Proxycurl.
package proxycurl

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/znz-systems/coldpipe/internal/apiclient"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://nubela.co/proxycurl/api"

var (
	ErrProfileNotFound = errors.New("proxycurl: profile not found")
	ErrInvalidProfile  = errors.New("proxycurl: invalid profile data")
	ErrInvalidURL      = errors.New("proxycurl: invalid linkedin profile url")
)

type Client struct {
	api     *apiclient.Client
	baseURL string
	apiKey  string
}

func NewClient(apiKey string, limiter *rate.Limiter) *Client {
	return &Client{
		api:     apiclient.New("proxycurl", limiter),
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
	}
}

// WithBaseURL points the client at another server. Used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Client) header() http.Header {
	return http.Header{"Authorization": {"Bearer " + c.apiKey}}
}

// Credits returns the account's remaining credit balance.
func (c *Client) Credits(ctx context.Context) (int64, error) {
	var resp struct {
		CreditBalance int64 `json:"credit_balance"`
	}
	if err := c.api.Do(ctx, "credit-balance", http.MethodGet, c.baseURL+"/credit-balance", c.header(), nil, &resp); err != nil {
		return 0, err
	}
	return resp.CreditBalance, nil
}

// FetchProfile looks up a person by LinkedIn URL. Definitive misses come back
// as ErrProfileNotFound and unusable bodies as ErrInvalidProfile; rate
// limiting and server failures are transient.
func (c *Client) FetchProfile(ctx context.Context, linkedinURL string) (*Profile, error) {
	u, err := url.Parse(linkedinURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, ErrInvalidURL
	}

	q := url.Values{
		"linkedin_profile_url": {linkedinURL},
		"extra":                {"include"},
		"skills":               {"include"},
	}

	var raw jsonBytes
	err = c.api.Do(ctx, "linkedin", http.MethodGet, c.baseURL+"/v2/linkedin?"+q.Encode(), c.header(), nil, &raw)
	switch {
	case err == nil:
	case apiclient.IsTransient(err):
		return nil, err
	case errors.Is(err, apiclient.ErrDecode):
		return nil, ErrInvalidProfile
	case apiclient.StatusCode(err) != 0:
		return nil, ErrProfileNotFound
	default:
		return nil, err
	}

	return ParseProfile(raw)
}

// jsonBytes captures a response body verbatim after checking it is JSON.
type jsonBytes []byte

func (b *jsonBytes) UnmarshalJSON(data []byte) error {
	*b = append((*b)[:0], data...)
	return nil
}
