// Package smartlead talks to the Smartlead campaign API.
package smartlead

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/znz-systems/coldpipe/internal/apiclient"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://server.smartlead.ai/api/v1"

var ErrCampaignNotFound = errors.New("smartlead: campaign not found")

type Client struct {
	api     *apiclient.Client
	baseURL string
	apiKey  string
}

func NewClient(apiKey string, limiter *rate.Limiter) *Client {
	return &Client{
		api:     apiclient.New("smartlead", limiter),
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
	}
}

// WithBaseURL points the client at another server. Used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path + "?" + url.Values{"api_key": {c.apiKey}}.Encode()
}

func campaignPath(id int64) string {
	return "/campaigns/" + strconv.FormatInt(id, 10)
}

// UploadLeads adds leads to a campaign. Block lists, unsubscribes and
// duplicate checks stay enforced.
func (c *Client) UploadLeads(ctx context.Context, campaignID int64, leads []Lead) (*UploadResult, error) {
	body := uploadRequest{LeadList: leads}
	var result UploadResult
	if err := c.api.Do(ctx, "upload leads", http.MethodPost, c.endpoint(campaignPath(campaignID)+"/leads"), nil, body, &result); err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, fmt.Errorf("smartlead: upload to campaign %d not acknowledged", campaignID)
	}
	return &result, nil
}

// GetCampaign loads one campaign. A missing campaign is reported as
// ErrCampaignNotFound.
func (c *Client) GetCampaign(ctx context.Context, id int64) (*Campaign, error) {
	var campaign Campaign
	err := c.api.Do(ctx, "get campaign", http.MethodGet, c.endpoint(campaignPath(id)), nil, nil, &campaign)
	switch {
	case err == nil:
	case apiclient.StatusCode(err) == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %d: %w", ErrCampaignNotFound, id, err)
	default:
		return nil, err
	}
	if campaign.ID == 0 {
		return nil, fmt.Errorf("%w: %d", ErrCampaignNotFound, id)
	}
	return &campaign, nil
}

func (c *Client) CreateCampaign(ctx context.Context, name string) (*CreatedCampaign, error) {
	body := struct {
		Name     string `json:"name,omitempty"`
		ClientID *int64 `json:"client_id"`
	}{Name: name}
	var created CreatedCampaign
	if err := c.api.Do(ctx, "create campaign", http.MethodPost, c.endpoint("/campaigns/create"), nil, body, &created); err != nil {
		return nil, err
	}
	if !created.OK {
		return nil, fmt.Errorf("smartlead: create campaign %q not acknowledged", name)
	}
	return &created, nil
}

func (c *Client) DeleteCampaign(ctx context.Context, id int64) error {
	var resp struct {
		OK bool `json:"ok"`
	}
	if err := c.api.Do(ctx, "delete campaign", http.MethodDelete, c.endpoint(campaignPath(id)), nil, nil, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("smartlead: delete campaign %d not acknowledged", id)
	}
	return nil
}
