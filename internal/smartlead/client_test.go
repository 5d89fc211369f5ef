package smartlead

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/znz-systems/coldpipe/internal/apiclient"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("sl-key", nil).WithBaseURL(srv.URL)
}

func TestUploadLeads(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/campaigns/77/leads", r.URL.Path)
		assert.Equal(t, "sl-key", r.URL.Query().Get("api_key"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))

		settings := body["settings"].(map[string]any)
		for _, k := range []string{
			"ignore_global_block_list",
			"ignore_unsubscribe_list",
			"ignore_community_bounce_list",
			"ignore_duplicate_leads_in_other_campaign",
		} {
			assert.Equal(t, false, settings[k], k)
		}
		leads := body["lead_list"].([]any)
		require.Len(t, leads, 1)
		lead := leads[0].(map[string]any)
		assert.Equal(t, "ada@example.com", lead["email"])
		assert.Equal(t, "Hi", lead["custom_fields"].(map[string]any)["emailOneSubject"])

		w.Write([]byte(`{"ok":true,"upload_count":1,"total_leads":1,"block_count":0,"duplicate_count":0,
			"invalid_email_count":0,"invalid_emails":[],"already_added_to_campaign":0,"unsubscribed_leads":[],
			"is_lead_limit_exhausted":false,"lead_import_stopped_count":0,"bounce_count":0}`))
	})

	res, err := c.UploadLeads(context.Background(), 77, []Lead{{
		FirstName:    "Ada",
		Email:        "ada@example.com",
		CustomFields: map[string]string{"emailOneSubject": "Hi"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UploadCount)
}

func TestUploadLeadsNotAcknowledged(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false}`))
	})

	_, err := c.UploadLeads(context.Background(), 77, []Lead{{Email: "ada@example.com"}})
	assert.Error(t, err)
}

func TestUploadLeadsServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.UploadLeads(context.Background(), 77, []Lead{{Email: "ada@example.com"}})
	require.Error(t, err)
	assert.True(t, apiclient.IsTransient(err))
}

func TestGetCampaign(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/campaigns/77", r.URL.Path)
		assert.Equal(t, "sl-key", r.URL.Query().Get("api_key"))
		w.Write([]byte(`{"id":77,"name":"Spring","status":"DRAFTED"}`))
	})

	campaign, err := c.GetCampaign(context.Background(), 77)
	require.NoError(t, err)
	assert.Equal(t, int64(77), campaign.ID)
	assert.Equal(t, StatusDrafted, campaign.Status)
}

func TestCreateCampaign(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/campaigns/create", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Spring", body["name"])
		assert.Contains(t, body, "client_id")
		assert.Nil(t, body["client_id"])
		w.Write([]byte(`{"ok":true,"id":9,"name":"Spring","created_at":"2024-01-01T00:00:00Z"}`))
	})

	created, err := c.CreateCampaign(context.Background(), "Spring")
	require.NoError(t, err)
	assert.Equal(t, int64(9), created.ID)
}

func TestGetCampaignNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetCampaign(context.Background(), 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
	assert.Equal(t, http.StatusNotFound, apiclient.StatusCode(err))
	assert.False(t, apiclient.IsTransient(err))
}

func TestGetCampaignEmptyBodyIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := c.GetCampaign(context.Background(), 5)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestGetCampaignServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetCampaign(context.Background(), 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCampaignNotFound)
	assert.True(t, apiclient.IsTransient(err))
}
