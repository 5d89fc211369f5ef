package pipeline

import (
	"context"

	"github.com/znz-systems/coldpipe/internal/campaign"
	"github.com/znz-systems/coldpipe/internal/generate"
	"github.com/znz-systems/coldpipe/internal/metrics"
	"github.com/znz-systems/coldpipe/internal/neverbounce"
	"github.com/znz-systems/coldpipe/internal/proxycurl"
	"github.com/znz-systems/coldpipe/internal/smartlead"
	"github.com/znz-systems/coldpipe/internal/store"
)

type CampaignResolver interface {
	Resolve(ctx context.Context, internalID string) (*campaign.Resolution, error)
}

type EmailVerifier interface {
	Credits(ctx context.Context) (int64, error)
	Verify(ctx context.Context, email string) (*neverbounce.CheckResponse, error)
}

type ProfileEnricher interface {
	Credits(ctx context.Context) (int64, error)
	FetchProfile(ctx context.Context, linkedinURL string) (*proxycurl.Profile, error)
}

type EmailGenerator interface {
	Generate(ctx context.Context, req generate.Request) (generate.Email, error)
}

type LeadUploader interface {
	UploadLeads(ctx context.Context, campaignID int64, leads []smartlead.Lead) (*smartlead.UploadResult, error)
}

// Deps holds every collaborator the steps use.
type Deps struct {
	Runs      store.WorkflowRunStore
	Contacts  store.ContactStore
	Emails    store.GeneratedEmailStore
	Campaigns CampaignResolver
	Verifier  EmailVerifier
	Enricher  ProfileEnricher
	Generator EmailGenerator
	Leads     LeadUploader
	Metrics   *metrics.Metrics
}
