package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/znz-systems/coldpipe/internal/campaign"
	"github.com/znz-systems/coldpipe/internal/contact"
	"github.com/znz-systems/coldpipe/internal/generate"
	"github.com/znz-systems/coldpipe/internal/models"
	"github.com/znz-systems/coldpipe/internal/proxycurl"
	"github.com/znz-systems/coldpipe/internal/smartlead"
	"github.com/znz-systems/coldpipe/internal/store"
)

// Step names double as durable checkpoint keys. Renaming one orphans the
// checkpoints of in-flight runs.
const (
	StepValidateInput   = "validate-input"
	StepResolveCampaign = "resolve-campaign"
	StepResolveContact  = "resolve-contact"
	StepVerifyEmail     = "verify-email"
	StepEnrichProfile   = "enrich-profile"
	StepSyncLead        = "sync-lead"
)

func GenerateStepName(n int) string {
	return fmt.Sprintf("generate-email-%d", n)
}

// Step is one named unit of a run. Run does the work; Apply folds the
// checkpointed output of a completed run back into State, both right after
// Run and when a later claim resumes the run.
type Step struct {
	Name   string
	Policy RetryPolicy
	Run    func(ctx context.Context, d *Deps, s *State) (Result, error)
	Apply  func(s *State, output json.RawMessage) error

	// OnExhausted, when set, turns a spent retry budget into a result
	// instead of failing the run.
	OnExhausted func(s *State, lastErr error) Result
}

// Steps returns the fixed step order of a run.
func Steps() []Step {
	steps := []Step{
		{Name: StepValidateInput, Policy: LightPolicy, Run: validateInput, Apply: applyInput},
		{Name: StepResolveCampaign, Policy: ExternalPolicy, Run: resolveCampaign, Apply: applyCampaign},
		{Name: StepResolveContact, Policy: LightPolicy, Run: resolveContact, Apply: applyContact},
		{Name: StepVerifyEmail, Policy: ExternalPolicy, Run: verifyEmail, Apply: applyNothing},
		{Name: StepEnrichProfile, Policy: SlowPolicy, Run: enrichProfile, Apply: applyProfile, OnExhausted: degradeProfile},
	}
	for n := 1; n <= generate.SequenceLength; n++ {
		steps = append(steps, Step{
			Name:   GenerateStepName(n),
			Policy: SlowPolicy,
			Run:    generateEmail(n),
			Apply:  applyEmail(n),
		})
	}
	steps = append(steps, Step{Name: StepSyncLead, Policy: ExternalPolicy, Run: syncLead, Apply: applyNothing})
	return steps
}

func applyNothing(*State, json.RawMessage) error { return nil }

type inputOutput struct {
	Contact    contact.Fields `json:"contact"`
	Email      string         `json:"email"`
	CampaignID string         `json:"campaignId"`
}

func validateInput(_ context.Context, _ *Deps, s *State) (Result, error) {
	t, err := DecodeTrigger(s.Payload)
	if err != nil {
		return StopFatal("malformed trigger payload: " + err.Error()), nil
	}
	if t.CampaignID == "" {
		return StopFatal("trigger has no campaignId"), nil
	}
	if err := t.Contact.Validate(); err != nil {
		return StopFatal(err.Error()), nil
	}
	if t.ContactEmail != t.Contact.NormalizedEmail() {
		return StopFatal(fmt.Sprintf("contactEmail %q does not match contact Email %q", t.ContactEmail, t.Contact.Email())), nil
	}
	return Continue(inputOutput{Contact: t.Contact, Email: t.ContactEmail, CampaignID: t.CampaignID}), nil
}

func applyInput(s *State, output json.RawMessage) error {
	var out inputOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return err
	}
	s.Contact = out.Contact
	s.Email = out.Email
	s.CampaignID = out.CampaignID
	return nil
}

func resolveCampaign(ctx context.Context, d *Deps, s *State) (Result, error) {
	res, err := d.Campaigns.Resolve(ctx, s.CampaignID)
	if err != nil {
		if campaign.IsFatal(err) {
			return StopFatal(err.Error()), nil
		}
		return Result{}, err
	}
	return Continue(res), nil
}

func applyCampaign(s *State, output json.RawMessage) error {
	var res campaign.Resolution
	if err := json.Unmarshal(output, &res); err != nil {
		return err
	}
	s.Campaign = &res
	return nil
}

type contactOutput struct {
	ContactID string `json:"contactId"`
	Created   bool   `json:"created"`
}

func resolveContact(ctx context.Context, d *Deps, s *State) (Result, error) {
	c, err := d.Contacts.GetContactByEmail(ctx, s.Email)
	if err == nil {
		return gateContact(c), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Result{}, fmt.Errorf("find contact: %w", err)
	}

	raw, err := json.Marshal(s.Contact)
	if err != nil {
		return StopFatal("encode contact: " + err.Error()), nil
	}
	c, err = d.Contacts.CreateContact(ctx, models.ContactCreateParams{
		Email:       s.Email,
		LinkedinURL: s.Contact.LinkedinURL(),
		ContactJSON: raw,
	})
	if errors.Is(err, store.ErrConflict) {
		// Another run created it between the lookup and the insert.
		c, err = d.Contacts.GetContactByEmail(ctx, s.Email)
		if err != nil {
			return Result{}, fmt.Errorf("find contact after conflict: %w", err)
		}
		return gateContact(c), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("create contact: %w", err)
	}
	return Continue(contactOutput{ContactID: c.ID, Created: true}), nil
}

// gateContact decides whether an existing contact still needs work.
func gateContact(c *models.Contact) Result {
	switch {
	case c.FullyProcessed():
		return StopSuccess("contact already fully processed")
	case c.KnownInvalid():
		return StopSuccess("contact email previously verified as invalid")
	}
	return Continue(contactOutput{ContactID: c.ID})
}

func applyContact(s *State, output json.RawMessage) error {
	var out contactOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return err
	}
	s.ContactID = out.ContactID
	return nil
}

type verifyOutput struct {
	Valid  bool   `json:"valid"`
	Result string `json:"result"`
	Reused bool   `json:"reused,omitempty"`
}

func verifyEmail(ctx context.Context, d *Deps, s *State) (Result, error) {
	c, err := s.loadContact(ctx, d)
	if err != nil {
		return Result{}, err
	}
	if c.EmailHasBeenChecked && c.EmailIsValid {
		return Continue(verifyOutput{Valid: true, Result: "valid", Reused: true}), nil
	}

	credits, err := d.Verifier.Credits(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read verification credits: %w", err)
	}
	if credits <= 0 {
		return StopFatal("no email verification credits remaining"), nil
	}

	resp, err := d.Verifier.Verify(ctx, s.Email)
	if err != nil {
		return Result{}, fmt.Errorf("verify email: %w", err)
	}
	valid := resp.Valid()
	if err := d.Contacts.UpdateContact(ctx, c.ID, models.ContactUpdate{
		EmailHasBeenChecked: true,
		EmailIsValid:        &valid,
	}); err != nil {
		return Result{}, fmt.Errorf("record verification: %w", err)
	}
	if !valid {
		return StopFatal(fmt.Sprintf("email %s failed verification: %s", s.Email, resp.Result)), nil
	}
	return Continue(verifyOutput{Valid: true, Result: resp.Result}), nil
}

const (
	profileStored  = "stored"
	profileFetched = "fetched"
	profileNone    = "none"
)

type profileOutput struct {
	Source  string          `json:"source"`
	Reason  string          `json:"reason,omitempty"`
	Profile json.RawMessage `json:"profile"`
}

func noProfile(reason string) Result {
	return Continue(profileOutput{Source: profileNone, Reason: reason})
}

func enrichProfile(ctx context.Context, d *Deps, s *State) (Result, error) {
	c, err := s.loadContact(ctx, d)
	if err != nil {
		return Result{}, err
	}
	if len(c.ProfileJSON) > 0 {
		if p, err := proxycurl.ParseProfile(c.ProfileJSON); err == nil {
			return Continue(profileOutput{Source: profileStored, Profile: p.Raw}), nil
		}
		slog.Warn("stored profile unreadable, fetching again", "run_id", s.RunID, "contact_id", c.ID)
	}

	credits, err := d.Enricher.Credits(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read enrichment credits: %w", err)
	}
	if credits <= 0 {
		return noProfile("no enrichment credits remaining"), nil
	}

	p, err := d.Enricher.FetchProfile(ctx, c.LinkedinURL)
	switch {
	case errors.Is(err, proxycurl.ErrProfileNotFound),
		errors.Is(err, proxycurl.ErrInvalidProfile),
		errors.Is(err, proxycurl.ErrInvalidURL):
		return noProfile(err.Error()), nil
	case err != nil:
		return Result{}, fmt.Errorf("fetch profile: %w", err)
	}

	if err := d.Contacts.UpdateContact(ctx, c.ID, models.ContactUpdate{
		ProfileJSON:            p.Raw,
		LinkedinProfileFetched: true,
	}); err != nil {
		return Result{}, fmt.Errorf("store profile: %w", err)
	}
	return Continue(profileOutput{Source: profileFetched, Profile: p.Raw}), nil
}

func degradeProfile(_ *State, lastErr error) Result {
	return noProfile("enrichment unavailable: " + lastErr.Error())
}

func applyProfile(s *State, output json.RawMessage) error {
	var out profileOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return err
	}
	s.Profile = nil
	if len(out.Profile) == 0 || bytes.Equal(out.Profile, []byte("null")) {
		return nil
	}
	p, err := proxycurl.ParseProfile(out.Profile)
	if err != nil {
		return err
	}
	s.Profile = p
	return nil
}

// generateEmail drafts email n from emails 1..n-1. An email already stored
// for this contact and campaign is reused so a re-delivered contact keeps a
// coherent sequence.
func generateEmail(n int) func(ctx context.Context, d *Deps, s *State) (Result, error) {
	return func(ctx context.Context, d *Deps, s *State) (Result, error) {
		if len(s.Emails) != n-1 {
			return StopFatal(fmt.Sprintf("email %d needs %d earlier emails, have %d", n, n-1, len(s.Emails))), nil
		}

		existing, err := d.Emails.ListGeneratedEmails(ctx, s.ContactID, s.Campaign.InternalCampaignID)
		if err != nil {
			return Result{}, fmt.Errorf("list generated emails: %w", err)
		}
		var email *generate.Email
		for _, e := range existing {
			if e.SequenceNumber == n {
				email = &generate.Email{Subject: e.Subject, Message: e.Message}
				break
			}
		}

		if email == nil {
			drafted, err := d.Generator.Generate(ctx, generate.Request{
				Contact:        s.Contact,
				Profile:        s.Profile,
				SequenceNumber: n,
				Previous:       append([]generate.Email(nil), s.Emails...),
			})
			if err != nil {
				return Result{}, fmt.Errorf("generate email %d: %w", n, err)
			}
			stored, err := d.Emails.CreateGeneratedEmail(ctx, models.GeneratedEmailCreateParams{
				ContactID:      s.ContactID,
				CampaignID:     s.Campaign.InternalCampaignID,
				SequenceNumber: n,
				Subject:        drafted.Subject,
				Message:        drafted.Message,
			})
			if err != nil {
				return Result{}, fmt.Errorf("store email %d: %w", n, err)
			}
			email = &generate.Email{Subject: stored.Subject, Message: stored.Message}
		}

		if n == generate.SequenceLength {
			if err := d.Contacts.UpdateContact(ctx, s.ContactID, models.ContactUpdate{EmailsWritten: true}); err != nil {
				return Result{}, fmt.Errorf("mark emails written: %w", err)
			}
		}
		return Continue(email), nil
	}
}

func applyEmail(n int) func(s *State, output json.RawMessage) error {
	return func(s *State, output json.RawMessage) error {
		if len(s.Emails) != n-1 {
			return fmt.Errorf("restoring email %d with %d earlier emails", n, len(s.Emails))
		}
		var e generate.Email
		if err := json.Unmarshal(output, &e); err != nil {
			return err
		}
		s.Emails = append(s.Emails, e)
		return nil
	}
}

type syncOutput struct {
	Skipped     bool `json:"skipped,omitempty"`
	UploadCount int  `json:"uploadCount"`
	Duplicates  int  `json:"duplicateCount"`
	Blocked     int  `json:"blockCount"`
}

func syncLead(ctx context.Context, d *Deps, s *State) (Result, error) {
	c, err := s.loadContact(ctx, d)
	if err != nil {
		return Result{}, err
	}
	if c.SyncedToSmartlead {
		return Continue(syncOutput{Skipped: true}), nil
	}

	lead, err := BuildLead(s.Contact, c.Email, s.Emails)
	if err != nil {
		return StopFatal(err.Error()), nil
	}
	res, err := d.Leads.UploadLeads(ctx, s.Campaign.ExternalCampaignID, []smartlead.Lead{lead})
	if err != nil {
		return Result{}, fmt.Errorf("upload lead: %w", err)
	}
	if err := d.Contacts.UpdateContact(ctx, c.ID, models.ContactUpdate{SyncedToSmartlead: true}); err != nil {
		return Result{}, fmt.Errorf("mark synced: %w", err)
	}
	return Continue(syncOutput{
		UploadCount: res.UploadCount,
		Duplicates:  res.DuplicateCount,
		Blocked:     res.BlockCount,
	}), nil
}
