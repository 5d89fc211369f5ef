package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/znz-systems/coldpipe/internal/campaign"
	"github.com/znz-systems/coldpipe/internal/contact"
	"github.com/znz-systems/coldpipe/internal/generate"
	"github.com/znz-systems/coldpipe/internal/models"
	"github.com/znz-systems/coldpipe/internal/proxycurl"
)

// State is what a run knows after the steps completed so far. It is rebuilt
// from checkpoint outputs on every claim, so nothing outside those outputs
// may be relied on across attempts.
type State struct {
	RunID   uuid.UUID
	Payload []byte

	Contact    contact.Fields
	Email      string
	CampaignID string

	Campaign  *campaign.Resolution
	ContactID string
	Profile   *proxycurl.Profile
	Emails    []generate.Email
}

func newState(run *models.WorkflowRun) *State {
	return &State{RunID: run.ID, Payload: run.Payload}
}

// loadContact reads the current record so flag checks see other runs' writes.
func (s *State) loadContact(ctx context.Context, d *Deps) (*models.Contact, error) {
	if s.ContactID == "" {
		return nil, fmt.Errorf("contact not resolved")
	}
	c, err := d.Contacts.GetContactByID(ctx, s.ContactID)
	if err != nil {
		return nil, fmt.Errorf("load contact %s: %w", s.ContactID, err)
	}
	return c, nil
}
