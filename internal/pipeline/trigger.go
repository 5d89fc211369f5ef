package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/znz-systems/coldpipe/internal/contact"
)

// Trigger is the message that starts one workflow run.
type Trigger struct {
	Contact      contact.Fields `json:"contact"`
	ContactEmail string         `json:"contactEmail"`
	CampaignID   string         `json:"campaignId"`
}

func (t *Trigger) Normalize() {
	t.CampaignID = strings.TrimSpace(t.CampaignID)
	t.ContactEmail = contact.NormalizeEmail(t.ContactEmail)
	if t.ContactEmail == "" && t.Contact != nil {
		t.ContactEmail = t.Contact.NormalizedEmail()
	}
}

// IsUsable reports whether the trigger names a contact and a campaign. It
// does not validate the contact itself; that is the first step's job.
func (t Trigger) IsUsable() bool {
	return t.CampaignID != "" && t.ContactEmail != "" && len(t.Contact) > 0
}

// DecodeTrigger parses and normalizes a trigger payload.
func DecodeTrigger(data []byte) (Trigger, error) {
	var t Trigger
	if err := json.Unmarshal(data, &t); err != nil {
		return Trigger{}, err
	}
	t.Normalize()
	return t, nil
}
