package pipeline

import (
	"fmt"

	"github.com/znz-systems/coldpipe/internal/contact"
	"github.com/znz-systems/coldpipe/internal/generate"
	"github.com/znz-systems/coldpipe/internal/smartlead"
)

var ordinals = [generate.SequenceLength]string{"One", "Two", "Three", "Four", "Five", "Six"}

// EmailFieldNames returns the custom field keys for email n, e.g.
// emailThreeSubject and emailThreeMessage.
func EmailFieldNames(n int) (subject, message string) {
	o := ordinals[n-1]
	return "email" + o + "Subject", "email" + o + "Message"
}

// BuildLead flattens a contact and its full email sequence into one lead.
func BuildLead(fields contact.Fields, email string, emails []generate.Email) (smartlead.Lead, error) {
	if len(emails) != generate.SequenceLength {
		return smartlead.Lead{}, fmt.Errorf("lead needs %d emails, have %d", generate.SequenceLength, len(emails))
	}

	custom := make(map[string]string, 2*generate.SequenceLength)
	for i, e := range emails {
		subjectKey, messageKey := EmailFieldNames(i + 1)
		custom[subjectKey] = e.Subject
		custom[messageKey] = e.Message
	}

	lead := smartlead.Lead{
		FirstName:       fields.FirstName(),
		LastName:        fields.LastName(),
		Email:           email,
		CompanyName:     fields.CompanyName(),
		Website:         fields.Website(),
		Location:        fields.Location(),
		CustomFields:    custom,
		LinkedinProfile: fields.LinkedinURL(),
		CompanyURL:      fields.Website(),
	}
	if phone := fields.Phone(); phone != "" {
		lead.PhoneNumber = &phone
	}
	return lead, nil
}
