package generate

import (
	"fmt"
	"strings"

	"github.com/znz-systems/coldpipe/internal/contact"
	"github.com/znz-systems/coldpipe/internal/proxycurl"
)

var sequenceGoals = [SequenceLength]string{
	"Introduce yourself and open with one specific, relevant observation about the recipient.",
	"Follow up with a concrete way you could help, without repeating the first email.",
	"Share a short example of a similar company you have helped.",
	"Try a different angle the earlier emails did not use.",
	"Send a brief, friendly nudge of two or three sentences.",
	"Close the loop politely and leave the door open.",
}

var contactContextFields = []string{
	contact.Title,
	contact.Seniority,
	contact.Departments,
	contact.Industry,
	contact.Keywords,
	contact.Employees,
	contact.SEODescription,
	contact.Technologies,
}

func buildPrompt(sender string, req Request) string {
	var b strings.Builder

	b.WriteString("You write short, plain-text B2B outreach emails.\n")
	if sender != "" {
		fmt.Fprintf(&b, "You are writing on behalf of: %s\n", sender)
	}
	fmt.Fprintf(&b, "\nThis is email %d of %d in the sequence. Goal: %s\n",
		req.SequenceNumber, SequenceLength, sequenceGoals[req.SequenceNumber-1])

	b.WriteString("\nRECIPIENT:\n")
	writeField(&b, "Name", req.Contact.FullName())
	writeField(&b, "Company", req.Contact.CompanyName())
	writeField(&b, "Location", req.Contact.Location())
	writeField(&b, "Website", req.Contact.Website())
	for _, k := range contactContextFields {
		writeField(&b, k, req.Contact.Get(k))
	}

	if req.Profile != nil {
		b.WriteString("\nLINKEDIN PROFILE:\n")
		writeProfile(&b, req.Profile)
	}

	if len(req.Previous) == 0 {
		b.WriteString("\nNo earlier emails have been sent to this person.\n")
	} else {
		b.WriteString("\nEARLIER EMAILS IN THIS SEQUENCE:\n")
		for i, e := range req.Previous {
			fmt.Fprintf(&b, "--- Email %d ---\nSubject: %s\n%s\n", i+1, e.Subject, e.Message)
		}
	}

	b.WriteString(`
Rules:
- Return a JSON object with "subject" and "message".
- Do not repeat points already made in earlier emails.
- No placeholders, no signature block, under 150 words.
`)
	return b.String()
}

func writeProfile(b *strings.Builder, p *proxycurl.Profile) {
	writeField(b, "Headline", deref(p.Headline))
	writeField(b, "Summary", deref(p.Summary))
	if title, company := p.CurrentRole(); title != "" || company != "" {
		writeField(b, "Current role", strings.TrimSpace(title+" at "+company))
	}
	var schools []string
	for _, e := range p.Education {
		s := strings.TrimSpace(strings.Join([]string{deref(e.DegreeName), deref(e.FieldOfStudy), deref(e.School)}, " "))
		if s != "" {
			schools = append(schools, s)
		}
	}
	writeField(b, "Education", strings.Join(schools, "; "))
	writeField(b, "Skills", strings.Join(p.Skills, ", "))
}

func writeField(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
