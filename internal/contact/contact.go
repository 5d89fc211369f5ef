// Package contact models the sales-contact rows exported by Apollo and the
// rules a row must satisfy before it can enter the pipeline.
package contact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Column names used by the pipeline.
const (
	FirstName            = "First Name"
	LastName             = "Last Name"
	Title                = "Title"
	Company              = "Company"
	CompanyNameForEmails = "Company Name for Emails"
	Email                = "Email"
	Seniority            = "Seniority"
	Departments          = "Departments"
	MobilePhone          = "Mobile Phone"
	WorkDirectPhone      = "Work Direct Phone"
	CorporatePhone       = "Corporate Phone"
	HomePhone            = "Home Phone"
	OtherPhone           = "Other Phone"
	Employees            = "# Employees"
	Industry             = "Industry"
	Keywords             = "Keywords"
	PersonLinkedinURL    = "Person Linkedin Url"
	Website              = "Website"
	CompanyLinkedinURL   = "Company Linkedin Url"
	FacebookURL          = "Facebook Url"
	TwitterURL           = "Twitter Url"
	City                 = "City"
	State                = "State"
	Country              = "Country"
	SEODescription       = "SEO Description"
	Technologies         = "Technologies"
	AnnualRevenue        = "Annual Revenue"
	TotalFunding         = "Total Funding"
	LatestFundingAmount  = "Latest Funding Amount"
	RetailLocations      = "Number of Retail Locations"
	ContactOwner         = "Contact Owner"
	AccountOwner         = "Account Owner"
	SecondaryEmail       = "Secondary Email"
	TertiaryEmail        = "Tertiary Email"
	EmailLastVerifiedAt  = "Primary Email Last Verified At"
	LastRaisedAt         = "Last Raised At"
)

// Fields is one contact row keyed by column header. Values are trimmed and
// empty values are dropped, so a missing key and an empty cell read the same.
type Fields map[string]string

// FromRecord builds Fields from parallel header and value slices.
func FromRecord(headers, values []string) Fields {
	f := make(Fields, len(headers))
	for i, h := range headers {
		if i >= len(values) {
			break
		}
		f.set(h, values[i])
	}
	return f
}

func (f Fields) set(key, value string) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	f[key] = value
}

func (f Fields) Get(key string) string {
	return f[key]
}

// UnmarshalJSON accepts a flat object of scalars. Numbers and booleans are
// kept in their textual form; nested values are rejected.
func (f *Fields) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("contact must be a JSON object: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("contact must be a JSON object")
	}
	out := make(Fields, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		switch {
		case len(v) == 0 || bytes.Equal(v, []byte("null")):
		case v[0] == '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("field %q: %w", k, err)
			}
			out.set(k, s)
		case v[0] == '{' || v[0] == '[':
			return fmt.Errorf("field %q must be a scalar", k)
		default:
			out.set(k, string(v))
		}
	}
	*f = out
	return nil
}

// Keys returns the populated columns in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f Fields) FirstName() string   { return f[FirstName] }
func (f Fields) LastName() string    { return f[LastName] }
func (f Fields) Email() string       { return f[Email] }
func (f Fields) LinkedinURL() string { return f[PersonLinkedinURL] }
func (f Fields) Title() string       { return f[Title] }
func (f Fields) Website() string     { return f[Website] }

// NormalizedEmail is the key contacts are stored under.
func (f Fields) NormalizedEmail() string {
	return NormalizeEmail(f[Email])
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FullName joins first and last name.
func (f Fields) FullName() string {
	return strings.TrimSpace(f[FirstName] + " " + f[LastName])
}

// Phone returns the first populated phone column, preferring direct lines.
func (f Fields) Phone() string {
	return f.first(MobilePhone, WorkDirectPhone, CorporatePhone, HomePhone, OtherPhone)
}

// CompanyName prefers the name Apollo suggests for use in emails.
func (f Fields) CompanyName() string {
	return f.first(CompanyNameForEmails, Company)
}

// Location joins city, state and country, skipping blanks.
func (f Fields) Location() string {
	var parts []string
	for _, k := range []string{City, State, Country} {
		if v := f[k]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// Employees returns the head count, or 0 when absent or unparsable.
func (f Fields) Employees() int {
	n, _ := strconv.Atoi(strings.ReplaceAll(f[Employees], ",", ""))
	return n
}

func (f Fields) first(keys ...string) string {
	for _, k := range keys {
		if v := f[k]; v != "" {
			return v
		}
	}
	return ""
}
