package contact

import (
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a row.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", is.Field, is.Message))
	}
	return "invalid contact: " + strings.Join(parts, "; ")
}

var (
	requiredText  = []string{FirstName}
	optionalURLs  = []string{Website, CompanyLinkedinURL, FacebookURL, TwitterURL}
	optionalEmail = []string{ContactOwner, AccountOwner, SecondaryEmail, TertiaryEmail}
	optionalTimes = []string{EmailLastVerifiedAt, LastRaisedAt}
	optionalNums  = []string{Employees, AnnualRevenue, TotalFunding, LatestFundingAmount, RetailLocations}
)

// Validate checks the row against the contact schema. Only First Name, Email
// and Person Linkedin Url are required; typed optional columns are checked
// only when present.
func (f Fields) Validate() error {
	var issues []Issue
	add := func(field, msg string) {
		issues = append(issues, Issue{Field: field, Message: msg})
	}

	for _, k := range requiredText {
		if f[k] == "" {
			add(k, "is required")
		}
	}

	switch v := f[Email]; {
	case v == "":
		add(Email, "is required")
	case !ValidEmail(v):
		add(Email, "is not a valid email address")
	}

	switch v := f[PersonLinkedinURL]; {
	case v == "":
		add(PersonLinkedinURL, "is required")
	case !ValidURL(v):
		add(PersonLinkedinURL, "is not an absolute URL")
	}

	for _, k := range optionalURLs {
		if v := f[k]; v != "" && !ValidURL(v) {
			add(k, "is not an absolute URL")
		}
	}
	for _, k := range optionalEmail {
		if v := f[k]; v != "" && !ValidEmail(v) {
			add(k, "is not a valid email address")
		}
	}
	for _, k := range optionalTimes {
		if v := f[k]; v != "" {
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				add(k, "is not an RFC 3339 timestamp")
			}
		}
	}
	for _, k := range optionalNums {
		if v := f[k]; v != "" {
			if _, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64); err != nil {
				add(k, "is not a number")
			}
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// ValidEmail reports whether s is a bare address such as ada@example.com.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && addr.Name == ""
}

// ValidURL reports whether s is an absolute http(s) URL with a host.
func ValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
