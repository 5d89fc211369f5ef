package generate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/znz-systems/coldpipe/internal/apiclient"
	"github.com/znz-systems/coldpipe/internal/contact"
	"github.com/znz-systems/coldpipe/internal/proxycurl"
	"google.golang.org/genai"
)

type tempNetErr struct{}

func (tempNetErr) Error() string   { return "temp net err" }
func (tempNetErr) Timeout() bool   { return false }
func (tempNetErr) Temporary() bool { return true }

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name          string
		in            error
		wantTransient bool
	}{
		{name: "api_429", in: genai.APIError{Code: 429}, wantTransient: true},
		{name: "api_503", in: genai.APIError{Code: 503}, wantTransient: true},
		{name: "api_400", in: genai.APIError{Code: 400}, wantTransient: false},
		{name: "net_temporary", in: tempNetErr{}, wantTransient: true},
		{name: "plain", in: errors.New("boom"), wantTransient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyErr(tt.in)
			if apiclient.IsTransient(got) != tt.wantTransient {
				t.Fatalf("transient=%v want=%v (err=%T %v)", !tt.wantTransient, tt.wantTransient, got, got)
			}
		})
	}
}

func TestParseEmail(t *testing.T) {
	e, err := parseEmail(`{"subject":" Hello ","message":"Body"}`)
	require.NoError(t, err)
	assert.Equal(t, Email{Subject: "Hello", Message: "Body"}, e)

	_, err = parseEmail(`{"subject":"","message":"Body"}`)
	assert.ErrorIs(t, err, ErrEmptyEmail)

	_, err = parseEmail(`not json`)
	assert.Error(t, err)
}

func TestRequestValidate(t *testing.T) {
	assert.Error(t, Request{SequenceNumber: 0}.validate())
	assert.Error(t, Request{SequenceNumber: 7, Previous: make([]Email, 6)}.validate())
	assert.Error(t, Request{SequenceNumber: 3, Previous: make([]Email, 1)}.validate())
	assert.NoError(t, Request{SequenceNumber: 3, Previous: make([]Email, 2)}.validate())
}

func TestBuildPromptIncludesHistoryInOrder(t *testing.T) {
	req := Request{
		Contact: contact.Fields{
			contact.FirstName: "Ada",
			contact.Company:   "Engines",
			contact.Title:     "CTO",
		},
		SequenceNumber: 3,
		Previous: []Email{
			{Subject: "first subject", Message: "first body"},
			{Subject: "second subject", Message: "second body"},
		},
	}

	p := buildPrompt("Acme Consulting", req)
	assert.Contains(t, p, "email 3 of 6")
	assert.Contains(t, p, "Acme Consulting")
	assert.Contains(t, p, "Title: CTO")
	first := strings.Index(p, "first subject")
	second := strings.Index(p, "second subject")
	require.True(t, first >= 0 && second >= 0)
	assert.Less(t, first, second)
	assert.NotContains(t, p, "LINKEDIN PROFILE")
}

func TestBuildPromptWithProfile(t *testing.T) {
	summary := "Builds analytical engines"
	req := Request{
		Contact:        contact.Fields{contact.FirstName: "Ada"},
		Profile:        &proxycurl.Profile{Summary: &summary, Skills: []string{"math", "poetry"}},
		SequenceNumber: 1,
	}

	p := buildPrompt("", req)
	assert.Contains(t, p, "LINKEDIN PROFILE")
	assert.Contains(t, p, summary)
	assert.Contains(t, p, "math, poetry")
	assert.Contains(t, p, "No earlier emails")
}
