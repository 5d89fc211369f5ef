// Package generate drafts outreach emails with Gemini structured output.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/znz-systems/coldpipe/internal/apiclient"
	"github.com/znz-systems/coldpipe/internal/contact"
	"github.com/znz-systems/coldpipe/internal/proxycurl"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// SequenceLength is the number of emails in an outreach sequence.
const SequenceLength = 6

var ErrEmptyEmail = errors.New("generate: model returned an empty subject or message")

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	// Sender describes who the emails are written on behalf of.
	Sender string
}

type Email struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Request carries everything needed to draft email SequenceNumber. Previous
// holds emails 1..SequenceNumber-1 in order.
type Request struct {
	Contact        contact.Fields
	Profile        *proxycurl.Profile
	SequenceNumber int
	Previous       []Email
}

func (r Request) validate() error {
	if r.SequenceNumber < 1 || r.SequenceNumber > SequenceLength {
		return fmt.Errorf("generate: sequence number %d out of range", r.SequenceNumber)
	}
	if len(r.Previous) != r.SequenceNumber-1 {
		return fmt.Errorf("generate: email %d needs %d previous emails, got %d",
			r.SequenceNumber, r.SequenceNumber-1, len(r.Previous))
	}
	return nil
}

type Generator struct {
	client  *genai.Client
	model   string
	sender  string
	limiter *rate.Limiter
}

func New(ctx context.Context, cfg Config, limiter *rate.Limiter) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Generator{
		client:  client,
		model:   strings.TrimSpace(cfg.Model),
		sender:  strings.TrimSpace(cfg.Sender),
		limiter: limiter,
	}, nil
}

var outputSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"subject": {Type: genai.TypeString},
		"message": {Type: genai.TypeString},
	},
	Required: []string{"subject", "message"},
}

// Generate drafts one email. Rate limiting, server errors and network
// timeouts come back as *apiclient.TransientError.
func (g *Generator) Generate(ctx context.Context, req Request) (Email, error) {
	if err := req.validate(); err != nil {
		return Email{}, err
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return Email{}, err
		}
	}

	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(buildPrompt(g.sender, req)),
		&genai.GenerateContentConfig{
			CandidateCount:   1,
			ResponseMIMEType: "application/json",
			ResponseSchema:   outputSchema,
		},
	)
	if err != nil {
		return Email{}, classifyErr(err)
	}
	return parseEmail(resp.Text())
}

func parseEmail(text string) (Email, error) {
	var e Email
	if err := json.Unmarshal([]byte(text), &e); err != nil {
		return Email{}, fmt.Errorf("gemini: parse structured json: %w", err)
	}
	e.Subject = strings.TrimSpace(e.Subject)
	e.Message = strings.TrimSpace(e.Message)
	if e.Subject == "" || e.Message == "" {
		return Email{}, ErrEmptyEmail
	}
	return e, nil
}

func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &apiclient.TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && (ne.Timeout() || ne.Temporary()) {
		return &apiclient.TransientError{Err: err}
	}
	return err
}
