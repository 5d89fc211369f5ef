package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Contact struct {
	ID                     string
	Email                  string
	LinkedinURL            string
	ContactJSON            json.RawMessage
	ProfileJSON            json.RawMessage
	EmailHasBeenChecked    bool
	EmailIsValid           bool
	EmailsWritten          bool
	LinkedinProfileFetched bool
	SyncedToSmartlead      bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// FullyProcessed reports whether every stage of the pipeline has already
// completed for this contact.
func (c *Contact) FullyProcessed() bool {
	return c.SyncedToSmartlead && c.LinkedinProfileFetched && c.EmailsWritten
}

// KnownInvalid reports whether a previous verification marked the address
// undeliverable.
func (c *Contact) KnownInvalid() bool {
	return c.EmailHasBeenChecked && !c.EmailIsValid
}

type ContactCreateParams struct {
	Email       string
	LinkedinURL string
	ContactJSON json.RawMessage
}

// ContactUpdate patches a contact. Nil fields are left untouched; progress
// flags can only be raised, never cleared.
type ContactUpdate struct {
	ProfileJSON            json.RawMessage
	EmailHasBeenChecked    bool
	EmailIsValid           *bool
	EmailsWritten          bool
	LinkedinProfileFetched bool
	SyncedToSmartlead      bool
}

type Campaign struct {
	ID                  string
	Name                string
	SmartleadCampaignID int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type GeneratedEmail struct {
	ID             string
	ContactID      string
	CampaignID     string
	SequenceNumber int
	Subject        string
	Message        string
	CreatedAt      time.Time
}

type GeneratedEmailCreateParams struct {
	ContactID      string
	CampaignID     string
	SequenceNumber int
	Subject        string
	Message        string
}

const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusSkipped   = "skipped"
	RunStatusFailed    = "failed"
	RunStatusExhausted = "exhausted"
)

type WorkflowRun struct {
	ID           uuid.UUID
	ContactEmail string
	CampaignID   string
	Payload      []byte
	Status       string
	Step         string
	StepAttempts int
	AvailableAt  time.Time
	LockedAt     *time.Time
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DoneAt       *time.Time
}

// Terminal reports whether the run will never be claimed again.
func (r *WorkflowRun) Terminal() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusSkipped, RunStatusFailed, RunStatusExhausted:
		return true
	}
	return false
}

type WorkflowRunCreateParams struct {
	ContactEmail string
	CampaignID   string
	Payload      []byte
	AvailableAt  time.Time
}

type StepCheckpoint struct {
	RunID       uuid.UUID
	Name        string
	Output      json.RawMessage
	Attempts    int
	CompletedAt time.Time
}
