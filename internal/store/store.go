package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/znz-systems/coldpipe/internal/models"
)

type ContactStore interface {
	CreateContact(ctx context.Context, params models.ContactCreateParams) (*models.Contact, error)
	GetContactByEmail(ctx context.Context, email string) (*models.Contact, error)
	GetContactByID(ctx context.Context, id string) (*models.Contact, error)
	UpdateContact(ctx context.Context, id string, update models.ContactUpdate) error
}

type CampaignStore interface {
	CreateCampaign(ctx context.Context, name string, smartleadCampaignID int64) (*models.Campaign, error)
	GetCampaignByID(ctx context.Context, id string) (*models.Campaign, error)
}

type GeneratedEmailStore interface {
	CreateGeneratedEmail(ctx context.Context, params models.GeneratedEmailCreateParams) (*models.GeneratedEmail, error)
	ListGeneratedEmails(ctx context.Context, contactID, campaignID string) ([]models.GeneratedEmail, error)
}

type WorkflowRunStore interface {
	EnqueueWorkflowRun(ctx context.Context, params models.WorkflowRunCreateParams) (*models.WorkflowRun, error)
	ClaimNextWorkflowRun(ctx context.Context) (*models.WorkflowRun, error)
	GetWorkflowRunByID(ctx context.Context, id uuid.UUID) (*models.WorkflowRun, error)
	ListStepCheckpoints(ctx context.Context, runID uuid.UUID) ([]models.StepCheckpoint, error)
	SaveStepCheckpoint(ctx context.Context, runID uuid.UUID, name string, output []byte, attempts int) error
	MarkWorkflowRunRetry(ctx context.Context, runID uuid.UUID, step string, attempts int, nextAvailableAt time.Time, lastError string) error
	MarkWorkflowRunFinished(ctx context.Context, runID uuid.UUID, status, step, lastError string) error
	RequeueStaleWorkflowRuns(ctx context.Context, lockedBefore time.Time) (int64, error)
}
