package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/znz-systems/coldpipe/internal/models"
)

// RunReader reads workflow runs and their checkpoints.
type RunReader interface {
	GetWorkflowRunByID(ctx context.Context, id uuid.UUID) (*models.WorkflowRun, error)
	ListStepCheckpoints(ctx context.Context, runID uuid.UUID) ([]models.StepCheckpoint, error)
}

type RunsHandler struct {
	runs RunReader
}

func NewRunsHandler(runs RunReader) *RunsHandler {
	return &RunsHandler{runs: runs}
}

type stepView struct {
	Name        string    `json:"name"`
	Attempts    int       `json:"attempts"`
	CompletedAt time.Time `json:"completedAt"`
}

type runView struct {
	ID           uuid.UUID  `json:"id"`
	ContactEmail string     `json:"contactEmail"`
	CampaignID   string     `json:"campaignId"`
	Status       string     `json:"status"`
	Step         string     `json:"step,omitempty"`
	StepAttempts int        `json:"stepAttempts"`
	AvailableAt  time.Time  `json:"availableAt"`
	LastError    string     `json:"lastError,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	DoneAt       *time.Time `json:"doneAt,omitempty"`
	Completed    []stepView `json:"completedSteps"`
}

// HandleGetRun reports a run's progress.
func (h *RunsHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a valid UUID")
		return
	}

	run, err := h.runs.GetWorkflowRunByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		slog.Error("failed to load run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	checkpoints, err := h.runs.ListStepCheckpoints(r.Context(), id)
	if err != nil {
		slog.Error("failed to load run checkpoints", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	view := runView{
		ID:           run.ID,
		ContactEmail: run.ContactEmail,
		CampaignID:   run.CampaignID,
		Status:       run.Status,
		Step:         run.Step,
		StepAttempts: run.StepAttempts,
		AvailableAt:  run.AvailableAt,
		LastError:    run.LastError,
		CreatedAt:    run.CreatedAt,
		DoneAt:       run.DoneAt,
		Completed:    make([]stepView, 0, len(checkpoints)),
	}
	for _, cp := range checkpoints {
		view.Completed = append(view.Completed, stepView{Name: cp.Name, Attempts: cp.Attempts, CompletedAt: cp.CompletedAt})
	}

	writeJSON(w, http.StatusOK, jsonResponse{OK: true, Data: view})
}
