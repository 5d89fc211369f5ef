package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/znz-systems/coldpipe/internal/models"
	"github.com/znz-systems/coldpipe/internal/store"
)

const runColumns = `id, contact_email, campaign_id, payload, status, step, step_attempts,
	available_at, locked_at, last_error, created_at, updated_at, done_at`

type WorkflowRunStore struct {
	db *sql.DB
}

func NewWorkflowRunStore(db *sql.DB) *WorkflowRunStore {
	return &WorkflowRunStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.WorkflowRun, error) {
	run := &models.WorkflowRun{}
	err := row.Scan(
		&run.ID, &run.ContactEmail, &run.CampaignID, &run.Payload, &run.Status, &run.Step, &run.StepAttempts,
		&run.AvailableAt, &run.LockedAt, &run.LastError, &run.CreatedAt, &run.UpdatedAt, &run.DoneAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *WorkflowRunStore) EnqueueWorkflowRun(ctx context.Context, params models.WorkflowRunCreateParams) (*models.WorkflowRun, error) {
	availableAt := params.AvailableAt
	if availableAt.IsZero() {
		availableAt = time.Now()
	}
	return scanRun(s.db.QueryRowContext(ctx,
		`INSERT INTO workflow_runs (id, contact_email, campaign_id, payload, available_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+runColumns,
		uuid.New(), params.ContactEmail, params.CampaignID, params.Payload, availableAt,
	))
}

// claimNextRunQuery picks the oldest due run whose contact has no run in
// flight. The partial unique index on running contact emails backs this up
// when two claimers pass the NOT EXISTS check at the same time.
const claimNextRunQuery = `WITH next_run AS (
	SELECT q.id
	FROM workflow_runs q
	WHERE q.status = 'queued'
	  AND q.available_at <= NOW()
	  AND NOT EXISTS (
		SELECT 1
		FROM workflow_runs o
		WHERE o.contact_email = q.contact_email
		  AND o.status = 'running'
	  )
	ORDER BY q.available_at ASC, q.created_at ASC
	LIMIT 1
	FOR UPDATE OF q SKIP LOCKED
)
UPDATE workflow_runs r
SET status = 'running',
	locked_at = NOW(),
	updated_at = NOW()
FROM next_run
WHERE r.id = next_run.id
RETURNING r.id, r.contact_email, r.campaign_id, r.payload, r.status, r.step, r.step_attempts,
	r.available_at, r.locked_at, r.last_error, r.created_at, r.updated_at, r.done_at`

// ClaimNextWorkflowRun locks the oldest due run and marks it running. Runs
// for one contact email never run concurrently. It returns nil, nil when
// nothing is due, or when another worker just claimed a run for the same
// contact.
func (s *WorkflowRunStore) ClaimNextWorkflowRun(ctx context.Context) (*models.WorkflowRun, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	run, err := scanRun(tx.QueryRowContext(ctx, claimNextRunQuery))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tx.Commit()
		}
		if errors.Is(translate(err), store.ErrConflict) {
			return nil, nil
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *WorkflowRunStore) GetWorkflowRunByID(ctx context.Context, id uuid.UUID) (*models.WorkflowRun, error) {
	return scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM workflow_runs WHERE id = $1`, id))
}

func (s *WorkflowRunStore) ListStepCheckpoints(ctx context.Context, runID uuid.UUID) ([]models.StepCheckpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, name, output, attempts, completed_at
		 FROM workflow_steps
		 WHERE run_id = $1
		 ORDER BY seq ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checkpoints []models.StepCheckpoint
	for rows.Next() {
		var cp models.StepCheckpoint
		var output []byte
		if err := rows.Scan(&cp.RunID, &cp.Name, &output, &cp.Attempts, &cp.CompletedAt); err != nil {
			return nil, err
		}
		cp.Output = output
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}

// SaveStepCheckpoint records a completed step, resets the run's attempt
// counter and refreshes its lock so the stale sweeper leaves long runs alone.
// Saving the same step twice keeps the first output.
func (s *WorkflowRunStore) SaveStepCheckpoint(ctx context.Context, runID uuid.UUID, name string, output []byte, attempts int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workflow_steps (run_id, name, output, attempts)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (run_id, name) DO NOTHING`,
		runID, name, output, attempts,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE workflow_runs
		 SET step = $2,
		     step_attempts = 0,
		     last_error = '',
		     locked_at = NOW(),
		     updated_at = NOW()
		 WHERE id = $1`,
		runID, name,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *WorkflowRunStore) MarkWorkflowRunRetry(ctx context.Context, runID uuid.UUID, step string, attempts int, nextAvailableAt time.Time, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE workflow_runs
		 SET status = 'queued',
		     step = $2,
		     step_attempts = $3,
		     available_at = $4,
		     last_error = $5,
		     locked_at = NULL,
		     updated_at = NOW()
		 WHERE id = $1`,
		runID, step, attempts, nextAvailableAt, lastError,
	)
	return err
}

func (s *WorkflowRunStore) MarkWorkflowRunFinished(ctx context.Context, runID uuid.UUID, status, step, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE workflow_runs
		 SET status = $2,
		     step = $3,
		     last_error = $4,
		     done_at = NOW(),
		     locked_at = NULL,
		     updated_at = NOW()
		 WHERE id = $1`,
		runID, status, step, lastError,
	)
	return err
}

// RequeueStaleWorkflowRuns returns running runs locked before lockedBefore to
// the queue. Their checkpoints are kept, so they resume at the next step.
func (s *WorkflowRunStore) RequeueStaleWorkflowRuns(ctx context.Context, lockedBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflow_runs
		 SET status = 'queued',
		     available_at = NOW(),
		     locked_at = NULL,
		     updated_at = NOW()
		 WHERE status = 'running'
		   AND locked_at < $1`,
		lockedBefore,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Ping reports whether the database is reachable.
func (s *WorkflowRunStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
