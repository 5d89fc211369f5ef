package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/znz-systems/coldpipe/internal/models"
	"github.com/znz-systems/coldpipe/internal/store"
)

type WorkerOptions struct {
	PollInterval time.Duration
	Concurrency  int
}

// Executor advances a claimed run.
type Executor interface {
	Execute(ctx context.Context, run *models.WorkflowRun) (Outcome, error)
}

// Worker claims due workflow runs and hands them to an Executor. Each of the
// Concurrency loops owns at most one run at a time.
type Worker struct {
	runs         store.WorkflowRunStore
	exec         Executor
	pollInterval time.Duration
	concurrency  int
}

func NewWorker(runs store.WorkflowRunStore, exec Executor, opts WorkerOptions) *Worker {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Worker{
		runs:         runs,
		exec:         exec,
		pollInterval: poll,
		concurrency:  concurrency,
	}
}

// Run blocks until ctx is cancelled and every loop has returned.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.loop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context, id int) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		worked, err := w.processOne(ctx)
		if err != nil {
			slog.Error("pipeline worker cycle failed", "worker", id, "error", err)
		}
		if worked {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) processOne(ctx context.Context) (bool, error) {
	run, err := w.runs.ClaimNextWorkflowRun(ctx)
	if err != nil {
		return false, fmt.Errorf("claim workflow run: %w", err)
	}
	if run == nil {
		return false, nil
	}

	outcome, err := w.exec.Execute(ctx, run)
	if err != nil {
		return true, fmt.Errorf("execute run %s: %w", run.ID, err)
	}
	if outcome.Status == models.RunStatusQueued {
		slog.Info("workflow run rescheduled", "run_id", run.ID, "step", outcome.Step, "attempt", outcome.Attempt, "retry_at", outcome.RetryAt)
	}
	return true, nil
}
