package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/znz-systems/coldpipe/internal/models"
)

// Outcome summarizes what one Execute call did to a run.
type Outcome struct {
	Status  string
	Step    string
	Reason  string
	Attempt int
	RetryAt time.Time
}

// Orchestrator drives workflow runs through Steps.
type Orchestrator struct {
	deps  *Deps
	steps []Step
	now   func() time.Time
}

func NewOrchestrator(deps *Deps) *Orchestrator {
	return &Orchestrator{deps: deps, steps: Steps(), now: time.Now}
}

// Execute advances a claimed run as far as it can go in one pass. Completed
// steps are replayed from their checkpoints, never re-run. The pass ends when
// the run finishes, stops, or a step fails and the run is rescheduled. The
// returned error reports only failures to record progress.
func (o *Orchestrator) Execute(ctx context.Context, run *models.WorkflowRun) (Outcome, error) {
	checkpoints, err := o.deps.Runs.ListStepCheckpoints(ctx, run.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("list checkpoints: %w", err)
	}
	done := make(map[string]json.RawMessage, len(checkpoints))
	for _, cp := range checkpoints {
		done[cp.Name] = cp.Output
	}

	log := slog.With("run_id", run.ID, "email", run.ContactEmail)
	state := newState(run)
	first := true
	lastStep := ""

	for _, step := range o.steps {
		lastStep = step.Name
		if out, ok := done[step.Name]; ok {
			if err := step.Apply(state, out); err != nil {
				return o.finish(ctx, run, models.RunStatusFailed, step.Name, "restore checkpoint: "+err.Error())
			}
			continue
		}

		attempt := 1
		if first && run.Step == step.Name {
			attempt = run.StepAttempts + 1
		}
		first = false

		if ctx.Err() != nil {
			return o.retry(context.WithoutCancel(ctx), run, step.Name, attempt-1, o.now(), "interrupted before start")
		}

		res, stepErr := o.runStep(ctx, step, state)
		if stepErr != nil {
			if ctx.Err() != nil {
				// Shutting down; the attempt does not count against the budget.
				return o.retry(context.WithoutCancel(ctx), run, step.Name, attempt-1, o.now(), "interrupted: "+stepErr.Error())
			}
			if !step.Policy.Exhausted(attempt) {
				log.Warn("workflow step failed, will retry", "step", step.Name, "attempt", attempt, "error", stepErr)
				return o.retry(ctx, run, step.Name, attempt, o.now().Add(step.Policy.Delay(attempt)), stepErr.Error())
			}
			if step.OnExhausted == nil {
				return o.finish(ctx, run, models.RunStatusExhausted, step.Name, stepErr.Error())
			}
			log.Warn("workflow step retries exhausted, degrading", "step", step.Name, "attempt", attempt, "error", stepErr)
			res = step.OnExhausted(state, stepErr)
		}

		switch res.Kind {
		case KindStopSuccess:
			return o.finish(ctx, run, models.RunStatusSkipped, step.Name, res.Reason)
		case KindStopFatal:
			return o.finish(ctx, run, models.RunStatusFailed, step.Name, res.Reason)
		}

		output, err := json.Marshal(res.Output)
		if err != nil {
			return o.finish(ctx, run, models.RunStatusFailed, step.Name, "encode step output: "+err.Error())
		}
		if err := step.Apply(state, output); err != nil {
			return o.finish(ctx, run, models.RunStatusFailed, step.Name, "apply step output: "+err.Error())
		}
		if err := o.deps.Runs.SaveStepCheckpoint(ctx, run.ID, step.Name, output, attempt); err != nil {
			return Outcome{}, fmt.Errorf("save checkpoint %s: %w", step.Name, err)
		}
		log.Info("workflow step completed", "step", step.Name, "attempt", attempt)
	}

	return o.finish(ctx, run, models.RunStatusCompleted, lastStep, "")
}

func (o *Orchestrator) runStep(ctx context.Context, step Step, state *State) (Result, error) {
	stepCtx, cancel := context.WithTimeout(ctx, step.Policy.Timeout)
	defer cancel()

	start := time.Now()
	res, err := step.Run(stepCtx, o.deps, state)
	elapsed := time.Since(start)
	switch {
	case err != nil:
		o.deps.Metrics.ObserveStep(step.Name, "error", elapsed)
	default:
		o.deps.Metrics.ObserveStep(step.Name, res.Kind.String(), elapsed)
	}
	return res, err
}

func (o *Orchestrator) retry(ctx context.Context, run *models.WorkflowRun, step string, attempt int, at time.Time, reason string) (Outcome, error) {
	if err := o.deps.Runs.MarkWorkflowRunRetry(ctx, run.ID, step, attempt, at, reason); err != nil {
		return Outcome{}, fmt.Errorf("mark run retry: %w", err)
	}
	return Outcome{Status: models.RunStatusQueued, Step: step, Reason: reason, Attempt: attempt, RetryAt: at}, nil
}

func (o *Orchestrator) finish(ctx context.Context, run *models.WorkflowRun, status, step, reason string) (Outcome, error) {
	if err := o.deps.Runs.MarkWorkflowRunFinished(ctx, run.ID, status, step, reason); err != nil {
		return Outcome{}, fmt.Errorf("mark run %s: %w", status, err)
	}
	o.deps.Metrics.RunFinished(status)

	attrs := []any{"run_id", run.ID, "email", run.ContactEmail, "status", status, "step", step}
	switch status {
	case models.RunStatusCompleted, models.RunStatusSkipped:
		slog.Info("workflow run finished", append(attrs, "reason", reason)...)
	default:
		slog.Error("workflow run failed", append(attrs, "error", reason)...)
	}
	return Outcome{Status: status, Step: step, Reason: reason}, nil
}
