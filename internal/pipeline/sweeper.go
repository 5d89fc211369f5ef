package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/znz-systems/coldpipe/internal/metrics"
	"github.com/znz-systems/coldpipe/internal/store"
)

// Sweeper periodically requeues runs whose worker died mid-run. Checkpoints
// survive, so a requeued run resumes after its last completed step.
type Sweeper struct {
	runs       store.WorkflowRunStore
	metrics    *metrics.Metrics
	staleAfter time.Duration
	cron       *cron.Cron
	now        func() time.Time
}

func NewSweeper(runs store.WorkflowRunStore, m *metrics.Metrics, staleAfter time.Duration) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &Sweeper{
		runs:       runs,
		metrics:    m,
		staleAfter: staleAfter,
		cron:       cron.New(),
		now:        time.Now,
	}
}

// Start schedules the sweep, e.g. "@every 1m".
func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			slog.Error("stale run sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}
	s.cron.Start()
	slog.Info("stale run sweeper started", "schedule", schedule, "stale_after", s.staleAfter)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.runs.RequeueStaleWorkflowRuns(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		return 0, fmt.Errorf("requeue stale runs: %w", err)
	}
	if n > 0 {
		slog.Warn("requeued stale workflow runs", "count", n)
		s.metrics.Requeued(n)
	}
	return n, nil
}
