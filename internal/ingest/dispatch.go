package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/znz-systems/coldpipe/internal/contact"
	"github.com/znz-systems/coldpipe/internal/metrics"
	"github.com/znz-systems/coldpipe/internal/pipeline"
)

var ErrNoValidRows = errors.New("no valid contacts")

// Publisher sends one trigger, postponing its run by delay.
type Publisher interface {
	PublishTrigger(ctx context.Context, t pipeline.Trigger, delay time.Duration) error
}

type DispatcherOptions struct {
	BatchSize  int
	BatchDelay time.Duration
}

// Dispatcher publishes contacts in batches. Batch i is delayed by
// i*BatchDelay so a large upload reaches the providers gradually.
type Dispatcher struct {
	pub        Publisher
	metrics    *metrics.Metrics
	batchSize  int
	batchDelay time.Duration
}

func NewDispatcher(pub Publisher, m *metrics.Metrics, opts DispatcherOptions) *Dispatcher {
	size := opts.BatchSize
	if size <= 0 {
		size = 30
	}
	return &Dispatcher{pub: pub, metrics: m, batchSize: size, batchDelay: opts.BatchDelay}
}

// Report is the outcome of one upload.
type Report struct {
	Message                 string `json:"message"`
	TotalRowsInCSV          int    `json:"totalRowsInCsv"`
	ValidRowsFound          int    `json:"validRowsFound"`
	InvalidRowsSkipped      int    `json:"invalidRowsSkipped"`
	SuccessfullyQueuedCount int    `json:"successfullyQueuedCount"`
	FailedToQueueCount      int    `json:"failedToQueueCount"`
}

// Dispatch publishes every valid contact of parsed for campaignID. It fails
// with ErrNoValidRows when there is nothing to send; per-contact publish
// failures are counted, not returned.
func (d *Dispatcher) Dispatch(ctx context.Context, parsed *Parsed, campaignID string) (*Report, error) {
	d.metrics.IngestRow("invalid", len(parsed.Invalid))
	if len(parsed.Contacts) == 0 {
		if parsed.Total == 0 {
			return nil, fmt.Errorf("%w: file is empty or has no data rows", ErrNoValidRows)
		}
		return nil, fmt.Errorf("%w: %d of %d rows failed validation", ErrNoValidRows, len(parsed.Invalid), parsed.Total)
	}

	report := &Report{
		TotalRowsInCSV:     parsed.Total,
		ValidRowsFound:     len(parsed.Contacts),
		InvalidRowsSkipped: len(parsed.Invalid),
	}

	for start := 0; start < len(parsed.Contacts); start += d.batchSize {
		end := min(start+d.batchSize, len(parsed.Contacts))
		batch := start / d.batchSize
		delay := time.Duration(batch) * d.batchDelay

		slog.Info("queueing contact batch", "batch", batch+1, "size", end-start, "delay", delay)
		for _, fields := range parsed.Contacts[start:end] {
			if err := d.publish(ctx, fields, campaignID, delay); err != nil {
				slog.Error("failed to queue contact", "email", fields.NormalizedEmail(), "error", err)
				report.FailedToQueueCount++
				continue
			}
			report.SuccessfullyQueuedCount++
		}
	}

	d.metrics.IngestRow("queued", report.SuccessfullyQueuedCount)
	d.metrics.IngestRow("failed", report.FailedToQueueCount)
	report.Message = summary(report)
	return report, nil
}

func (d *Dispatcher) publish(ctx context.Context, fields contact.Fields, campaignID string, delay time.Duration) error {
	t := pipeline.Trigger{
		Contact:      fields,
		ContactEmail: fields.NormalizedEmail(),
		CampaignID:   campaignID,
	}
	return d.pub.PublishTrigger(ctx, t, delay)
}

func summary(r *Report) string {
	msg := fmt.Sprintf("Processed %d CSV rows. Queued %d valid contacts", r.TotalRowsInCSV, r.SuccessfullyQueuedCount)
	if r.InvalidRowsSkipped > 0 {
		msg += fmt.Sprintf(", skipped %d invalid rows", r.InvalidRowsSkipped)
	}
	if r.FailedToQueueCount > 0 {
		msg += fmt.Sprintf(", failed to queue %d valid contacts", r.FailedToQueueCount)
	}
	return msg + "."
}
