package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/znz-systems/coldpipe/internal/metrics"
	"github.com/znz-systems/coldpipe/internal/models"
	"github.com/znz-systems/coldpipe/internal/pipeline"
)

// MaxRedeliveries bounds how often a message whose run could not be created
// goes through the retry queue before it is dead-lettered.
const MaxRedeliveries = 3

// RunEnqueuer creates workflow runs.
type RunEnqueuer interface {
	EnqueueWorkflowRun(ctx context.Context, params models.WorkflowRunCreateParams) (*models.WorkflowRun, error)
}

// Consumer turns trigger messages into workflow runs. A message is acked
// once its run exists; the pipeline owns it from there.
type Consumer struct {
	ch       *amqp.Channel
	pub      Publisher
	runs     RunEnqueuer
	metrics  *metrics.Metrics
	topology Topology
	prefetch int
	now      func() time.Time
}

func NewConsumer(mq *RabbitMQ, runs RunEnqueuer, m *metrics.Metrics) *Consumer {
	return &Consumer{
		ch:       mq.Ch,
		pub:      mq.Ch,
		runs:     runs,
		metrics:  m,
		topology: mq.Topology,
		prefetch: 20,
		now:      time.Now,
	}
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}
	msgs, err := c.ch.Consume(c.topology.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	slog.Info("trigger consumer started", "queue", c.topology.Queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("delivery channel closed")
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle settles one delivery.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	t, err := pipeline.DecodeTrigger(d.Body)
	if err == nil && !t.IsUsable() {
		err = errors.New("trigger needs contact, contactEmail and campaignId")
	}
	if err != nil {
		slog.Error("dropping malformed trigger", "error", err, "message_id", d.MessageId)
		c.metrics.QueueMessage("malformed")
		if nerr := d.Nack(false, false); nerr != nil {
			slog.Error("failed to nack trigger", "error", nerr)
		}
		return
	}

	run, err := c.runs.EnqueueWorkflowRun(ctx, models.WorkflowRunCreateParams{
		ContactEmail: t.ContactEmail,
		CampaignID:   t.CampaignID,
		Payload:      d.Body,
		AvailableAt:  c.availableAt(d),
	})
	if err != nil {
		c.redeliver(ctx, d, t.ContactEmail, err)
		return
	}

	if err := d.Ack(false); err != nil {
		slog.Error("failed to ack trigger", "error", err, "run_id", run.ID)
		return
	}
	c.metrics.QueueMessage("enqueued")
	slog.Info("workflow run created", "run_id", run.ID, "email", t.ContactEmail, "campaign_id", t.CampaignID)
}

// availableAt applies the publisher's delay relative to when the message was
// published, so time spent in the broker counts toward it.
func (c *Consumer) availableAt(d amqp.Delivery) time.Time {
	base := d.Timestamp
	if base.IsZero() {
		base = c.now()
	}
	delay := time.Duration(headerInt(d.Headers, HeaderDelayMS)) * time.Millisecond
	return base.Add(delay)
}

func (c *Consumer) redeliver(ctx context.Context, d amqp.Delivery, email string, cause error) {
	count := headerInt(d.Headers, HeaderRetryCount)
	if count >= MaxRedeliveries {
		slog.Error("giving up on trigger", "email", email, "retries", count, "error", cause)
		c.metrics.QueueMessage("dead_lettered")
		if err := d.Nack(false, false); err != nil {
			slog.Error("failed to nack trigger", "error", err)
		}
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[HeaderRetryCount] = count + 1

	err := c.pub.PublishWithContext(ctx, "", c.topology.RetryQueue, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    d.Timestamp,
		Headers:      headers,
		Body:         d.Body,
	})
	if err != nil {
		// Could not park it; let the broker hand it out again.
		slog.Error("failed to schedule trigger retry", "email", email, "error", err)
		c.metrics.QueueMessage("requeued")
		if nerr := d.Nack(false, true); nerr != nil {
			slog.Error("failed to nack trigger", "error", nerr)
		}
		return
	}

	slog.Warn("failed to create workflow run, retrying later", "email", email, "retry", count+1, "error", cause)
	c.metrics.QueueMessage("retried")
	if err := d.Ack(false); err != nil {
		slog.Error("failed to ack trigger", "error", err)
	}
}

func headerInt(h amqp.Table, key string) int64 {
	switch v := h[key].(type) {
	case int:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}
