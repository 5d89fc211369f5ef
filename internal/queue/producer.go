package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/znz-systems/coldpipe/internal/pipeline"
)

// Header names carried on trigger messages.
const (
	HeaderDelayMS    = "x-coldpipe-delay-ms"
	HeaderRetryCount = "x-retry-count"
)

// Publisher is the part of *amqp.Channel used to send messages.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Producer struct {
	ch  Publisher
	now func() time.Time
}

func NewProducer(ch Publisher) *Producer {
	return &Producer{ch: ch, now: time.Now}
}

// PublishTrigger sends one trigger. A positive delay postpones the workflow
// run the consumer creates for it; the message itself is delivered at once.
func (p *Producer) PublishTrigger(ctx context.Context, t pipeline.Trigger, delay time.Duration) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode trigger: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now(),
		Body:         body,
	}
	if delay > 0 {
		msg.Headers = amqp.Table{HeaderDelayMS: delay.Milliseconds()}
	}

	if err := p.ch.PublishWithContext(ctx, ExchangeName, RoutingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish trigger: %w", err)
	}
	return nil
}
