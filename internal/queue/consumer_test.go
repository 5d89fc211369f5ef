package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/znz-systems/coldpipe/internal/contact"
	"github.com/znz-systems/coldpipe/internal/models"
	"github.com/znz-systems/coldpipe/internal/pipeline"
)

type fakeAck struct {
	acks    int
	nacks   int
	requeue bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acks++; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacks++
	f.requeue = requeue
	return nil
}
func (f *fakeAck) Reject(_ uint64, requeue bool) error { return f.Nack(0, false, requeue) }

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakePublisher struct {
	err  error
	sent []published
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

type fakeEnqueuer struct {
	err    error
	params []models.WorkflowRunCreateParams
}

func (f *fakeEnqueuer) EnqueueWorkflowRun(_ context.Context, p models.WorkflowRunCreateParams) (*models.WorkflowRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.params = append(f.params, p)
	return &models.WorkflowRun{ID: uuid.New(), ContactEmail: p.ContactEmail, CampaignID: p.CampaignID}, nil
}

func newTestConsumer(runs RunEnqueuer, pub Publisher, now time.Time) *Consumer {
	return &Consumer{
		pub:      pub,
		runs:     runs,
		topology: NewTopology("coldpipe.contacts"),
		now:      func() time.Time { return now },
	}
}

func triggerBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(pipeline.Trigger{
		Contact:      contact.Fields{contact.Email: "a@b.com", contact.FirstName: "A"},
		ContactEmail: "a@b.com",
		CampaignID:   "camp_1",
	})
	require.NoError(t, err)
	return body
}

func TestHandleEnqueuesRunAndAcks(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := &fakeEnqueuer{}
	ack := &fakeAck{}
	c := newTestConsumer(runs, &fakePublisher{}, sentAt.Add(time.Hour))

	c.Handle(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         triggerBody(t),
		Timestamp:    sentAt,
		Headers:      amqp.Table{HeaderDelayMS: int64(20000)},
	})

	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	require.Len(t, runs.params, 1)
	assert.Equal(t, "a@b.com", runs.params[0].ContactEmail)
	assert.Equal(t, "camp_1", runs.params[0].CampaignID)
	assert.Equal(t, sentAt.Add(20*time.Second), runs.params[0].AvailableAt)
}

func TestHandleDeadLettersMalformedTrigger(t *testing.T) {
	for name, body := range map[string][]byte{
		"not json":    []byte("nope"),
		"no campaign": []byte(`{"contact":{"Email":"a@b.com"},"contactEmail":"a@b.com"}`),
	} {
		t.Run(name, func(t *testing.T) {
			runs := &fakeEnqueuer{}
			ack := &fakeAck{}
			newTestConsumer(runs, &fakePublisher{}, time.Now()).Handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: body})

			assert.Equal(t, 1, ack.nacks)
			assert.False(t, ack.requeue)
			assert.Empty(t, runs.params)
		})
	}
}

func TestHandleRetriesFailedEnqueue(t *testing.T) {
	pub := &fakePublisher{}
	ack := &fakeAck{}
	c := newTestConsumer(&fakeEnqueuer{err: errors.New("db down")}, pub, time.Now())

	c.Handle(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         triggerBody(t),
		Headers:      amqp.Table{HeaderRetryCount: int32(1), HeaderDelayMS: int64(5000)},
	})

	assert.Equal(t, 1, ack.acks)
	require.Len(t, pub.sent, 1)
	assert.Equal(t, "", pub.sent[0].exchange)
	assert.Equal(t, "coldpipe.contacts.retry", pub.sent[0].key)
	assert.Equal(t, int64(2), pub.sent[0].msg.Headers[HeaderRetryCount])
	assert.Equal(t, int64(5000), pub.sent[0].msg.Headers[HeaderDelayMS])
}

func TestHandleDeadLettersAfterMaxRetries(t *testing.T) {
	pub := &fakePublisher{}
	ack := &fakeAck{}
	c := newTestConsumer(&fakeEnqueuer{err: errors.New("db down")}, pub, time.Now())

	c.Handle(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         triggerBody(t),
		Headers:      amqp.Table{HeaderRetryCount: int64(MaxRedeliveries)},
	})

	assert.Zero(t, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
	assert.Empty(t, pub.sent)
}

func TestHandleRequeuesWhenRetryPublishFails(t *testing.T) {
	ack := &fakeAck{}
	c := newTestConsumer(&fakeEnqueuer{err: errors.New("db down")}, &fakePublisher{err: errors.New("channel closed")}, time.Now())

	c.Handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: triggerBody(t)})

	assert.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeue)
}

func TestPublishTrigger(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	tr := pipeline.Trigger{Contact: contact.Fields{contact.Email: "a@b.com"}, ContactEmail: "a@b.com", CampaignID: "c"}
	require.NoError(t, p.PublishTrigger(context.Background(), tr, 0))
	require.NoError(t, p.PublishTrigger(context.Background(), tr, 10*time.Second))

	require.Len(t, pub.sent, 2)
	assert.Equal(t, ExchangeName, pub.sent[0].exchange)
	assert.Equal(t, RoutingKey, pub.sent[0].key)
	assert.Equal(t, amqp.Persistent, pub.sent[0].msg.DeliveryMode)
	assert.Equal(t, now, pub.sent[0].msg.Timestamp)
	assert.Nil(t, pub.sent[0].msg.Headers)
	assert.Equal(t, int64(10000), pub.sent[1].msg.Headers[HeaderDelayMS])

	decoded, err := pipeline.DecodeTrigger(pub.sent[1].msg.Body)
	require.NoError(t, err)
	assert.Equal(t, tr.CampaignID, decoded.CampaignID)

	pub.err = errors.New("closed")
	assert.Error(t, p.PublishTrigger(context.Background(), tr, 0))
}

func TestNewTopology(t *testing.T) {
	topo := NewTopology("q")
	assert.Equal(t, Topology{Queue: "q", RetryQueue: "q.retry", DLQ: "q.dlq"}, topo)
}

func TestProducerAndConsumerUseSeparateChannels(t *testing.T) {
	mq := &RabbitMQ{Ch: &amqp.Channel{}, PubCh: &amqp.Channel{}, Topology: NewTopology("coldpipe.contacts")}

	p := mq.Producer()
	c := NewConsumer(mq, &fakeEnqueuer{}, nil)

	assert.Same(t, mq.PubCh, p.ch)
	assert.Same(t, mq.Ch, c.ch)
	assert.NotSame(t, p.ch, c.pub)
}
