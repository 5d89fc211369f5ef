// Package queue carries pipeline triggers over RabbitMQ. Triggers are
// published to a durable direct exchange; a consumer turns each one into a
// workflow run. Messages that cannot become a run end in a dead-letter queue.
package queue

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "coldpipe.triggers"
	DLXName      = "coldpipe.dlx"
	RoutingKey   = "contact.trigger"

	// RetryDelay is how long a message waits in the retry queue before it is
	// routed back to the main queue.
	RetryDelay = time.Minute
)

// Topology names the queues declared for one trigger queue name.
type Topology struct {
	Queue      string
	RetryQueue string
	DLQ        string
}

func NewTopology(queueName string) Topology {
	return Topology{
		Queue:      queueName,
		RetryQueue: queueName + ".retry",
		DLQ:        queueName + ".dlq",
	}
}

// RabbitMQ holds one connection with two channels. Ch carries consumption
// and the consumer's acks and retries; PubCh carries new triggers, so flow
// control on publishing never stalls deliveries.
type RabbitMQ struct {
	Conn     *amqp.Connection
	Ch       *amqp.Channel
	PubCh    *amqp.Channel
	Topology Topology
}

// Dial connects to the broker and declares the topology.
func Dial(url, queueName string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	topo := NewTopology(queueName)
	if err := setupTopology(ch, topo); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare topology: %w", err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}

	return &RabbitMQ{Conn: conn, Ch: ch, PubCh: pubCh, Topology: topo}, nil
}

// Producer returns a trigger producer on the publish channel.
func (r *RabbitMQ) Producer() *Producer {
	return NewProducer(r.PubCh)
}

func (r *RabbitMQ) Close() error {
	pubErr := r.PubCh.Close()
	if err := r.Ch.Close(); err != nil {
		r.Conn.Close()
		return err
	}
	if err := r.Conn.Close(); err != nil {
		return err
	}
	return pubErr
}

// setupTopology declares:
//
//	exchange --RoutingKey--> Queue --nack--> DLX --> DLQ
//	RetryQueue --ttl--> exchange
func setupTopology(ch *amqp.Channel, topo Topology) error {
	if err := ch.ExchangeDeclare(DLXName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(topo.DLQ, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(topo.DLQ, RoutingKey, DLXName, false, nil); err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(topo.Queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    DLXName,
		"x-dead-letter-routing-key": RoutingKey,
	}); err != nil {
		return err
	}
	if err := ch.QueueBind(topo.Queue, RoutingKey, ExchangeName, false, nil); err != nil {
		return err
	}

	_, err := ch.QueueDeclare(topo.RetryQueue, true, false, false, false, amqp.Table{
		"x-message-ttl":             RetryDelay.Milliseconds(),
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": RoutingKey,
	})
	return err
}
