package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"meetscribe/pkg/model"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Channel is the part of an AMQP channel the publisher needs
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	publisher  Channel
	exchange   string
	routingKey string
	log        *zap.Logger
}

// NewRabbitMQ connects and declares a durable topic exchange for run events
func NewRabbitMQ(url, exchange, routingKey string, log *zap.Logger) (*RabbitMQ, error) {
	if log == nil {
		log = zap.NewNop()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Info("RabbitMQ connected successfully", zap.String("exchange", exchange))

	r := NewPublisher(ch, exchange, routingKey, log)
	r.conn = conn
	r.channel = ch
	return r, nil
}

// NewPublisher wraps an already open channel
func NewPublisher(ch Channel, exchange, routingKey string, log *zap.Logger) *RabbitMQ {
	if log == nil {
		log = zap.NewNop()
	}
	return &RabbitMQ{
		publisher:  ch,
		exchange:   exchange,
		routingKey: routingKey,
		log:        log,
	}
}

func (r *RabbitMQ) Name() string {
	return "rabbitmq"
}

// Publish sends one event per outcome followed by the batch event. The
// routing key of outcome events is suffixed with the final state.
func (r *RabbitMQ) Publish(ctx context.Context, report *model.BatchReport) error {
	for _, o := range report.Outcomes {
		key := r.routingKey + "." + string(o.State)
		if err := r.publishJSON(ctx, key, NewOutcomeEvent(report.RunID, o)); err != nil {
			return err
		}
	}

	if err := r.publishJSON(ctx, r.routingKey+".batch", NewBatchEvent(report)); err != nil {
		return err
	}

	r.log.Info("Run events published",
		zap.String("run_id", report.RunID),
		zap.Int("events", len(report.Outcomes)+1))

	return nil
}

func (r *RabbitMQ) publishJSON(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = r.publisher.PublishWithContext(
		ctx,
		r.exchange, // exchange
		key,        // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	r.log.Debug("Message published",
		zap.String("routing_key", key),
		zap.Int("size", len(body)))

	return nil
}

// Consume binds a durable queue to the run events and hands every message
// to handler until ctx is done. Messages the handler rejects are requeued.
func (r *RabbitMQ) Consume(ctx context.Context, queueName string, handler func([]byte) error) error {
	if r.channel == nil {
		return fmt.Errorf("consume requires a connected channel")
	}

	_, err := r.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = r.channel.QueueBind(
		queueName,         // queue name
		r.routingKey+".#", // routing key
		r.exchange,        // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	if err := r.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := r.channel.ConsumeWithContext(
		ctx,
		queueName, // queue
		"",        // consumer
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	r.log.Info("Starting to consume messages", zap.String("queue", queueName))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := handler(msg.Body); err != nil {
				r.log.Error("Failed to handle message", zap.Error(err))
				msg.Nack(false, true)
				continue
			}
			msg.Ack(false)
		}
	}
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
