package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"terrarium_jobs/internal/domain"
)

var ErrNacked = errors.New("broker rejected job event")

// RabbitMQ publishes job board changes to a topic exchange. Each event is
// routed as "<routing key>.<action>" so consumers can bind to a subset.
// Publishing waits for the broker confirm.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger

	// amqp channels are not safe for concurrent publishing, and scheduled
	// runs for different communities share one publisher.
	mu sync.Mutex
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	// QueueName, when set, is declared durable and bound to every action.
	QueueName string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey+".*",
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	if cfg.QueueName == "" {
		return nil
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.QueueName, err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey+".*", cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	return nil
}

func (r *RabbitMQ) Publish(ctx context.Context, event *domain.JobEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Action, err)
	}

	msg := amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		CorrelationId: event.RunID,
		Timestamp:     event.Timestamp,
		Type:          "job." + event.Action,
		Headers: amqp.Table{
			"community_id": event.CommunityID,
			"external_id":  event.ExternalID,
		},
		Body: body,
	}

	r.mu.Lock()
	confirm, err := r.channel.PublishWithDeferredConfirmWithContext(ctx, r.exchange, r.routingKey+"."+event.Action, false, false, msg)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.Action, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm %s event: %w", event.Action, err)
	}
	if !acked {
		return fmt.Errorf("%w: %s %s", ErrNacked, event.Action, event.ExternalID)
	}

	r.logger.Debug("published job event",
		"community_id", event.CommunityID,
		"external_id", event.ExternalID,
		"action", event.Action,
		"delivery_tag", confirm.DeliveryTag,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	var errs []error
	if r.channel != nil {
		if err := r.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
