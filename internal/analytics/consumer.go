// internal/analytics/consumer.go
// AMQP ingestion path for engagement events reported by out-of-process
// sources: the delivery subsystem and client lifecycle callbacks
// relayed by the API gateway.

package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/calmoraapp/calmora-backend/internal/common/utils"
)

const (
	routingKeySent      = "notification.sent"
	routingKeyDelivered = "notification.delivered"
	routingKeyOpened    = "notification.opened"
	routingKeyDismissed = "notification.dismissed"
	routingKeyAction    = "notification.action"
	routingKeyFailed    = "notification.failed"
)

// ConsumerConfig holds broker settings for the event consumer
type ConsumerConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// EventConsumer feeds broker-published lifecycle events into the
// analytics service.
type EventConsumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	service Service
	logger  *zap.Logger

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewEventConsumer connects to the broker and declares the exchange,
// queue, and bindings for every lifecycle routing key
func NewEventConsumer(config ConsumerConfig, service Service, logger *zap.Logger) (*EventConsumer, error) {
	conn, err := amqp091.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		config.Exchange, // name
		"topic",         // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		config.Queue, // name
		true,         // durable
		false,        // delete when unused
		false,        // exclusive
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	keys := []string{
		routingKeySent,
		routingKeyDelivered,
		routingKeyOpened,
		routingKeyDismissed,
		routingKeyAction,
		routingKeyFailed,
	}
	for _, key := range keys {
		if err := channel.QueueBind(config.Queue, key, config.Exchange, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue with key %s: %w", key, err)
		}
	}

	if err := channel.Qos(10, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &EventConsumer{
		conn:     conn,
		channel:  channel,
		queue:    config.Queue,
		service:  service,
		logger:   logger,
		shutdown: make(chan struct{}),
	}, nil
}

// Start registers the consumer and processes events until the context
// ends or Close is called
func (c *EventConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register event consumer: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(ctx, msgs)
	}()

	c.logger.Info("engagement event consumer started", zap.String("queue", c.queue))
	return nil
}

func (c *EventConsumer) consume(ctx context.Context, msgs <-chan amqp091.Delivery) {
	for {
		select {
		case <-c.shutdown:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("engagement event channel closed")
				return
			}

			if err := c.handle(ctx, msg); err != nil {
				c.logger.Error("failed to process engagement event",
					zap.String("routing_key", msg.RoutingKey),
					zap.Error(err))
				msg.Nack(false, false)
				continue
			}
			msg.Ack(false)
		}
	}
}

func (c *EventConsumer) handle(ctx context.Context, msg amqp091.Delivery) error {
	switch msg.RoutingKey {
	case routingKeySent:
		var req TrackSentRequest
		if err := decodeEvent(msg.Body, &req); err != nil {
			return err
		}
		c.service.TrackSent(ctx, req.NotificationID, req.Category, req.TemplateType, req.IsPersonalized)

	case routingKeyDelivered:
		var req TrackDeliveredRequest
		if err := decodeEvent(msg.Body, &req); err != nil {
			return err
		}
		c.service.TrackDelivered(ctx, req.NotificationID, req.LatencySeconds)

	case routingKeyOpened:
		var req TrackOpenedRequest
		if err := decodeEvent(msg.Body, &req); err != nil {
			return err
		}
		c.service.TrackOpened(ctx, req.NotificationID, req.TimeToOpenSeconds)

	case routingKeyDismissed:
		var req TrackDismissedRequest
		if err := decodeEvent(msg.Body, &req); err != nil {
			return err
		}
		c.service.TrackDismissed(ctx, req.NotificationID, req.TimeToDismissSeconds)

	case routingKeyAction:
		var req TrackActionRequest
		if err := decodeEvent(msg.Body, &req); err != nil {
			return err
		}
		c.service.TrackActionTaken(ctx, req.NotificationID, req.ActionID, req.ActionType)

	case routingKeyFailed:
		var req TrackFailedRequest
		if err := decodeEvent(msg.Body, &req); err != nil {
			return err
		}
		c.service.TrackFailed(ctx, req.NotificationID, req.Error)

	default:
		c.logger.Warn("unknown event routing key", zap.String("routing_key", msg.RoutingKey))
	}
	return nil
}

func decodeEvent(body []byte, dest interface{}) error {
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to unmarshal event payload: %w", err)
	}
	if err := utils.ValidateStruct(dest); err != nil {
		return fmt.Errorf("invalid event payload: %w", err)
	}
	return nil
}

// Close stops the consumer and closes the broker connection
func (c *EventConsumer) Close() error {
	close(c.shutdown)
	c.wg.Wait()

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Warn("error closing RabbitMQ channel", zap.Error(err))
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}

	return nil
}
