// internal/delivery/amqp.go
// AMQP bridge to an out-of-process delivery subsystem
// Schedule/cancel commands go out on a topic exchange; the subsystem
// reports back on the same exchange and this bridge mirrors the
// pending/delivered sets so the list calls stay answerable locally.

package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	routingKeySchedule  = "delivery.schedule"
	routingKeyCancel    = "delivery.cancel"
	routingKeyDelivered = "delivery.delivered"
	routingKeyRejected  = "delivery.rejected"
)

// AMQPConfig holds broker settings for the delivery bridge
type AMQPConfig struct {
	URL         string
	Exchange    string
	StatusQueue string
}

// AMQPScheduler implements Scheduler over a message broker.
type AMQPScheduler struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	queue    string
	logger   *zap.Logger

	mu        sync.RWMutex
	pending   map[string]ScheduledNotification
	delivered []DeliveredNotification

	shutdown chan struct{}
	wg       sync.WaitGroup
}

type statusMessage struct {
	NotificationID string    `json:"notification_id"`
	DeliveredAt    time.Time `json:"delivered_at,omitempty"`
	Reason         string    `json:"reason,omitempty"`
}

// NewAMQPScheduler connects to the broker and declares the exchange
// and status queue
func NewAMQPScheduler(config AMQPConfig, logger *zap.Logger) (*AMQPScheduler, error) {
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
		config.StatusQueue, // name
		true,               // durable
		false,              // delete when unused
		false,              // exclusive
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range []string{routingKeyDelivered, routingKeyRejected} {
		if err := channel.QueueBind(config.StatusQueue, key, config.Exchange, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue with key %s: %w", key, err)
		}
	}

	s := &AMQPScheduler{
		conn:     conn,
		channel:  channel,
		exchange: config.Exchange,
		queue:    config.StatusQueue,
		logger:   logger,
		pending:  make(map[string]ScheduledNotification),
		shutdown: make(chan struct{}),
	}

	if err := s.startStatusConsumer(); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return s, nil
}

// Schedule publishes a schedule command. Acceptance means the broker
// took the command; a later rejected status removes the notification
// from the pending mirror.
func (s *AMQPScheduler) Schedule(ctx context.Context, n ScheduledNotification) (bool, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return false, fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = s.channel.PublishWithContext(ctx,
		s.exchange,         // exchange
		routingKeySchedule, // routing key
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to publish schedule command: %w", err)
	}

	s.mu.Lock()
	s.pending[n.ID] = n
	s.mu.Unlock()

	return true, nil
}

// Cancel publishes a cancel command and drops the local mirror entry
func (s *AMQPScheduler) Cancel(ctx context.Context, id string) error {
	body, err := json.Marshal(map[string]string{"id": id})
	if err != nil {
		return fmt.Errorf("failed to marshal cancel command: %w", err)
	}

	err = s.channel.PublishWithContext(ctx,
		s.exchange,
		routingKeyCancel,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish cancel command: %w", err)
	}

	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()

	return nil
}

func (s *AMQPScheduler) ListDelivered(ctx context.Context) ([]DeliveredNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DeliveredNotification, len(s.delivered))
	copy(out, s.delivered)
	return out, nil
}

func (s *AMQPScheduler) ListPending(ctx context.Context) ([]PendingNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PendingNotification, 0, len(s.pending))
	for _, n := range s.pending {
		out = append(out, PendingNotification{
			ID:          n.ID,
			Title:       n.Title,
			Body:        n.Body,
			Category:    n.Category,
			ScheduledAt: n.DeliverAt,
		})
	}
	return out, nil
}

func (s *AMQPScheduler) startStatusConsumer() error {
	if err := s.channel.Qos(10, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := s.channel.Consume(
		s.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register status consumer: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.consumeStatus(msgs)
	}()

	return nil
}

func (s *AMQPScheduler) consumeStatus(msgs <-chan amqp091.Delivery) {
	for {
		select {
		case <-s.shutdown:
			return
		case msg, ok := <-msgs:
			if !ok {
				s.logger.Warn("delivery status channel closed")
				return
			}

			if err := s.processStatus(msg); err != nil {
				s.logger.Error("failed to process delivery status",
					zap.String("routing_key", msg.RoutingKey),
					zap.Error(err))
				msg.Nack(false, false)
				continue
			}
			msg.Ack(false)
		}
	}
}

func (s *AMQPScheduler) processStatus(msg amqp091.Delivery) error {
	var status statusMessage
	if err := json.Unmarshal(msg.Body, &status); err != nil {
		return fmt.Errorf("failed to unmarshal status message: %w", err)
	}

	switch msg.RoutingKey {
	case routingKeyDelivered:
		s.markDelivered(status)
	case routingKeyRejected:
		s.mu.Lock()
		delete(s.pending, status.NotificationID)
		s.mu.Unlock()
		s.logger.Warn("delivery subsystem rejected notification",
			zap.String("notification_id", status.NotificationID),
			zap.String("reason", status.Reason))
	default:
		s.logger.Warn("unknown delivery status routing key",
			zap.String("routing_key", msg.RoutingKey))
	}
	return nil
}

func (s *AMQPScheduler) markDelivered(status statusMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.pending[status.NotificationID]
	if !ok {
		return
	}
	delete(s.pending, status.NotificationID)

	deliveredAt := status.DeliveredAt
	if deliveredAt.IsZero() {
		deliveredAt = time.Now()
	}
	s.delivered = append(s.delivered, DeliveredNotification{
		ID:          n.ID,
		Title:       n.Title,
		Body:        n.Body,
		Category:    n.Category,
		DeliveredAt: deliveredAt,
	})
}

// Close stops the status consumer and closes the broker connection
func (s *AMQPScheduler) Close() error {
	close(s.shutdown)
	s.wg.Wait()

	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			s.logger.Warn("error closing RabbitMQ channel", zap.Error(err))
		}
	}

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}

	return nil
}
