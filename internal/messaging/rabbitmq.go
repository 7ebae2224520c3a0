package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	eventsExchange     = "journal.events"
	notificationsQueue = "journal.notifications"
	interactionKey     = "post.interaction"
)

// Interaction kinds carried on the event bus
const (
	KindPostLiked     = "post_liked"
	KindPostCommented = "post_commented"
	KindPostRewarded  = "post_rewarded"
)

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// InteractionEvent is published whenever someone likes, comments on, or
// rewards a post. The notification worker consumes these and writes
// notification rows for the post owner.
type InteractionEvent struct {
	Kind          string `json:"kind"`
	PostID        string `json:"post_id"`
	PostOwnerID   string `json:"post_owner_id"`
	ActorID       string `json:"actor_id"`
	ActorNickname string `json:"actor_nickname,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		channel: ch,
	}

	if err := rmq.Setup(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

// NewRabbitMQWithRetry keeps dialing until the broker accepts the
// connection or the context expires. In compose environments the broker
// is often still starting when the server comes up.
func NewRabbitMQWithRetry(ctx context.Context, url string) (*RabbitMQ, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		rmq, err := NewRabbitMQ(url)
		if err == nil {
			return rmq, nil
		}
		lastErr = err
		slog.Warn("rabbitmq connection failed, retrying",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq unavailable: %w", lastErr)
		case <-time.After(2 * time.Second):
		}
	}
}

func (r *RabbitMQ) Setup() error {
	if err := r.channel.ExchangeDeclare(
		eventsExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return fmt.Errorf("failed to declare events exchange: %w", err)
	}

	if _, err := r.channel.QueueDeclare(
		notificationsQueue, // name
		true,               // durable
		false,              // delete when unused
		false,              // exclusive
		false,              // no-wait
		nil,                // arguments
	); err != nil {
		return fmt.Errorf("failed to declare notifications queue: %w", err)
	}

	if err := r.channel.QueueBind(
		notificationsQueue,
		interactionKey,
		eventsExchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind notifications queue: %w", err)
	}

	slog.Info("rabbitmq setup completed successfully")
	return nil
}

func (r *RabbitMQ) PublishInteraction(ctx context.Context, event *InteractionEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal interaction event: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		eventsExchange,
		interactionKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish interaction event: %w", err)
	}

	slog.Info("published interaction event",
		slog.String("kind", event.Kind),
		slog.String("post_id", event.PostID))
	return nil
}

func (r *RabbitMQ) ConsumeInteractions() (<-chan amqp.Delivery, error) {
	msgs, err := r.channel.Consume(
		notificationsQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	slog.Info("started consuming interaction events",
		slog.String("queue", notificationsQueue))
	return msgs, nil
}

func (r *RabbitMQ) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
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
