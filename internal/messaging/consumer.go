package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"littlejoys/internal/domain"
)

// InteractionConsumer drains interaction events off the bus and turns them
// into notification rows for the post owners.
type InteractionConsumer struct {
	rmq              *RabbitMQ
	notificationRepo domain.NotificationRepository
}

func NewInteractionConsumer(rmq *RabbitMQ, notificationRepo domain.NotificationRepository) *InteractionConsumer {
	return &InteractionConsumer{
		rmq:              rmq,
		notificationRepo: notificationRepo,
	}
}

func (c *InteractionConsumer) Start(ctx context.Context) error {
	msgs, err := c.rmq.ConsumeInteractions()
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("stopping interaction consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("interaction consumer channel closed")
					return
				}

				var event InteractionEvent
				if err := json.Unmarshal(msg.Body, &event); err != nil {
					slog.Error("error unmarshaling interaction event",
						slog.String("error", err.Error()),
						slog.String("body", string(msg.Body)))
					msg.Nack(false, false)
					continue
				}

				if err := c.processEvent(ctx, &event); err != nil {
					slog.Error("error processing interaction event",
						slog.String("error", err.Error()),
						slog.String("kind", event.Kind),
						slog.String("post_id", event.PostID))
					// Requeue once; a poisoned message is dropped on redelivery
					msg.Nack(false, !msg.Redelivered)
					continue
				}

				msg.Ack(false)
			}
		}
	}()

	return nil
}

func (c *InteractionConsumer) processEvent(ctx context.Context, event *InteractionEvent) error {
	// Self-interactions never notify
	if event.ActorID == event.PostOwnerID {
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	notification := &domain.Notification{
		RecipientID: event.PostOwnerID,
		ActorID:     event.ActorID,
		PostID:      event.PostID,
		Kind:        event.Kind,
	}
	if err := c.notificationRepo.Create(writeCtx, notification); err != nil {
		return err
	}

	slog.Info("created notification",
		slog.String("kind", event.Kind),
		slog.String("recipient_id", event.PostOwnerID))
	return nil
}
