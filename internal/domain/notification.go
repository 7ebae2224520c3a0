package domain

import (
	"context"
	"time"
)

// Notification records an interaction on one of the recipient's posts
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	ActorID     string    `json:"actor_id"`
	PostID      string    `json:"post_id"`
	Kind        string    `json:"kind"` // post_liked, post_commented, post_rewarded
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationRepository defines the interface for notification data access
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
}
