package domain

import (
	"context"
	"errors"
	"time"
)

var ErrCommentNotFound = errors.New("comment not found")

// Comment represents a comment on a post
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Nickname  string    `json:"nickname,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentPage is one page of a comment listing
type CommentPage struct {
	Comments   []*Comment  `json:"comments"`
	Pagination *Pagination `json:"pagination"`
}

// CommentRepository defines the interface for comment data access
type CommentRepository interface {
	Create(ctx context.Context, comment *Comment) error
	ListByPost(ctx context.Context, postID string, page, limit int) (*CommentPage, error)
}
