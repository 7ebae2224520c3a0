package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	// MaxPostContentLength is the ceiling for a journal entry's text
	MaxPostContentLength = 500
	// MaxCommentContentLength is the ceiling for a comment's text
	MaxCommentContentLength = 200
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrNotPostOwner    = errors.New("user does not own this post")
	ErrContentTooLong  = errors.New("content exceeds maximum length")
	ErrContentRequired = errors.New("content is required")
)

// Post represents a journal entry
type Post struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Nickname     string          `json:"nickname,omitempty"`
	AvatarURL    string          `json:"avatar_url,omitempty"`
	Content      string          `json:"content"`
	ImageURL     string          `json:"image_url,omitempty"`
	AudioURL     string          `json:"audio_url,omitempty"`
	LocationData json.RawMessage `json:"location_data,omitempty"`
	WeatherData  json.RawMessage `json:"weather_data,omitempty"`
	LikesCount   int             `json:"likes_count"`
	CommentsCount int            `json:"comments_count"`
	RewardsCount int             `json:"rewards_count"`
	IsLiked      bool            `json:"is_liked"`
	IsDeleted    bool            `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PostPage is one page of a post listing
type PostPage struct {
	Posts      []*Post     `json:"posts"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination describes the position of a page within a result set
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// PostListOptions filters and orders a post listing
type PostListOptions struct {
	Page     int
	Limit    int
	SortType string // "latest" or "hottest"
	UserID   string // optional author filter
	ViewerID string // resolves is_liked, empty for anonymous listings
}

// PostRepository defines the interface for post data access
type PostRepository interface {
	Create(ctx context.Context, post *Post) error
	GetByID(ctx context.Context, id string, viewerID string) (*Post, error)
	List(ctx context.Context, opts PostListOptions) (*PostPage, error)
	SoftDelete(ctx context.Context, id string) error
	OwnerOf(ctx context.Context, id string) (string, error)
	AddReward(ctx context.Context, id string) error
}

// LikeRepository defines the interface for like data access
type LikeRepository interface {
	Exists(ctx context.Context, postID, userID string) (bool, error)
	Add(ctx context.Context, postID, userID string) error
	Remove(ctx context.Context, postID, userID string) error
	CountForPost(ctx context.Context, postID string) (int, error)
}
