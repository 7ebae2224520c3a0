package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"littlejoys/internal/domain"
)

// Counter for generating unique IDs
var idCounter atomic.Int64

// nextID generates a unique ID for test fixtures
func nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, idCounter.Add(1))
}

// UserOptions allows customizing user fixture creation
type UserOptions struct {
	ID           string
	Email        string
	PasswordHash string
	Nickname     string
	AvatarURL    string
	Bio          string
	CreatedAt    time.Time
}

// NewTestUser creates a test user with sensible defaults
// Pass options to override specific fields
func NewTestUser(opts ...func(*UserOptions)) *domain.User {
	o := &UserOptions{
		ID:           nextID("user"),
		Nickname:     fmt.Sprintf("joyseeker%d", idCounter.Load()),
		PasswordHash: "$2a$10$test.hash.for.testing.purposes.only", // bcrypt hash placeholder
	}

	for _, opt := range opts {
		opt(o)
	}

	// Set email based on nickname if not provided
	if o.Email == "" {
		o.Email = o.Nickname + "@example.com"
	}

	// Set created time if not provided
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	return &domain.User{
		ID:           o.ID,
		Email:        o.Email,
		PasswordHash: o.PasswordHash,
		Nickname:     o.Nickname,
		AvatarURL:    o.AvatarURL,
		Bio:          o.Bio,
		CreatedAt:    o.CreatedAt,
	}
}

// User option functions

// WithUserID sets the user ID
func WithUserID(id string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.ID = id
	}
}

// WithEmail sets the email
func WithEmail(email string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Email = email
	}
}

// WithNickname sets the nickname
func WithNickname(nickname string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Nickname = nickname
	}
}

// WithPasswordHash sets the password hash
func WithPasswordHash(hash string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.PasswordHash = hash
	}
}

// WithBio sets the profile bio
func WithBio(bio string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Bio = bio
	}
}

// WithUserCreatedAt sets the user creation time
func WithUserCreatedAt(t time.Time) func(*UserOptions) {
	return func(o *UserOptions) {
		o.CreatedAt = t
	}
}

// RefreshTokenOptions allows customizing refresh token fixture creation
type RefreshTokenOptions struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewTestRefreshToken creates a test refresh token with sensible defaults
func NewTestRefreshToken(opts ...func(*RefreshTokenOptions)) *domain.RefreshToken {
	o := &RefreshTokenOptions{
		Token:     nextID("refresh"),
		UserID:    nextID("user"),
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return &domain.RefreshToken{
		Token:     o.Token,
		UserID:    o.UserID,
		ExpiresAt: o.ExpiresAt,
		CreatedAt: o.CreatedAt,
	}
}

// Refresh token option functions

// WithToken sets the token value
func WithToken(token string) func(*RefreshTokenOptions) {
	return func(o *RefreshTokenOptions) {
		o.Token = token
	}
}

// WithTokenUserID sets the user ID the token belongs to
func WithTokenUserID(userID string) func(*RefreshTokenOptions) {
	return func(o *RefreshTokenOptions) {
		o.UserID = userID
	}
}

// WithExpiresAt sets the token expiration time
func WithExpiresAt(t time.Time) func(*RefreshTokenOptions) {
	return func(o *RefreshTokenOptions) {
		o.ExpiresAt = t
	}
}

// WithExpired creates an already expired token
func WithExpired() func(*RefreshTokenOptions) {
	return func(o *RefreshTokenOptions) {
		o.ExpiresAt = time.Now().Add(-1 * time.Hour)
	}
}

// PostOptions allows customizing post fixture creation
type PostOptions struct {
	ID        string
	UserID    string
	Nickname  string
	Content   string
	ImageURL  string
	AudioURL  string
	CreatedAt time.Time
}

// NewTestPost creates a test post with sensible defaults
func NewTestPost(opts ...func(*PostOptions)) *domain.Post {
	o := &PostOptions{
		ID:        nextID("post"),
		UserID:    nextID("user"),
		Nickname:  fmt.Sprintf("joyseeker%d", idCounter.Load()),
		Content:   "Found a sunny bench in the park today",
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return &domain.Post{
		ID:        o.ID,
		UserID:    o.UserID,
		Nickname:  o.Nickname,
		Content:   o.Content,
		ImageURL:  o.ImageURL,
		AudioURL:  o.AudioURL,
		CreatedAt: o.CreatedAt,
	}
}

// Post option functions

// WithPostID sets the post ID
func WithPostID(id string) func(*PostOptions) {
	return func(o *PostOptions) {
		o.ID = id
	}
}

// WithPostUserID sets the author of the post
func WithPostUserID(userID string) func(*PostOptions) {
	return func(o *PostOptions) {
		o.UserID = userID
	}
}

// WithContent sets the post content
func WithContent(content string) func(*PostOptions) {
	return func(o *PostOptions) {
		o.Content = content
	}
}

// WithPostCreatedAt sets the post creation time
func WithPostCreatedAt(t time.Time) func(*PostOptions) {
	return func(o *PostOptions) {
		o.CreatedAt = t
	}
}

// CommentOptions allows customizing comment fixture creation
type CommentOptions struct {
	ID        string
	PostID    string
	UserID    string
	Content   string
	CreatedAt time.Time
}

// NewTestComment creates a test comment with sensible defaults
func NewTestComment(opts ...func(*CommentOptions)) *domain.Comment {
	o := &CommentOptions{
		ID:        nextID("comment"),
		PostID:    nextID("post"),
		UserID:    nextID("user"),
		Content:   "Love this!",
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return &domain.Comment{
		ID:        o.ID,
		PostID:    o.PostID,
		UserID:    o.UserID,
		Content:   o.Content,
		CreatedAt: o.CreatedAt,
	}
}

// Comment option functions

// WithCommentPostID sets the post the comment belongs to
func WithCommentPostID(postID string) func(*CommentOptions) {
	return func(o *CommentOptions) {
		o.PostID = postID
	}
}

// WithCommentUserID sets the comment author
func WithCommentUserID(userID string) func(*CommentOptions) {
	return func(o *CommentOptions) {
		o.UserID = userID
	}
}

// WithCommentContent sets the comment content
func WithCommentContent(content string) func(*CommentOptions) {
	return func(o *CommentOptions) {
		o.Content = content
	}
}

// NotificationOptions allows customizing notification fixture creation
type NotificationOptions struct {
	ID          string
	RecipientID string
	ActorID     string
	PostID      string
	Kind        string
	IsRead      bool
	CreatedAt   time.Time
}

// NewTestNotification creates a test notification with sensible defaults
func NewTestNotification(opts ...func(*NotificationOptions)) *domain.Notification {
	o := &NotificationOptions{
		ID:          nextID("notification"),
		RecipientID: nextID("user"),
		ActorID:     nextID("user"),
		PostID:      nextID("post"),
		Kind:        "post_liked",
		CreatedAt:   time.Now(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return &domain.Notification{
		ID:          o.ID,
		RecipientID: o.RecipientID,
		ActorID:     o.ActorID,
		PostID:      o.PostID,
		Kind:        o.Kind,
		IsRead:      o.IsRead,
		CreatedAt:   o.CreatedAt,
	}
}

// Notification option functions

// WithRecipientID sets the notification recipient
func WithRecipientID(userID string) func(*NotificationOptions) {
	return func(o *NotificationOptions) {
		o.RecipientID = userID
	}
}

// WithNotificationKind sets the notification kind
func WithNotificationKind(kind string) func(*NotificationOptions) {
	return func(o *NotificationOptions) {
		o.Kind = kind
	}
}

// Batch creation helpers

// NewTestUsers creates multiple test users
func NewTestUsers(count int) []*domain.User {
	users := make([]*domain.User, count)
	for i := 0; i < count; i++ {
		users[i] = NewTestUser()
	}
	return users
}

// NewTestPosts creates multiple test posts by the same author
func NewTestPosts(userID string, count int) []*domain.Post {
	posts := make([]*domain.Post, count)
	for i := 0; i < count; i++ {
		posts[i] = NewTestPost(
			WithPostUserID(userID),
			WithPostCreatedAt(time.Now().Add(time.Duration(i)*time.Second)),
		)
	}
	return posts
}

// ResetIDCounter resets the ID counter (useful for deterministic tests)
func ResetIDCounter() {
	idCounter.Store(0)
}
