// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the littlejoys application.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"littlejoys/internal/domain"
)

// Common test errors
var (
	ErrMockNotImplemented = errors.New("mock function not implemented")
	ErrMockNotFound       = errors.New("mock: not found")
)

// MockUserRepository implements domain.UserRepository for testing
type MockUserRepository struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	CreateFunc        func(ctx context.Context, user *domain.User) error
	GetByIDFunc       func(ctx context.Context, id string) (*domain.User, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*domain.User, error)
	UpdateProfileFunc func(ctx context.Context, id string, update *domain.ProfileUpdate) (*domain.User, error)
	StatsFunc         func(ctx context.Context, id string) (*domain.UserStats, error)

	// In-memory storage for simple tests
	Users map[string]*domain.User
}

// NewMockUserRepository creates a new MockUserRepository with initialized maps
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users: make(map[string]*domain.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Users == nil {
		m.Users = make(map[string]*domain.User)
	}

	// Check for duplicates
	for _, u := range m.Users {
		if u.Email == user.Email {
			return domain.ErrEmailExists
		}
	}

	if user.ID == "" {
		user.ID = "user-" + user.Nickname
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m.Users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if user, ok := m.Users[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.Users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, id string, update *domain.ProfileUpdate) (*domain.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, id, update)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.Users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	user.Nickname = update.Nickname
	user.Bio = update.Bio
	user.AvatarURL = update.AvatarURL
	return user, nil
}

func (m *MockUserRepository) Stats(ctx context.Context, id string) (*domain.UserStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, id)
	}
	return &domain.UserStats{}, nil
}

// MockRefreshTokenRepository implements domain.RefreshTokenRepository for testing
type MockRefreshTokenRepository struct {
	mu sync.RWMutex

	// Function overrides
	CreateFunc        func(ctx context.Context, token *domain.RefreshToken) error
	GetByTokenFunc    func(ctx context.Context, token string) (*domain.RefreshToken, error)
	DeleteFunc        func(ctx context.Context, token string) error
	DeleteByUserFunc  func(ctx context.Context, userID string) error
	DeleteExpiredFunc func(ctx context.Context) (int64, error)

	// In-memory storage
	Tokens map[string]*domain.RefreshToken
}

// NewMockRefreshTokenRepository creates a new MockRefreshTokenRepository
func NewMockRefreshTokenRepository() *MockRefreshTokenRepository {
	return &MockRefreshTokenRepository{
		Tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *MockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Tokens == nil {
		m.Tokens = make(map[string]*domain.RefreshToken)
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	m.Tokens[token.Token] = token
	return nil
}

func (m *MockRefreshTokenRepository) GetByToken(ctx context.Context, value string) (*domain.RefreshToken, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, value)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	token, ok := m.Tokens[value]
	if !ok {
		return nil, domain.ErrRefreshTokenNotFound
	}
	if token.ExpiresAt.Before(time.Now()) {
		return nil, domain.ErrRefreshTokenExpired
	}
	return token, nil
}

func (m *MockRefreshTokenRepository) Delete(ctx context.Context, value string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Tokens, value)
	return nil
}

func (m *MockRefreshTokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	if m.DeleteByUserFunc != nil {
		return m.DeleteByUserFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for value, token := range m.Tokens {
		if token.UserID == userID {
			delete(m.Tokens, value)
		}
	}
	return nil
}

func (m *MockRefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	now := time.Now()
	for value, token := range m.Tokens {
		if token.ExpiresAt.Before(now) {
			delete(m.Tokens, value)
			removed++
		}
	}
	return removed, nil
}

// MockPostRepository implements domain.PostRepository for testing
type MockPostRepository struct {
	mu sync.RWMutex

	// Function overrides
	CreateFunc     func(ctx context.Context, post *domain.Post) error
	GetByIDFunc    func(ctx context.Context, id, viewerID string) (*domain.Post, error)
	ListFunc       func(ctx context.Context, opts domain.PostListOptions) (*domain.PostPage, error)
	SoftDeleteFunc func(ctx context.Context, id string) error
	OwnerOfFunc    func(ctx context.Context, id string) (string, error)
	AddRewardFunc  func(ctx context.Context, id string) error

	// In-memory storage
	Posts map[string]*domain.Post
}

// NewMockPostRepository creates a new MockPostRepository
func NewMockPostRepository() *MockPostRepository {
	return &MockPostRepository{
		Posts: make(map[string]*domain.Post),
	}
}

func (m *MockPostRepository) Create(ctx context.Context, post *domain.Post) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, post)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Posts == nil {
		m.Posts = make(map[string]*domain.Post)
	}
	if post.ID == "" {
		post.ID = nextID("post")
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	m.Posts[post.ID] = post
	return nil
}

func (m *MockPostRepository) GetByID(ctx context.Context, id, viewerID string) (*domain.Post, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id, viewerID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	post, ok := m.Posts[id]
	if !ok || post.IsDeleted {
		return nil, domain.ErrPostNotFound
	}
	return post, nil
}

func (m *MockPostRepository) List(ctx context.Context, opts domain.PostListOptions) (*domain.PostPage, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, opts)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	posts := make([]*domain.Post, 0, len(m.Posts))
	for _, post := range m.Posts {
		if post.IsDeleted {
			continue
		}
		if opts.UserID != "" && post.UserID != opts.UserID {
			continue
		}
		posts = append(posts, post)
	}
	return &domain.PostPage{
		Posts: posts,
		Pagination: &domain.Pagination{
			Page:  opts.Page,
			Limit: opts.Limit,
			Total: len(posts),
			Pages: 1,
		},
	}, nil
}

func (m *MockPostRepository) SoftDelete(ctx context.Context, id string) error {
	if m.SoftDeleteFunc != nil {
		return m.SoftDeleteFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	post, ok := m.Posts[id]
	if !ok || post.IsDeleted {
		return domain.ErrPostNotFound
	}
	post.IsDeleted = true
	return nil
}

func (m *MockPostRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	if m.OwnerOfFunc != nil {
		return m.OwnerOfFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	post, ok := m.Posts[id]
	if !ok || post.IsDeleted {
		return "", domain.ErrPostNotFound
	}
	return post.UserID, nil
}

func (m *MockPostRepository) AddReward(ctx context.Context, id string) error {
	if m.AddRewardFunc != nil {
		return m.AddRewardFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	post, ok := m.Posts[id]
	if !ok || post.IsDeleted {
		return domain.ErrPostNotFound
	}
	post.RewardsCount++
	return nil
}

// MockLikeRepository implements domain.LikeRepository for testing
type MockLikeRepository struct {
	mu sync.RWMutex

	// Function overrides
	ExistsFunc       func(ctx context.Context, postID, userID string) (bool, error)
	AddFunc          func(ctx context.Context, postID, userID string) error
	RemoveFunc       func(ctx context.Context, postID, userID string) error
	CountForPostFunc func(ctx context.Context, postID string) (int, error)

	// In-memory storage: postID -> userID -> liked
	Likes map[string]map[string]bool
}

// NewMockLikeRepository creates a new MockLikeRepository
func NewMockLikeRepository() *MockLikeRepository {
	return &MockLikeRepository{
		Likes: make(map[string]map[string]bool),
	}
}

func (m *MockLikeRepository) ensure(postID string) map[string]bool {
	if m.Likes == nil {
		m.Likes = make(map[string]map[string]bool)
	}
	if m.Likes[postID] == nil {
		m.Likes[postID] = make(map[string]bool)
	}
	return m.Likes[postID]
}

func (m *MockLikeRepository) Exists(ctx context.Context, postID, userID string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, postID, userID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Likes[postID][userID], nil
}

func (m *MockLikeRepository) Add(ctx context.Context, postID, userID string) error {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, postID, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(postID)[userID] = true
	return nil
}

func (m *MockLikeRepository) Remove(ctx context.Context, postID, userID string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, postID, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ensure(postID), userID)
	return nil
}

func (m *MockLikeRepository) CountForPost(ctx context.Context, postID string) (int, error) {
	if m.CountForPostFunc != nil {
		return m.CountForPostFunc(ctx, postID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Likes[postID]), nil
}

// MockCommentRepository implements domain.CommentRepository for testing
type MockCommentRepository struct {
	mu sync.RWMutex

	// Function overrides
	CreateFunc     func(ctx context.Context, comment *domain.Comment) error
	ListByPostFunc func(ctx context.Context, postID string, page, limit int) (*domain.CommentPage, error)

	// In-memory storage
	Comments []*domain.Comment
}

// NewMockCommentRepository creates a new MockCommentRepository
func NewMockCommentRepository() *MockCommentRepository {
	return &MockCommentRepository{}
}

func (m *MockCommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, comment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if comment.ID == "" {
		comment.ID = nextID("comment")
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	m.Comments = append(m.Comments, comment)
	return nil
}

func (m *MockCommentRepository) ListByPost(ctx context.Context, postID string, page, limit int) (*domain.CommentPage, error) {
	if m.ListByPostFunc != nil {
		return m.ListByPostFunc(ctx, postID, page, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	comments := make([]*domain.Comment, 0)
	for _, comment := range m.Comments {
		if comment.PostID == postID {
			comments = append(comments, comment)
		}
	}
	return &domain.CommentPage{
		Comments: comments,
		Pagination: &domain.Pagination{
			Page:  page,
			Limit: limit,
			Total: len(comments),
			Pages: 1,
		},
	}, nil
}

// MockNotificationRepository implements domain.NotificationRepository for testing
type MockNotificationRepository struct {
	mu sync.RWMutex

	// Function overrides
	CreateFunc          func(ctx context.Context, n *domain.Notification) error
	ListByRecipientFunc func(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error)
	MarkReadFunc        func(ctx context.Context, id, recipientID string) error

	// In-memory storage
	Notifications []*domain.Notification
}

// NewMockNotificationRepository creates a new MockNotificationRepository
func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if n.ID == "" {
		n.ID = nextID("notification")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	m.Notifications = append(m.Notifications, n)
	return nil
}

func (m *MockNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error) {
	if m.ListByRecipientFunc != nil {
		return m.ListByRecipientFunc(ctx, recipientID, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Notification, 0)
	for _, n := range m.Notifications {
		if n.RecipientID == recipientID && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, id, recipientID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, n := range m.Notifications {
		if n.ID == id && n.RecipientID == recipientID {
			n.IsRead = true
			return nil
		}
	}
	return nil
}
