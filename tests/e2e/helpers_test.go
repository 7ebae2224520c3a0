//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestClient wraps http.Client with bearer token handling for a single
// user session
type TestClient struct {
	*http.Client
	t            *testing.T
	accessToken  string
	refreshToken string
	userID       string
	nickname     string
}

// NewTestClient creates a new test client
func NewTestClient(t *testing.T) *TestClient {
	return &TestClient{
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		t: t,
	}
}

// envelope mirrors the uniform response body every endpoint returns
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Response types

type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Bio       string `json:"bio,omitempty"`
	CreatedAt string `json:"created_at"`
}

type SessionResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresAt    string        `json:"expires_at"`
	User         *UserResponse `json:"user,omitempty"`
}

type PostResponse struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Nickname      string          `json:"nickname"`
	Content       string          `json:"content"`
	ImageURL      string          `json:"image_url,omitempty"`
	LocationData  json.RawMessage `json:"location_data,omitempty"`
	WeatherData   json.RawMessage `json:"weather_data,omitempty"`
	LikesCount    int             `json:"likes_count"`
	CommentsCount int             `json:"comments_count"`
	RewardsCount  int             `json:"rewards_count"`
	IsLiked       bool            `json:"is_liked"`
	CreatedAt     string          `json:"created_at"`
}

type PaginationResponse struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type PostPageResponse struct {
	Posts      []PostResponse      `json:"posts"`
	Pagination *PaginationResponse `json:"pagination"`
}

type CommentResponse struct {
	ID        string `json:"id"`
	PostID    string `json:"post_id"`
	UserID    string `json:"user_id"`
	Nickname  string `json:"nickname"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type CommentPageResponse struct {
	Comments   []CommentResponse   `json:"comments"`
	Pagination *PaginationResponse `json:"pagination"`
}

type LikeResponse struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

type StatsResponse struct {
	PostCount        int `json:"post_count"`
	LikesReceived    int `json:"likes_received"`
	CommentsReceived int `json:"comments_received"`
	RewardsReceived  int `json:"rewards_received"`
}

type NotificationResponse struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipient_id"`
	ActorID     string `json:"actor_id"`
	PostID      string `json:"post_id"`
	Kind        string `json:"kind"`
	IsRead      bool   `json:"is_read"`
	CreatedAt   string `json:"created_at"`
}

// Register creates a new account and stores the issued tokens
func (tc *TestClient) Register(email, password, nickname string) (*SessionResponse, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
		"nickname": nickname,
	}

	var session SessionResponse
	if err := tc.doJSON(http.MethodPost, "/api/v1/auth/register", body, http.StatusCreated, &session); err != nil {
		return nil, err
	}

	tc.adoptSession(&session)
	return &session, nil
}

// Login signs in and stores the issued tokens
func (tc *TestClient) Login(email, password string) (*SessionResponse, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}

	var session SessionResponse
	if err := tc.doJSON(http.MethodPost, "/api/v1/auth/login", body, http.StatusOK, &session); err != nil {
		return nil, err
	}

	tc.adoptSession(&session)
	return &session, nil
}

// Refresh exchanges the stored refresh token for a fresh pair
func (tc *TestClient) Refresh() (*SessionResponse, error) {
	body := map[string]string{"refresh_token": tc.refreshToken}

	var session SessionResponse
	if err := tc.doJSON(http.MethodPost, "/api/v1/auth/refresh", body, http.StatusOK, &session); err != nil {
		return nil, err
	}

	tc.accessToken = session.AccessToken
	tc.refreshToken = session.RefreshToken
	return &session, nil
}

// Logout revokes the stored refresh token
func (tc *TestClient) Logout() error {
	body := map[string]string{"refresh_token": tc.refreshToken}

	if err := tc.doJSON(http.MethodPost, "/api/v1/auth/logout", body, http.StatusOK, nil); err != nil {
		return err
	}

	tc.accessToken = ""
	tc.refreshToken = ""
	return nil
}

// GetMe returns the current account
func (tc *TestClient) GetMe() (*UserResponse, error) {
	var user UserResponse
	if err := tc.doJSON(http.MethodGet, "/api/v1/auth/me", nil, http.StatusOK, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreatePost publishes a journal entry
func (tc *TestClient) CreatePost(content string) (*PostResponse, error) {
	body := map[string]string{"content": content}

	var post PostResponse
	if err := tc.doJSON(http.MethodPost, "/api/v1/posts", body, http.StatusCreated, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// ListPosts fetches a page of the shared feed
func (tc *TestClient) ListPosts(page, limit int, sortType string) (*PostPageResponse, error) {
	path := fmt.Sprintf("/api/v1/posts?page=%d&limit=%d&sort_type=%s", page, limit, sortType)

	var result PostPageResponse
	if err := tc.doJSON(http.MethodGet, path, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPost fetches a single post
func (tc *TestClient) GetPost(postID string) (*PostResponse, error) {
	var post PostResponse
	if err := tc.doJSON(http.MethodGet, "/api/v1/posts/"+postID, nil, http.StatusOK, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost removes one of the caller's posts
func (tc *TestClient) DeletePost(postID string) error {
	return tc.doJSON(http.MethodDelete, "/api/v1/posts/"+postID, nil, http.StatusOK, nil)
}

// ToggleLike flips the caller's like on a post
func (tc *TestClient) ToggleLike(postID string) (*LikeResponse, error) {
	var result LikeResponse
	if err := tc.doJSON(http.MethodPost, "/api/v1/posts/"+postID+"/like", nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddComment comments on a post
func (tc *TestClient) AddComment(postID, content string) (*CommentResponse, error) {
	body := map[string]string{"content": content}

	var comment CommentResponse
	if err := tc.doJSON(http.MethodPost, "/api/v1/posts/"+postID+"/comments", body, http.StatusCreated, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListComments fetches a page of comments on a post
func (tc *TestClient) ListComments(postID string, page, limit int) (*CommentPageResponse, error) {
	path := fmt.Sprintf("/api/v1/posts/%s/comments?page=%d&limit=%d", postID, page, limit)

	var result CommentPageResponse
	if err := tc.doJSON(http.MethodGet, path, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RewardPost sends a reward to a post
func (tc *TestClient) RewardPost(postID string) error {
	return tc.doJSON(http.MethodPost, "/api/v1/posts/"+postID+"/reward", nil, http.StatusOK, nil)
}

// GetStats returns the caller's activity counters
func (tc *TestClient) GetStats() (*StatsResponse, error) {
	var stats StatsResponse
	if err := tc.doJSON(http.MethodGet, "/api/v1/users/stats", nil, http.StatusOK, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetNotifications returns the caller's notifications, newest first
func (tc *TestClient) GetNotifications() ([]NotificationResponse, error) {
	var notifications []NotificationResponse
	if err := tc.doJSON(http.MethodGet, "/api/v1/users/notifications", nil, http.StatusOK, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkNotificationRead marks one of the caller's notifications as read
func (tc *TestClient) MarkNotificationRead(notificationID string) error {
	return tc.doJSON(http.MethodPut, "/api/v1/users/notifications/"+notificationID+"/read", nil, http.StatusOK, nil)
}

// doJSON performs a request, checks the status, and decodes the envelope
// data into out when out is non-nil
func (tc *TestClient) doJSON(method, path string, body any, wantStatus int, out any) error {
	resp, err := tc.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode envelope: %w", err)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode envelope data: %w", err)
	}

	return nil
}

// do performs a raw request with the stored bearer token attached
func (tc *TestClient) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}

	return tc.Do(req)
}

func (tc *TestClient) adoptSession(session *SessionResponse) {
	tc.accessToken = session.AccessToken
	tc.refreshToken = session.RefreshToken
	if session.User != nil {
		tc.userID = session.User.ID
		tc.nickname = session.User.Nickname
	}
}

// WebSocket helpers

// FeedClient represents a live feed subscriber for testing
type FeedClient struct {
	t        *testing.T
	conn     *websocket.Conn
	messages chan FeedMessage
	done     chan struct{}
}

// FeedMessage represents a frame pushed by the feed hub
type FeedMessage struct {
	Type string        `json:"type"`
	Post *PostResponse `json:"post,omitempty"`
}

// ConnectFeed subscribes to the live post feed via WebSocket
func (tc *TestClient) ConnectFeed() (*FeedClient, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+tc.accessToken)

	conn, _, err := dialer.Dial(wsURL+"/api/v1/feed", header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to feed: %w", err)
	}

	fc := &FeedClient{
		t:        tc.t,
		conn:     conn,
		messages: make(chan FeedMessage, 100),
		done:     make(chan struct{}),
	}

	go fc.readLoop()

	return fc, nil
}

// readLoop reads frames from the WebSocket connection
func (fc *FeedClient) readLoop() {
	defer close(fc.messages)

	for {
		select {
		case <-fc.done:
			return
		default:
			_, data, err := fc.conn.ReadMessage()
			if err != nil {
				// Connection closed
				return
			}

			var msg FeedMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				fc.t.Logf("failed to unmarshal feed message: %v", err)
				continue
			}

			select {
			case fc.messages <- msg:
			default:
				fc.t.Log("message channel full, dropping message")
			}
		}
	}
}

// WaitForPost waits for a new_post frame matching the predicate
func (fc *FeedClient) WaitForPost(timeout time.Duration, predicate func(*PostResponse) bool) (*PostResponse, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-fc.messages:
			if !ok {
				return nil, fmt.Errorf("connection closed while waiting for post")
			}
			if msg.Type == "new_post" && msg.Post != nil && predicate(msg.Post) {
				return msg.Post, nil
			}
		case <-timer.C:
			return nil, fmt.Errorf("timeout waiting for post")
		}
	}
}

// DrainMessages clears all pending frames
func (fc *FeedClient) DrainMessages() {
	for {
		select {
		case <-fc.messages:
		default:
			return
		}
	}
}

// Close closes the WebSocket connection
func (fc *FeedClient) Close() error {
	close(fc.done)
	return fc.conn.Close()
}

// Test helpers

// uniqueEmail generates a unique email for testing
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s_%d@test.com", prefix, time.Now().UnixNano())
}

// uniqueNickname generates a unique nickname for testing
func uniqueNickname(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

// setupTestUser registers a fresh user, returning the signed-in client
func setupTestUser(t *testing.T, prefix string) *TestClient {
	t.Helper()

	client := NewTestClient(t)

	_, err := client.Register(uniqueEmail(prefix), "password123", uniqueNickname(prefix))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}

	return client
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// assertEqual checks if two values are equal
func assertEqual[T comparable](t *testing.T, got, want T, msg string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}
