// Package gateway wraps outbound API calls with bearer credentials and a
// uniform reaction to every failure class. Only a 401 changes session state;
// everything else surfaces a notification and leaves the session alone.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"littlejoys/internal/credentials"
	"littlejoys/internal/session"
)

const (
	// RequestTimeout bounds every gateway call
	RequestTimeout = 15 * time.Second
	// LoginPath is where a torn-down session is sent to re-authenticate
	LoginPath = "/login"

	refreshPath = "/api/v1/auth/refresh"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrServer       = errors.New("server error")
	ErrRequest      = errors.New("request failed")
)

// Notifier surfaces a single user-visible message per failure
type Notifier interface {
	Notify(message string)
}

// Navigator abstracts the UI's routing so teardown can be tested by
// asserting on the destination instead of observing real navigation
type Navigator interface {
	Navigate(path string)
	Current() string
}

// Envelope is the API's JSON wire contract
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Gateway issues authenticated requests against the API base URL
type Gateway struct {
	baseURL   string
	client    *http.Client
	creds     *credentials.Manager
	session   *session.Store
	notifier  Notifier
	navigator Navigator
}

// New creates a gateway. The HTTP client carries the fixed request timeout.
func New(baseURL string, creds *credentials.Manager, sess *session.Store, notifier Notifier, navigator Navigator) *Gateway {
	return &Gateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: RequestTimeout},
		creds:     creds,
		session:   sess,
		notifier:  notifier,
		navigator: navigator,
	}
}

// Get issues an authenticated GET
func (g *Gateway) Get(ctx context.Context, path string) (*Envelope, error) {
	return g.do(ctx, http.MethodGet, path, nil)
}

// Post issues an authenticated POST with a JSON body
func (g *Gateway) Post(ctx context.Context, path string, body any) (*Envelope, error) {
	return g.do(ctx, http.MethodPost, path, body)
}

// Put issues an authenticated PUT with a JSON body
func (g *Gateway) Put(ctx context.Context, path string, body any) (*Envelope, error) {
	return g.do(ctx, http.MethodPut, path, body)
}

// Delete issues an authenticated DELETE
func (g *Gateway) Delete(ctx context.Context, path string) (*Envelope, error) {
	return g.do(ctx, http.MethodDelete, path, nil)
}

func (g *Gateway) do(ctx context.Context, method, path string, body any) (*Envelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// A missing token sends the request unauthenticated; the server decides
	// whether the endpoint tolerates that
	if token := g.creds.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.notifyTransport(err)
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	env := &Envelope{}
	if decodeErr := json.NewDecoder(resp.Body).Decode(env); decodeErr != nil && decodeErr != io.EOF {
		// A non-envelope body still carries a meaningful status
		env = &Envelope{}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return env, nil
	}
	return env, g.handleFailure(resp.StatusCode, env)
}

// handleFailure maps a non-2xx status to a notification, and on 401 tears
// the session down. Teardown is completed synchronously before navigation so
// no caller ever observes a half-cleared session.
func (g *Gateway) handleFailure(status int, env *Envelope) error {
	switch status {
	case http.StatusUnauthorized:
		g.Teardown()
		return ErrUnauthorized

	case http.StatusForbidden:
		g.notifier.Notify("You do not have permission to access this resource")
		return ErrForbidden

	case http.StatusNotFound:
		g.notifier.Notify("The requested resource was not found")
		return ErrNotFound

	case http.StatusInternalServerError:
		g.notifier.Notify("Internal server error, please try again later")
		return ErrServer

	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		g.notifier.Notify("Service temporarily unavailable, please try again later")
		return ErrServer

	default:
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = "Request failed, please try again later"
		}
		g.notifier.Notify(msg)
		return fmt.Errorf("%w: status %d", ErrRequest, status)
	}
}

// Teardown invalidates the local session: every auth-related storage key is
// purged and the session store cleared before anything else runs, then the
// user is sent to the login entry point unless already there.
func (g *Gateway) Teardown() {
	g.creds.PurgeAll()
	g.session.ClearUser()
	g.notifier.Notify("Session expired, please log in again")

	if g.navigator.Current() != LoginPath {
		g.navigator.Navigate(LoginPath)
	}
}

// notifyTransport distinguishes a timed-out request from plain connectivity
// failure; neither touches session state
func (g *Gateway) notifyTransport(err error) {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		g.notifier.Notify("Request timed out, please check your connection")
		return
	}
	g.notifier.Notify("Network connection failed, please check your network")
}

// refreshResponse is the payload of a successful refresh exchange
type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
}

// TryRefreshToken exchanges the stored refresh token for a new pair. It is
// single-shot: any failure reports false and the caller treats the session
// as non-recoverable. The notification/teardown policy stays with the
// caller; a refresh attempt itself is silent.
func (g *Gateway) TryRefreshToken(ctx context.Context) bool {
	return g.tryRefreshWith(ctx, g.creds.RefreshToken())
}

func (g *Gateway) tryRefreshWith(ctx context.Context, refreshToken string) bool {
	if refreshToken == "" {
		return false
	}

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+refreshPath, bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	env := &Envelope{}
	if err := json.NewDecoder(resp.Body).Decode(env); err != nil {
		return false
	}
	var tokens refreshResponse
	if err := json.Unmarshal(env.Data, &tokens); err != nil || tokens.AccessToken == "" {
		return false
	}

	if err := g.creds.Save(tokens.AccessToken, tokens.RefreshToken, nil); err != nil {
		return false
	}
	return true
}

// EnsureValidToken resolves a usable access token, refreshing once if the
// stored one is gone or expired. On an unrecoverable session it tears down
// and returns "".
func (g *Gateway) EnsureValidToken(ctx context.Context) string {
	if token := g.creds.AccessToken(); token != "" {
		return token
	}
	if g.TryRefreshToken(ctx) {
		return g.creds.AccessToken()
	}
	g.Teardown()
	return ""
}
