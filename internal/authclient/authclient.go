// Package authclient drives the authentication lifecycle for a client
// process: sign in/up, startup restoration, sign out and auth state
// subscriptions, built on the request gateway and session store.
package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"littlejoys/internal/credentials"
	"littlejoys/internal/gateway"
	"littlejoys/internal/session"
)

const (
	loginPath    = "/api/v1/auth/login"
	registerPath = "/api/v1/auth/register"
	logoutPath   = "/api/v1/auth/logout"
	mePath       = "/api/v1/auth/me"
)

var (
	ErrSignInFailed = errors.New("sign in failed")
	ErrSignUpFailed = errors.New("sign up failed")
)

// accountPayload is the user object the auth endpoints return.
type accountPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// authPayload is the data section of a successful login or register response.
type authPayload struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         accountPayload `json:"user"`
}

// Client binds the gateway, credential manager and session store into the
// auth operations the rest of the client calls.
type Client struct {
	gw      *gateway.Gateway
	creds   *credentials.Manager
	session *session.Store
}

func New(gw *gateway.Gateway, creds *credentials.Manager, sess *session.Store) *Client {
	return &Client{gw: gw, creds: creds, session: sess}
}

// SignIn authenticates with email and password. On success the token pair is
// persisted and the session store reflects the signed-in user. The loading
// flag is raised for the duration of the call and guaranteed to be lowered on
// every exit path.
func (c *Client) SignIn(ctx context.Context, email, password string) (*session.User, error) {
	c.session.SetLoading(true)
	defer c.session.SetLoading(false)

	env, err := c.gw.Post(ctx, loginPath, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignInFailed, err)
	}
	return c.adoptSession(env.Data)
}

// SignUp registers a new account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password, nickname string) (*session.User, error) {
	c.session.SetLoading(true)
	defer c.session.SetLoading(false)

	env, err := c.gw.Post(ctx, registerPath, map[string]string{
		"email":    email,
		"password": password,
		"nickname": nickname,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignUpFailed, err)
	}
	return c.adoptSession(env.Data)
}

// GetCurrentUser fetches the account behind the stored token and syncs the
// session store with it. A 401 has already torn the session down by the time
// the gateway returns, so the caller only sees a nil user.
func (c *Client) GetCurrentUser(ctx context.Context) (*session.User, error) {
	env, err := c.gw.Get(ctx, mePath)
	if err != nil {
		if errors.Is(err, gateway.ErrUnauthorized) {
			return nil, nil
		}
		return nil, err
	}

	var account accountPayload
	if err := json.Unmarshal(env.Data, &account); err != nil {
		return nil, fmt.Errorf("decode current user: %w", err)
	}
	user := toSessionUser(account)
	c.session.SetUser(user)
	return user, nil
}

// RefreshSession attempts a single token refresh and, when it succeeds,
// re-syncs the current user.
func (c *Client) RefreshSession(ctx context.Context) bool {
	if !c.gw.TryRefreshToken(ctx) {
		return false
	}
	_, err := c.GetCurrentUser(ctx)
	return err == nil
}

// SignOut ends the session. The server is told on a best-effort basis; local
// state is cleared unconditionally, so SignOut never fails from the caller's
// point of view.
func (c *Client) SignOut(ctx context.Context) {
	// Revocation failure is not the user's problem
	_, _ = c.gw.Post(ctx, logoutPath, map[string]string{
		"refresh_token": c.creds.RefreshToken(),
	})

	c.creds.PurgeAll()
	c.session.ClearUser()
}

// InitializeAuth restores the session at process start. With a usable or
// refreshable token the current user is loaded; otherwise local auth state
// ends up empty. The loading flag brackets the whole restoration.
func (c *Client) InitializeAuth(ctx context.Context) {
	c.session.SetLoading(true)
	defer c.session.SetLoading(false)

	if c.gw.EnsureValidToken(ctx) == "" {
		c.session.ClearUser()
		return
	}
	if _, err := c.GetCurrentUser(ctx); err != nil {
		c.session.ClearUser()
	}
}

// OnAuthStateChange registers a listener for session state transitions and
// returns its unsubscribe function.
func (c *Client) OnAuthStateChange(l session.Listener) func() {
	return c.session.Subscribe(l)
}

// adoptSession persists the token pair from an auth response and moves the
// session store to the signed-in user.
func (c *Client) adoptSession(data json.RawMessage) (*session.User, error) {
	var payload authPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, errors.New("auth response carried no access token")
	}

	info := &credentials.UserInfo{
		ID:        payload.User.ID,
		Email:     payload.User.Email,
		Nickname:  payload.User.Nickname,
		AvatarURL: payload.User.AvatarURL,
	}
	if err := c.creds.Save(payload.AccessToken, payload.RefreshToken, info); err != nil {
		return nil, fmt.Errorf("persist credentials: %w", err)
	}

	user := toSessionUser(payload.User)
	c.session.SetUser(user)
	return user, nil
}

func toSessionUser(account accountPayload) *session.User {
	meta := map[string]string{}
	if account.Nickname != "" {
		meta["nickname"] = account.Nickname
	}
	if account.AvatarURL != "" {
		meta["avatar_url"] = account.AvatarURL
	}
	if len(meta) == 0 {
		meta = nil
	}
	return &session.User{
		ID:        account.ID,
		Email:     account.Email,
		CreatedAt: account.CreatedAt,
		Metadata:  meta,
	}
}
