package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"littlejoys/internal/credentials"
	"littlejoys/internal/session"
	"littlejoys/internal/storage"
)

type spyNotifier struct {
	messages []string
}

func (n *spyNotifier) Notify(msg string) { n.messages = append(n.messages, msg) }

type spyNavigator struct {
	current string
	visited []string
}

func (n *spyNavigator) Navigate(path string) { n.visited = append(n.visited, path) }
func (n *spyNavigator) Current() string      { return n.current }

type fixture struct {
	store     *storage.MemoryStore
	creds     *credentials.Manager
	session   *session.Store
	notifier  *spyNotifier
	navigator *spyNavigator
}

func newFixture(t *testing.T, baseURL string) (*Gateway, *fixture) {
	t.Helper()
	f := &fixture{
		store:     storage.NewMemoryStore(),
		notifier:  &spyNotifier{},
		navigator: &spyNavigator{current: "/feed"},
	}
	f.creds = credentials.NewManager(f.store)
	f.session = session.NewStore(f.store)
	return New(baseURL, f.creds, f.session, f.notifier, f.navigator), f
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwtlib.MapClaims{"sub": "u1", "email": "user@x.com", "exp": exp.Unix()}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func tokenExpiry(t *testing.T, tokenStr string) time.Time {
	t.Helper()
	claims := jwtlib.MapClaims{}
	_, _, err := jwtlib.NewParser().ParseUnverified(tokenStr, claims)
	require.NoError(t, err)
	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	return exp.Time
}

func envelopeJSON(success bool, data any) []byte {
	raw, _ := json.Marshal(data)
	out, _ := json.Marshal(Envelope{Success: success, Data: raw})
	return out
}

func TestGateway_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write(envelopeJSON(true, nil))
	}))
	defer srv.Close()

	gw, f := newFixture(t, srv.URL)
	tok := signedToken(t, time.Now().Add(time.Hour))
	require.NoError(t, f.creds.Save(tok, "", nil))

	_, err := gw.Get(context.Background(), "/api/v1/users/stats")
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+tok, gotAuth)
}

func TestGateway_ExpiredTokenSendsUnauthenticated(t *testing.T) {
	// With only an expired token available the request must carry no
	// Authorization header; the server's 401 then triggers teardown.
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"error":"invalid token"}`))
	}))
	defer srv.Close()

	gw, f := newFixture(t, srv.URL)
	f.store.Set(credentials.KeyAccessToken, signedToken(t, time.Now().Add(-time.Minute)))
	f.session.SetUser(&session.User{ID: "u1"})

	_, err := gw.Get(context.Background(), "/api/v1/users/stats")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, gotAuth)

	state := f.session.Snapshot()
	assert.Nil(t, state.User)
	assert.False(t, state.IsAuthenticated)
}

func TestGateway_SuccessfulRequestKeepsRefreshToken(t *testing.T) {
	// An expired access token makes the request go out unauthenticated, but
	// a 200 on a public endpoint must not touch the refresh token; the
	// session stays recoverable until logout or a 401.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelopeJSON(true, map[string]any{"posts": []any{}}))
	}))
	defer srv.Close()

	gw, f := newFixture(t, srv.URL)
	f.store.Set(credentials.KeyAccessToken, signedToken(t, time.Now().Add(-time.Minute)))
	f.store.Set(credentials.KeyRefreshToken, "valid-refresh-token")
	f.session.SetUser(&session.User{ID: "u1"})

	_, err := gw.Get(context.Background(), "/api/v1/posts")
	require.NoError(t, err)

	assert.Equal(t, "valid-refresh-token", f.creds.RefreshToken())
	state := f.session.Snapshot()
	assert.True(t, state.IsAuthenticated)
}

func TestGateway_TeardownOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	gw, f := newFixture(t, srv.URL)
	f.creds.Save(signedToken(t, time.Now().Add(time.Hour)), "refresh-1", &credentials.UserInfo{ID: "u1"})
	f.store.Set("sb-qnwmhygv-auth-token", `{"access_token":"x"}`)
	f.store.Set("legacy-auth-cache", "y")
	f.store.Set("theme", "dark")
	f.session.SetUser(&session.User{ID: "u1"})

	_, err := gw.Get(context.Background(), "/api/v1/users/stats")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// No auth-related key may survive teardown
	assert.Equal(t, []string{"theme"}, f.store.Keys())
	assert.False(t, f.session.Snapshot().IsAuthenticated)
	assert.Equal(t, []string{"Session expired, please log in again"}, f.notifier.messages)
	assert.Equal(t, []string{LoginPath}, f.navigator.visited)
}

func TestGateway_NoRedirectLoopAtLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	gw, f := newFixture(t, srv.URL)
	f.navigator.current = LoginPath
	f.session.SetUser(&session.User{ID: "u1"})

	_, err := gw.Get(context.Background(), "/api/v1/users/stats")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// State still cleared, but no navigation issued
	assert.False(t, f.session.Snapshot().IsAuthenticated)
	assert.Empty(t, f.navigator.visited)
}

func TestGateway_StatusNotifications(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    error
		wantNotice string
	}{
		{"forbidden", http.StatusForbidden, "", ErrForbidden, "You do not have permission to access this resource"},
		{"not_found", http.StatusNotFound, "", ErrNotFound, "The requested resource was not found"},
		{"internal_error", http.StatusInternalServerError, "", ErrServer, "Internal server error, please try again later"},
		{"bad_gateway", http.StatusBadGateway, "", ErrServer, "Service temporarily unavailable, please try again later"},
		{"service_unavailable", http.StatusServiceUnavailable, "", ErrServer, "Service temporarily unavailable, please try again later"},
		{"gateway_timeout", http.StatusGatewayTimeout, "", ErrServer, "Service temporarily unavailable, please try again later"},
		{"other_4xx_with_message", http.StatusUnprocessableEntity, `{"success":false,"error":"content is required"}`, ErrRequest, "content is required"},
		{"other_4xx_without_message", http.StatusTeapot, "", ErrRequest, "Request failed, please try again later"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != "" {
					w.Write([]byte(tt.body))
				}
			}))
			defer srv.Close()

			gw, f := newFixture(t, srv.URL)
			f.session.SetUser(&session.User{ID: "u1"})

			_, err := gw.Get(context.Background(), "/api/v1/posts")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, []string{tt.wantNotice}, f.notifier.messages)

			// Only 401 is session-invalidating
			assert.True(t, f.session.Snapshot().IsAuthenticated)
			assert.Empty(t, f.navigator.visited)
		})
	}
}

func TestGateway_TransportFailures(t *testing.T) {
	t.Run("timeout_distinguished", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		defer srv.Close()

		gw, f := newFixture(t, srv.URL)
		f.session.SetUser(&session.User{ID: "u1"})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := gw.Get(ctx, "/api/v1/posts")
		assert.ErrorIs(t, err, ErrRequest)
		assert.Equal(t, []string{"Request timed out, please check your connection"}, f.notifier.messages)
		assert.True(t, f.session.Snapshot().IsAuthenticated)
	})

	t.Run("connection_failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // nothing listening anymore

		gw, f := newFixture(t, srv.URL)
		f.session.SetUser(&session.User{ID: "u1"})

		_, err := gw.Get(context.Background(), "/api/v1/posts")
		assert.ErrorIs(t, err, ErrRequest)
		require.Len(t, f.notifier.messages, 1)
		assert.Equal(t, "Network connection failed, please check your network", f.notifier.messages[0])
		assert.True(t, f.session.Snapshot().IsAuthenticated)
	})
}

func TestGateway_TryRefreshToken(t *testing.T) {
	t.Run("refresh_then_retry_extends_expiry", func(t *testing.T) {
		newTok := ""
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v1/auth/refresh", r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "refresh-1", body["refresh_token"])
			w.Write(envelopeJSON(true, map[string]string{
				"access_token":  newTok,
				"refresh_token": "refresh-2",
			}))
		}))
		defer srv.Close()

		gw, f := newFixture(t, srv.URL)
		oldTok := signedToken(t, time.Now().Add(-time.Minute))
		newTok = signedToken(t, time.Now().Add(time.Hour))
		f.store.Set(credentials.KeyAccessToken, oldTok)
		f.store.Set(credentials.KeyRefreshToken, "refresh-1")

		require.True(t, gw.TryRefreshToken(context.Background()))

		got := f.creds.AccessToken()
		require.NotEmpty(t, got)
		assert.True(t, tokenExpiry(t, got).After(tokenExpiry(t, oldTok)),
			"refreshed token must expire strictly later than the original")
		assert.Equal(t, "refresh-2", f.creds.RefreshToken())
	})

	t.Run("no_refresh_token_fails_fast", func(t *testing.T) {
		gw, _ := newFixture(t, "http://127.0.0.1:0")
		assert.False(t, gw.TryRefreshToken(context.Background()))
	})

	t.Run("provider_rejection_not_retried", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		gw, f := newFixture(t, srv.URL)
		f.store.Set(credentials.KeyRefreshToken, "refresh-1")

		assert.False(t, gw.TryRefreshToken(context.Background()))
		assert.Equal(t, 1, calls, "refresh is single-shot")
	})
}

func TestGateway_EnsureValidToken(t *testing.T) {
	t.Run("valid_token_short_circuits", func(t *testing.T) {
		gw, f := newFixture(t, "http://127.0.0.1:0")
		tok := signedToken(t, time.Now().Add(time.Hour))
		f.store.Set(credentials.KeyAccessToken, tok)

		assert.Equal(t, tok, gw.EnsureValidToken(context.Background()))
	})

	t.Run("expired_access_token_refreshed_once", func(t *testing.T) {
		newTok := ""
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v1/auth/refresh", r.URL.Path)
			w.Write(envelopeJSON(true, map[string]string{"access_token": newTok}))
		}))
		defer srv.Close()

		gw, f := newFixture(t, srv.URL)
		newTok = signedToken(t, time.Now().Add(time.Hour))
		f.store.Set(credentials.KeyAccessToken, signedToken(t, time.Now().Add(-time.Minute)))
		f.store.Set(credentials.KeyRefreshToken, "refresh-1")

		assert.Equal(t, newTok, gw.EnsureValidToken(context.Background()))
	})

	t.Run("unrecoverable_session_tears_down", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		gw, f := newFixture(t, srv.URL)
		f.store.Set(credentials.KeyRefreshToken, "dead-refresh")
		f.session.SetUser(&session.User{ID: "u1"})

		assert.Empty(t, gw.EnsureValidToken(context.Background()))
		assert.False(t, f.session.Snapshot().IsAuthenticated)
		assert.Equal(t, []string{LoginPath}, f.navigator.visited)
	})
}
