// Package credentials resolves, normalizes, and purges the client's bearer
// credentials. It is the only package that touches storage keys directly;
// every other component goes through the Manager.
package credentials

import (
	"encoding/json"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"littlejoys/internal/storage"
)

// Canonical storage keys. Tokens found anywhere else are migrated here.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserInfo     = "user_info"
	// KeySessionState holds the persisted session store blob
	KeySessionState = "auth-storage"
)

// expirySkew is the safety margin subtracted from a token's true expiry so a
// request is never sent with a token about to expire mid-flight
const expirySkew = 30 * time.Second

// Substrings that mark a storage key as auth-related. Teardown purges every
// key matching one of these, whatever convention produced it.
var authKeyMarkers = []string{"auth", "token", "supabase", "sb-"}

// providerSession is the provider SDK's own session blob (sb-<ref>-auth-token)
type providerSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// UserInfo is the cached identity stored alongside the tokens
type UserInfo struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Nickname  string `json:"nickname,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Manager reads and writes credential state in a storage.Store
type Manager struct {
	store storage.Store
}

// NewManager creates a credential manager over the given store
func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

// AccessToken resolves a currently valid bearer token, or "" if none exists.
// Lookup order: canonical key, the provider's own session key, then any other
// auth-looking key. A valid token found outside the canonical key is copied
// there so later lookups short-circuit on the first step. Expired tokens are
// deleted wherever they are found. This never fails; absence is "".
func (m *Manager) AccessToken() string {
	if tok, ok := m.store.Get(KeyAccessToken); ok {
		if !IsExpired(tok) {
			return tok
		}
		// Only the dead access token goes; the refresh token stays usable
		// until logout or a server 401
		m.store.Delete(KeyAccessToken)
	}

	for _, key := range m.store.Keys() {
		if !isProviderSessionKey(key) {
			continue
		}
		raw, ok := m.store.Get(key)
		if !ok {
			continue
		}
		var sess providerSession
		if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.AccessToken == "" {
			continue
		}
		if IsExpired(sess.AccessToken) {
			m.store.Delete(key)
			continue
		}
		m.migrate(sess)
		return sess.AccessToken
	}

	// Last resort: anything that looks auth-related and carries a token
	for _, key := range m.store.Keys() {
		if key == KeyAccessToken || key == KeySessionState || isProviderSessionKey(key) {
			continue
		}
		if !isAuthKey(key) {
			continue
		}
		raw, ok := m.store.Get(key)
		if !ok {
			continue
		}
		var sess providerSession
		if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.AccessToken == "" {
			continue
		}
		if IsExpired(sess.AccessToken) {
			m.store.Delete(key)
			continue
		}
		m.migrate(sess)
		return sess.AccessToken
	}

	return ""
}

// RefreshToken returns the stored refresh token, or "" if none exists
func (m *Manager) RefreshToken() string {
	tok, _ := m.store.Get(KeyRefreshToken)
	return tok
}

// UserInfo returns the cached identity record, or nil if none exists
func (m *Manager) UserInfo() *UserInfo {
	raw, ok := m.store.Get(KeyUserInfo)
	if !ok {
		return nil
	}
	var info UserInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil
	}
	return &info
}

// Save persists a credential set under the canonical keys
func (m *Manager) Save(accessToken, refreshToken string, info *UserInfo) error {
	if err := m.store.Set(KeyAccessToken, accessToken); err != nil {
		return err
	}
	if refreshToken != "" {
		if err := m.store.Set(KeyRefreshToken, refreshToken); err != nil {
			return err
		}
	}
	if info != nil {
		data, err := json.Marshal(info)
		if err != nil {
			return err
		}
		return m.store.Set(KeyUserInfo, string(data))
	}
	return nil
}

// Clear removes the canonical credential keys (plain logout)
func (m *Manager) Clear() {
	m.store.Delete(KeyAccessToken)
	m.store.Delete(KeyRefreshToken)
	m.store.Delete(KeyUserInfo)
}

// PurgeAll removes every auth-related key: canonical keys, the persisted
// session blob, provider-managed keys, and any ad hoc key matching the auth
// markers. Used by session teardown, which must leave nothing behind.
func (m *Manager) PurgeAll() {
	m.Clear()
	m.store.Delete(KeySessionState)
	for _, key := range m.store.Keys() {
		if isAuthKey(key) {
			m.store.Delete(key)
		}
	}
}

// migrate copies a provider session into the canonical keys
func (m *Manager) migrate(sess providerSession) {
	m.store.Set(KeyAccessToken, sess.AccessToken)
	if sess.RefreshToken != "" {
		m.store.Set(KeyRefreshToken, sess.RefreshToken)
	}
}

// IsExpired reports whether a JWT's exp claim is within the skew window of
// now. The payload is decoded without signature verification; the server is
// the authority on validity, this only avoids sending obviously dead tokens.
// A token that cannot be parsed is treated as expired (fail closed).
func IsExpired(tokenStr string) bool {
	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return true
	}
	if exp == nil {
		// No expiry claim means nothing to check against
		return false
	}
	return exp.Time.Before(time.Now().Add(expirySkew))
}

func isProviderSessionKey(key string) bool {
	return strings.HasPrefix(key, "sb-") && strings.HasSuffix(key, "-auth-token")
}

func isAuthKey(key string) bool {
	for _, marker := range authKeyMarkers {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
