// Package session holds the client's single source of truth for "who is
// logged in", persisted across restarts through a storage.Store.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"littlejoys/internal/credentials"
	"littlejoys/internal/storage"
)

// User is the identity record owned by the store. It is replaced wholesale
// on login and refresh, never mutated in place from outside.
type User struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// State is a snapshot of the session. IsAuthenticated is derived from User
// and never set independently of it.
type State struct {
	User            *User `json:"user"`
	IsAuthenticated bool  `json:"is_authenticated"`
	IsLoading       bool  `json:"-"`
}

// persistedState is what survives a restart. IsLoading is deliberately
// absent: a crash mid-load must not strand the next start in a loading state.
type persistedState struct {
	User            *User `json:"user"`
	IsAuthenticated bool  `json:"is_authenticated"`
}

// Listener is notified after every state transition
type Listener func(State)

// Store is the observable session store
type Store struct {
	mu        sync.RWMutex
	state     State
	store     storage.Store
	listeners map[int]Listener
	nextID    int
}

// NewStore creates a session store backed by the given storage. Any state
// persisted by a previous run is loaded; IsLoading always starts false.
func NewStore(st storage.Store) *Store {
	s := &Store{store: st, listeners: make(map[int]Listener)}

	if raw, ok := st.Get(credentials.KeySessionState); ok {
		var p persistedState
		if err := json.Unmarshal([]byte(raw), &p); err == nil && p.User != nil {
			s.state = State{User: p.User, IsAuthenticated: true}
		}
	}
	return s
}

// Snapshot returns the current session state
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetUser replaces the user record, recomputes IsAuthenticated, and ends any
// loading window
func (s *Store) SetUser(user *User) {
	s.mu.Lock()
	s.state = State{
		User:            user,
		IsAuthenticated: user != nil,
		IsLoading:       false,
	}
	s.persistLocked()
	state := s.state
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, state)
}

// SetLoading brackets an asynchronous resolution window
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.state.IsLoading = loading
	state := s.state
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, state)
}

// ClearUser resets the session to logged-out
func (s *Store) ClearUser() {
	s.SetUser(nil)
}

// UpdateUser shallow-merges fields into the current user. No-op when logged
// out.
func (s *Store) UpdateUser(update User) {
	s.mu.Lock()
	if s.state.User == nil {
		s.mu.Unlock()
		return
	}
	merged := *s.state.User
	if update.Email != "" {
		merged.Email = update.Email
	}
	if !update.CreatedAt.IsZero() {
		merged.CreatedAt = update.CreatedAt
	}
	for k, v := range update.Metadata {
		if merged.Metadata == nil {
			merged.Metadata = make(map[string]string)
		}
		merged.Metadata[k] = v
	}
	s.state.User = &merged
	s.persistLocked()
	state := s.state
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, state)
}

// Subscribe registers a listener for state transitions and returns an
// unsubscribe func. Always release the subscription on shutdown.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// persistLocked writes the durable slice of state. Caller must hold s.mu.
func (s *Store) persistLocked() {
	if s.state.User == nil {
		s.store.Delete(credentials.KeySessionState)
		return
	}
	data, err := json.Marshal(persistedState{
		User:            s.state.User,
		IsAuthenticated: s.state.IsAuthenticated,
	})
	if err != nil {
		return
	}
	s.store.Set(credentials.KeySessionState, string(data))
}

func (s *Store) listenersLocked() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}

func notify(listeners []Listener, state State) {
	for _, l := range listeners {
		l(state)
	}
}
