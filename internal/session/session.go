// Package session tracks which self-destructing messages a decoder client has
// already been shown.
//
// A message that was viewed elsewhere but never displayed to this session is
// still decodable unless the server runs in strict mode; that mirrors the
// single-view semantics of the browser app, where the "already shown" flag
// lived in the page.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one decoder client. All methods are safe for concurrent use.
type Session struct {
	ID string

	mu        sync.Mutex
	displayed map[string]bool
	lastSeen  time.Time
}

// New returns a session with a fresh random id.
func New() *Session {
	return newSession(uuid.NewString())
}

func newSession(id string) *Session {
	return &Session{ID: id, displayed: make(map[string]bool), lastSeen: time.Now()}
}

// Displayed reports whether messageID was already shown in this session.
func (s *Session) Displayed(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayed[messageID]
}

// MarkDisplayed records that messageID was shown.
func (s *Session) MarkDisplayed(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayed[messageID] = true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Store maps session ids to sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get returns the session for id, creating it when id is unknown. An empty or
// malformed id gets a brand-new session with a fresh id; callers should hand
// that id back to the client.
func (st *Store) Get(id string) *Session {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		s = newSession(id)
		st.sessions[id] = s
	}
	s.touch(time.Now())
	return s
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Evict drops sessions idle for longer than idle and returns how many went.
func (st *Store) Evict(idle time.Duration) int {
	now := time.Now()
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, s := range st.sessions {
		if s.idleSince(now) > idle {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}
