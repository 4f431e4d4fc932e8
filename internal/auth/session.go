package auth

import (
	"sync"
	"time"
)

// SessionTimeout is the sliding inactivity window after which a
// session is treated as absent.
const SessionTimeout = 24 * time.Hour

type sessionRecord struct {
	userID       string
	createdAt    time.Time
	lastActivity time.Time
}

// SessionStore tracks active logins independently of the stateless
// tokens, enabling "log out everywhere" style operations. It is a
// single-process, in-memory structure guarded by one coarse lock: it
// does not survive restarts and is not shared across instances.
// Expiry is lazy — enforced on lookup, with no background sweep.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionRecord
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionRecord),
		now:      time.Now,
	}
}

// Create inserts a session, overwriting any prior record with the
// same id.
func (s *SessionStore) Create(sessionID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sessions[sessionID] = &sessionRecord{
		userID:       userID,
		createdAt:    now,
		lastActivity: now,
	}
}

// Get returns the owning user id and refreshes the activity timestamp.
// A record idle past SessionTimeout is evicted and reported absent.
func (s *SessionStore) Get(sessionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return "", false
	}
	now := s.now()
	if now.Sub(rec.lastActivity) > SessionTimeout {
		delete(s.sessions, sessionID)
		return "", false
	}
	rec.lastActivity = now
	return rec.userID, true
}

// Destroy removes a session. Idempotent.
func (s *SessionStore) Destroy(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// ListForUser scans all records for the user's session ids. Intended
// for low-cardinality administrative use, not a hot path.
func (s *SessionStore) ListForUser(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, rec := range s.sessions {
		if rec.userID == userID {
			ids = append(ids, id)
		}
	}
	return ids
}

// DestroyAllForUser removes every session the user owns and returns
// how many were removed.
func (s *SessionStore) DestroyAllForUser(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.sessions {
		if rec.userID == userID {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked sessions, expired or not. Feeds
// the active-sessions gauge.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
