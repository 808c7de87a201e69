// Package session keeps each user's classified transaction set in memory.
// Sessions are isolated from one another and nothing is persisted.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

// Session is a snapshot of one user's state.
type Session struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// LastSeen is the last time the session was created, read or changed.
	LastSeen time.Time `json:"last_seen"`

	set *domain.ClassifiedSet
}

// Set returns the session's classified set, or nil when none is loaded.
func (s *Session) Set() *domain.ClassifiedSet {
	return s.set
}

// HasData reports whether a classified set is loaded.
func (s *Session) HasData() bool {
	return s.set != nil
}

// Store is an in-memory session registry, safe for concurrent use.
// The set held by a session is only ever swapped wholesale.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store. Sessions idle longer than ttl are dropped by
// Expire; ttl <= 0 disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers an empty session.
func (s *Store) Create() *Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
		LastSeen:  now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	c := *sess
	return &c
}

// Get returns a copy of the session and marks it as seen, so sessions
// that are only being read do not expire.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("Get: %s: %w", id, ErrNotFound)
	}
	sess.LastSeen = s.now()
	c := *sess
	return &c, nil
}

// Replace installs set as the session's data, discarding the previous one.
func (s *Store) Replace(id string, set *domain.ClassifiedSet) error {
	if set == nil {
		return fmt.Errorf("Replace: nil set for session %s", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("Replace: %s: %w", id, ErrNotFound)
	}
	sess.set = set
	sess.UpdatedAt = s.now()
	sess.LastSeen = sess.UpdatedAt
	return nil
}

// Clear drops the session's data but keeps the session itself.
func (s *Store) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("Clear: %s: %w", id, ErrNotFound)
	}
	sess.set = nil
	sess.UpdatedAt = s.now()
	sess.LastSeen = sess.UpdatedAt
	return nil
}

// Delete removes the session entirely.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("Delete: %s: %w", id, ErrNotFound)
	}
	delete(s.sessions, id)
	return nil
}

// Expire removes sessions not seen for longer than the TTL and returns
// how many were removed.
func (s *Store) Expire(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeen) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
