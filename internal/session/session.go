// Package session keeps per-visitor state between requests. Sessions are
// persisted in a Store (memory or redis) and bound to the browser by a signed
// cookie holding the session id.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session errors.
var (
	ErrNotFound = errors.New("session: not found")
	ErrExpired  = errors.New("session: expired")
)

// Session is the server-side state of one visitor.
type Session struct {
	ID        string            `json:"id"`
	PersonID  string            `json:"person_id,omitempty"`
	Values    map[string]string `json:"values,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`

	dirty bool
}

// New creates an anonymous session expiring after ttl. It is only persisted
// once something is stored in it.
func New(ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Values:    make(map[string]string),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Authenticated reports whether a person is logged in on this session.
func (s *Session) Authenticated() bool {
	return s.PersonID != ""
}

// Login binds the session to a person.
func (s *Session) Login(personID string) {
	s.PersonID = personID
	s.dirty = true
}

// Logout unbinds the person and drops all values.
func (s *Session) Logout() {
	s.PersonID = ""
	s.Values = make(map[string]string)
	s.dirty = true
}

// Get returns a stored value.
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// Set stores a value and marks the session dirty.
func (s *Session) Set(key, value string) {
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	s.Values[key] = value
	s.dirty = true
}

// Delete removes a value. The session only becomes dirty if the key existed.
func (s *Session) Delete(key string) {
	if _, ok := s.Values[key]; ok {
		delete(s.Values, key)
		s.dirty = true
	}
}

// Dirty reports whether the session has unsaved changes.
func (s *Session) Dirty() bool { return s.dirty }

// Expired reports whether the session is past its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// TTL returns the remaining lifetime.
func (s *Session) TTL() time.Duration {
	return time.Until(s.ExpiresAt)
}

func (s *Session) clean() { s.dirty = false }

// touch extends the expiry when more than half the lifetime has elapsed, so
// active sessions are not written on every request.
func (s *Session) touch(ttl time.Duration) {
	if time.Until(s.ExpiresAt) < ttl/2 {
		s.ExpiresAt = time.Now().Add(ttl)
		s.dirty = true
	}
}
