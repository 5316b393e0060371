// Package auth holds the explicit authentication context handed to every
// backend call, and the store that owns its lifecycle.
package auth

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// Session is the bearer token obtained at login. The zero value is unauthenticated.
type Session struct {
	Token     string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func NewSession(token, email string, now time.Time, ttl time.Duration) Session {
	s := Session{
		Token:    strings.TrimSpace(token),
		Email:    email,
		IssuedAt: now,
	}
	if ttl > 0 {
		s.ExpiresAt = now.Add(ttl)
	}
	return s
}

// Expired reports whether the session had an expiry and it has passed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && !s.Expired(now)
}

// Bearer returns the token to put in the Authorization header.
func (s Session) Bearer() (string, error) {
	if !s.Valid(time.Now()) {
		return "", ErrNotAuthenticated
	}
	return s.Token, nil
}

// Store keeps the current session: set at login, cleared at logout or expiry.
type Store struct {
	mu      sync.RWMutex
	session Session
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

func (s *Store) Set(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{}
}

// Current returns the live session. An expired session is dropped.
func (s *Store) Current() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Token == "" {
		return Session{}, ErrNotAuthenticated
	}
	if s.session.Expired(s.now()) {
		s.session = Session{}
		return Session{}, ErrNotAuthenticated
	}
	return s.session, nil
}
