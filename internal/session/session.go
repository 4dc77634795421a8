// Package session holds the current authenticated principal for a client
// session. The principal is process-wide, read-mostly state: it is set by
// the authenticate exchange, read by the flows, and cleared on logout or
// expiry. Nothing else mutates it.
package session

import (
	"sync"

	"github.com/parksyde/doublepark/internal/models"
)

// Session is the live principal holder. The zero value is a session with
// no authenticated principal.
type Session struct {
	mu        sync.RWMutex
	principal *models.Principal
}

// New returns an empty session.
func New() *Session {
	return &Session{}
}

// Begin installs the principal obtained from a successful authenticate
// exchange, replacing any previous one.
func (s *Session) Begin(p models.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = &p
}

// End discards the principal on logout or expiry.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = nil
}

// Current returns a copy of the live principal. ok is false when no
// principal is authenticated.
func (s *Session) Current() (models.Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return models.Principal{}, false
	}
	return *s.principal, true
}
