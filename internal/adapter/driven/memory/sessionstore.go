// Package memory implements in-process driven adapters.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore keeps sessions in a mutex-guarded map. Sessions idle for
// longer than ttl are treated as absent and removed by Start's sweeper.
// Nothing survives a restart.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates an empty store. A zero ttl disables expiry.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]model.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the user's session, or an idle session if none is stored or
// the stored one has expired.
func (s *SessionStore) Get(_ context.Context, userID string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok || s.expired(sess) {
		return model.NewSession(userID), nil
	}
	return sess, nil
}

// Put stores the session. Idle sessions are removed instead of stored.
func (s *SessionStore) Put(_ context.Context, session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !session.Active() {
		delete(s.sessions, session.UserID)
		return nil
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = s.now()
	}
	s.sessions[session.UserID] = session
	return nil
}

// Clear removes the user's session.
func (s *SessionStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, userID)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Start sweeps expired sessions every interval until ctx is cancelled.
func (s *SessionStore) Start(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if n := s.sweep(); n > 0 {
				slog.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

func (s *SessionStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed
}

func (s *SessionStore) expired(sess model.Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.UpdatedAt) > s.ttl
}
