// Package redis implements driven adapters backed by Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

const sessionKeyPrefix = "mailbroker:session:"

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore keeps sessions in Redis so several service instances can share
// conversation state. Each session is one JSON value whose TTL is refreshed
// on every write; Redis expiry replaces the in-memory sweeper.
type SessionStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewSessionStore creates a store on an existing client. A zero ttl stores
// sessions without expiry.
func NewSessionStore(client *goredis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

type sessionRecord struct {
	Step      string    `json:"step"`
	Credits   int64     `json:"credits,omitempty"`
	Price     int64     `json:"price_minor,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Get returns the user's session, or an idle session if the key is absent.
func (s *SessionStore) Get(ctx context.Context, userID string) (model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return model.NewSession(userID), nil
	}
	if err != nil {
		return model.Session{}, driven.NewStorageError(fmt.Sprintf("get session %q", userID), err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Session{}, fmt.Errorf("decode session %q: %w", userID, err)
	}

	return model.Session{
		UserID:    userID,
		Step:      model.SessionStep(rec.Step),
		Credits:   rec.Credits,
		Price:     model.Money(rec.Price),
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// Put stores an active session or deletes the key for an idle one.
func (s *SessionStore) Put(ctx context.Context, session model.Session) error {
	if !session.Active() {
		return s.Clear(ctx, session.UserID)
	}

	data, err := json.Marshal(sessionRecord{
		Step:      string(session.Step),
		Credits:   session.Credits,
		Price:     int64(session.Price),
		UpdatedAt: session.UpdatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode session %q: %w", session.UserID, err)
	}

	if err := s.client.Set(ctx, sessionKey(session.UserID), data, s.ttl).Err(); err != nil {
		return driven.NewStorageError(fmt.Sprintf("put session %q", session.UserID), err)
	}
	return nil
}

// Clear deletes the user's session key.
func (s *SessionStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return driven.NewStorageError(fmt.Sprintf("clear session %q", userID), err)
	}
	return nil
}

func sessionKey(userID string) string {
	return sessionKeyPrefix + userID
}
