package driven

import (
	"context"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
)

// SessionStore holds transient per-user conversation state. Implementations
// may expire idle sessions; losing a session only forces the user to restart
// the flow.
type SessionStore interface {
	// Get returns the user's session, or an idle session if none is stored.
	Get(ctx context.Context, userID string) (model.Session, error)
	// Put stores the session, replacing any previous one for the same user.
	Put(ctx context.Context, session model.Session) error
	// Clear removes the user's session.
	Clear(ctx context.Context, userID string) error
}
