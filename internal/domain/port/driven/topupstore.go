package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
)

// TopUpStore defines the driven port for top-up requests awaiting an
// operator decision.
type TopUpStore interface {
	// Create stores a new pending request. Returns ErrDuplicateReference if
	// the transaction id was already used.
	Create(ctx context.Context, req model.TopUpRequest) error

	// Get returns the request with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (model.TopUpRequest, error)

	// ListByStatus returns requests with the given status, oldest first.
	ListByStatus(ctx context.Context, status model.TopUpStatus) ([]model.TopUpRequest, error)

	// Resolve moves a pending request to status and returns the updated
	// request. Returns ErrTopUpNotPending if it was already resolved and
	// ErrNotFound if it does not exist.
	Resolve(ctx context.Context, id string, status model.TopUpStatus, at time.Time) (model.TopUpRequest, error)

	// Reopen moves a resolved request back to pending.
	Reopen(ctx context.Context, id string) error
}
