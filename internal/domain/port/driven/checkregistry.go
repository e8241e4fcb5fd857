package driven

import (
	"context"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
)

// CheckRegistry defines the driven port mapping short public identifiers to
// dispensed credentials. Entries are immutable once written.
type CheckRegistry interface {
	// Create stores cred under a new unique short identifier and returns it.
	Create(ctx context.Context, cred model.Credential) (string, error)

	// Lookup returns the credential stored under id, or ErrNotFound.
	Lookup(ctx context.Context, id string) (model.Credential, error)

	// Remove deletes id. Removing an unknown id is a no-op.
	Remove(ctx context.Context, id string) error
}
