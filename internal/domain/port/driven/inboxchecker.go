package driven

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
)

// ErrVerificationUnavailable is wrapped by every VerificationError.
var ErrVerificationUnavailable = errors.New("verification service unavailable")

// VerificationError is a request-level failure talking to the inbox-check
// service. StatusCode is 0 for transport errors.
type VerificationError struct {
	StatusCode int
	Err        error
}

func (e *VerificationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("verification service returned HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("verification request failed: %v", e.Err)
}

func (e *VerificationError) Unwrap() []error { return []error{ErrVerificationUnavailable, e.Err} }

// InboxChecker forwards a stored credential to the external inbox-check
// service. A successful answer without a code is a result with Found false,
// never an error.
type InboxChecker interface {
	Check(ctx context.Context, req model.VerificationRequest) (model.VerificationResult, error)
}

// CodeGenerator produces one-time passwords from a shared secret.
type CodeGenerator interface {
	Generate(secret string) (string, error)
}
