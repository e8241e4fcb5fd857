package application

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// ErrVerificationDisabled is returned by Check when no inbox checker is configured.
var ErrVerificationDisabled = errors.New("inbox verification is not configured")

// CheckOutcome is the relayed answer for one check request.
type CheckOutcome struct {
	CheckID string
	Address string
	Result  model.VerificationResult
}

// CheckService resolves short identifiers and forwards the stored credential
// to the inbox checker. The registry is only read.
type CheckService struct {
	registry driven.CheckRegistry
	checker  driven.InboxChecker
	purpose  string
	logger   *slog.Logger
	group    singleflight.Group
}

// NewCheckService creates a new CheckService. checker may be nil, in which
// case Check returns ErrVerificationDisabled after the lookup.
func NewCheckService(registry driven.CheckRegistry, checker driven.InboxChecker, purpose string, logger *slog.Logger) *CheckService {
	return &CheckService{
		registry: registry,
		checker:  checker,
		purpose:  purpose,
		logger:   logger,
	}
}

// Check looks up id and asks the inbox checker for a code. Concurrent checks
// of the same id share one upstream request. The shared request is detached
// from any single caller's cancellation; each caller stops waiting when its
// own ctx is done.
func (s *CheckService) Check(ctx context.Context, id string) (*CheckOutcome, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(id, func() (any, error) {
		cred, err := s.registry.Lookup(shared, id)
		if err != nil {
			return nil, err
		}
		if s.checker == nil {
			return nil, ErrVerificationDisabled
		}

		result, err := s.checker.Check(shared, model.NewVerificationRequest(cred, s.purpose))
		if err != nil {
			return nil, err
		}

		return CheckOutcome{CheckID: id, Address: cred.Address, Result: result}, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("inbox check coalesced", "check_id", id)
		}
		outcome := res.Val.(CheckOutcome)
		return &outcome, nil
	}
}

// Lookup returns the stored credential for id without contacting the checker.
func (s *CheckService) Lookup(ctx context.Context, id string) (model.Credential, error) {
	return s.registry.Lookup(ctx, id)
}

// Remove deletes the registry entry for id. Unknown ids are a no-op.
func (s *CheckService) Remove(ctx context.Context, id string) error {
	return s.registry.Remove(ctx, id)
}
