package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// TopUpDecision is the outcome of an operator confirming or rejecting a request.
type TopUpDecision struct {
	Request model.TopUpRequest
	Balance int64 // New balance after a confirmation; 0 for rejections.
}

// TopUpService applies operator decisions on pending top-up requests.
// Resolution is a guarded pending -> resolved transition, so a request is
// credited at most once however often it is confirmed.
type TopUpService struct {
	topups driven.TopUpStore
	ledger driven.BalanceLedger
	logger *slog.Logger
	now    func() time.Time
}

// NewTopUpService creates a new TopUpService.
func NewTopUpService(topups driven.TopUpStore, ledger driven.BalanceLedger, logger *slog.Logger) *TopUpService {
	return &TopUpService{topups: topups, ledger: ledger, logger: logger, now: time.Now}
}

// ListPending returns requests awaiting a decision, oldest first.
func (s *TopUpService) ListPending(ctx context.Context) ([]model.TopUpRequest, error) {
	return s.topups.ListByStatus(ctx, model.TopUpStatusPending)
}

// Confirm marks the request confirmed and credits the user. If crediting
// fails the request is reopened so the operator can retry.
func (s *TopUpService) Confirm(ctx context.Context, id string) (*TopUpDecision, error) {
	req, err := s.topups.Resolve(ctx, id, model.TopUpStatusConfirmed, s.now())
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.ApplyDelta(ctx, req.UserID, req.Credits)
	if err != nil {
		if reopenErr := s.topups.Reopen(context.WithoutCancel(ctx), id); reopenErr != nil {
			s.logger.Error("confirmed top-up was not credited",
				"request_id", id,
				"user_id", req.UserID,
				"credits", req.Credits,
				"error", reopenErr,
				"reconcile", true,
			)
		}
		return nil, err
	}

	s.logger.Info("top-up confirmed",
		"request_id", id,
		"user_id", req.UserID,
		"credits", req.Credits,
		"balance", balance,
	)
	return &TopUpDecision{Request: req, Balance: balance}, nil
}

// Reject marks the request rejected. No balance changes.
func (s *TopUpService) Reject(ctx context.Context, id string) (*TopUpDecision, error) {
	req, err := s.topups.Resolve(ctx, id, model.TopUpStatusRejected, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("top-up rejected", "request_id", id, "user_id", req.UserID)
	return &TopUpDecision{Request: req}, nil
}
