package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// AccountService exposes balances and operator credit grants.
type AccountService struct {
	ledger driven.BalanceLedger
	logger *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(ledger driven.BalanceLedger, logger *slog.Logger) *AccountService {
	return &AccountService{ledger: ledger, logger: logger}
}

// Balance returns the user's current credits.
func (s *AccountService) Balance(ctx context.Context, userID string) (int64, error) {
	return s.ledger.Get(ctx, userID)
}

// Grant applies a signed credit adjustment and returns the new balance.
// Positive amounts grant credits, negative ones correct a previous grant;
// the result never drops below zero.
func (s *AccountService) Grant(ctx context.Context, userID string, amount int64) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", model.ErrInvalidInput)
	}
	if amount == 0 {
		return 0, fmt.Errorf("%w: amount must be non-zero", model.ErrInvalidInput)
	}

	balance, err := s.ledger.ApplyDelta(ctx, userID, amount)
	if err != nil {
		return 0, err
	}

	s.logger.Info("credits adjusted", "user_id", userID, "amount", amount, "balance", balance)
	return balance, nil
}
