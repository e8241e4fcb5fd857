package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// maxMalformedSkips bounds how many unparseable inventory lines a single
// dispense discards before giving up.
const maxMalformedSkips = 3

// DispenseResult is what the caller gets back for a dispensed unit. The
// secret parts of the credential are only reachable through CheckID.
type DispenseResult struct {
	CheckID string
	Address string
	Balance int64
}

// DispenseService consumes one inventory unit against one credit and
// registers it for later checks. The three stores are independent, so the
// steps are sequenced and compensated rather than run in one transaction.
type DispenseService struct {
	ledger    driven.BalanceLedger
	inventory driven.MailInventory
	registry  driven.CheckRegistry
	logger    *slog.Logger
}

// NewDispenseService creates a new DispenseService with the required dependencies.
func NewDispenseService(
	ledger driven.BalanceLedger,
	inventory driven.MailInventory,
	registry driven.CheckRegistry,
	logger *slog.Logger,
) *DispenseService {
	return &DispenseService{
		ledger:    ledger,
		inventory: inventory,
		registry:  registry,
		logger:    logger,
	}
}

// Dispense hands one mail unit to userID.
//
// Order: balance check (inventory untouched on failure), dequeue, conditional
// debit, registry insert. A failed debit puts the unit back; a failed insert
// refunds the credit and puts the unit back. Compensation failures are logged
// with reconcile=true for manual recovery.
func (s *DispenseService) Dispense(ctx context.Context, userID string) (*DispenseResult, error) {
	balance, err := s.ledger.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < 1 {
		return nil, driven.ErrInsufficientBalance
	}

	item, cred, err := s.takeValid(ctx)
	if err != nil {
		return nil, err
	}

	newBalance, err := s.ledger.Withdraw(ctx, userID, 1)
	if err != nil {
		s.restore(ctx, userID, item)
		return nil, err
	}

	checkID, err := s.registry.Create(ctx, cred)
	if err != nil {
		s.refund(ctx, userID)
		s.restore(ctx, userID, item)
		return nil, fmt.Errorf("register dispensed unit: %w", err)
	}

	s.logger.Info("mail dispensed",
		"user_id", userID,
		"item_id", item.ID,
		"check_id", checkID,
		"balance", newBalance,
	)

	return &DispenseResult{
		CheckID: checkID,
		Address: cred.Address,
		Balance: newBalance,
	}, nil
}

// takeValid dequeues the next unit that parses as a credential. Malformed
// lines are already out of the queue and are only logged.
func (s *DispenseService) takeValid(ctx context.Context) (model.InventoryItem, model.Credential, error) {
	for skipped := 0; ; skipped++ {
		item, err := s.inventory.TakeOne(ctx)
		if err != nil {
			return model.InventoryItem{}, model.Credential{}, err
		}

		cred, err := model.ParseCredential(item.Line)
		if err == nil {
			return item, cred, nil
		}

		s.logger.Error("malformed inventory line discarded",
			"item_id", item.ID,
			"error", err,
			"reconcile", true,
		)
		if skipped+1 >= maxMalformedSkips {
			return model.InventoryItem{}, model.Credential{}, fmt.Errorf("%w: inventory item %d: %v", driven.ErrCorruptRecord, item.ID, err)
		}
	}
}

func (s *DispenseService) restore(ctx context.Context, userID string, item model.InventoryItem) {
	if err := s.inventory.Restore(context.WithoutCancel(ctx), item); err != nil {
		s.logger.Error("failed to return unit to inventory",
			"user_id", userID,
			"item_id", item.ID,
			"error", err,
			"reconcile", true,
		)
	}
}

func (s *DispenseService) refund(ctx context.Context, userID string) {
	if _, err := s.ledger.ApplyDelta(context.WithoutCancel(ctx), userID, 1); err != nil {
		s.logger.Error("failed to refund credit",
			"user_id", userID,
			"error", err,
			"reconcile", true,
		)
	}
}

// IsOutOfStock reports whether err means the inventory was empty.
func IsOutOfStock(err error) bool {
	return errors.Is(err, driven.ErrNotAvailable)
}
