package driven

import (
	"context"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
)

// MailInventory defines the driven port for the FIFO queue of undispensed
// credential lines. A line is handed out at most once.
type MailInventory interface {
	// TakeOne atomically removes and returns the earliest provisioned line.
	// Returns ErrNotAvailable when the inventory is empty.
	TakeOne(ctx context.Context) (model.InventoryItem, error)

	// Add appends lines in order and returns how many were stored.
	Add(ctx context.Context, lines []string) (int, error)

	// Restore puts a taken item back at its original queue position.
	Restore(ctx context.Context, item model.InventoryItem) error

	// Count returns the number of undispensed lines.
	Count(ctx context.Context) (int, error)
}
