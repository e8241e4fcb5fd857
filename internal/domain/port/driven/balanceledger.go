package driven

import "context"

// BalanceLedger defines the driven port for per-user credit balances.
// Balances never go negative. All mutations for one user are linearizable.
type BalanceLedger interface {
	// Get returns the current balance, or 0 if the user has no record.
	Get(ctx context.Context, userID string) (int64, error)

	// ApplyDelta adds delta to the balance, clamps the result at 0, persists
	// it and returns the new balance.
	ApplyDelta(ctx context.Context, userID string, delta int64) (int64, error)

	// Withdraw subtracts amount only if the balance covers it and returns the
	// new balance. Returns ErrInsufficientBalance otherwise.
	Withdraw(ctx context.Context, userID string, amount int64) (int64, error)
}
