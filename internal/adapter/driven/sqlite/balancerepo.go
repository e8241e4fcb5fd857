package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.BalanceLedger = (*BalanceRepo)(nil)

// BalanceRepo is the SQLite implementation of the BalanceLedger port interface.
// Each mutation is a single UPSERT/UPDATE ... RETURNING statement on the
// writer connection, so the read-modify-write of a balance cannot interleave
// with another one.
type BalanceRepo struct {
	db  *DB
	now func() time.Time
}

// NewBalanceRepo creates a new BalanceRepo backed by the given DB.
func NewBalanceRepo(db *DB) *BalanceRepo {
	return &BalanceRepo{db: db, now: time.Now}
}

// Get returns the user's balance, or 0 if the user has no record.
func (r *BalanceRepo) Get(ctx context.Context, userID string) (int64, error) {
	const query = `SELECT credits FROM balances WHERE user_id = ?`

	var credits int64
	err := r.db.Reader.QueryRowContext(ctx, query, userID).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, driven.NewStorageError(fmt.Sprintf("get balance %q", userID), err)
	}
	return credits, nil
}

// ApplyDelta adds delta to the balance, clamping the result at 0, and returns
// the new balance. The record is created on first reference. A positive delta
// that would push the balance past math.MaxInt64 is refused with
// model.ErrInvalidInput and nothing is written.
func (r *BalanceRepo) ApplyDelta(ctx context.Context, userID string, delta int64) (int64, error) {
	const query = `
		INSERT INTO balances (user_id, credits, updated_at)
		VALUES (?1, MAX(0, ?2), ?3)
		ON CONFLICT(user_id) DO UPDATE SET
			credits = MAX(0, balances.credits + ?2),
			updated_at = ?3
		WHERE ?2 <= 0 OR balances.credits <= ?4 - ?2
		RETURNING credits
	`

	var credits int64
	err := r.db.Writer.QueryRowContext(ctx, query, userID, delta, formatTime(r.now()), int64(math.MaxInt64)).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: adding %d to balance %q would overflow", model.ErrInvalidInput, delta, userID)
	}
	if err != nil {
		return 0, driven.NewStorageError(fmt.Sprintf("apply delta %d to balance %q", delta, userID), err)
	}
	return credits, nil
}

// Withdraw subtracts amount if the balance covers it. Returns
// driven.ErrInsufficientBalance and leaves the balance untouched otherwise.
func (r *BalanceRepo) Withdraw(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("withdraw %d from balance %q: amount must be positive", amount, userID)
	}

	const query = `
		UPDATE balances
		SET credits = credits - ?1, updated_at = ?2
		WHERE user_id = ?3 AND credits >= ?1
		RETURNING credits
	`

	var credits int64
	err := r.db.Writer.QueryRowContext(ctx, query, amount, formatTime(r.now()), userID).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, driven.ErrInsufficientBalance
	}
	if err != nil {
		return 0, driven.NewStorageError(fmt.Sprintf("withdraw %d from balance %q", amount, userID), err)
	}
	return credits, nil
}
