package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TopUpStore = (*TopUpRepo)(nil)

// TopUpRepo is the SQLite implementation of the TopUpStore port interface.
type TopUpRepo struct {
	db *DB
}

// NewTopUpRepo creates a new TopUpRepo backed by the given DB.
func NewTopUpRepo(db *DB) *TopUpRepo {
	return &TopUpRepo{db: db}
}

// Create inserts a pending request. A reused transaction id violates the
// UNIQUE constraint and is reported as driven.ErrDuplicateReference.
func (r *TopUpRepo) Create(ctx context.Context, req model.TopUpRequest) error {
	const query = `
		INSERT INTO top_up_requests (id, user_id, credits, price_minor, sender, transaction_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO NOTHING
	`

	result, err := r.db.Writer.ExecContext(ctx, query,
		req.ID, req.UserID, req.Credits, int64(req.Price), req.Sender, req.TransactionID,
		string(model.TopUpStatusPending), formatTime(req.CreatedAt),
	)
	if err != nil {
		return driven.NewStorageError(fmt.Sprintf("create top-up request %q", req.ID), err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return driven.NewStorageError("check rows affected", err)
	}
	if n == 0 {
		return driven.ErrDuplicateReference
	}
	return nil
}

// Get returns the request with the given id.
func (r *TopUpRepo) Get(ctx context.Context, id string) (model.TopUpRequest, error) {
	const query = `
		SELECT id, user_id, credits, price_minor, sender, transaction_id, status, created_at, resolved_at
		FROM top_up_requests
		WHERE id = ?
	`

	req, err := scanTopUp(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.TopUpRequest{}, driven.ErrNotFound
	}
	if err != nil {
		return model.TopUpRequest{}, driven.NewStorageError(fmt.Sprintf("get top-up request %q", id), err)
	}
	return *req, nil
}

// ListByStatus returns requests with the given status, oldest first.
func (r *TopUpRepo) ListByStatus(ctx context.Context, status model.TopUpStatus) ([]model.TopUpRequest, error) {
	const query = `
		SELECT id, user_id, credits, price_minor, sender, transaction_id, status, created_at, resolved_at
		FROM top_up_requests
		WHERE status = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, driven.NewStorageError(fmt.Sprintf("list %s top-up requests", status), err)
	}
	defer rows.Close()

	reqs := []model.TopUpRequest{}
	for rows.Next() {
		req, err := scanTopUp(rows)
		if err != nil {
			return nil, driven.NewStorageError("scan top-up request", err)
		}
		reqs = append(reqs, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, driven.NewStorageError("iterate top-up requests", err)
	}

	return reqs, nil
}

// Resolve moves a pending request to status. The status guard in the WHERE
// clause makes concurrent resolutions of the same request mutually exclusive:
// exactly one of them observes a pending row.
func (r *TopUpRepo) Resolve(ctx context.Context, id string, status model.TopUpStatus, at time.Time) (model.TopUpRequest, error) {
	const query = `
		UPDATE top_up_requests
		SET status = ?, resolved_at = ?
		WHERE id = ? AND status = ?
		RETURNING id, user_id, credits, price_minor, sender, transaction_id, status, created_at, resolved_at
	`

	req, err := scanTopUp(r.db.Writer.QueryRowContext(ctx, query,
		string(status), formatTime(at), id, string(model.TopUpStatusPending),
	))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return model.TopUpRequest{}, getErr
		}
		return model.TopUpRequest{}, driven.ErrTopUpNotPending
	}
	if err != nil {
		return model.TopUpRequest{}, driven.NewStorageError(fmt.Sprintf("resolve top-up request %q", id), err)
	}
	return *req, nil
}

// Reopen moves a resolved request back to pending.
func (r *TopUpRepo) Reopen(ctx context.Context, id string) error {
	const query = `UPDATE top_up_requests SET status = ?, resolved_at = NULL WHERE id = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, string(model.TopUpStatusPending), id); err != nil {
		return driven.NewStorageError(fmt.Sprintf("reopen top-up request %q", id), err)
	}
	return nil
}

func scanTopUp(s scanner) (*model.TopUpRequest, error) {
	var req model.TopUpRequest
	var price int64
	var status, createdAt string
	var resolvedAt sql.NullString

	err := s.Scan(
		&req.ID, &req.UserID, &req.Credits, &price, &req.Sender, &req.TransactionID,
		&status, &createdAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Price = model.Money(price)
	req.Status = model.TopUpStatus(strings.ToLower(status))

	req.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	if resolvedAt.Valid {
		req.ResolvedAt, err = parseTime(resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse resolved_at: %w", err)
		}
	}

	return &req, nil
}
