package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MailInventory = (*InventoryRepo)(nil)

// InventoryRepo is the SQLite implementation of the MailInventory port interface.
// Row IDs are AUTOINCREMENT, so they are never reused and ascending ID order
// is provisioning order.
type InventoryRepo struct {
	db *DB
}

// NewInventoryRepo creates a new InventoryRepo backed by the given DB.
func NewInventoryRepo(db *DB) *InventoryRepo {
	return &InventoryRepo{db: db}
}

// TakeOne removes and returns the earliest provisioned line in one DELETE
// statement, so two concurrent callers can never receive the same row.
func (r *InventoryRepo) TakeOne(ctx context.Context) (model.InventoryItem, error) {
	const query = `
		DELETE FROM inventory
		WHERE id = (SELECT id FROM inventory ORDER BY id LIMIT 1)
		RETURNING id, line
	`

	var item model.InventoryItem
	err := r.db.Writer.QueryRowContext(ctx, query).Scan(&item.ID, &item.Line)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InventoryItem{}, driven.ErrNotAvailable
	}
	if err != nil {
		return model.InventoryItem{}, driven.NewStorageError("take inventory item", err)
	}
	return item, nil
}

// Add appends the non-blank lines in a single transaction and returns how
// many were stored. Either all lines become visible or none do.
func (r *InventoryRepo) Add(ctx context.Context, lines []string) (int, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, driven.NewStorageError("begin inventory add", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	const insertQuery = `INSERT INTO inventory (line, added_at) VALUES (?, CURRENT_TIMESTAMP)`

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return 0, driven.NewStorageError("prepare inventory add", err)
	}
	defer stmt.Close()

	added := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, line); err != nil {
			return 0, driven.NewStorageError("insert inventory line", err)
		}
		added++
	}

	if err := tx.Commit(); err != nil {
		return 0, driven.NewStorageError(fmt.Sprintf("commit %d inventory lines", added), err)
	}
	return added, nil
}

// Restore reinserts a previously taken item under its original ID, which
// puts it back ahead of everything provisioned after it.
func (r *InventoryRepo) Restore(ctx context.Context, item model.InventoryItem) error {
	const query = `INSERT INTO inventory (id, line, added_at) VALUES (?, ?, CURRENT_TIMESTAMP)`

	if _, err := r.db.Writer.ExecContext(ctx, query, item.ID, item.Line); err != nil {
		return driven.NewStorageError(fmt.Sprintf("restore inventory item %d", item.ID), err)
	}
	return nil
}

// Count returns the number of undispensed lines.
func (r *InventoryRepo) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM inventory`

	var n int
	if err := r.db.Reader.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, driven.NewStorageError("count inventory", err)
	}
	return n, nil
}
