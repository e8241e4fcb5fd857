// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by store implementations. These are expected
// business outcomes, not faults.
var (
	// ErrNotAvailable indicates the mail inventory is empty.
	ErrNotAvailable = errors.New("no mail available")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientBalance indicates a debit larger than the current balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTopUpNotPending indicates the top-up request was already resolved.
	ErrTopUpNotPending = errors.New("top-up request is not pending")

	// ErrDuplicateReference indicates the transaction id was already submitted.
	ErrDuplicateReference = errors.New("payment reference already submitted")

	// ErrIDSpaceExhausted indicates no free check identifier was found within
	// the retry bound.
	ErrIDSpaceExhausted = errors.New("no free check identifier")

	// ErrCorruptRecord indicates stored data that can no longer be decoded.
	// It is a server-side fault and never caused by the caller's input.
	ErrCorruptRecord = errors.New("stored record is corrupt")
)

// StorageError reports a persistence-layer failure. The operation's effects
// are not visible to subsequent reads.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err unless it is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err is or wraps a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
