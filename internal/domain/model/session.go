package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxTopUpCredits bounds a single top-up request.
const MaxTopUpCredits = 100_000

// ErrUnexpectedStep is returned when a transition is applied to a session
// that is not at the step the transition belongs to.
var ErrUnexpectedStep = errors.New("session is not at the expected step")

// Session is the transient conversation state of one user. At most one flow
// (top-up or secret key) is active per user; starting one replaces the other.
type Session struct {
	UserID    string
	Step      SessionStep
	Credits   int64 // Requested credits, set once the amount is accepted.
	Price     Money // Credits x unit price.
	UpdatedAt time.Time
}

// PaymentReference is what the user reports after paying out-of-band.
type PaymentReference struct {
	Sender        string
	TransactionID string
}

// NewSession returns an idle session for the user.
func NewSession(userID string) Session {
	return Session{UserID: userID, Step: SessionStepNone}
}

// Active reports whether the user is in the middle of a flow.
func (s Session) Active() bool {
	return s.Step != "" && s.Step != SessionStepNone
}

// StartTopUp begins the top-up flow, discarding any other flow in progress.
func (s Session) StartTopUp(now time.Time) Session {
	return Session{UserID: s.UserID, Step: SessionStepAwaitingAmount, UpdatedAt: now}
}

// StartSecretKey begins the one-step code generation flow, discarding any
// other flow in progress.
func (s Session) StartSecretKey(now time.Time) Session {
	return Session{UserID: s.UserID, Step: SessionStepAwaitingSecretKey, UpdatedAt: now}
}

// ApplyAmount accepts the requested credit amount and prices it. Input that
// is not a positive whole number leaves the session unchanged and returns an
// error wrapping ErrInvalidInput.
func (s Session) ApplyAmount(text string, unitPrice Money, now time.Time) (Session, error) {
	if s.Step != SessionStepAwaitingAmount {
		return s, fmt.Errorf("apply amount at step %q: %w", s.Step, ErrUnexpectedStep)
	}

	amount, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || amount <= 0 || amount > MaxTopUpCredits {
		return s, fmt.Errorf("%w: amount %q is not a whole number between 1 and %d", ErrInvalidInput, text, MaxTopUpCredits)
	}

	return Session{
		UserID:    s.UserID,
		Step:      SessionStepAwaitingPaymentReference,
		Credits:   amount,
		Price:     unitPrice.Times(amount),
		UpdatedAt: now,
	}, nil
}

// ParsePaymentReference validates a "sender|transaction-id" pair for a
// session awaiting it.
func (s Session) ParsePaymentReference(text string) (PaymentReference, error) {
	if s.Step != SessionStepAwaitingPaymentReference {
		return PaymentReference{}, fmt.Errorf("apply payment reference at step %q: %w", s.Step, ErrUnexpectedStep)
	}

	parts := strings.Split(text, "|")
	if len(parts) != 2 {
		return PaymentReference{}, fmt.Errorf("%w: expected sender|transaction-id", ErrInvalidInput)
	}

	ref := PaymentReference{
		Sender:        strings.TrimSpace(parts[0]),
		TransactionID: strings.TrimSpace(parts[1]),
	}
	if ref.Sender == "" || ref.TransactionID == "" {
		return PaymentReference{}, fmt.Errorf("%w: sender and transaction id must both be set", ErrInvalidInput)
	}
	return ref, nil
}

// TopUpRequest is a pending credit purchase awaiting an operator decision.
type TopUpRequest struct {
	ID            string
	UserID        string
	Credits       int64
	Price         Money
	Sender        string
	TransactionID string
	Status        TopUpStatus
	CreatedAt     time.Time
	ResolvedAt    time.Time // Zero while pending.
}
