package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// Reply tells the caller what happened to a session input so it can compose
// the outbound message. Invalid input is a reply, not an error.
type Reply struct {
	Kind      model.ReplyKind
	Session   model.Session
	UnitPrice model.Money
	TopUp     *model.TopUpRequest // Set for ReplyTopUpSubmitted.
	Code      string              // Set for ReplyCodeGenerated.
}

// SessionService drives the per-user conversation flows: buying credits and
// the one-step code generator. Inputs for the same user are serialized.
type SessionService struct {
	store     driven.SessionStore
	topups    driven.TopUpStore
	codes     driven.CodeGenerator
	unitPrice model.Money
	logger    *slog.Logger
	locks     *userLocks
	now       func() time.Time
	newID     func() string
}

// NewSessionService creates a new SessionService. codes may be nil, in which
// case the secret-key flow always fails.
func NewSessionService(
	store driven.SessionStore,
	topups driven.TopUpStore,
	codes driven.CodeGenerator,
	unitPrice model.Money,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		store:     store,
		topups:    topups,
		codes:     codes,
		unitPrice: unitPrice,
		logger:    logger,
		locks:     newUserLocks(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// StartTopUp puts the user at the amount prompt, abandoning any other flow.
func (s *SessionService) StartTopUp(ctx context.Context, userID string) (Reply, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	sess := model.NewSession(userID).StartTopUp(s.now())
	if err := s.store.Put(ctx, sess); err != nil {
		return Reply{}, err
	}
	return Reply{Kind: model.ReplyAskAmount, Session: sess, UnitPrice: s.unitPrice}, nil
}

// StartSecretKey puts the user at the secret-key prompt, abandoning any other flow.
func (s *SessionService) StartSecretKey(ctx context.Context, userID string) (Reply, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	sess := model.NewSession(userID).StartSecretKey(s.now())
	if err := s.store.Put(ctx, sess); err != nil {
		return Reply{}, err
	}
	return Reply{Kind: model.ReplyAskSecretKey, Session: sess}, nil
}

// Cancel silently abandons whatever flow the user is in. Called whenever the
// user issues a recognized top-level command.
func (s *SessionService) Cancel(ctx context.Context, userID string) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	return s.store.Clear(ctx, userID)
}

// Current returns the user's session.
func (s *SessionService) Current(ctx context.Context, userID string) (model.Session, error) {
	return s.store.Get(ctx, userID)
}

// HandleInput feeds free text to the user's active flow.
func (s *SessionService) HandleInput(ctx context.Context, userID, text string) (Reply, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	sess, err := s.store.Get(ctx, userID)
	if err != nil {
		return Reply{}, err
	}

	switch sess.Step {
	case model.SessionStepAwaitingAmount:
		return s.handleAmount(ctx, sess, text)
	case model.SessionStepAwaitingPaymentReference:
		return s.handlePaymentReference(ctx, sess, text)
	case model.SessionStepAwaitingSecretKey:
		return s.handleSecretKey(ctx, sess, text)
	default:
		return Reply{Kind: model.ReplyNoSession, Session: sess}, nil
	}
}

func (s *SessionService) handleAmount(ctx context.Context, sess model.Session, text string) (Reply, error) {
	next, err := sess.ApplyAmount(text, s.unitPrice, s.now())
	if errors.Is(err, model.ErrInvalidInput) {
		return Reply{Kind: model.ReplyInvalidAmount, Session: sess, UnitPrice: s.unitPrice}, nil
	}
	if err != nil {
		return Reply{}, err
	}

	if err := s.store.Put(ctx, next); err != nil {
		return Reply{}, err
	}
	return Reply{Kind: model.ReplyPaymentInstructions, Session: next, UnitPrice: s.unitPrice}, nil
}

func (s *SessionService) handlePaymentReference(ctx context.Context, sess model.Session, text string) (Reply, error) {
	ref, err := sess.ParsePaymentReference(text)
	if errors.Is(err, model.ErrInvalidInput) {
		return Reply{Kind: model.ReplyInvalidReference, Session: sess}, nil
	}
	if err != nil {
		return Reply{}, err
	}

	req := model.TopUpRequest{
		ID:            s.newID(),
		UserID:        sess.UserID,
		Credits:       sess.Credits,
		Price:         sess.Price,
		Sender:        ref.Sender,
		TransactionID: ref.TransactionID,
		Status:        model.TopUpStatusPending,
		CreatedAt:     s.now(),
	}

	err = s.topups.Create(ctx, req)
	if errors.Is(err, driven.ErrDuplicateReference) {
		return Reply{Kind: model.ReplyDuplicateReference, Session: sess}, nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("submit top-up for %q: %w", sess.UserID, err)
	}

	s.logger.Info("top-up submitted",
		"request_id", req.ID,
		"user_id", req.UserID,
		"credits", req.Credits,
		"price", req.Price.String(),
	)

	if err := s.store.Clear(ctx, sess.UserID); err != nil {
		// The request is already recorded; a leftover session only re-prompts.
		s.logger.Warn("failed to clear session after top-up", "user_id", sess.UserID, "error", err)
	}

	return Reply{Kind: model.ReplyTopUpSubmitted, Session: model.NewSession(sess.UserID), TopUp: &req}, nil
}

func (s *SessionService) handleSecretKey(ctx context.Context, sess model.Session, text string) (Reply, error) {
	if err := s.store.Clear(ctx, sess.UserID); err != nil {
		return Reply{}, err
	}

	idle := model.NewSession(sess.UserID)
	if s.codes == nil {
		return Reply{Kind: model.ReplyCodeGenerationFailed, Session: idle}, nil
	}

	code, err := s.codes.Generate(text)
	if err != nil {
		s.logger.Debug("code generation failed", "user_id", sess.UserID, "error", err)
		return Reply{Kind: model.ReplyCodeGenerationFailed, Session: idle}, nil
	}
	return Reply{Kind: model.ReplyCodeGenerated, Session: idle, Code: code}, nil
}
