package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/mailbroker/internal/application"
	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

const (
	maxUserIDLength     = 64
	maxProvisionBody    = 8 << 20
	defaultStoreTimeout = 5 * time.Second
)

// Services bundles the application services the REST API drives.
type Services struct {
	Dispense  *application.DispenseService
	Checks    *application.CheckService
	Accounts  *application.AccountService
	Inventory *application.InventoryService
	Sessions  *application.SessionService
	TopUps    *application.TopUpService
	Health    *application.HealthService
}

// Options carries presentation settings and the operator token.
type Options struct {
	AdminToken      string
	Currency        string
	PaymentAccounts []PaymentAccountResponse
	// StoreTimeout bounds every request that only touches local stores.
	// Verification requests are bounded by the inbox checker instead.
	StoreTimeout time.Duration
}

// Handler is the HTTP driving adapter that serves the REST API. It is the
// only place that maps service errors to user-facing outcomes.
type Handler struct {
	svc          Services
	adminToken   string
	currency     string
	accounts     []PaymentAccountResponse
	storeTimeout time.Duration
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(svc Services, opts Options, logger *slog.Logger) *Handler {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	return &Handler{
		svc:          svc,
		adminToken:   opts.AdminToken,
		currency:     opts.Currency,
		accounts:     opts.PaymentAccounts,
		storeTimeout: opts.StoreTimeout,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("GET /api/v1/users/{userID}/balance", h.GetBalance)
	mux.HandleFunc("POST /api/v1/users/{userID}/dispense", h.Dispense)
	mux.HandleFunc("POST /api/v1/users/{userID}/sessions/topup", h.StartTopUp)
	mux.HandleFunc("POST /api/v1/users/{userID}/sessions/secret-key", h.StartSecretKey)
	mux.HandleFunc("DELETE /api/v1/users/{userID}/session", h.CancelSession)
	mux.HandleFunc("POST /api/v1/users/{userID}/session/input", h.SessionInput)
	mux.HandleFunc("POST /api/v1/checks/{checkID}/verify", h.VerifyCheck)

	admin := func(next http.HandlerFunc) http.HandlerFunc { return requireAdmin(h.adminToken, next) }
	mux.HandleFunc("DELETE /api/v1/checks/{checkID}", admin(h.RemoveCheck))
	mux.HandleFunc("POST /api/v1/users/{userID}/credits", admin(h.GrantCredits))
	mux.HandleFunc("GET /api/v1/topups", admin(h.ListTopUps))
	mux.HandleFunc("POST /api/v1/topups/{id}/confirm", admin(h.ConfirmTopUp))
	mux.HandleFunc("POST /api/v1/topups/{id}/reject", admin(h.RejectTopUp))
	mux.HandleFunc("GET /api/v1/inventory", admin(h.GetStock))
	mux.HandleFunc("POST /api/v1/inventory", admin(h.Provision))

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health reports liveness and stock level.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Time: time.Now().UTC().Format(time.RFC3339)}
	if h.svc.Health != nil {
		ctx, cancel := h.storeCtx(r)
		defer cancel()

		status := h.svc.Health.Check(ctx)
		resp.Status = status.Status
		resp.Available = status.Available
		resp.LowStock = status.LowStock
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// GetBalance returns the user's credits. It is a top-level command and
// abandons any session in progress.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	h.cancelSession(ctx, userID)

	balance, err := h.svc.Accounts.Balance(ctx, userID)
	if err != nil {
		h.writeServiceError(w, "get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{UserID: userID, Balance: balance})
}

// Dispense hands one mail unit to the user. It is a top-level command and
// abandons any session in progress.
func (h *Handler) Dispense(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	h.cancelSession(ctx, userID)

	res, err := h.svc.Dispense.Dispense(ctx, userID)
	if err != nil {
		h.writeServiceError(w, "dispense", err)
		return
	}

	writeJSON(w, http.StatusOK, DispenseResponse{
		CheckID: res.CheckID,
		Address: res.Address,
		Balance: res.Balance,
	})
}

// VerifyCheck relays the inbox-check answer for a dispensed unit.
func (h *Handler) VerifyCheck(w http.ResponseWriter, r *http.Request) {
	checkID := r.PathValue("checkID")
	if !model.ValidCheckID(checkID) {
		writeError(w, http.StatusBadRequest, "invalid check id")
		return
	}

	outcome, err := h.svc.Checks.Check(r.Context(), checkID)
	if err != nil {
		h.writeServiceError(w, "verify check", err)
		return
	}

	writeJSON(w, http.StatusOK, CheckResponse{
		CheckID:   outcome.CheckID,
		Address:   outcome.Address,
		Found:     outcome.Result.Found,
		Code:      outcome.Result.Code,
		Message:   outcome.Result.Message,
		Sender:    outcome.Result.Sender,
		Timestamp: outcome.Result.Timestamp,
	})
}

// RemoveCheck deletes a registry entry. Unknown ids succeed.
func (h *Handler) RemoveCheck(w http.ResponseWriter, r *http.Request) {
	checkID := r.PathValue("checkID")
	if !model.ValidCheckID(checkID) {
		writeError(w, http.StatusBadRequest, "invalid check id")
		return
	}
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	if err := h.svc.Checks.Remove(ctx, checkID); err != nil {
		h.writeServiceError(w, "remove check", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartTopUp begins the credit purchase flow.
func (h *Handler) StartTopUp(w http.ResponseWriter, r *http.Request) {
	h.sessionCommand(w, r, "start top-up", h.svc.Sessions.StartTopUp)
}

// StartSecretKey begins the one-step code generation flow.
func (h *Handler) StartSecretKey(w http.ResponseWriter, r *http.Request) {
	h.sessionCommand(w, r, "start secret key", h.svc.Sessions.StartSecretKey)
}

func (h *Handler) sessionCommand(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	start func(context.Context, string) (application.Reply, error),
) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	reply, err := start(ctx, userID)
	if err != nil {
		h.writeServiceError(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toSessionReplyResponse(reply))
}

// CancelSession abandons the user's flow without a reply.
func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	if err := h.svc.Sessions.Cancel(ctx, userID); err != nil {
		h.writeServiceError(w, "cancel session", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SessionInput feeds free text to the user's active flow. Invalid input is a
// 200 with a re-prompt reply, not an error.
func (h *Handler) SessionInput(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	var req SessionInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := h.storeCtx(r)
	defer cancel()

	reply, err := h.svc.Sessions.HandleInput(ctx, userID, req.Text)
	if err != nil {
		h.writeServiceError(w, "session input", err)
		return
	}

	writeJSON(w, http.StatusOK, h.toSessionReplyResponse(reply))
}

// storeCtx derives the per-request context for store-only operations.
func (h *Handler) storeCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.storeTimeout)
}

// cancelSession clears any session for a top-level command. A failure only
// leaves a stale prompt behind, so it is logged and ignored.
func (h *Handler) cancelSession(ctx context.Context, userID string) {
	if h.svc.Sessions == nil {
		return
	}
	if err := h.svc.Sessions.Cancel(ctx, userID); err != nil {
		h.logger.Warn("failed to cancel session", "user_id", userID, "error", err)
	}
}

// writeServiceError maps application and port errors to HTTP responses.
// Internal details are logged, never returned.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var verr *driven.VerificationError

	switch {
	case errors.Is(err, model.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, driven.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, "insufficient balance")
	case application.IsOutOfStock(err):
		writeError(w, http.StatusConflict, "out of stock")
	case errors.Is(err, driven.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, driven.ErrTopUpNotPending):
		writeError(w, http.StatusConflict, "top-up request already resolved")
	case errors.Is(err, application.ErrVerificationDisabled):
		writeError(w, http.StatusServiceUnavailable, "inbox verification is not configured")
	case errors.As(err, &verr):
		h.logger.Warn("verification failed", "op", op, "status_code", verr.StatusCode, "error", err)
		writeError(w, http.StatusBadGateway, "verification service unavailable")
	case errors.Is(err, driven.ErrIDSpaceExhausted):
		h.logger.Error("check id space exhausted", "op", op, "error", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, try again")
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("request timed out", "op", op, "error", err)
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// userIDFrom extracts and validates the {userID} path value, writing a 400
// when it is unusable.
func userIDFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.PathValue("userID")
	if userID == "" || len(userID) > maxUserIDLength {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return "", false
	}
	return userID, true
}
