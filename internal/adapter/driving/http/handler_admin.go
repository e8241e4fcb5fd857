package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
)

// GrantCredits applies a signed credit adjustment to a user.
func (h *Handler) GrantCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := h.storeCtx(r)
	defer cancel()

	balance, err := h.svc.Accounts.Grant(ctx, userID, req.Amount)
	if err != nil {
		h.writeServiceError(w, "grant credits", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{UserID: userID, Balance: balance})
}

// ListTopUps returns pending top-up requests, oldest first.
func (h *Handler) ListTopUps(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	reqs, err := h.svc.TopUps.ListPending(ctx)
	if err != nil {
		h.writeServiceError(w, "list top-ups", err)
		return
	}

	resp := make([]TopUpResponse, 0, len(reqs))
	for _, req := range reqs {
		resp = append(resp, toTopUpResponse(req))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ConfirmTopUp credits the user for a pending request.
func (h *Handler) ConfirmTopUp(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	decision, err := h.svc.TopUps.Confirm(ctx, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "confirm top-up", err)
		return
	}

	writeJSON(w, http.StatusOK, TopUpDecisionResponse{
		TopUp:   toTopUpResponse(decision.Request),
		Balance: decision.Balance,
	})
}

// RejectTopUp closes a pending request without crediting.
func (h *Handler) RejectTopUp(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	decision, err := h.svc.TopUps.Reject(ctx, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "reject top-up", err)
		return
	}

	writeJSON(w, http.StatusOK, TopUpDecisionResponse{TopUp: toTopUpResponse(decision.Request)})
}

// GetStock returns the number of undispensed units.
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	n, err := h.svc.Inventory.Available(ctx)
	if err != nil {
		h.writeServiceError(w, "get stock", err)
		return
	}

	writeJSON(w, http.StatusOK, StockResponse{Available: n})
}

// Provision loads credential lines into the inventory.
func (h *Handler) Provision(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProvisionBody)

	var req ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Lines) == 0 {
		writeError(w, http.StatusBadRequest, "lines are required")
		return
	}

	ctx, cancel := h.storeCtx(r)
	defer cancel()

	result, err := h.svc.Inventory.Provision(ctx, req.Lines)
	if err != nil {
		h.writeServiceError(w, "provision", err)
		return
	}

	available, err := h.svc.Inventory.Available(ctx)
	if err != nil {
		h.writeServiceError(w, "provision", err)
		return
	}

	resp := ProvisionResponse{
		Added:     result.Added,
		Rejected:  make([]RejectedLineResponse, 0, len(result.Rejected)),
		Available: available,
	}
	for _, rej := range result.Rejected {
		resp.Rejected = append(resp.Rejected, RejectedLineResponse{Line: rej.Number, Reason: rej.Reason})
	}

	status := http.StatusCreated
	if result.Added == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}
