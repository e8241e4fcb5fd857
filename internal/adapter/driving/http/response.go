package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/mailbroker/internal/application"
	"github.com/ericfisherdev/mailbroker/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Available int    `json:"available"`
	LowStock  bool   `json:"low_stock"`
	Time      string `json:"time"`
}

// BalanceResponse is a user's credit balance.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// DispenseResponse is one dispensed mail unit.
type DispenseResponse struct {
	CheckID string `json:"check_id"`
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

// CheckResponse is the relayed inbox-check answer.
type CheckResponse struct {
	CheckID   string `json:"check_id"`
	Address   string `json:"address"`
	Found     bool   `json:"found"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// PaymentAccountResponse is an account users pay into.
type PaymentAccountResponse struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// SessionReplyResponse describes the outcome of a session command or input.
// Fields irrelevant to the reply kind are omitted.
type SessionReplyResponse struct {
	Reply     string                   `json:"reply"`
	Step      string                   `json:"step"`
	Credits   int64                    `json:"credits,omitempty"`
	Price     string                   `json:"price,omitempty"`
	UnitPrice string                   `json:"unit_price,omitempty"`
	Currency  string                   `json:"currency,omitempty"`
	Accounts  []PaymentAccountResponse `json:"accounts,omitempty"`
	TopUp     *TopUpResponse           `json:"topup,omitempty"`
	Code      string                   `json:"code,omitempty"`
}

// SessionInputRequest is the JSON body for the session input endpoint.
type SessionInputRequest struct {
	Text string `json:"text"`
}

// TopUpResponse is the JSON representation of a top-up request.
type TopUpResponse struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Credits       int64  `json:"credits"`
	Price         string `json:"price"`
	Sender        string `json:"sender"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	ResolvedAt    string `json:"resolved_at,omitempty"`
}

// TopUpDecisionResponse is returned after an operator confirms or rejects a request.
type TopUpDecisionResponse struct {
	TopUp   TopUpResponse `json:"topup"`
	Balance int64         `json:"balance"`
}

// GrantRequest is the JSON body for the credit grant endpoint.
type GrantRequest struct {
	Amount int64 `json:"amount"`
}

// ProvisionRequest is the JSON body for the provisioning endpoint.
type ProvisionRequest struct {
	Lines []string `json:"lines"`
}

// RejectedLineResponse identifies a provisioning line that was not stored.
type RejectedLineResponse struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ProvisionResponse summarizes a provisioning batch.
type ProvisionResponse struct {
	Added     int                    `json:"added"`
	Rejected  []RejectedLineResponse `json:"rejected"`
	Available int                    `json:"available"`
}

// StockResponse is the inventory level.
type StockResponse struct {
	Available int `json:"available"`
}

// toTopUpResponse converts a domain TopUpRequest to its JSON representation.
func toTopUpResponse(req model.TopUpRequest) TopUpResponse {
	resp := TopUpResponse{
		ID:            req.ID,
		UserID:        req.UserID,
		Credits:       req.Credits,
		Price:         req.Price.String(),
		Sender:        req.Sender,
		TransactionID: req.TransactionID,
		Status:        string(req.Status),
		CreatedAt:     req.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !req.ResolvedAt.IsZero() {
		resp.ResolvedAt = req.ResolvedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toSessionReplyResponse converts an application Reply to its JSON representation.
func (h *Handler) toSessionReplyResponse(reply application.Reply) SessionReplyResponse {
	resp := SessionReplyResponse{
		Reply: string(reply.Kind),
		Step:  string(reply.Session.Step),
		Code:  reply.Code,
	}

	switch reply.Kind {
	case model.ReplyAskAmount, model.ReplyInvalidAmount:
		resp.UnitPrice = reply.UnitPrice.String()
		resp.Currency = h.currency
	case model.ReplyPaymentInstructions:
		resp.Credits = reply.Session.Credits
		resp.Price = reply.Session.Price.String()
		resp.UnitPrice = reply.UnitPrice.String()
		resp.Currency = h.currency
		resp.Accounts = h.accounts
	}

	if reply.TopUp != nil {
		topUp := toTopUpResponse(*reply.TopUp)
		resp.TopUp = &topUp
	}
	return resp
}
