// Package inboxcheck implements the InboxChecker port against the external
// inbox-check HTTP service.
package inboxcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Compile-time interface satisfaction check.
var _ driven.InboxChecker = (*Client)(nil)

// Client posts credentials to the inbox-check endpoint. Transport errors and
// 5xx answers are retried with exponential backoff; 4xx answers are final.
type Client struct {
	httpClient *http.Client
	endpoint   string
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// NewClient creates a Client with the given per-request timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		maxRetries: 2,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return b
		},
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and a
// near-zero retry delay. This constructor is intended for testing, allowing
// injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, endpoint string, maxRetries uint64) *Client {
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) },
	}
}

type checkRequest struct {
	Email        string `json:"email"`
	Pass         string `json:"pass"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	Type         string `json:"type"`
}

type checkResponse struct {
	Status  bool   `json:"status"`
	Code    string `json:"code"`
	Content string `json:"content"`
	From    string `json:"from"`
	Date    string `json:"date"`
}

// Check forwards req to the service. A 2xx answer always yields a result
// (Found reports whether a code was present); anything else is a
// *driven.VerificationError.
func (c *Client) Check(ctx context.Context, req model.VerificationRequest) (model.VerificationResult, error) {
	body, err := json.Marshal(checkRequest{
		Email:        req.Address,
		Pass:         req.Secret,
		RefreshToken: req.RefreshToken,
		ClientID:     req.ClientID,
		Type:         req.Purpose,
	})
	if err != nil {
		return model.VerificationResult{}, fmt.Errorf("encode check request: %w", err)
	}

	var resp checkResponse
	attempt := 0
	op := func() error {
		attempt++
		var err error
		resp, err = c.post(ctx, body)
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("inbox check failed, retrying",
			"address", req.Address,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		var verr *driven.VerificationError
		if errors.As(err, &verr) {
			return model.VerificationResult{}, verr
		}
		return model.VerificationResult{}, &driven.VerificationError{Err: err}
	}

	return model.VerificationResult{
		Found:     resp.Status && resp.Code != "",
		Code:      resp.Code,
		Message:   resp.Content,
		Sender:    resp.From,
		Timestamp: resp.Date,
	}, nil
}

// post performs one attempt. Returned errors are wrapped in
// backoff.Permanent when retrying cannot help.
func (c *Client) post(ctx context.Context, body []byte) (checkResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return checkResponse{}, backoff.Permanent(&driven.VerificationError{Err: fmt.Errorf("build request: %w", err)})
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return checkResponse{}, &driven.VerificationError{Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return checkResponse{}, &driven.VerificationError{StatusCode: httpResp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		verr := &driven.VerificationError{StatusCode: httpResp.StatusCode, Err: fmt.Errorf("unexpected status %s", httpResp.Status)}
		if httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests {
			return checkResponse{}, verr
		}
		return checkResponse{}, backoff.Permanent(verr)
	}

	var resp checkResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return checkResponse{}, backoff.Permanent(&driven.VerificationError{StatusCode: httpResp.StatusCode, Err: fmt.Errorf("decode body: %w", err)})
	}
	return resp, nil
}
