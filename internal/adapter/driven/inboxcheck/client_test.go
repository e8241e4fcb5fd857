package inboxcheck_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/mailbroker/internal/adapter/driven/inboxcheck"
	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) *inboxcheck.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return inboxcheck.NewClientWithHTTPClient(server.Client(), server.URL+"/check", 2)
}

func testRequest() model.VerificationRequest {
	return model.VerificationRequest{
		Address:      "a@x.com",
		Secret:       "pw",
		RefreshToken: "rt",
		ClientID:     "cid",
		Purpose:      "facebook",
	}
}

func TestCheck_CodeFound(t *testing.T) {
	var got map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/check", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"code":"123456","content":"Your code","from":"security@example.com","date":"2026-05-01 10:00"}`))
	}))

	res, err := client.Check(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"email":         "a@x.com",
		"pass":          "pw",
		"refresh_token": "rt",
		"client_id":     "cid",
		"type":          "facebook",
	}, got)
	assert.True(t, res.Found)
	assert.Equal(t, "123456", res.Code)
	assert.Equal(t, "Your code", res.Message)
	assert.Equal(t, "security@example.com", res.Sender)
	assert.Equal(t, "2026-05-01 10:00", res.Timestamp)
}

func TestCheck_NoCodeIsNotAnError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "status false", body: `{"status":false}`},
		{name: "status true without code", body: `{"status":true,"code":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))

			res, err := client.Check(context.Background(), testRequest())
			require.NoError(t, err)
			assert.False(t, res.Found)
		})
	}
}

func TestCheck_ServerErrorRetriedThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":true,"code":"999"}`))
	}))

	res, err := client.Check(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "999", res.Code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCheck_ServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.Check(context.Background(), testRequest())
	require.Error(t, err)

	var verr *driven.VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, http.StatusServiceUnavailable, verr.StatusCode)
	assert.ErrorIs(t, err, driven.ErrVerificationUnavailable)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}

func TestCheck_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := client.Check(context.Background(), testRequest())

	var verr *driven.VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, http.StatusBadRequest, verr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCheck_MalformedBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))

	_, err := client.Check(context.Background(), testRequest())
	assert.ErrorIs(t, err, driven.ErrVerificationUnavailable)
}

func TestCheck_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := inboxcheck.NewClientWithHTTPClient(http.DefaultClient, url, 1)

	_, err := client.Check(context.Background(), testRequest())

	var verr *driven.VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 0, verr.StatusCode, "transport errors carry no status")
}
