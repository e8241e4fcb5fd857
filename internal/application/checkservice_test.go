package application_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/mailbroker/internal/application"
	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

func seededRegistry(t *testing.T) (*fakeRegistry, string) {
	t.Helper()
	reg := newFakeRegistry()
	cred, err := model.ParseCredential(lineA)
	require.NoError(t, err)
	id, err := reg.Create(context.Background(), cred)
	require.NoError(t, err)
	return reg, id
}

func TestCheck_NotFound(t *testing.T) {
	checker := &fakeChecker{check: func(context.Context, model.VerificationRequest) (model.VerificationResult, error) {
		t.Fatal("checker must not be called for unknown ids")
		return model.VerificationResult{}, nil
	}}
	svc := application.NewCheckService(newFakeRegistry(), checker, "facebook", discardLogger())

	_, err := svc.Check(context.Background(), "abcdef")
	require.ErrorIs(t, err, driven.ErrNotFound)
}

func TestCheck_Disabled(t *testing.T) {
	reg, id := seededRegistry(t)
	svc := application.NewCheckService(reg, nil, "facebook", discardLogger())

	_, err := svc.Check(context.Background(), id)
	require.ErrorIs(t, err, application.ErrVerificationDisabled)
}

func TestCheck_ForwardsStoredCredential(t *testing.T) {
	reg, id := seededRegistry(t)

	var got model.VerificationRequest
	checker := &fakeChecker{check: func(_ context.Context, req model.VerificationRequest) (model.VerificationResult, error) {
		got = req
		return model.VerificationResult{Found: true, Code: "123456", Sender: "security@example.com"}, nil
	}}
	svc := application.NewCheckService(reg, checker, "facebook", discardLogger())

	outcome, err := svc.Check(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, outcome.CheckID)
	assert.Equal(t, "a@x.io", outcome.Address)
	assert.True(t, outcome.Result.Found)
	assert.Equal(t, "123456", outcome.Result.Code)
	assert.Equal(t, model.VerificationRequest{
		Address:      "a@x.io",
		Secret:       "pa",
		RefreshToken: "rt-a",
		ClientID:     "cid-a",
		Purpose:      "facebook",
	}, got)
}

func TestCheck_NoCodeIsNotAnError(t *testing.T) {
	reg, id := seededRegistry(t)
	checker := &fakeChecker{check: func(context.Context, model.VerificationRequest) (model.VerificationResult, error) {
		return model.VerificationResult{Found: false, Message: "no code yet"}, nil
	}}
	svc := application.NewCheckService(reg, checker, "facebook", discardLogger())

	outcome, err := svc.Check(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, outcome.Result.Found)
}

func TestCheck_UpstreamErrorPassesThrough(t *testing.T) {
	reg, id := seededRegistry(t)
	upstream := &driven.VerificationError{StatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")}
	checker := &fakeChecker{check: func(context.Context, model.VerificationRequest) (model.VerificationResult, error) {
		return model.VerificationResult{}, upstream
	}}
	svc := application.NewCheckService(reg, checker, "facebook", discardLogger())

	_, err := svc.Check(context.Background(), id)
	require.ErrorIs(t, err, driven.ErrVerificationUnavailable)

	var verr *driven.VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, http.StatusBadGateway, verr.StatusCode)

	// The registry entry survives a failed check.
	_, err = svc.Lookup(context.Background(), id)
	require.NoError(t, err)
}

func TestCheck_ConcurrentChecksShareOneRequest(t *testing.T) {
	reg, id := seededRegistry(t)
	release := make(chan struct{})
	checker := &fakeChecker{check: func(context.Context, model.VerificationRequest) (model.VerificationResult, error) {
		<-release
		return model.VerificationResult{Found: true, Code: "42"}, nil
	}}
	svc := application.NewCheckService(reg, checker, "facebook", discardLogger())

	const callers = 5
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := svc.Check(context.Background(), id)
			assert.NoError(t, err)
			if outcome != nil {
				assert.Equal(t, "42", outcome.Result.Code)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	checker.mu.Lock()
	defer checker.mu.Unlock()
	assert.GreaterOrEqual(t, checker.calls, 1)
	assert.LessOrEqual(t, checker.calls, callers)
}

func TestCheck_CancelledCallerDoesNotFailOthers(t *testing.T) {
	reg, id := seededRegistry(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	checker := &fakeChecker{check: func(ctx context.Context, _ model.VerificationRequest) (model.VerificationResult, error) {
		once.Do(func() { close(entered) })
		select {
		case <-release:
		case <-ctx.Done():
			return model.VerificationResult{}, ctx.Err()
		}
		return model.VerificationResult{Found: true, Code: "777"}, nil
	}}
	svc := application.NewCheckService(reg, checker, "facebook", discardLogger())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Check(firstCtx, id)
		firstErr <- err
	}()
	<-entered

	type result struct {
		outcome *application.CheckOutcome
		err     error
	}
	second := make(chan result, 1)
	go func() {
		outcome, err := svc.Check(context.Background(), id)
		second <- result{outcome, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	time.Sleep(20 * time.Millisecond)
	close(release)

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "777", got.outcome.Result.Code)
}

func TestCheck_Remove(t *testing.T) {
	reg, id := seededRegistry(t)
	svc := application.NewCheckService(reg, nil, "facebook", discardLogger())

	require.NoError(t, svc.Remove(context.Background(), id))
	require.NoError(t, svc.Remove(context.Background(), id), "removing twice is a no-op")

	_, err := svc.Lookup(context.Background(), id)
	require.ErrorIs(t, err, driven.ErrNotFound)
}
