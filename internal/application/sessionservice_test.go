package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/mailbroker/internal/application"
	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

const unitPrice = model.Money(200)

func newSessionService(codes *fakeCodes) (*application.SessionService, *fakeSessionStore, *fakeTopUpStore) {
	store := newFakeSessionStore()
	topups := newFakeTopUpStore()
	var gen driven.CodeGenerator
	if codes != nil {
		gen = codes
	}
	return application.NewSessionService(store, topups, gen, unitPrice, discardLogger()), store, topups
}

func TestSession_NoActiveFlow(t *testing.T) {
	svc, _, _ := newSessionService(nil)

	reply, err := svc.HandleInput(context.Background(), "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, model.ReplyNoSession, reply.Kind)
}

func TestSession_TopUpFlow(t *testing.T) {
	ctx := context.Background()
	svc, store, topups := newSessionService(nil)

	reply, err := svc.StartTopUp(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.ReplyAskAmount, reply.Kind)
	assert.Equal(t, unitPrice, reply.UnitPrice)

	reply, err = svc.HandleInput(ctx, "u1", "abc")
	require.NoError(t, err)
	assert.Equal(t, model.ReplyInvalidAmount, reply.Kind)
	sess, _ := store.Get(ctx, "u1")
	assert.Equal(t, model.SessionStepAwaitingAmount, sess.Step, "invalid amount keeps the step")

	reply, err = svc.HandleInput(ctx, "u1", "5")
	require.NoError(t, err)
	assert.Equal(t, model.ReplyPaymentInstructions, reply.Kind)
	assert.Equal(t, int64(5), reply.Session.Credits)
	assert.Equal(t, model.Money(1000), reply.Session.Price)

	reply, err = svc.HandleInput(ctx, "u1", "no separator")
	require.NoError(t, err)
	assert.Equal(t, model.ReplyInvalidReference, reply.Kind)

	reply, err = svc.HandleInput(ctx, "u1", "01700000000|TX123")
	require.NoError(t, err)
	assert.Equal(t, model.ReplyTopUpSubmitted, reply.Kind)
	require.NotNil(t, reply.TopUp)
	assert.NotEmpty(t, reply.TopUp.ID)
	assert.Equal(t, "u1", reply.TopUp.UserID)
	assert.Equal(t, int64(5), reply.TopUp.Credits)
	assert.Equal(t, model.Money(1000), reply.TopUp.Price)
	assert.Equal(t, "01700000000", reply.TopUp.Sender)
	assert.Equal(t, "TX123", reply.TopUp.TransactionID)
	assert.Equal(t, model.TopUpStatusPending, reply.TopUp.Status)

	pending, err := topups.ListByStatus(ctx, model.TopUpStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	sess, _ = store.Get(ctx, "u1")
	assert.False(t, sess.Active(), "session ends after submission")
}

func TestSession_DuplicateReference(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newSessionService(nil)

	for _, user := range []string{"u1", "u2"} {
		_, err := svc.StartTopUp(ctx, user)
		require.NoError(t, err)
		_, err = svc.HandleInput(ctx, user, "1")
		require.NoError(t, err)
	}

	reply, err := svc.HandleInput(ctx, "u1", "s1|TX-SAME")
	require.NoError(t, err)
	assert.Equal(t, model.ReplyTopUpSubmitted, reply.Kind)

	reply, err = svc.HandleInput(ctx, "u2", "s2|TX-SAME")
	require.NoError(t, err)
	assert.Equal(t, model.ReplyDuplicateReference, reply.Kind)

	sess, _ := store.Get(ctx, "u2")
	assert.Equal(t, model.SessionStepAwaitingPaymentReference, sess.Step)
}

func TestSession_AmountBounds(t *testing.T) {
	tests := []struct {
		input string
		want  model.ReplyKind
	}{
		{input: "0", want: model.ReplyInvalidAmount},
		{input: "-3", want: model.ReplyInvalidAmount},
		{input: "2.5", want: model.ReplyInvalidAmount},
		{input: "100001", want: model.ReplyInvalidAmount},
		{input: " 7 ", want: model.ReplyPaymentInstructions},
		{input: "100000", want: model.ReplyPaymentInstructions},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ctx := context.Background()
			svc, _, _ := newSessionService(nil)
			_, err := svc.StartTopUp(ctx, "u1")
			require.NoError(t, err)

			reply, err := svc.HandleInput(ctx, "u1", tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply.Kind)
		})
	}
}

func TestSession_SecretKeyFlow(t *testing.T) {
	ctx := context.Background()
	codes := &fakeCodes{code: "287082"}
	svc, store, _ := newSessionService(codes)

	reply, err := svc.StartSecretKey(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.ReplyAskSecretKey, reply.Kind)

	reply, err = svc.HandleInput(ctx, "u1", "JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.Equal(t, model.ReplyCodeGenerated, reply.Kind)
	assert.Equal(t, "287082", reply.Code)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", codes.got)

	sess, _ := store.Get(ctx, "u1")
	assert.False(t, sess.Active())
}

func TestSession_SecretKeyFailureEndsFlow(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newSessionService(&fakeCodes{err: errors.New("bad secret")})

	_, err := svc.StartSecretKey(ctx, "u1")
	require.NoError(t, err)

	reply, err := svc.HandleInput(ctx, "u1", "not base32!")
	require.NoError(t, err)
	assert.Equal(t, model.ReplyCodeGenerationFailed, reply.Kind)

	sess, _ := store.Get(ctx, "u1")
	assert.False(t, sess.Active())
}

func TestSession_StartingOneFlowReplacesTheOther(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newSessionService(&fakeCodes{code: "1"})

	_, err := svc.StartTopUp(ctx, "u1")
	require.NoError(t, err)
	_, err = svc.HandleInput(ctx, "u1", "3")
	require.NoError(t, err)

	_, err = svc.StartSecretKey(ctx, "u1")
	require.NoError(t, err)

	sess, _ := store.Get(ctx, "u1")
	assert.Equal(t, model.SessionStepAwaitingSecretKey, sess.Step)
	assert.Zero(t, sess.Credits)
}

func TestSession_CancelClearsFlow(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSessionService(nil)

	_, err := svc.StartTopUp(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, "u1"))

	sess, err := svc.Current(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, sess.Active())

	reply, err := svc.HandleInput(ctx, "u1", "5")
	require.NoError(t, err)
	assert.Equal(t, model.ReplyNoSession, reply.Kind)
}

func TestSession_StoreFailureIsAnError(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newSessionService(nil)
	store.putErr = errors.New("store down")

	_, err := svc.StartTopUp(ctx, "u1")
	require.Error(t, err)
}

func TestSession_ConcurrentInputsForOneUser(t *testing.T) {
	ctx := context.Background()
	svc, _, topups := newSessionService(nil)

	_, err := svc.StartTopUp(ctx, "u1")
	require.NoError(t, err)
	_, err = svc.HandleInput(ctx, "u1", "2")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.HandleInput(ctx, "u1", "sender|TX-"+string(rune('A'+i)))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	pending, err := topups.ListByStatus(ctx, model.TopUpStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "only the first reference is accepted")
}
