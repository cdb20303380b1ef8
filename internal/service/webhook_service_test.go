package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wallet-engine/internal/model"
	"wallet-engine/pkg/crypto_util"
	"wallet-engine/pkg/errno"
)

func newWebhookFixture(maxFailures int) (*WebhookService, *fakeWebhookStore) {
	whStore := newFakeWebhookStore()
	svc := NewWebhookService(whStore, 5*time.Second, maxFailures, zap.NewNop())
	return svc, whStore
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newWebhookFixture(10)

	_, _, err := svc.Register(context.Background(), "w1", "::::", []string{EventTxConfirmed})
	assert.True(t, errno.IsCode(err, errno.ErrInvalidURL))

	_, _, err = svc.Register(context.Background(), "w1", "http://example.com/hook", []string{EventTxConfirmed})
	assert.True(t, errno.IsCode(err, errno.ErrInvalidURL), "plain http callback must be rejected")

	_, _, err = svc.Register(context.Background(), "w1", "https://example.com/hook", []string{"transaction.teleported"})
	assert.True(t, errno.IsCode(err, errno.ErrInvalidEvent))

	_, _, err = svc.Register(context.Background(), "w1", "https://example.com/hook", nil)
	assert.True(t, errno.IsCode(err, errno.ErrInvalidEvent))
}

func TestRegisterReturnsSecretOnce(t *testing.T) {
	svc, whStore := newWebhookFixture(10)

	reg, secret, err := svc.Register(context.Background(), "w1", "https://example.com/hook",
		[]string{EventTxConfirmed, EventTxFailed})
	require.NoError(t, err)
	assert.Len(t, secret, 64) // 32 字节 hex
	assert.True(t, reg.Active)

	stored, err := whStore.Find(context.Background(), "w1", reg.ID)
	require.NoError(t, err)
	assert.Equal(t, secret, stored.Secret)
}

func TestNotifySignsPayload(t *testing.T) {
	var (
		gotBody      []byte
		gotSignature string
		gotEvent     string
	)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Webhook-Signature")
		gotEvent = r.Header.Get("X-Webhook-Event")
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	svc, whStore := newWebhookFixture(10)
	reg, secret, err := svc.Register(context.Background(), "w1", receiver.URL, []string{EventTxConfirmed})
	require.NoError(t, err)

	tx := &model.Transaction{WalletID: "w1", Chain: "ethereum", TxHash: "0xaaa", Status: model.TxStatusConfirmed}
	svc.Notify(context.Background(), "w1", EventTxConfirmed, tx)

	require.NotEmpty(t, gotBody)
	assert.Equal(t, EventTxConfirmed, gotEvent)
	assert.True(t, crypto_util.VerifyHMACSHA256(secret, gotBody, gotSignature))

	var envelope webhookEnvelope
	require.NoError(t, json.Unmarshal(gotBody, &envelope))
	assert.Equal(t, EventTxConfirmed, envelope.Event)
	assert.Equal(t, "w1", envelope.WalletID)
	assert.NotZero(t, envelope.Timestamp)

	// 成功投递后失败计数保持为零
	stored, err := whStore.Find(context.Background(), "w1", reg.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailureCount)
	assert.True(t, stored.Active)
}

func TestNotifySkipsUnsubscribedEvents(t *testing.T) {
	var calls int
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	svc, _ := newWebhookFixture(10)
	_, _, err := svc.Register(context.Background(), "w1", receiver.URL, []string{EventTxFailed})
	require.NoError(t, err)

	svc.Notify(context.Background(), "w1", EventTxConfirmed, nil)
	assert.Equal(t, 0, calls)
}

func TestNotifyDisablesAfterRepeatedFailures(t *testing.T) {
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer receiver.Close()

	maxFailures := 3
	svc, whStore := newWebhookFixture(maxFailures)
	reg, _, err := svc.Register(context.Background(), "w1", receiver.URL, []string{EventTxConfirmed})
	require.NoError(t, err)

	for i := 0; i < maxFailures; i++ {
		svc.Notify(context.Background(), "w1", EventTxConfirmed, nil)
	}

	stored, err := whStore.Find(context.Background(), "w1", reg.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, maxFailures, stored.FailureCount)

	// 停用后不再投递
	svc.Notify(context.Background(), "w1", EventTxConfirmed, nil)
	stored, err = whStore.Find(context.Background(), "w1", reg.ID)
	require.NoError(t, err)
	assert.Equal(t, maxFailures, stored.FailureCount)
}

func TestDeleteWebhook(t *testing.T) {
	svc, _ := newWebhookFixture(10)
	reg, _, err := svc.Register(context.Background(), "w1", "https://example.com/hook", []string{EventTxConfirmed})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "w1", reg.ID))
	assert.True(t, errno.IsCode(svc.Delete(context.Background(), "w1", reg.ID), errno.ErrWebhookNotFound))

	// 他人无法删除
	reg2, _, err := svc.Register(context.Background(), "w1", "https://example.com/hook2", []string{EventTxConfirmed})
	require.NoError(t, err)
	assert.Error(t, svc.Delete(context.Background(), "w2", reg2.ID))
}
