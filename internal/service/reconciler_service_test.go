package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wallet-engine/internal/chains"
	"wallet-engine/internal/model"
)

func newReconcilerFixture(strategy chains.Strategy, txs *fakeTxStore) *ReconcilerService {
	events := NewEventPublisher(nil, "", zap.NewNop())
	return NewReconcilerService(
		allFamilies(strategy), txs, nil, events, nil,
		15*time.Second, 200, 10*time.Second, zap.NewNop())
}

func seedTx(t *testing.T, txs *fakeTxStore, hash, status string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, txs.Create(context.Background(), &model.Transaction{
		WalletID:  "w1",
		Chain:     "ethereum",
		TxHash:    hash,
		Direction: model.DirectionOutgoing,
		Status:    status,
		Amount:    decimal.NewFromInt(1),
		CreatedAt: createdAt,
	}))
}

func TestRunCycleConfirmsTransaction(t *testing.T) {
	txs := newFakeTxStore()
	seedTx(t, txs, "0xaaa", model.TxStatusConfirming, time.Now())

	block := uint64(100)
	strategy := &fakeStrategy{
		checkFn: func(_ context.Context, _, _ string) (*chains.TxStatus, error) {
			return &chains.TxStatus{Confirmed: true, Confirmations: 12, BlockNumber: &block}, nil
		},
	}

	stats, err := newReconcilerFixture(strategy, txs).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Checked)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, 0, stats.Errors)

	tx, err := txs.FindByChainHash(context.Background(), "ethereum", "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusConfirmed, tx.Status)
	assert.Equal(t, uint64(12), tx.Confirmations)
	assert.Equal(t, "daemon", tx.Metadata[model.MetaFinalizedBy])
}

func TestRunCycleMarksOnchainFailure(t *testing.T) {
	txs := newFakeTxStore()
	seedTx(t, txs, "0xaaa", model.TxStatusPending, time.Now())

	strategy := &fakeStrategy{
		checkFn: func(_ context.Context, _, _ string) (*chains.TxStatus, error) {
			return &chains.TxStatus{Failed: true, Confirmations: 2}, nil
		},
	}

	stats, err := newReconcilerFixture(strategy, txs).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	tx, err := txs.FindByChainHash(context.Background(), "ethereum", "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusFailed, tx.Status)
	assert.Equal(t, "daemon", tx.Metadata[model.MetaFinalizedBy])
}

func TestRunCycleLaggingSourceNeverLowersConfirmations(t *testing.T) {
	txs := newFakeTxStore()
	seedTx(t, txs, "0xaaa", model.TxStatusConfirming, time.Now())

	confirmations := uint64(8)
	strategy := &fakeStrategy{
		checkFn: func(_ context.Context, _, _ string) (*chains.TxStatus, error) {
			return &chains.TxStatus{Confirmations: confirmations}, nil
		},
	}
	svc := newReconcilerFixture(strategy, txs)

	_, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	tx, err := txs.FindByChainHash(context.Background(), "ethereum", "0xaaa")
	require.NoError(t, err)
	require.Equal(t, uint64(8), tx.Confirmations)

	// 下个周期落到了一个落后的 fallback 数据源上
	confirmations = 3
	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Checked)
	assert.Equal(t, 0, stats.Updated)

	tx, err = txs.FindByChainHash(context.Background(), "ethereum", "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, uint64(8), tx.Confirmations)
	assert.Equal(t, model.TxStatusConfirming, tx.Status)
}

func TestRunCycleCheckerErrorLeavesRowUntouched(t *testing.T) {
	txs := newFakeTxStore()
	seedTx(t, txs, "0xaaa", model.TxStatusPending, time.Now())

	strategy := &fakeStrategy{
		checkFn: func(_ context.Context, _, _ string) (*chains.TxStatus, error) {
			return nil, errors.New("all evm endpoints exhausted")
		},
	}

	stats, err := newReconcilerFixture(strategy, txs).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Checked)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 0, stats.Updated)

	tx, err := txs.FindByChainHash(context.Background(), "ethereum", "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusPending, tx.Status)
	assert.Equal(t, uint64(0), tx.Confirmations)
}

func TestRunCyclePromotesPendingToConfirming(t *testing.T) {
	txs := newFakeTxStore()
	seedTx(t, txs, "0xaaa", model.TxStatusPending, time.Now())

	strategy := &fakeStrategy{
		checkFn: func(_ context.Context, _, _ string) (*chains.TxStatus, error) {
			return &chains.TxStatus{Confirmations: 3}, nil
		},
	}

	_, err := newReconcilerFixture(strategy, txs).RunCycle(context.Background())
	require.NoError(t, err)

	tx, err := txs.FindByChainHash(context.Background(), "ethereum", "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusConfirming, tx.Status)
	assert.Equal(t, uint64(3), tx.Confirmations)
	// 非终态不盖章
	assert.Empty(t, tx.Metadata[model.MetaFinalizedBy])
}

func TestRunCycleSkipsPlaceholderAndTerminalRows(t *testing.T) {
	txs := newFakeTxStore()
	seedTx(t, txs, "tx_placeholder", model.TxStatusPending, time.Now())
	seedTx(t, txs, "0xdone", model.TxStatusConfirmed, time.Now())

	strategy := &fakeStrategy{
		checkFn: func(_ context.Context, _, hash string) (*chains.TxStatus, error) {
			t.Fatalf("unexpected status check for %s", hash)
			return nil, nil
		},
	}

	stats, err := newReconcilerFixture(strategy, txs).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Checked)
}

func TestRunCycleProcessesOldestFirst(t *testing.T) {
	txs := newFakeTxStore()
	now := time.Now()
	seedTx(t, txs, "0xnew", model.TxStatusPending, now)
	seedTx(t, txs, "0xold", model.TxStatusPending, now.Add(-time.Hour))

	var order []string
	strategy := &fakeStrategy{
		checkFn: func(_ context.Context, _, hash string) (*chains.TxStatus, error) {
			order = append(order, hash)
			return &chains.TxStatus{Confirmations: 1}, nil
		},
	}

	_, err := newReconcilerFixture(strategy, txs).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0xold", "0xnew"}, order)
}
