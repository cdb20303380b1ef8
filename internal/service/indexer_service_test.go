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

func newIndexerFixture(strategy chains.Strategy) (*IndexerService, *fakeAddressStore, *fakeTxStore) {
	addresses := &fakeAddressStore{}
	txs := newFakeTxStore()
	events := NewEventPublisher(nil, "", zap.NewNop())
	svc := NewIndexerService(allFamilies(strategy), addresses, txs, events, zap.NewNop())
	return svc, addresses, txs
}

func historyEntry(hash string, confirmations uint64) chains.HistoryEntry {
	ts := time.Unix(1700000000, 0).UTC()
	block := uint64(100)
	return chains.HistoryEntry{
		TxHash:         hash,
		Direction:      "incoming",
		Amount:         decimal.RequireFromString("0.5"),
		FromAddress:    "0xsender",
		ToAddress:      "0xmine",
		FeeAmount:      decimal.RequireFromString("0.0001"),
		FeeCurrency:    "ETH",
		Confirmations:  confirmations,
		BlockNumber:    &block,
		BlockTimestamp: &ts,
	}
}

func TestSyncAddressDiscoversTransactions(t *testing.T) {
	strategy := &fakeStrategy{
		historyFn: func(_ context.Context, chain, address string, limit int) ([]chains.HistoryEntry, error) {
			assert.Equal(t, "ethereum", chain)
			assert.Equal(t, "0xmine", address)
			assert.Equal(t, indexerHistoryLimit, limit)
			return []chains.HistoryEntry{
				historyEntry("0xdeep", 20),  // 超过 12 个确认，直接终态
				historyEntry("0xfresh", 3),  // 还在确认中
			}, nil
		},
	}
	svc, _, txs := newIndexerFixture(strategy)

	addr := &model.WalletAddress{ID: 1, WalletID: "w1", Chain: "ethereum", Address: "0xmine", Active: true}
	result, err := svc.SyncAddress(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, 2, result.NewTransactions)
	assert.Empty(t, result.Errors)

	deep, err := txs.FindByChainHash(context.Background(), "ethereum", "0xdeep")
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusConfirmed, deep.Status)
	assert.Equal(t, model.SourceIndexer, deep.Metadata[model.MetaSource])
	assert.Equal(t, "w1", deep.WalletID)
	assert.Equal(t, uint64(1), deep.AddressID)

	fresh, err := txs.FindByChainHash(context.Background(), "ethereum", "0xfresh")
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusConfirming, fresh.Status)
}

func TestSyncAddressIsIdempotent(t *testing.T) {
	strategy := &fakeStrategy{
		historyFn: func(_ context.Context, _, _ string, _ int) ([]chains.HistoryEntry, error) {
			return []chains.HistoryEntry{historyEntry("0xsame", 20)}, nil
		},
	}
	svc, _, txs := newIndexerFixture(strategy)
	addr := &model.WalletAddress{ID: 1, WalletID: "w1", Chain: "ethereum", Address: "0xmine", Active: true}

	first, err := svc.SyncAddress(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, 1, first.NewTransactions)

	second, err := svc.SyncAddress(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, 0, second.NewTransactions)
	assert.Len(t, txs.rows, 1)
}

func TestSyncWalletContinuesPastFailingAddress(t *testing.T) {
	strategy := &fakeStrategy{
		historyFn: func(_ context.Context, _, address string, _ int) ([]chains.HistoryEntry, error) {
			if address == "0xbroken" {
				return nil, errors.New("all evm endpoints exhausted")
			}
			return []chains.HistoryEntry{historyEntry("0xok", 20)}, nil
		},
	}
	svc, addresses, _ := newIndexerFixture(strategy)
	require.NoError(t, addresses.Register(context.Background(), &model.WalletAddress{
		WalletID: "w1", Chain: "ethereum", Address: "0xbroken", Active: true,
	}))
	require.NoError(t, addresses.Register(context.Background(), &model.WalletAddress{
		WalletID: "w1", Chain: "ethereum", Address: "0xmine", Active: true,
	}))

	result, err := svc.SyncWallet(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewTransactions)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "0xbroken")
}

func TestSyncWalletSkipsInactiveAddresses(t *testing.T) {
	strategy := &fakeStrategy{
		historyFn: func(_ context.Context, _, address string, _ int) ([]chains.HistoryEntry, error) {
			t.Fatalf("inactive address %s must not be synced", address)
			return nil, nil
		},
	}
	svc, addresses, _ := newIndexerFixture(strategy)
	require.NoError(t, addresses.Register(context.Background(), &model.WalletAddress{
		WalletID: "w1", Chain: "ethereum", Address: "0xretired", Active: false,
	}))

	result, err := svc.SyncWallet(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.NewTransactions)
}
