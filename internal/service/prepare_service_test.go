package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wallet-engine/internal/chains"
	"wallet-engine/internal/model"
	"wallet-engine/pkg/errno"
)

func newPrepareFixture(strategy chains.Strategy) (*PrepareService, *fakeAddressStore, *fakeIntentStore) {
	addresses := &fakeAddressStore{}
	intents := newFakeIntentStore()
	svc := NewPrepareService(allFamilies(strategy), addresses, intents, zap.NewNop())
	return svc, addresses, intents
}

func registeredAddress(t *testing.T, addresses *fakeAddressStore, walletID, chain, address string) {
	t.Helper()
	require.NoError(t, addresses.Register(context.Background(), &model.WalletAddress{
		WalletID: walletID,
		Chain:    chain,
		Address:  address,
		Active:   true,
	}))
}

func TestPrepareHappyPath(t *testing.T) {
	strategy := &fakeStrategy{
		prepareFn: func(_ context.Context, req chains.PrepareRequest) (*chains.UnsignedPayload, error) {
			assert.Equal(t, "ethereum", req.Chain)
			assert.Equal(t, "1.5", req.Amount.String())
			return &chains.UnsignedPayload{
				Family:  chains.FamilyAccount,
				Account: &chains.AccountPayload{Nonce: 7, ChainID: 1},
			}, nil
		},
	}
	svc, addresses, intents := newPrepareFixture(strategy)
	registeredAddress(t, addresses, "w1", "ethereum", "0xabc")

	before := time.Now()
	result, err := svc.Prepare(context.Background(), PrepareParams{
		WalletID:    "w1",
		Chain:       "ethereum",
		FromAddress: "0xabc",
		ToAddress:   "0xdef",
		Amount:      "1.5",
		Priority:    "medium",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.IntentID, "tx_"))
	assert.Equal(t, uint64(7), result.Payload.Account.Nonce)

	// 有效期 5 分钟
	ttl := result.ExpiresAt.Sub(before)
	assert.InDelta(t, (5 * time.Minute).Seconds(), ttl.Seconds(), 1.0)

	stored, err := intents.Find(context.Background(), result.IntentID)
	require.NoError(t, err)
	assert.Equal(t, "w1", stored.WalletID)
	assert.NotEmpty(t, stored.Payload)
}

func TestPrepareValidationOrder(t *testing.T) {
	strategy := &fakeStrategy{
		prepareFn: func(_ context.Context, _ chains.PrepareRequest) (*chains.UnsignedPayload, error) {
			t.Fatal("strategy must not be reached on validation failure")
			return nil, nil
		},
	}
	svc, addresses, _ := newPrepareFixture(strategy)
	registeredAddress(t, addresses, "w1", "ethereum", "0xabc")

	// 未知链优先于金额错误
	_, err := svc.Prepare(context.Background(), PrepareParams{
		WalletID: "w1", Chain: "chia", FromAddress: "0xabc", ToAddress: "0xdef", Amount: "bogus",
	})
	assert.True(t, errno.IsCode(err, errno.ErrInvalidChain))

	// 金额错误优先于地址归属
	_, err = svc.Prepare(context.Background(), PrepareParams{
		WalletID: "w1", Chain: "ethereum", FromAddress: "0xunknown", ToAddress: "0xdef", Amount: "-1",
	})
	assert.True(t, errno.IsCode(err, errno.ErrInvalidAmount))

	// 非本钱包的地址
	_, err = svc.Prepare(context.Background(), PrepareParams{
		WalletID: "w2", Chain: "ethereum", FromAddress: "0xabc", ToAddress: "0xdef", Amount: "1",
	})
	assert.True(t, errno.IsCode(err, errno.ErrAddressNotFound))
}

func TestPrepareStrategyErrorPassesThrough(t *testing.T) {
	strategy := &fakeStrategy{
		prepareFn: func(_ context.Context, _ chains.PrepareRequest) (*chains.UnsignedPayload, error) {
			return nil, errno.ErrPrepareFailed.WithDetail("Insufficient funds")
		},
	}
	svc, addresses, intents := newPrepareFixture(strategy)
	registeredAddress(t, addresses, "w1", "bitcoin", "bc1qxyz")

	_, err := svc.Prepare(context.Background(), PrepareParams{
		WalletID: "w1", Chain: "bitcoin", FromAddress: "bc1qxyz", ToAddress: "bc1qabc", Amount: "1",
	})
	assert.True(t, errno.IsCode(err, errno.ErrPrepareFailed))
	assert.Empty(t, intents.rows)
}

func TestIntentIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := newIntentID()
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(id, "tx_"))
		require.False(t, seen[id], "duplicate intent id %s", id)
		seen[id] = true
	}
}
