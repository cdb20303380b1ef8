package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{TxStatusPending, TxStatusConfirming, true},
		{TxStatusPending, TxStatusConfirmed, true},
		{TxStatusPending, TxStatusFailed, true},
		{TxStatusConfirming, TxStatusConfirmed, true},
		{TxStatusConfirming, TxStatusFailed, true},
		{TxStatusConfirming, TxStatusPending, false},
		{TxStatusConfirmed, TxStatusFailed, false},
		{TxStatusConfirmed, TxStatusPending, false},
		{TxStatusFailed, TxStatusConfirmed, false},
		{TxStatusConfirmed, TxStatusConfirmed, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestJSONMapRoundTrip(t *testing.T) {
	m := JSONMap{MetaSource: SourceIndexer, MetaTokenSymbol: "USDT"}
	v, err := m.Value()
	require.NoError(t, err)

	var got JSONMap
	require.NoError(t, got.Scan(v))
	assert.Equal(t, m, got)

	var nilMap JSONMap
	v, err = nilMap.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStringListContains(t *testing.T) {
	l := StringList{"transaction.confirmed", "transaction.failed"}
	assert.True(t, l.Contains("transaction.failed"))
	assert.False(t, l.Contains("transaction.pending"))
}

func TestIntentExpired(t *testing.T) {
	now := time.Now()
	intent := TransactionIntent{ExpiresAt: now.Add(5 * time.Minute)}
	assert.False(t, intent.Expired(now))
	assert.False(t, intent.Expired(now.Add(5*time.Minute))) // 边界上还未过期
	assert.True(t, intent.Expired(now.Add(5*time.Minute+time.Second)))
}
