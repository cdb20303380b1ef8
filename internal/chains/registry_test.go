package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-engine/pkg/errno"
)

func TestLookupKnownChains(t *testing.T) {
	tests := []struct {
		chain    string
		family   Family
		decimals int32
	}{
		{"bitcoin", FamilyUTXO, 8},
		{"ethereum", FamilyAccount, 18},
		{"solana", FamilyBlockhash, 9},
	}

	for _, tt := range tests {
		t.Run(tt.chain, func(t *testing.T) {
			cap, err := Lookup(tt.chain)
			require.NoError(t, err)
			assert.Equal(t, tt.family, cap.Family)
			assert.Equal(t, tt.decimals, cap.Decimals)
			assert.NotZero(t, cap.RequiredConfirmations)
		})
	}
}

func TestLookupUnknownChain(t *testing.T) {
	_, err := Lookup("tron")
	require.Error(t, err)
	assert.True(t, errno.IsCode(err, errno.ErrInvalidChain))
}

func TestEVMChainsCarryNetworkID(t *testing.T) {
	for _, id := range Supported() {
		cap, err := Lookup(id)
		require.NoError(t, err)
		if cap.Family == FamilyAccount {
			assert.NotZero(t, cap.NetworkID, "account chain %s must declare a chainId", id)
		} else {
			assert.Zero(t, cap.NetworkID)
		}
	}
}
