package chains

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-engine/pkg/errno"
)

func TestBaseUnitRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		decimals int32
		want     string
	}{
		{"lamports", "123456789", 9, "0.123456789"},
		{"satoshis", "100000000", 8, "1"},
		{"one sat", "1", 8, "0.00000001"},
		{"wei", "1500000000000000000", 18, "1.5"},
		{"wei dust", "1", 18, "0.000000000000000001"},
		{"usd token", "2500000", 6, "2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, ok := new(big.Int).SetString(tt.raw, 10)
			require.True(t, ok)

			dec := FromBaseUnits(raw, tt.decimals)
			assert.Equal(t, tt.want, dec.String())

			back, err := ToBaseUnits(dec, tt.decimals)
			require.NoError(t, err)
			assert.Zero(t, raw.Cmp(back), "round trip must be lossless")
		})
	}
}

func TestToBaseUnitsRejectsExcessPrecision(t *testing.T) {
	// 第 9 位小数在 8 位精度的链上不可表示
	d := decimal.RequireFromString("0.000000001")
	_, err := ToBaseUnits(d, 8)
	require.Error(t, err)
	assert.True(t, errno.IsCode(err, errno.ErrInvalidAmount))
}

func TestParsePositiveAmount(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"1.5", false},
		{"0.00000001", false},
		{"0", true},
		{"-3", true},
		{"abc", true},
		{"", true},
		{"NaN", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParsePositiveAmount(tt.in)
			if tt.wantErr {
				assert.True(t, errno.IsCode(err, errno.ErrInvalidAmount), "input %q", tt.in)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
