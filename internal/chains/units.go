package chains

import (
	"math/big"

	"github.com/shopspring/decimal"

	"wallet-engine/pkg/errno"
)

// ToBaseUnits 把十进制金额转换为链上最小单位的整数。
// 转换必须是精确的：小数位超过链精度直接报错，绝不四舍五入，
// 也绝不允许浮点参与。
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	shifted := amount.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, errno.ErrInvalidAmount.WithDetail("too many decimal places for chain precision")
	}
	return shifted.BigInt(), nil
}

// FromBaseUnits 把最小单位整数还原为十进制金额，无精度损失。
func FromBaseUnits(raw *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -decimals)
}

// FromBaseUnitsInt 是 FromBaseUnits 的 int64 便捷版本 (satoshi、lamport 场景)。
func FromBaseUnitsInt(raw int64, decimals int32) decimal.Decimal {
	return decimal.New(raw, -decimals)
}

// ParsePositiveAmount 解析请求中的金额字符串。
// 必须是有限的正十进制数，否则返回 INVALID_AMOUNT。
func ParsePositiveAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errno.ErrInvalidAmount.WithDetail(s)
	}
	if d.Sign() <= 0 {
		return decimal.Zero, errno.ErrInvalidAmount.WithDetail("amount must be positive")
	}
	return d, nil
}
