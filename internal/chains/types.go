package chains

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// FeePriority 调用方选择的费用档位
type FeePriority string

const (
	PriorityLow    FeePriority = "low"
	PriorityMedium FeePriority = "medium"
	PriorityHigh   FeePriority = "high"
)

// PrepareRequest 构建未签名交易所需的全部输入。
// Amount 已经过校验 (正十进制数)。
type PrepareRequest struct {
	Chain       string
	FromAddress string
	ToAddress   string
	Amount      decimal.Decimal
	Priority    FeePriority
}

// UnsignedPayload 未签名交易数据，按协议族三选一。
// 不变式：任何字段都不包含私钥或签名。
type UnsignedPayload struct {
	Family    Family            `json:"family"`
	UTXO      *UTXOPayload      `json:"utxo,omitempty"`
	Account   *AccountPayload   `json:"account,omitempty"`
	Blockhash *BlockhashPayload `json:"blockhash,omitempty"`
}

// UTXOPayload 输入/输出模型。RawHex 是未签名 wire 序列化，
// 客户端对每个 input 签名后回传。
type UTXOPayload struct {
	Inputs  []UTXOInput  `json:"inputs"`
	Outputs []UTXOOutput `json:"outputs"`
	FeeSats int64        `json:"fee_sats"`
	RawHex  string       `json:"raw_hex"`
}

type UTXOInput struct {
	TxID      string `json:"tx_id"`
	Vout      uint32 `json:"vout"`
	ValueSats int64  `json:"value_sats"`
}

type UTXOOutput struct {
	Address   string `json:"address"`
	ValueSats int64  `json:"value_sats"`
	Change    bool   `json:"change"`
}

// AccountPayload EVM 系未签名交易字段。大整数一律十进制字符串，
// 避免 JSON number 精度问题。
type AccountPayload struct {
	Nonce    uint64 `json:"nonce"`
	ChainID  uint64 `json:"chain_id"`
	To       string `json:"to"`
	ValueWei string `json:"value_wei"`
	GasLimit uint64 `json:"gas_limit"`
	GasPrice string `json:"gas_price"`
	Data     string `json:"data,omitempty"`
}

// BlockhashPayload solana 系：引用最近区块哈希而不是 nonce。
type BlockhashPayload struct {
	RecentBlockhash      string        `json:"recent_blockhash"`
	LastValidBlockHeight uint64        `json:"last_valid_block_height"`
	FeePayer             string        `json:"fee_payer"`
	Instructions         []Instruction `json:"instructions"`
	MessageBase64        string        `json:"message_base64"`
}

type Instruction struct {
	ProgramID string               `json:"program_id"`
	Accounts  []InstructionAccount `json:"accounts"`
	Data      string               `json:"data"` // base64
}

type InstructionAccount struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

// TxStatus 链上状态检查结果。
// Failed 表示链上明确回执失败 (revert / meta error)，是终态，
// 与查询失败 (返回 error) 严格区分。
type TxStatus struct {
	Confirmed      bool
	Failed         bool
	Confirmations  uint64
	BlockNumber    *uint64
	BlockTimestamp *time.Time
}

// FeeTier 单个费用档位。链族相关的参数按需填充。
type FeeTier struct {
	FeeAmount   decimal.Decimal `json:"fee_amount"`
	FeeCurrency string          `json:"fee_currency"`
	GasLimit    uint64          `json:"gas_limit,omitempty"`
	GasPrice    string          `json:"gas_price,omitempty"` // wei
	SatPerVByte int64           `json:"sat_per_vbyte,omitempty"`
	FlatFee     int64           `json:"flat_fee,omitempty"` // lamports
}

type FeeQuote struct {
	Low    FeeTier `json:"low"`
	Medium FeeTier `json:"medium"`
	High   FeeTier `json:"high"`
}

// Tier 按优先级取档位，未知优先级回落到 medium。
func (q *FeeQuote) Tier(p FeePriority) FeeTier {
	switch p {
	case PriorityLow:
		return q.Low
	case PriorityHigh:
		return q.High
	default:
		return q.Medium
	}
}

// HistoryEntry 历史回填用的归一化交易条目。
type HistoryEntry struct {
	TxHash         string
	Direction      string // incoming / outgoing
	Amount         decimal.Decimal
	FromAddress    string
	ToAddress      string
	FeeAmount      decimal.Decimal
	FeeCurrency    string
	Confirmations  uint64
	BlockNumber    *uint64
	BlockTimestamp *time.Time
	TokenSymbol    string // 非空表示代币转账 (usdt/usdc)
}

// Strategy 每个协议族一个实现，经 Registry 的 Family 分发。
// CheckStatus 的约定：任何网络/解析失败返回 error (而不是伪造状态)，
// 由守护进程计数后下个周期重试；链上明确失败通过 TxStatus.Failed 表达。
type Strategy interface {
	Prepare(ctx context.Context, req PrepareRequest) (*UnsignedPayload, error)
	Broadcast(ctx context.Context, chain string, signedPayload string) (string, error)
	CheckStatus(ctx context.Context, chain string, txHash string) (*TxStatus, error)
	EstimateFee(ctx context.Context, chain string) (*FeeQuote, error)
	FetchHistory(ctx context.Context, chain string, address string, limit int) ([]HistoryEntry, error)
}
