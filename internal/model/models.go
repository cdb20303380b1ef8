package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// 交易状态机: pending -> confirming -> confirmed / failed
// confirmed 和 failed 是终态，任何方向的回退都不允许
const (
	TxStatusPending    = "pending"
	TxStatusConfirming = "confirming"
	TxStatusConfirmed  = "confirmed"
	TxStatusFailed     = "failed"
)

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// metadata 约定键
const (
	MetaSource      = "source"
	MetaFinalizedBy = "finalized_by"
	MetaTokenSymbol = "token_symbol"

	SourceClient  = "client"
	SourceIndexer = "indexer"
)

var statusRank = map[string]int{
	TxStatusPending:    0,
	TxStatusConfirming: 1,
	TxStatusConfirmed:  2,
	TxStatusFailed:     2,
}

// IsTerminalStatus confirmed/failed 之后状态不再变化
func IsTerminalStatus(status string) bool {
	return status == TxStatusConfirmed || status == TxStatusFailed
}

// CanTransition 状态只能单调前进，同级之间 (confirmed/failed) 也不能互转
func CanTransition(from, to string) bool {
	if IsTerminalStatus(from) {
		return false
	}
	return statusRank[to] > statusRank[from]
}

// JSONMap jsonb 键值对字段
type JSONMap map[string]string

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return fmt.Errorf("unsupported jsonb source type %T", value)
		}
	}
	return json.Unmarshal(bytes, m)
}

// StringList jsonb 字符串数组字段
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return fmt.Errorf("unsupported jsonb source type %T", value)
		}
	}
	return json.Unmarshal(bytes, l)
}

func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// WalletAddress 钱包归属地址表。地址和派生索引由客户端侧生成，
// 这里只登记归属关系，私钥从不落库。
type WalletAddress struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletID        string    `gorm:"type:varchar(64);not null;index" json:"wallet_id"`
	Chain           string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_chain_address" json:"chain"`
	Address         string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_chain_address" json:"address"`
	DerivationIndex int       `gorm:"not null;default:0" json:"derivation_index"`
	Active          bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Transaction 交易记录表。广播和历史回填都会写入，
// (chain, tx_hash) 唯一索引保证同一笔链上交易只有一行。
type Transaction struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletID       string          `gorm:"type:varchar(64);not null;index" json:"wallet_id"`
	AddressID      uint64          `gorm:"index" json:"address_id"`
	Chain          string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_chain_tx" json:"chain"`
	TxHash         string          `gorm:"type:varchar(255);not null;uniqueIndex:idx_chain_tx" json:"tx_hash"`
	Direction      string          `gorm:"type:varchar(10);not null" json:"direction"`
	Status         string          `gorm:"type:varchar(20);not null;index" json:"status"`
	Amount         decimal.Decimal `gorm:"type:decimal(38,18);not null" json:"amount"`
	FromAddress    string          `gorm:"type:varchar(255)" json:"from_address"`
	ToAddress      string          `gorm:"type:varchar(255)" json:"to_address"`
	FeeAmount      decimal.Decimal `gorm:"type:decimal(38,18);not null;default:0" json:"fee_amount"`
	FeeCurrency    string          `gorm:"type:varchar(10)" json:"fee_currency"`
	Confirmations  uint64          `gorm:"not null;default:0" json:"confirmations"`
	BlockNumber    *uint64         `json:"block_number,omitempty"`
	BlockTimestamp *time.Time      `json:"block_timestamp,omitempty"`
	Metadata       JSONMap         `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TransactionIntent 准备好的未签名交易意向，等待客户端签名回传。
// 过期后由定时任务清除，广播时校验 ExpiresAt。
type TransactionIntent struct {
	ID          string          `gorm:"type:varchar(80);primaryKey" json:"id"`
	WalletID    string          `gorm:"type:varchar(64);not null;index" json:"wallet_id"`
	Chain       string          `gorm:"type:varchar(20);not null" json:"chain"`
	FromAddress string          `gorm:"type:varchar(255);not null" json:"from_address"`
	ToAddress   string          `gorm:"type:varchar(255);not null" json:"to_address"`
	Amount      decimal.Decimal `gorm:"type:decimal(38,18);not null" json:"amount"`
	Priority    string          `gorm:"type:varchar(10);not null" json:"priority"`
	Payload     []byte          `gorm:"type:jsonb;not null" json:"payload"`
	ExpiresAt   time.Time       `gorm:"not null;index" json:"expires_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Expired 判断意向是否已过期
func (i *TransactionIntent) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// WebhookRegistration webhook 订阅表。
// 连续失败 10 次后自动停用，密钥只在注册响应里返回一次。
type WebhookRegistration struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletID     string     `gorm:"type:varchar(64);not null;index" json:"wallet_id"`
	URL          string     `gorm:"type:varchar(512);not null" json:"url"`
	Events       StringList `gorm:"type:jsonb;not null" json:"events"`
	Secret       string     `gorm:"type:varchar(128);not null" json:"-"`
	FailureCount int        `gorm:"not null;default:0" json:"failure_count"`
	Active       bool       `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (WalletAddress) TableName() string {
	return "wallet_addresses"
}

func (Transaction) TableName() string {
	return "transactions"
}

func (TransactionIntent) TableName() string {
	return "transaction_intents"
}

func (WebhookRegistration) TableName() string {
	return "webhook_registrations"
}
