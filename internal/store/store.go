package store

import (
	"context"
	"time"

	"wallet-engine/internal/model"
)

// TransactionStore 交易记录的持久化接口
type TransactionStore interface {
	Create(ctx context.Context, tx *model.Transaction) error
	// Upsert 按 (chain, tx_hash) 冲突忽略写入，返回是否真正插入了新行
	Upsert(ctx context.Context, tx *model.Transaction) (bool, error)
	Update(ctx context.Context, tx *model.Transaction) error
	FindByChainHash(ctx context.Context, chain, txHash string) (*model.Transaction, error)
	// ListNonTerminal 返回待对账的交易，最旧的在前。
	// 占位哈希 (尚未广播的意向 ID) 不在对账范围内。
	ListNonTerminal(ctx context.Context, limit int) ([]model.Transaction, error)
	ListByWallet(ctx context.Context, walletID, chain string, limit int) ([]model.Transaction, error)
}

// AddressStore 钱包地址登记接口
type AddressStore interface {
	Register(ctx context.Context, addr *model.WalletAddress) error
	ActiveAddresses(ctx context.Context, walletID string) ([]model.WalletAddress, error)
	FindActive(ctx context.Context, walletID, chain, address string) (*model.WalletAddress, error)
}

// IntentStore 未签名交易意向接口
type IntentStore interface {
	Create(ctx context.Context, intent *model.TransactionIntent) error
	Find(ctx context.Context, id string) (*model.TransactionIntent, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpired 清除已过期的意向，返回清除数量
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// WebhookStore webhook 订阅接口
type WebhookStore interface {
	Create(ctx context.Context, reg *model.WebhookRegistration) error
	Find(ctx context.Context, walletID string, id uint64) (*model.WebhookRegistration, error)
	ListByWallet(ctx context.Context, walletID string) ([]model.WebhookRegistration, error)
	ListActive(ctx context.Context, walletID string) ([]model.WebhookRegistration, error)
	Update(ctx context.Context, reg *model.WebhookRegistration) error
	Delete(ctx context.Context, walletID string, id uint64) error
}
