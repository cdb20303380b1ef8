package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wallet-engine/internal/model"
)

type transactionStore struct {
	db *gorm.DB
}

func NewTransactionStore(db *gorm.DB) TransactionStore {
	return &transactionStore{db: db}
}

func (s *transactionStore) Create(ctx context.Context, tx *model.Transaction) error {
	return s.db.WithContext(ctx).Create(tx).Error
}

func (s *transactionStore) Upsert(ctx context.Context, tx *model.Transaction) (bool, error) {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chain"}, {Name: "tx_hash"}},
		DoNothing: true,
	}).Create(tx)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *transactionStore) Update(ctx context.Context, tx *model.Transaction) error {
	return s.db.WithContext(ctx).Save(tx).Error
}

func (s *transactionStore) FindByChainHash(ctx context.Context, chain, txHash string) (*model.Transaction, error) {
	var tx model.Transaction
	err := s.db.WithContext(ctx).
		Where("chain = ? AND tx_hash = ?", chain, txHash).
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *transactionStore) ListNonTerminal(ctx context.Context, limit int) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{model.TxStatusPending, model.TxStatusConfirming}).
		Where(`tx_hash NOT LIKE 'tx\_%'`).
		Order("created_at ASC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

func (s *transactionStore) ListByWallet(ctx context.Context, walletID, chain string, limit int) ([]model.Transaction, error) {
	query := s.db.WithContext(ctx).Where("wallet_id = ?", walletID)
	if chain != "" {
		query = query.Where("chain = ?", chain)
	}
	var txs []model.Transaction
	err := query.Order("created_at DESC").Limit(limit).Find(&txs).Error
	return txs, err
}

type addressStore struct {
	db *gorm.DB
}

func NewAddressStore(db *gorm.DB) AddressStore {
	return &addressStore{db: db}
}

func (s *addressStore) Register(ctx context.Context, addr *model.WalletAddress) error {
	return s.db.WithContext(ctx).Create(addr).Error
}

func (s *addressStore) ActiveAddresses(ctx context.Context, walletID string) ([]model.WalletAddress, error) {
	var addrs []model.WalletAddress
	err := s.db.WithContext(ctx).
		Where("wallet_id = ? AND active = ?", walletID, true).
		Order("id ASC").
		Find(&addrs).Error
	return addrs, err
}

func (s *addressStore) FindActive(ctx context.Context, walletID, chain, address string) (*model.WalletAddress, error) {
	var addr model.WalletAddress
	err := s.db.WithContext(ctx).
		Where("wallet_id = ? AND chain = ? AND address = ? AND active = ?", walletID, chain, address, true).
		First(&addr).Error
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

type intentStore struct {
	db *gorm.DB
}

func NewIntentStore(db *gorm.DB) IntentStore {
	return &intentStore{db: db}
}

func (s *intentStore) Create(ctx context.Context, intent *model.TransactionIntent) error {
	return s.db.WithContext(ctx).Create(intent).Error
}

func (s *intentStore) Find(ctx context.Context, id string) (*model.TransactionIntent, error) {
	var intent model.TransactionIntent
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (s *intentStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&model.TransactionIntent{}, "id = ?", id).Error
}

func (s *intentStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&model.TransactionIntent{})
	return result.RowsAffected, result.Error
}

type webhookStore struct {
	db *gorm.DB
}

func NewWebhookStore(db *gorm.DB) WebhookStore {
	return &webhookStore{db: db}
}

func (s *webhookStore) Create(ctx context.Context, reg *model.WebhookRegistration) error {
	return s.db.WithContext(ctx).Create(reg).Error
}

func (s *webhookStore) Find(ctx context.Context, walletID string, id uint64) (*model.WebhookRegistration, error) {
	var reg model.WebhookRegistration
	err := s.db.WithContext(ctx).
		Where("wallet_id = ? AND id = ?", walletID, id).
		First(&reg).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (s *webhookStore) ListByWallet(ctx context.Context, walletID string) ([]model.WebhookRegistration, error) {
	var regs []model.WebhookRegistration
	err := s.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("id ASC").
		Find(&regs).Error
	return regs, err
}

func (s *webhookStore) ListActive(ctx context.Context, walletID string) ([]model.WebhookRegistration, error) {
	var regs []model.WebhookRegistration
	err := s.db.WithContext(ctx).
		Where("wallet_id = ? AND active = ?", walletID, true).
		Find(&regs).Error
	return regs, err
}

func (s *webhookStore) Update(ctx context.Context, reg *model.WebhookRegistration) error {
	return s.db.WithContext(ctx).Save(reg).Error
}

func (s *webhookStore) Delete(ctx context.Context, walletID string, id uint64) error {
	return s.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Delete(&model.WebhookRegistration{}, id).Error
}
