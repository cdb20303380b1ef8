package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"wallet-engine/internal/chains"
	"wallet-engine/internal/model"
)

// fakeStrategy 按需注入各操作的行为
type fakeStrategy struct {
	prepareFn   func(ctx context.Context, req chains.PrepareRequest) (*chains.UnsignedPayload, error)
	broadcastFn func(ctx context.Context, chain, signedPayload string) (string, error)
	checkFn     func(ctx context.Context, chain, txHash string) (*chains.TxStatus, error)
	feeFn       func(ctx context.Context, chain string) (*chains.FeeQuote, error)
	historyFn   func(ctx context.Context, chain, address string, limit int) ([]chains.HistoryEntry, error)
}

func (f *fakeStrategy) Prepare(ctx context.Context, req chains.PrepareRequest) (*chains.UnsignedPayload, error) {
	return f.prepareFn(ctx, req)
}

func (f *fakeStrategy) Broadcast(ctx context.Context, chain, signedPayload string) (string, error) {
	return f.broadcastFn(ctx, chain, signedPayload)
}

func (f *fakeStrategy) CheckStatus(ctx context.Context, chain, txHash string) (*chains.TxStatus, error) {
	return f.checkFn(ctx, chain, txHash)
}

func (f *fakeStrategy) EstimateFee(ctx context.Context, chain string) (*chains.FeeQuote, error) {
	return f.feeFn(ctx, chain)
}

func (f *fakeStrategy) FetchHistory(ctx context.Context, chain, address string, limit int) ([]chains.HistoryEntry, error) {
	return f.historyFn(ctx, chain, address, limit)
}

// allFamilies 同一个 fake 服务全部协议族
func allFamilies(s chains.Strategy) StrategyRouter {
	return StrategyRouter{
		chains.FamilyUTXO:      s,
		chains.FamilyAccount:   s,
		chains.FamilyBlockhash: s,
	}
}

type fakeTxStore struct {
	mu     sync.Mutex
	nextID uint64
	rows   []*model.Transaction
}

func newFakeTxStore() *fakeTxStore {
	return &fakeTxStore{nextID: 1}
}

func (s *fakeTxStore) key(chain, hash string) int {
	for i, row := range s.rows {
		if row.Chain == chain && row.TxHash == hash {
			return i
		}
	}
	return -1
}

func (s *fakeTxStore) Create(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = s.nextID
	s.nextID++
	clone := *tx
	s.rows = append(s.rows, &clone)
	return nil
}

func (s *fakeTxStore) Upsert(_ context.Context, tx *model.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key(tx.Chain, tx.TxHash) >= 0 {
		return false, nil
	}
	tx.ID = s.nextID
	s.nextID++
	clone := *tx
	s.rows = append(s.rows, &clone)
	return true, nil
}

func (s *fakeTxStore) Update(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.key(tx.Chain, tx.TxHash)
	if i < 0 {
		return gorm.ErrRecordNotFound
	}
	clone := *tx
	s.rows[i] = &clone
	return nil
}

func (s *fakeTxStore) FindByChainHash(_ context.Context, chain, txHash string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.key(chain, txHash)
	if i < 0 {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.rows[i]
	return &clone, nil
}

func (s *fakeTxStore) ListNonTerminal(_ context.Context, limit int) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Transaction
	for _, row := range s.rows {
		if model.IsTerminalStatus(row.Status) {
			continue
		}
		if strings.HasPrefix(row.TxHash, "tx_") {
			continue
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeTxStore) ListByWallet(_ context.Context, walletID, chain string, limit int) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Transaction
	for _, row := range s.rows {
		if row.WalletID != walletID {
			continue
		}
		if chain != "" && row.Chain != chain {
			continue
		}
		out = append(out, *row)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeAddressStore struct {
	mu   sync.Mutex
	rows []model.WalletAddress
}

func (s *fakeAddressStore) Register(_ context.Context, addr *model.WalletAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr.ID = uint64(len(s.rows) + 1)
	s.rows = append(s.rows, *addr)
	return nil
}

func (s *fakeAddressStore) ActiveAddresses(_ context.Context, walletID string) ([]model.WalletAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WalletAddress
	for _, row := range s.rows {
		if row.WalletID == walletID && row.Active {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *fakeAddressStore) FindActive(_ context.Context, walletID, chain, address string) (*model.WalletAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.WalletID == walletID && row.Chain == chain && row.Address == address && row.Active {
			clone := row
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeIntentStore struct {
	mu   sync.Mutex
	rows map[string]model.TransactionIntent
}

func newFakeIntentStore() *fakeIntentStore {
	return &fakeIntentStore{rows: make(map[string]model.TransactionIntent)}
}

func (s *fakeIntentStore) Create(_ context.Context, intent *model.TransactionIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[intent.ID] = *intent
	return nil
}

func (s *fakeIntentStore) Find(_ context.Context, id string) (*model.TransactionIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &intent, nil
}

func (s *fakeIntentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *fakeIntentStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, intent := range s.rows {
		if now.After(intent.ExpiresAt) {
			delete(s.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeWebhookStore struct {
	mu     sync.Mutex
	nextID uint64
	rows   []model.WebhookRegistration
}

func newFakeWebhookStore() *fakeWebhookStore {
	return &fakeWebhookStore{nextID: 1}
}

func (s *fakeWebhookStore) Create(_ context.Context, reg *model.WebhookRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg.ID = s.nextID
	s.nextID++
	s.rows = append(s.rows, *reg)
	return nil
}

func (s *fakeWebhookStore) Find(_ context.Context, walletID string, id uint64) (*model.WebhookRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.WalletID == walletID && row.ID == id {
			clone := row
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeWebhookStore) ListByWallet(_ context.Context, walletID string) ([]model.WebhookRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WebhookRegistration
	for _, row := range s.rows {
		if row.WalletID == walletID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *fakeWebhookStore) ListActive(_ context.Context, walletID string) ([]model.WebhookRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WebhookRegistration
	for _, row := range s.rows {
		if row.WalletID == walletID && row.Active {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *fakeWebhookStore) Update(_ context.Context, reg *model.WebhookRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.ID == reg.ID {
			s.rows[i] = *reg
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *fakeWebhookStore) Delete(_ context.Context, walletID string, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.WalletID == walletID && row.ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}
