package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wallet-engine/internal/chains"
	"wallet-engine/internal/model"
	"wallet-engine/internal/store"
	"wallet-engine/pkg/errno"
	"wallet-engine/pkg/monitor"
)

// indexerHistoryLimit 每个地址单次回填拉取的最大条数
const indexerHistoryLimit = 50

// IndexerService 历史回填。从外部数据源拉取地址的链上历史，
// 归一化后冲突忽略写入，同一笔交易重复同步是幂等的。
type IndexerService struct {
	router    StrategyRouter
	addresses store.AddressStore
	txs       store.TransactionStore
	events    *EventPublisher
	log       *zap.Logger
}

func NewIndexerService(router StrategyRouter, addresses store.AddressStore, txs store.TransactionStore, events *EventPublisher, log *zap.Logger) *IndexerService {
	return &IndexerService{router: router, addresses: addresses, txs: txs, events: events, log: log}
}

// SyncResult 单次同步结果。Errors 收集失败原因但不中断其他地址。
type SyncResult struct {
	NewTransactions int      `json:"new_transactions"`
	Errors          []string `json:"errors,omitempty"`
}

// SyncWallet 逐个同步钱包的所有活跃地址。单地址失败只记录，
// 剩余地址继续。
func (s *IndexerService) SyncWallet(ctx context.Context, walletID string) (*SyncResult, error) {
	addrs, err := s.addresses.ActiveAddresses(ctx, walletID)
	if err != nil {
		return nil, errno.ErrDatabase.WithDetail(err.Error())
	}

	result := &SyncResult{}
	for i := range addrs {
		sub, err := s.SyncAddress(ctx, &addrs[i])
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s/%s: %v", addrs[i].Chain, addrs[i].Address, err))
			continue
		}
		result.NewTransactions += sub.NewTransactions
		result.Errors = append(result.Errors, sub.Errors...)
	}
	return result, nil
}

// SyncAddress 同步单个地址
func (s *IndexerService) SyncAddress(ctx context.Context, addr *model.WalletAddress) (*SyncResult, error) {
	strategy, info, err := s.router.For(addr.Chain)
	if err != nil {
		return nil, err
	}

	entries, err := strategy.FetchHistory(ctx, addr.Chain, addr.Address, indexerHistoryLimit)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}
	for i := range entries {
		tx := s.normalize(addr, &entries[i], info)

		inserted, err := s.txs.Upsert(ctx, tx)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", tx.TxHash, err))
			continue
		}
		if !inserted {
			continue
		}

		result.NewTransactions++
		if monitor.Business != nil {
			monitor.Business.IndexerDiscoveredTotal.WithLabelValues(addr.Chain).Inc()
		}
		if tx.Direction == model.DirectionIncoming {
			s.events.Emit(ctx, EventTxIncoming, tx)
		}
	}

	if result.NewTransactions > 0 {
		s.log.Info("history backfill discovered transactions",
			zap.String("chain", addr.Chain),
			zap.String("address", addr.Address),
			zap.Int("new", result.NewTransactions))
	}
	return result, nil
}

// normalize 把数据源条目转成交易行。确认数满足阈值直接落终态，
// 否则交给对账守护进程继续跟进。
func (s *IndexerService) normalize(addr *model.WalletAddress, entry *chains.HistoryEntry, info chains.Capability) *model.Transaction {
	status := model.TxStatusPending
	switch {
	case entry.Confirmations >= info.RequiredConfirmations:
		status = model.TxStatusConfirmed
	case entry.Confirmations > 0:
		status = model.TxStatusConfirming
	}

	metadata := model.JSONMap{model.MetaSource: model.SourceIndexer}
	if entry.TokenSymbol != "" {
		metadata[model.MetaTokenSymbol] = entry.TokenSymbol
	}

	return &model.Transaction{
		WalletID:       addr.WalletID,
		AddressID:      addr.ID,
		Chain:          addr.Chain,
		TxHash:         entry.TxHash,
		Direction:      entry.Direction,
		Status:         status,
		Amount:         entry.Amount,
		FromAddress:    entry.FromAddress,
		ToAddress:      entry.ToAddress,
		FeeAmount:      entry.FeeAmount,
		FeeCurrency:    entry.FeeCurrency,
		Confirmations:  entry.Confirmations,
		BlockNumber:    entry.BlockNumber,
		BlockTimestamp: entry.BlockTimestamp,
		Metadata:       metadata,
	}
}
