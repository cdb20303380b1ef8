package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wallet-engine/internal/model"
	"wallet-engine/internal/store"
	"wallet-engine/pkg/errno"
	"wallet-engine/pkg/monitor"
)

// broadcastMaxTries 广播重试次数。节点偶发 503/超时值得重试，
// 次数不宜多，重复提交同一笔签名交易本身是幂等的。
const broadcastMaxTries = 3

// BroadcastService 接收客户端签名后的交易并提交上链
type BroadcastService struct {
	router  StrategyRouter
	intents store.IntentStore
	txs     store.TransactionStore
	events  *EventPublisher
	log     *zap.Logger
}

func NewBroadcastService(router StrategyRouter, intents store.IntentStore, txs store.TransactionStore, events *EventPublisher, log *zap.Logger) *BroadcastService {
	return &BroadcastService{router: router, intents: intents, txs: txs, events: events, log: log}
}

type BroadcastResult struct {
	TxHash string `json:"tx_hash"`
	Chain  string `json:"chain"`
	Status string `json:"status"`
}

// Broadcast 校验意向归属和有效期，重试提交，成功后登记 pending 交易。
// 已过期的意向直接删除，客户端必须重新 prepare。
func (s *BroadcastService) Broadcast(ctx context.Context, walletID, intentID, signedPayload string) (*BroadcastResult, error) {
	intent, err := s.intents.Find(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrIntentNotFound.WithDetail(intentID)
		}
		return nil, errno.ErrDatabase.WithDetail(err.Error())
	}
	if intent.WalletID != walletID {
		// 不暴露他人意向的存在
		return nil, errno.ErrIntentNotFound.WithDetail(intentID)
	}

	if intent.Expired(time.Now()) {
		if err := s.intents.Delete(ctx, intentID); err != nil {
			s.log.Warn("delete expired intent failed", zap.String("intent_id", intentID), zap.Error(err))
		}
		return nil, errno.ErrIntentExpired.WithDetail(intentID)
	}

	strategy, _, err := s.router.For(intent.Chain)
	if err != nil {
		return nil, err
	}

	txHash, err := backoff.Retry(ctx, func() (string, error) {
		hash, err := strategy.Broadcast(ctx, intent.Chain, signedPayload)
		if err != nil {
			// 调用方错误是确定性失败，重试没有意义
			if errno.IsCode(err, errno.ErrInvalidChain) || errno.IsCode(err, errno.ErrInvalidPayload) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		return hash, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(broadcastMaxTries))
	if err != nil {
		s.countBroadcast(intent.Chain, "error")
		return nil, err
	}

	s.countBroadcast(intent.Chain, "ok")

	tx := &model.Transaction{
		WalletID:    intent.WalletID,
		Chain:       intent.Chain,
		TxHash:      txHash,
		Direction:   model.DirectionOutgoing,
		Status:      model.TxStatusPending,
		Amount:      intent.Amount,
		FromAddress: intent.FromAddress,
		ToAddress:   intent.ToAddress,
		Metadata:    model.JSONMap{model.MetaSource: model.SourceClient},
	}
	// 交易已经上链，登记失败只能记日志，留给历史回填补齐
	if _, err := s.txs.Upsert(ctx, tx); err != nil {
		s.log.Error("record broadcast transaction failed",
			zap.String("chain", intent.Chain), zap.String("tx_hash", txHash), zap.Error(err))
	} else {
		s.events.Emit(ctx, EventTxPending, tx)
	}

	if err := s.intents.Delete(ctx, intentID); err != nil {
		s.log.Warn("delete consumed intent failed", zap.String("intent_id", intentID), zap.Error(err))
	}

	s.log.Info("transaction broadcast",
		zap.String("chain", intent.Chain),
		zap.String("tx_hash", txHash),
		zap.String("wallet_id", walletID))

	return &BroadcastResult{TxHash: txHash, Chain: intent.Chain, Status: model.TxStatusPending}, nil
}

func (s *BroadcastService) countBroadcast(chain, result string) {
	if monitor.Business != nil {
		monitor.Business.BroadcastTotal.WithLabelValues(chain, result).Inc()
	}
}
