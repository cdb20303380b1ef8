package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wallet-engine/internal/chains"
	"wallet-engine/internal/model"
	"wallet-engine/internal/store"
	"wallet-engine/pkg/monitor"
	"wallet-engine/pkg/utils/lock"
)

// reconcileLockKey 多实例部署时同一时刻只允许一个守护进程跑对账
const reconcileLockKey = "daemon:lock:reconcile"

// ReconcilerService 对账守护进程。周期性核对非终态交易的链上状态，
// 推进 pending -> confirming -> confirmed/failed。
type ReconcilerService struct {
	router      StrategyRouter
	txs         store.TransactionStore
	webhooks    *WebhookService
	events      *EventPublisher
	redis       *redis.Client
	interval    time.Duration
	batchSize   int
	httpTimeout time.Duration
	log         *zap.Logger
}

func NewReconcilerService(
	router StrategyRouter,
	txs store.TransactionStore,
	webhooks *WebhookService,
	events *EventPublisher,
	rdb *redis.Client,
	interval time.Duration,
	batchSize int,
	httpTimeout time.Duration,
	log *zap.Logger,
) *ReconcilerService {
	return &ReconcilerService{
		router:      router,
		txs:         txs,
		webhooks:    webhooks,
		events:      events,
		redis:       rdb,
		interval:    interval,
		batchSize:   batchSize,
		httpTimeout: httpTimeout,
		log:         log,
	}
}

// CycleStats 单个对账周期的结果
type CycleStats struct {
	Checked   int
	Updated   int
	Confirmed int
	Failed    int
	Errors    int
}

// Start 阻塞运行，ctx 取消后退出
func (s *ReconcilerService) Start(ctx context.Context) {
	s.log.Info("reconciler daemon started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reconciler daemon stopped")
			return
		case <-ticker.C:
			s.runLocked(ctx)
		}
	}
}

// runLocked 带分布式锁执行一个周期，拿不到锁说明别的实例在跑
func (s *ReconcilerService) runLocked(ctx context.Context) {
	if s.redis != nil {
		locker := lock.NewRedisLock(s.redis)
		locked, err := locker.Acquire(ctx, reconcileLockKey, s.interval)
		if err != nil || !locked {
			s.log.Debug("reconcile cycle skipped, lock held elsewhere")
			return
		}
		defer locker.Release(ctx, reconcileLockKey)
	}

	stats, err := s.RunCycle(ctx)
	if err != nil {
		s.log.Error("reconcile cycle failed", zap.Error(err))
		return
	}
	if stats.Checked > 0 {
		s.log.Info("reconcile cycle finished",
			zap.Int("checked", stats.Checked),
			zap.Int("updated", stats.Updated),
			zap.Int("confirmed", stats.Confirmed),
			zap.Int("failed", stats.Failed),
			zap.Int("errors", stats.Errors))
	}
}

// RunCycle 核心对账逻辑。逐笔串行处理，单笔查询失败只计数，
// 行保持原样等下个周期重试。
func (s *ReconcilerService) RunCycle(ctx context.Context) (*CycleStats, error) {
	start := time.Now()
	stats := &CycleStats{}

	txs, err := s.txs.ListNonTerminal(ctx, s.batchSize)
	if err != nil {
		return nil, err
	}

	for i := range txs {
		tx := &txs[i]
		stats.Checked++
		s.countChecked(tx.Chain)

		status, err := s.checkOne(ctx, tx)
		if err != nil {
			stats.Errors++
			s.countError(tx.Chain)
			s.log.Warn("status check failed, will retry next cycle",
				zap.String("chain", tx.Chain), zap.String("tx_hash", tx.TxHash), zap.Error(err))
			continue
		}

		if s.apply(ctx, tx, status, stats) {
			stats.Updated++
		}
	}

	if monitor.Business != nil {
		monitor.Business.ReconcileCycleDuration.Observe(time.Since(start).Seconds())
	}
	return stats, nil
}

func (s *ReconcilerService) checkOne(ctx context.Context, tx *model.Transaction) (*chains.TxStatus, error) {
	strategy, _, err := s.router.For(tx.Chain)
	if err != nil {
		return nil, err
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.httpTimeout)
	defer cancel()
	return strategy.CheckStatus(checkCtx, tx.Chain, tx.TxHash)
}

// apply 把链上状态落到交易行。状态只单调前进，
// 终态由守护进程盖章 (finalized_by)。返回是否写库。
func (s *ReconcilerService) apply(ctx context.Context, tx *model.Transaction, status *chains.TxStatus, stats *CycleStats) bool {
	next := tx.Status
	switch {
	case status.Failed:
		next = model.TxStatusFailed
	case status.Confirmed:
		next = model.TxStatusConfirmed
	case status.Confirmations > 0:
		next = model.TxStatusConfirming
	}

	// 确认数只增不减：落后的 fallback 数据源报出更低的 tip
	// 不能回退已记录的值
	changed := status.Confirmations > tx.Confirmations
	if next != tx.Status {
		if !model.CanTransition(tx.Status, next) {
			s.log.Warn("illegal status transition ignored",
				zap.String("tx_hash", tx.TxHash),
				zap.String("from", tx.Status), zap.String("to", next))
			next = tx.Status
		} else {
			changed = true
		}
	}
	if status.BlockNumber != nil && (tx.BlockNumber == nil || *tx.BlockNumber != *status.BlockNumber) {
		changed = true
	}
	if !changed {
		return false
	}

	if status.Confirmations > tx.Confirmations {
		tx.Confirmations = status.Confirmations
	}
	if status.BlockNumber != nil {
		tx.BlockNumber = status.BlockNumber
	}
	if status.BlockTimestamp != nil {
		tx.BlockTimestamp = status.BlockTimestamp
	}

	terminal := next != tx.Status && model.IsTerminalStatus(next)
	tx.Status = next
	if terminal {
		if tx.Metadata == nil {
			tx.Metadata = model.JSONMap{}
		}
		tx.Metadata[model.MetaFinalizedBy] = "daemon"
	}

	if err := s.txs.Update(ctx, tx); err != nil {
		s.log.Error("persist reconciled transaction failed",
			zap.String("tx_hash", tx.TxHash), zap.Error(err))
		return false
	}

	if terminal {
		event := EventTxConfirmed
		if next == model.TxStatusFailed {
			event = EventTxFailed
			stats.Failed++
			s.countFailed(tx.Chain)
		} else {
			stats.Confirmed++
			s.countConfirmed(tx.Chain)
		}
		s.log.Info("transaction finalized",
			zap.String("chain", tx.Chain),
			zap.String("tx_hash", tx.TxHash),
			zap.String("status", next),
			zap.Uint64("confirmations", tx.Confirmations))

		s.events.Emit(ctx, event, tx)
		if s.webhooks != nil {
			s.webhooks.Notify(ctx, tx.WalletID, event, tx)
		}
	}
	return true
}

func (s *ReconcilerService) countChecked(chain string) {
	if monitor.Business != nil {
		monitor.Business.ReconcileCheckedTotal.WithLabelValues(chain).Inc()
	}
}

func (s *ReconcilerService) countConfirmed(chain string) {
	if monitor.Business != nil {
		monitor.Business.ReconcileConfirmedTotal.WithLabelValues(chain).Inc()
	}
}

func (s *ReconcilerService) countFailed(chain string) {
	if monitor.Business != nil {
		monitor.Business.ReconcileFailedTotal.WithLabelValues(chain).Inc()
	}
}

func (s *ReconcilerService) countError(chain string) {
	if monitor.Business != nil {
		monitor.Business.ReconcileErrorsTotal.WithLabelValues(chain).Inc()
	}
}
