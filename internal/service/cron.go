package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"wallet-engine/internal/store"
	"wallet-engine/pkg/logger"
	"wallet-engine/pkg/utils/lock"
)

type CronService struct {
	cron    *cron.Cron
	redis   *redis.Client
	intents store.IntentStore
}

func NewCronService(rdb *redis.Client, intents store.IntentStore) *CronService {
	// 标准分钟级调度即可，过期意向的清理不需要秒级精度
	c := cron.New()
	return &CronService{
		cron:    c,
		redis:   rdb,
		intents: intents,
	}
}

func (s *CronService) Start() {
	// 注册任务
	_, _ = s.cron.AddFunc("@every 1m", s.SweepExpiredIntents) // 每分钟清理过期意向

	s.cron.Start()
	logger.Info("Cron Service started")
}

func (s *CronService) Stop() {
	s.cron.Stop()
	logger.Info("Cron Service stopped")
}

// SweepExpiredIntents 清理过期的未签名意向。
// 广播入口也会校验过期，这里只是把数据库打扫干净。
func (s *CronService) SweepExpiredIntents() {
	ctx := context.Background()
	lockKey := "cron:lock:sweep_intents"

	// 获取分布式锁 (TTL 30s)，防止多实例同时执行
	if s.redis != nil {
		locker := lock.NewRedisLock(s.redis)
		locked, err := locker.Acquire(ctx, lockKey, 30*time.Second)
		if err != nil || !locked {
			logger.Debug("SweepExpiredIntents: 获取锁失败或已有实例在运行")
			return
		}
		defer locker.Release(ctx, lockKey)
	}

	deleted, err := s.intents.DeleteExpired(ctx, time.Now())
	if err != nil {
		logger.Error("清理过期意向失败", zap.Error(err))
		return
	}
	if deleted > 0 {
		logger.Info("过期意向已清理", zap.Int64("count", deleted))
	}
}
