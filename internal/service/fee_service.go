package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wallet-engine/internal/chains"
)

// feeCacheTTL 费率短缓存。费率市场变化以分钟计，30 秒内的重复
// 查询没必要打到外部数据源。
const feeCacheTTL = 30 * time.Second

// FeeService 费率估算，带 redis 短缓存。
// 数据源全部失败时直接报错，绝不返回编造的默认费率。
type FeeService struct {
	router StrategyRouter
	redis  *redis.Client
	log    *zap.Logger
}

func NewFeeService(router StrategyRouter, rdb *redis.Client, log *zap.Logger) *FeeService {
	return &FeeService{router: router, redis: rdb, log: log}
}

// GetFeeEstimate 三档费率。缓存读写失败不影响主流程。
func (s *FeeService) GetFeeEstimate(ctx context.Context, chain string) (*chains.FeeQuote, error) {
	strategy, _, err := s.router.For(chain)
	if err != nil {
		return nil, err
	}

	cacheKey := "fee:quote:" + chain
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var quote chains.FeeQuote
			if err := json.Unmarshal(cached, &quote); err == nil {
				return &quote, nil
			}
		} else if err != redis.Nil {
			s.log.Debug("fee cache read failed", zap.String("chain", chain), zap.Error(err))
		}
	}

	quote, err := strategy.EstimateFee(ctx, chain)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(quote); err == nil {
			if err := s.redis.Set(ctx, cacheKey, data, feeCacheTTL).Err(); err != nil {
				s.log.Debug("fee cache write failed", zap.String("chain", chain), zap.Error(err))
			}
		}
	}
	return quote, nil
}
