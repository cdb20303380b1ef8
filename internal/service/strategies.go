package service

import (
	"wallet-engine/internal/chains"
	"wallet-engine/pkg/errno"
)

// StrategyRouter 按协议族分发到具体实现。
// 新增链只要进能力表，落在已有协议族里就不需要新代码。
type StrategyRouter map[chains.Family]chains.Strategy

// For 解析链标识并返回它所属协议族的策略
func (r StrategyRouter) For(chain string) (chains.Strategy, chains.Capability, error) {
	info, err := chains.Lookup(chain)
	if err != nil {
		return nil, chains.Capability{}, err
	}
	strategy, ok := r[info.Family]
	if !ok {
		return nil, chains.Capability{}, errno.ErrInvalidChain.WithDetail("no strategy configured for family " + string(info.Family))
	}
	return strategy, info, nil
}
