package chains

import (
	"sort"

	"wallet-engine/pkg/errno"
)

// Family 按交易模型对链分类，策略分发只看这个值。
type Family string

const (
	FamilyUTXO      Family = "utxo"      // 输入/输出模型 (bitcoin 系)
	FamilyAccount   Family = "account"   // 账户 + nonce 模型 (EVM 系)
	FamilyBlockhash Family = "blockhash" // 引用最近区块哈希 (solana)
)

// Capability 单条链的静态能力表项，进程内只读。
type Capability struct {
	ID                    string // 链标识，全小写
	Family                Family
	Symbol                string // 原生币种
	Decimals              int32  // 原生单位小数位 (satoshi=8, wei=18, lamport=9)
	RequiredConfirmations uint64
	NetworkID             uint64 // EVM chainId，其余链为 0
}

var capabilities = map[string]Capability{
	"bitcoin":  {ID: "bitcoin", Family: FamilyUTXO, Symbol: "BTC", Decimals: 8, RequiredConfirmations: 3},
	"litecoin": {ID: "litecoin", Family: FamilyUTXO, Symbol: "LTC", Decimals: 8, RequiredConfirmations: 6},
	"dogecoin": {ID: "dogecoin", Family: FamilyUTXO, Symbol: "DOGE", Decimals: 8, RequiredConfirmations: 6},

	"ethereum": {ID: "ethereum", Family: FamilyAccount, Symbol: "ETH", Decimals: 18, RequiredConfirmations: 12, NetworkID: 1},
	"polygon":  {ID: "polygon", Family: FamilyAccount, Symbol: "POL", Decimals: 18, RequiredConfirmations: 50, NetworkID: 137},
	"bsc":      {ID: "bsc", Family: FamilyAccount, Symbol: "BNB", Decimals: 18, RequiredConfirmations: 15, NetworkID: 56},
	"arbitrum": {ID: "arbitrum", Family: FamilyAccount, Symbol: "ETH", Decimals: 18, RequiredConfirmations: 12, NetworkID: 42161},
	"base":     {ID: "base", Family: FamilyAccount, Symbol: "ETH", Decimals: 18, RequiredConfirmations: 12, NetworkID: 8453},

	// solana 没有逐块确认数的概念，finalized commitment 即终态
	"solana": {ID: "solana", Family: FamilyBlockhash, Symbol: "SOL", Decimals: 9, RequiredConfirmations: 1},
}

// Lookup 查询链能力表。未知链返回 errno.ErrInvalidChain，这是
// 注册表唯一的失败方式。
func Lookup(chain string) (Capability, error) {
	cap, ok := capabilities[chain]
	if !ok {
		return Capability{}, errno.ErrInvalidChain.WithDetail(chain)
	}
	return cap, nil
}

// Supported 返回全部受支持链标识，字典序。
func Supported() []string {
	ids := make([]string, 0, len(capabilities))
	for id := range capabilities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
