package evm

import (
	"github.com/ethereum/go-ethereum/common"

	"wallet-engine/pkg/crypto_util"
)

// transferTopic ERC-20 Transfer(address,address,uint256) 事件的 topic0
var transferTopic = common.HexToHash("0x" + crypto_util.CalculateKeccak256([]byte("Transfer(address,address,uint256)")))

// TokenInfo 已知代币合约的元数据。只索引白名单内的稳定币，
// 未知合约的 Transfer 日志一律跳过。
type TokenInfo struct {
	Symbol   string
	Decimals int32
}

// knownTokens 链 -> 合约地址 -> 代币信息。
// 注意 BSC 上的 USDT 是 18 位小数，不是 6。
var knownTokens = map[string]map[common.Address]TokenInfo{
	"ethereum": {
		common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"): {Symbol: "USDT", Decimals: 6},
		common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"): {Symbol: "USDC", Decimals: 6},
	},
	"polygon": {
		common.HexToAddress("0xc2132D05D31c914a87C6611C10748AEb04B58e8F"): {Symbol: "USDT", Decimals: 6},
		common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"): {Symbol: "USDC", Decimals: 6},
	},
	"bsc": {
		common.HexToAddress("0x55d398326f99059fF775485246999027B3197955"): {Symbol: "USDT", Decimals: 18},
	},
	"arbitrum": {
		common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"): {Symbol: "USDT", Decimals: 6},
		common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"): {Symbol: "USDC", Decimals: 6},
	},
	"base": {
		common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"): {Symbol: "USDC", Decimals: 6},
	},
}

func lookupToken(chain string, contract common.Address) (TokenInfo, bool) {
	tokens, ok := knownTokens[chain]
	if !ok {
		return TokenInfo{}, false
	}
	info, ok := tokens[contract]
	return info, ok
}

// addressTopic 把地址左填充为 32 字节的 topic 形式
func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}
