package evm

import (
	"context"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"wallet-engine/internal/chains"
	"wallet-engine/pkg/errno"
)

// gasLimitTransfer 原生转账的固定 gas 上限
const gasLimitTransfer = 21000

// historyBlockWindow 代币日志回扫的区块窗口
const historyBlockWindow = 5000

// Sources 单条 EVM 链的外部数据源
type Sources struct {
	RpcUrls        []string
	ExplorerUrls   []string
	ExplorerApiKey string
}

// Strategy account/nonce 协议族 (EVM 系) 的实现。
type Strategy struct {
	clients   map[string]*Client
	explorers map[string]*explorerClient
	log       *zap.Logger
}

func NewStrategy(sources map[string]Sources, timeout time.Duration, log *zap.Logger) (*Strategy, error) {
	s := &Strategy{
		clients:   make(map[string]*Client),
		explorers: make(map[string]*explorerClient),
		log:       log,
	}
	for chain, src := range sources {
		clog := log.With(zap.String("chain", chain))
		client, err := NewClient(src.RpcUrls, clog)
		if err != nil {
			return nil, err
		}
		s.clients[chain] = client
		s.explorers[chain] = newExplorerClient(src.ExplorerUrls, src.ExplorerApiKey, timeout, clog)
	}
	return s, nil
}

func (s *Strategy) client(chain string) (*Client, error) {
	c, ok := s.clients[chain]
	if !ok {
		return nil, errno.ErrInvalidChain.WithDetail(chain)
	}
	return c, nil
}

// Prepare 查询链上 nonce 并组装未签名交易字段。
// nonce 用 pending 口径，连续两次 prepare 不会重复占用同一个序号。
func (s *Strategy) Prepare(ctx context.Context, req chains.PrepareRequest) (*chains.UnsignedPayload, error) {
	client, err := s.client(req.Chain)
	if err != nil {
		return nil, err
	}
	info, err := chains.Lookup(req.Chain)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(req.FromAddress) || !common.IsHexAddress(req.ToAddress) {
		return nil, errno.ErrPrepareFailed.WithDetail("malformed address")
	}

	valueWei, err := chains.ToBaseUnits(req.Amount, info.Decimals)
	if err != nil {
		return nil, err
	}

	nonce, err := client.PendingNonce(ctx, common.HexToAddress(req.FromAddress))
	if err != nil {
		return nil, errno.ErrPrepareFailed.WithDetail(err.Error())
	}

	quote, err := s.EstimateFee(ctx, req.Chain)
	if err != nil {
		return nil, errno.ErrPrepareFailed.WithDetail(err.Error())
	}
	tier := quote.Tier(req.Priority)

	return &chains.UnsignedPayload{
		Family: chains.FamilyAccount,
		Account: &chains.AccountPayload{
			Nonce:    nonce,
			ChainID:  info.NetworkID,
			To:       req.ToAddress,
			ValueWei: valueWei.String(),
			GasLimit: tier.GasLimit,
			GasPrice: tier.GasPrice,
		},
	}, nil
}

// Broadcast 反序列化已签名的 raw transaction 并提交。
func (s *Strategy) Broadcast(ctx context.Context, chain string, signedPayload string) (string, error) {
	client, err := s.client(chain)
	if err != nil {
		return "", err
	}

	rawBytes := common.FromHex(signedPayload)
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawBytes); err != nil {
		return "", errno.ErrInvalidPayload.WithDetail("malformed signed transaction: " + err.Error())
	}

	if err := client.SendTransaction(ctx, tx); err != nil {
		return "", errno.ErrBroadcastFailed.WithDetail(err.Error())
	}
	return tx.Hash().Hex(), nil
}

// CheckStatus 回执 status=0 直接判终态失败，与确认深度无关。
// 区块时间戳是 best-effort，拿不到不影响本次检查。
func (s *Strategy) CheckStatus(ctx context.Context, chain string, txHash string) (*chains.TxStatus, error) {
	client, err := s.client(chain)
	if err != nil {
		return nil, err
	}
	info, err := chains.Lookup(chain)
	if err != nil {
		return nil, err
	}

	receipt, err := client.Receipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, err
	}

	latest, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	blockNum := receipt.BlockNumber.Uint64()
	confirmations := uint64(0)
	if latest >= blockNum {
		confirmations = latest - blockNum + 1
	}

	status := &chains.TxStatus{
		Failed:        receipt.Status == types.ReceiptStatusFailed,
		Confirmations: confirmations,
		BlockNumber:   &blockNum,
	}
	status.Confirmed = !status.Failed && confirmations >= info.RequiredConfirmations

	if header, err := client.HeaderByNumber(ctx, receipt.BlockNumber); err == nil {
		ts := time.Unix(int64(header.Time), 0).UTC()
		status.BlockTimestamp = &ts
	}
	return status, nil
}

// EstimateFee 以 eth_gasPrice 为 medium，上下各浮动一档。
// 数据源失败直接报错，不静默给默认价。
func (s *Strategy) EstimateFee(ctx context.Context, chain string) (*chains.FeeQuote, error) {
	client, err := s.client(chain)
	if err != nil {
		return nil, err
	}
	info, err := chains.Lookup(chain)
	if err != nil {
		return nil, err
	}

	gasPrice, err := client.GasPrice(ctx)
	if err != nil {
		return nil, err
	}

	tier := func(price *big.Int) chains.FeeTier {
		feeWei := new(big.Int).Mul(price, big.NewInt(gasLimitTransfer))
		return chains.FeeTier{
			FeeAmount:   chains.FromBaseUnits(feeWei, info.Decimals),
			FeeCurrency: info.Symbol,
			GasLimit:    gasLimitTransfer,
			GasPrice:    price.String(),
		}
	}

	low := new(big.Int).Div(new(big.Int).Mul(gasPrice, big.NewInt(90)), big.NewInt(100))
	high := new(big.Int).Div(new(big.Int).Mul(gasPrice, big.NewInt(120)), big.NewInt(100))
	return &chains.FeeQuote{Low: tier(low), Medium: tier(gasPrice), High: tier(high)}, nil
}

// FetchHistory 两路合并：浏览器 API 的原生转账 (配置了 key 时) +
// 最近 5000 个区块里白名单代币的 Transfer 日志。
func (s *Strategy) FetchHistory(ctx context.Context, chain string, address string, limit int) ([]chains.HistoryEntry, error) {
	client, err := s.client(chain)
	if err != nil {
		return nil, err
	}
	info, err := chains.Lookup(chain)
	if err != nil {
		return nil, err
	}

	latest, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	var entries []chains.HistoryEntry

	if explorer := s.explorers[chain]; explorer.enabled() {
		native, err := explorer.TxList(ctx, address, limit)
		if err != nil {
			return nil, err
		}
		for _, tx := range native {
			if entry, ok := normalizeNativeTx(tx, address, info); ok {
				entries = append(entries, entry)
			}
		}
	}

	tokenEntries, err := s.fetchTokenTransfers(ctx, client, chain, address, latest)
	if err != nil {
		return nil, err
	}
	entries = append(entries, tokenEntries...)

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Strategy) fetchTokenTransfers(ctx context.Context, client *Client, chain, address string, latest uint64) ([]chains.HistoryEntry, error) {
	addr := common.HexToAddress(address)
	fromBlock := uint64(0)
	if latest > historyBlockWindow {
		fromBlock = latest - historyBlockWindow
	}

	base := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(latest),
	}

	// incoming: topic2 = address, outgoing: topic1 = address
	incoming := base
	incoming.Topics = [][]common.Hash{{transferTopic}, nil, {addressTopic(addr)}}
	outgoing := base
	outgoing.Topics = [][]common.Hash{{transferTopic}, {addressTopic(addr)}}

	var entries []chains.HistoryEntry
	for _, q := range []ethereum.FilterQuery{incoming, outgoing} {
		logs, err := client.FilterLogs(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, l := range logs {
			if entry, ok := normalizeTransferLog(l, chain, addr, latest); ok {
				entries = append(entries, entry)
			}
		}
	}
	return entries, nil
}

func normalizeTransferLog(l types.Log, chain string, self common.Address, latest uint64) (chains.HistoryEntry, bool) {
	token, ok := lookupToken(chain, l.Address)
	if !ok || len(l.Topics) < 3 {
		return chains.HistoryEntry{}, false
	}

	from := common.BytesToAddress(l.Topics[1].Bytes())
	to := common.BytesToAddress(l.Topics[2].Bytes())
	amount := new(big.Int).SetBytes(l.Data)

	blockNum := l.BlockNumber
	confirmations := uint64(0)
	if latest >= blockNum {
		confirmations = latest - blockNum + 1
	}

	entry := chains.HistoryEntry{
		TxHash:        l.TxHash.Hex(),
		Amount:        chains.FromBaseUnits(amount, token.Decimals),
		FromAddress:   from.Hex(),
		ToAddress:     to.Hex(),
		FeeCurrency:   token.Symbol,
		Confirmations: confirmations,
		BlockNumber:   &blockNum,
		TokenSymbol:   token.Symbol,
	}
	if from == self {
		entry.Direction = "outgoing"
	} else {
		entry.Direction = "incoming"
	}
	return entry, true
}

func normalizeNativeTx(tx explorerTx, address string, info chains.Capability) (chains.HistoryEntry, bool) {
	value, ok := new(big.Int).SetString(tx.Value, 10)
	if !ok {
		return chains.HistoryEntry{}, false
	}

	entry := chains.HistoryEntry{
		TxHash:      tx.Hash,
		Amount:      chains.FromBaseUnits(value, info.Decimals),
		FromAddress: tx.From,
		ToAddress:   tx.To,
		FeeCurrency: info.Symbol,
	}

	if common.HexToAddress(tx.From) == common.HexToAddress(address) {
		entry.Direction = "outgoing"
	} else {
		entry.Direction = "incoming"
	}

	if gasUsed, ok := new(big.Int).SetString(tx.GasUsed, 10); ok {
		if gasPrice, ok := new(big.Int).SetString(tx.GasPrice, 10); ok {
			entry.FeeAmount = chains.FromBaseUnits(new(big.Int).Mul(gasUsed, gasPrice), info.Decimals)
		}
	}
	if num, err := strconv.ParseUint(tx.BlockNumber, 10, 64); err == nil {
		entry.BlockNumber = &num
	}
	if ts, err := strconv.ParseInt(tx.TimeStamp, 10, 64); err == nil {
		t := time.Unix(ts, 0).UTC()
		entry.BlockTimestamp = &t
	}
	if confs, err := strconv.ParseUint(tx.Confirmations, 10, 64); err == nil {
		entry.Confirmations = confs
	}
	return entry, true
}
