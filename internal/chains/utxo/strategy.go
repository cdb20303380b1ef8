package utxo

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"

	"wallet-engine/internal/chains"
	"wallet-engine/pkg/errno"
)

// DustThreshold P2PKH 粉尘阈值 (satoshi)。找零低于这个值并入手续费。
const DustThreshold = 546

// 估算交易虚拟大小: 固定开销 + 每输入 148 + 每输出 34 字节
const (
	txOverheadVBytes = 10
	inputVBytes      = 148
	outputVBytes     = 34
)

// typicalTxVBytes 报价用的典型交易大小 (1 输入 2 输出)
const typicalTxVBytes = txOverheadVBytes + inputVBytes + 2*outputVBytes

// Strategy UTXO 协议族的实现。构建输入/输出模型的未签名交易，
// 通过浏览器 REST API 查询状态与历史。
type Strategy struct {
	clients map[string]*Client
	log     *zap.Logger
}

// NewStrategy endpoints: 链标识 -> 数据源 URL 列表 (primary + fallback)
func NewStrategy(endpoints map[string][]string, timeout time.Duration, log *zap.Logger) *Strategy {
	clients := make(map[string]*Client, len(endpoints))
	for chain, urls := range endpoints {
		clients[chain] = NewClient(urls, timeout, log.With(zap.String("chain", chain)))
	}
	return &Strategy{clients: clients, log: log}
}

func (s *Strategy) client(chain string) (*Client, error) {
	c, ok := s.clients[chain]
	if !ok {
		return nil, errno.ErrInvalidChain.WithDetail(chain)
	}
	return c, nil
}

// Prepare 选择未花费输出并构建恰好两个输出的未签名交易：
// 支付输出 + (找零超过粉尘阈值时的) 找零输出。
func (s *Strategy) Prepare(ctx context.Context, req chains.PrepareRequest) (*chains.UnsignedPayload, error) {
	client, err := s.client(req.Chain)
	if err != nil {
		return nil, err
	}
	info, err := chains.Lookup(req.Chain)
	if err != nil {
		return nil, err
	}
	params, ok := chainParams[req.Chain]
	if !ok {
		return nil, errno.ErrInvalidChain.WithDetail(req.Chain)
	}

	amountBig, err := chains.ToBaseUnits(req.Amount, info.Decimals)
	if err != nil {
		return nil, err
	}
	if !amountBig.IsInt64() {
		return nil, errno.ErrInvalidAmount.WithDetail("amount out of range")
	}
	amountSats := amountBig.Int64()

	quote, err := s.EstimateFee(ctx, req.Chain)
	if err != nil {
		return nil, errno.ErrPrepareFailed.WithDetail(err.Error())
	}
	rate := quote.Tier(req.Priority).SatPerVByte

	utxos, err := client.Utxos(ctx, req.FromAddress)
	if err != nil {
		return nil, errno.ErrPrepareFailed.WithDetail(err.Error())
	}
	if len(utxos) == 0 {
		return nil, errno.ErrPrepareFailed.WithDetail("Insufficient funds: no unspent outputs")
	}

	selected, fee, total, err := selectInputs(utxos, amountSats, rate)
	if err != nil {
		return nil, err
	}

	change := total - amountSats - fee
	outputs := []chains.UTXOOutput{{Address: req.ToAddress, ValueSats: amountSats}}
	if change > DustThreshold {
		outputs = append(outputs, chains.UTXOOutput{Address: req.FromAddress, ValueSats: change, Change: true})
	} else if change > 0 {
		// 粉尘找零并入手续费
		fee += change
	}

	rawHex, err := buildUnsignedTx(selected, outputs, params)
	if err != nil {
		return nil, errno.ErrPrepareFailed.WithDetail(err.Error())
	}

	inputs := make([]chains.UTXOInput, 0, len(selected))
	for _, u := range selected {
		inputs = append(inputs, chains.UTXOInput{TxID: u.TxID, Vout: u.Vout, ValueSats: u.Value})
	}

	return &chains.UnsignedPayload{
		Family: chains.FamilyUTXO,
		UTXO: &chains.UTXOPayload{
			Inputs:  inputs,
			Outputs: outputs,
			FeeSats: fee,
			RawHex:  rawHex,
		},
	}, nil
}

// selectInputs 从大到小累加输入直到覆盖 amount + fee。
// fee 随输入数量增长，所以每加一个输入都要重新结算。
func selectInputs(utxos []Utxo, amountSats int64, rate int64) ([]Utxo, int64, int64, error) {
	sorted := make([]Utxo, len(utxos))
	copy(sorted, utxos)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	var selected []Utxo
	var total int64
	for _, u := range sorted {
		selected = append(selected, u)
		total += u.Value

		fee := estimateFeeSats(len(selected), 2, rate)
		if total >= amountSats+fee {
			return selected, fee, total, nil
		}
	}

	return nil, 0, 0, errno.ErrPrepareFailed.WithDetail("Insufficient funds")
}

func estimateFeeSats(numInputs, numOutputs int, rate int64) int64 {
	vbytes := int64(txOverheadVBytes + numInputs*inputVBytes + numOutputs*outputVBytes)
	return vbytes * rate
}

func buildUnsignedTx(inputs []Utxo, outputs []chains.UTXOOutput, params *chaincfg.Params) (string, error) {
	msg := wire.NewMsgTx(wire.TxVersion)

	for _, in := range inputs {
		hash, err := chainhash.NewHashFromStr(in.TxID)
		if err != nil {
			return "", fmt.Errorf("bad input txid %s: %w", in.TxID, err)
		}
		msg.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, in.Vout), nil, nil))
	}

	for _, out := range outputs {
		addr, err := btcutil.DecodeAddress(out.Address, params)
		if err != nil {
			return "", fmt.Errorf("bad output address %s: %w", out.Address, err)
		}
		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return "", err
		}
		msg.AddTxOut(wire.NewTxOut(out.ValueSats, script))
	}

	var buf bytes.Buffer
	if err := msg.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// Broadcast 把客户端签名后的交易 hex 提交到网络。
func (s *Strategy) Broadcast(ctx context.Context, chain string, signedPayload string) (string, error) {
	client, err := s.client(chain)
	if err != nil {
		return "", err
	}
	if _, err := hex.DecodeString(signedPayload); err != nil {
		return "", errno.ErrInvalidPayload.WithDetail("signed payload is not valid hex")
	}
	txid, err := client.BroadcastTx(ctx, signedPayload)
	if err != nil {
		return "", errno.ErrBroadcastFailed.WithDetail(err.Error())
	}
	return txid, nil
}

// CheckStatus 确认数 = tip 高度 - 交易所在高度 + 1。
func (s *Strategy) CheckStatus(ctx context.Context, chain string, txHash string) (*chains.TxStatus, error) {
	client, err := s.client(chain)
	if err != nil {
		return nil, err
	}
	info, err := chains.Lookup(chain)
	if err != nil {
		return nil, err
	}

	tx, err := client.GetTx(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if !tx.Status.Confirmed {
		return &chains.TxStatus{Confirmed: false, Confirmations: 0}, nil
	}

	tip, err := client.TipHeight(ctx)
	if err != nil {
		return nil, err
	}

	confirmations := uint64(0)
	if tip >= tx.Status.BlockHeight {
		confirmations = tip - tx.Status.BlockHeight + 1
	}

	height := tx.Status.BlockHeight
	ts := time.Unix(tx.Status.BlockTime, 0).UTC()
	return &chains.TxStatus{
		Confirmed:      confirmations >= info.RequiredConfirmations,
		Confirmations:  confirmations,
		BlockNumber:    &height,
		BlockTimestamp: &ts,
	}, nil
}

// EstimateFee 从 /fee-estimates 取三个目标区块档位的费率。
// 数据源失败直接报错，绝不静默使用默认值，避免交易定价过低。
func (s *Strategy) EstimateFee(ctx context.Context, chain string) (*chains.FeeQuote, error) {
	client, err := s.client(chain)
	if err != nil {
		return nil, err
	}
	info, err := chains.Lookup(chain)
	if err != nil {
		return nil, err
	}

	estimates, err := client.FeeEstimates(ctx)
	if err != nil {
		return nil, err
	}

	high, err := rateFor(estimates, "1", "2")
	if err != nil {
		return nil, err
	}
	medium, err := rateFor(estimates, "3", "4")
	if err != nil {
		return nil, err
	}
	low, err := rateFor(estimates, "6", "10")
	if err != nil {
		return nil, err
	}

	tier := func(rate int64) chains.FeeTier {
		return chains.FeeTier{
			FeeAmount:   chains.FromBaseUnitsInt(rate*typicalTxVBytes, info.Decimals),
			FeeCurrency: info.Symbol,
			SatPerVByte: rate,
		}
	}
	return &chains.FeeQuote{Low: tier(low), Medium: tier(medium), High: tier(high)}, nil
}

func rateFor(estimates map[string]float64, targets ...string) (int64, error) {
	for _, t := range targets {
		if rate, ok := estimates[t]; ok {
			r := int64(math.Ceil(rate))
			if r < 1 {
				r = 1
			}
			return r, nil
		}
	}
	return 0, fmt.Errorf("fee estimates missing targets %v", targets)
}

// FetchHistory 拉取地址最近的交易并归一化。方向由输入侧是否包含
// 该地址决定。
func (s *Strategy) FetchHistory(ctx context.Context, chain string, address string, limit int) ([]chains.HistoryEntry, error) {
	client, err := s.client(chain)
	if err != nil {
		return nil, err
	}
	info, err := chains.Lookup(chain)
	if err != nil {
		return nil, err
	}

	txs, err := client.AddressTxs(ctx, address)
	if err != nil {
		return nil, err
	}
	tip, err := client.TipHeight(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]chains.HistoryEntry, 0, len(txs))
	for i, tx := range txs {
		if i >= limit {
			break
		}
		entries = append(entries, normalizeTx(tx, address, tip, info))
	}
	return entries, nil
}

func normalizeTx(tx Tx, address string, tip uint64, info chains.Capability) chains.HistoryEntry {
	outgoing := false
	var fromAddr string
	for _, in := range tx.Vin {
		if in.Prevout == nil {
			continue
		}
		if fromAddr == "" {
			fromAddr = in.Prevout.Address
		}
		if in.Prevout.Address == address {
			outgoing = true
		}
	}

	var amountSats int64
	var toAddr string
	for _, out := range tx.Vout {
		if outgoing {
			// 转出金额 = 支付给他人的输出之和 (找零不计)
			if out.Address != address {
				amountSats += out.Value
				if toAddr == "" {
					toAddr = out.Address
				}
			}
		} else if out.Address == address {
			amountSats += out.Value
			toAddr = address
		}
	}

	entry := chains.HistoryEntry{
		TxHash:      tx.TxID,
		Amount:      chains.FromBaseUnitsInt(amountSats, info.Decimals),
		FromAddress: fromAddr,
		ToAddress:   toAddr,
		FeeAmount:   chains.FromBaseUnitsInt(tx.Fee, info.Decimals),
		FeeCurrency: info.Symbol,
	}
	if outgoing {
		entry.Direction = "outgoing"
	} else {
		entry.Direction = "incoming"
	}
	if tx.Status.Confirmed {
		if tip >= tx.Status.BlockHeight {
			entry.Confirmations = tip - tx.Status.BlockHeight + 1
		}
		height := tx.Status.BlockHeight
		ts := time.Unix(tx.Status.BlockTime, 0).UTC()
		entry.BlockNumber = &height
		entry.BlockTimestamp = &ts
	}
	return entry
}
