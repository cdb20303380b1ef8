package solana

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"wallet-engine/internal/chains"
	"wallet-engine/pkg/errno"
)

// baseFeeLamports 每个签名的固定网络费
const baseFeeLamports = 5000

// priorityFeeLamports high 档位附加的优先费预算
const priorityFeeLamports = 5000

// Strategy blockhash 协议族 (solana) 的实现。
type Strategy struct {
	clients map[string][]*rpc.Client
	urls    map[string][]string
	log     *zap.Logger
}

func NewStrategy(endpoints map[string][]string, log *zap.Logger) *Strategy {
	s := &Strategy{
		clients: make(map[string][]*rpc.Client),
		urls:    endpoints,
		log:     log,
	}
	for chain, urls := range endpoints {
		clients := make([]*rpc.Client, 0, len(urls))
		for _, u := range urls {
			clients = append(clients, rpc.New(u))
		}
		s.clients[chain] = clients
	}
	return s
}

// tryEach 依次在各节点上执行 fn，第一个成功的结果胜出。
func (s *Strategy) tryEach(chain string, fn func(*rpc.Client) error) error {
	clients, ok := s.clients[chain]
	if !ok {
		return errno.ErrInvalidChain.WithDetail(chain)
	}
	var lastErr error
	for i, client := range clients {
		if err := fn(client); err != nil {
			lastErr = err
			s.log.Warn("solana rpc endpoint failed, trying next",
				zap.String("endpoint", s.urls[chain][i]), zap.Error(err))
			continue
		}
		return nil
	}
	return fmt.Errorf("all solana endpoints exhausted: %w", lastErr)
}

// Prepare 获取最近区块哈希并组装一笔未签名的 system transfer。
// 返回的 message base64 可直接由客户端签名，instructions 字段
// 冗余携带结构化内容，方便客户端核对后再签。
func (s *Strategy) Prepare(ctx context.Context, req chains.PrepareRequest) (*chains.UnsignedPayload, error) {
	info, err := chains.Lookup(req.Chain)
	if err != nil {
		return nil, err
	}

	from, err := solana.PublicKeyFromBase58(req.FromAddress)
	if err != nil {
		return nil, errno.ErrPrepareFailed.WithDetail("malformed from address")
	}
	to, err := solana.PublicKeyFromBase58(req.ToAddress)
	if err != nil {
		return nil, errno.ErrPrepareFailed.WithDetail("malformed to address")
	}

	raw, err := chains.ToBaseUnits(req.Amount, info.Decimals)
	if err != nil {
		return nil, err
	}
	if !raw.IsUint64() {
		return nil, errno.ErrInvalidAmount.WithDetail("amount out of range")
	}
	lamports := raw.Uint64()

	var blockhash *rpc.GetLatestBlockhashResult
	err = s.tryEach(req.Chain, func(client *rpc.Client) error {
		out, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return err
		}
		blockhash = out
		return nil
	})
	if err != nil {
		return nil, errno.ErrPrepareFailed.WithDetail(err.Error())
	}

	instructions := []solana.Instruction{
		system.NewTransferInstruction(lamports, from, to).Build(),
	}
	tx, err := solana.NewTransaction(instructions, blockhash.Value.Blockhash, solana.TransactionPayer(from))
	if err != nil {
		return nil, errno.ErrPrepareFailed.WithDetail(err.Error())
	}
	msgBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, errno.ErrPrepareFailed.WithDetail(err.Error())
	}

	payloadInsts := make([]chains.Instruction, 0, len(instructions))
	for _, inst := range instructions {
		data, err := inst.Data()
		if err != nil {
			return nil, errno.ErrPrepareFailed.WithDetail(err.Error())
		}
		accounts := make([]chains.InstructionAccount, 0, len(inst.Accounts()))
		for _, acc := range inst.Accounts() {
			accounts = append(accounts, chains.InstructionAccount{
				Pubkey:     acc.PublicKey.String(),
				IsSigner:   acc.IsSigner,
				IsWritable: acc.IsWritable,
			})
		}
		payloadInsts = append(payloadInsts, chains.Instruction{
			ProgramID: inst.ProgramID().String(),
			Accounts:  accounts,
			Data:      base64.StdEncoding.EncodeToString(data),
		})
	}

	return &chains.UnsignedPayload{
		Family: chains.FamilyBlockhash,
		Blockhash: &chains.BlockhashPayload{
			RecentBlockhash:      blockhash.Value.Blockhash.String(),
			LastValidBlockHeight: blockhash.Value.LastValidBlockHeight,
			FeePayer:             from.String(),
			Instructions:         payloadInsts,
			MessageBase64:        base64.StdEncoding.EncodeToString(msgBytes),
		},
	}, nil
}

// Broadcast 提交 base64 编码的已签名交易。
func (s *Strategy) Broadcast(ctx context.Context, chain string, signedPayload string) (string, error) {
	if _, err := base64.StdEncoding.DecodeString(signedPayload); err != nil {
		return "", errno.ErrInvalidPayload.WithDetail("signed payload is not valid base64")
	}

	var sig solana.Signature
	err := s.tryEach(chain, func(client *rpc.Client) error {
		out, err := client.SendEncodedTransaction(ctx, signedPayload)
		if err != nil {
			return err
		}
		sig = out
		return nil
	})
	if err != nil {
		return "", errno.ErrBroadcastFailed.WithDetail(err.Error())
	}
	return sig.String(), nil
}

// CheckStatus finalized commitment 即终态。meta error 是链上明确失败，
// 签名查不到 (可能被丢弃或尚未传播) 返回 error 让守护进程下轮重试。
func (s *Strategy) CheckStatus(ctx context.Context, chain string, txHash string) (*chains.TxStatus, error) {
	info, err := chains.Lookup(chain)
	if err != nil {
		return nil, err
	}
	sig, err := solana.SignatureFromBase58(txHash)
	if err != nil {
		return nil, fmt.Errorf("malformed signature %q: %w", txHash, err)
	}

	var statuses *rpc.GetSignatureStatusesResult
	err = s.tryEach(chain, func(client *rpc.Client) error {
		out, err := client.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			return err
		}
		statuses = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(statuses.Value) == 0 || statuses.Value[0] == nil {
		return nil, fmt.Errorf("signature %s not found", txHash)
	}
	st := statuses.Value[0]

	confirmations := uint64(0)
	if st.Confirmations != nil {
		confirmations = *st.Confirmations
	}

	slot := st.Slot
	status := &chains.TxStatus{
		Failed:        st.Err != nil,
		Confirmations: confirmations,
		BlockNumber:   &slot,
	}
	if !status.Failed && st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
		status.Confirmed = true
		if status.Confirmations < info.RequiredConfirmations {
			status.Confirmations = info.RequiredConfirmations
		}
	}

	// 区块时间是 best-effort，拿不到不影响本次检查
	maxVersion := uint64(0)
	var txResult *rpc.GetTransactionResult
	lookupErr := s.tryEach(chain, func(client *rpc.Client) error {
		out, err := client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Commitment:                     rpc.CommitmentFinalized,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if err != nil {
			return err
		}
		txResult = out
		return nil
	})
	if lookupErr == nil && txResult != nil && txResult.BlockTime != nil {
		ts := txResult.BlockTime.Time().UTC()
		status.BlockTimestamp = &ts
	}
	return status, nil
}

// EstimateFee solana 的网络费对单签名转账是固定的，不依赖负载查询。
// high 档位预留一份优先费预算给客户端加 compute budget 指令。
func (s *Strategy) EstimateFee(ctx context.Context, chain string) (*chains.FeeQuote, error) {
	info, err := chains.Lookup(chain)
	if err != nil {
		return nil, err
	}
	if _, ok := s.clients[chain]; !ok {
		return nil, errno.ErrInvalidChain.WithDetail(chain)
	}

	tier := func(lamports int64) chains.FeeTier {
		return chains.FeeTier{
			FeeAmount:   chains.FromBaseUnitsInt(lamports, info.Decimals),
			FeeCurrency: info.Symbol,
			FlatFee:     lamports,
		}
	}
	return &chains.FeeQuote{
		Low:    tier(baseFeeLamports),
		Medium: tier(baseFeeLamports),
		High:   tier(baseFeeLamports + priorityFeeLamports),
	}, nil
}

// FetchHistory 最近的签名列表，逐笔取详情后按账户余额差归一化。
// 单笔详情拉取失败只跳过该笔，不让整个地址的回填失败。
func (s *Strategy) FetchHistory(ctx context.Context, chain string, address string, limit int) ([]chains.HistoryEntry, error) {
	info, err := chains.Lookup(chain)
	if err != nil {
		return nil, err
	}
	account, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("malformed address %q: %w", address, err)
	}

	var sigs []*rpc.TransactionSignature
	err = s.tryEach(chain, func(client *rpc.Client) error {
		out, err := client.GetSignaturesForAddressWithOpts(ctx, account, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentFinalized,
		})
		if err != nil {
			return err
		}
		sigs = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	maxVersion := uint64(0)
	entries := make([]chains.HistoryEntry, 0, len(sigs))
	for _, sigInfo := range sigs {
		if sigInfo == nil || sigInfo.Err != nil {
			continue
		}

		var txResult *rpc.GetTransactionResult
		err := s.tryEach(chain, func(client *rpc.Client) error {
			out, err := client.GetTransaction(ctx, sigInfo.Signature, &rpc.GetTransactionOpts{
				Commitment:                     rpc.CommitmentFinalized,
				MaxSupportedTransactionVersion: &maxVersion,
			})
			if err != nil {
				return err
			}
			txResult = out
			return nil
		})
		if err != nil || txResult == nil || txResult.Meta == nil {
			s.log.Warn("skipping transaction without details",
				zap.String("signature", sigInfo.Signature.String()), zap.Error(err))
			continue
		}

		entry, ok := s.normalizeTx(sigInfo, txResult, account, info)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// normalizeTx 从 pre/post balance 差值推导方向和金额。
// 付款账户 (index 0) 的差值里含网络费，剥掉后才是转账额。
func (s *Strategy) normalizeTx(sigInfo *rpc.TransactionSignature, txResult *rpc.GetTransactionResult, account solana.PublicKey, info chains.Capability) (chains.HistoryEntry, bool) {
	parsed, err := txResult.Transaction.GetTransaction()
	if err != nil {
		return chains.HistoryEntry{}, false
	}

	meta := txResult.Meta
	index := -1
	for i, key := range parsed.Message.AccountKeys {
		if key.Equals(account) {
			index = i
			break
		}
	}
	if index < 0 || index >= len(meta.PreBalances) || index >= len(meta.PostBalances) {
		return chains.HistoryEntry{}, false
	}

	delta := int64(meta.PostBalances[index]) - int64(meta.PreBalances[index])
	if delta == 0 {
		return chains.HistoryEntry{}, false
	}

	entry := chains.HistoryEntry{
		TxHash:        sigInfo.Signature.String(),
		FeeAmount:     chains.FromBaseUnitsInt(int64(meta.Fee), info.Decimals),
		FeeCurrency:   info.Symbol,
		Confirmations: info.RequiredConfirmations,
	}
	slot := txResult.Slot
	entry.BlockNumber = &slot
	if txResult.BlockTime != nil {
		ts := txResult.BlockTime.Time().UTC()
		entry.BlockTimestamp = &ts
	}

	amount := delta
	if delta < 0 {
		entry.Direction = "outgoing"
		amount = -delta
		if index == 0 && amount > int64(meta.Fee) {
			amount -= int64(meta.Fee)
		}
	} else {
		entry.Direction = "incoming"
	}
	entry.Amount = chains.FromBaseUnitsInt(amount, info.Decimals)

	if len(parsed.Message.AccountKeys) > 0 {
		entry.FromAddress = parsed.Message.AccountKeys[0].String()
	}
	if entry.Direction == "incoming" {
		entry.ToAddress = account.String()
	} else if len(parsed.Message.AccountKeys) > 1 {
		entry.ToAddress = parsed.Message.AccountKeys[1].String()
	}
	return entry, true
}
