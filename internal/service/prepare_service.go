package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"lukechampine.com/blake3"

	"wallet-engine/internal/chains"
	"wallet-engine/internal/model"
	"wallet-engine/internal/store"
	"wallet-engine/pkg/errno"
	"wallet-engine/pkg/monitor"
	"wallet-engine/pkg/safe_random"
)

// intentTTL 未签名意向的有效期。过期后费率和 nonce/blockhash
// 大概率已经失效，必须重新 prepare。
const intentTTL = 5 * time.Minute

// PrepareService 构建未签名交易意向
type PrepareService struct {
	router    StrategyRouter
	addresses store.AddressStore
	intents   store.IntentStore
	log       *zap.Logger
}

func NewPrepareService(router StrategyRouter, addresses store.AddressStore, intents store.IntentStore, log *zap.Logger) *PrepareService {
	return &PrepareService{router: router, addresses: addresses, intents: intents, log: log}
}

// PrepareParams 来自 API 层的原始输入
type PrepareParams struct {
	WalletID    string
	Chain       string
	FromAddress string
	ToAddress   string
	Amount      string
	Priority    string
}

// PrepareResult 意向 ID + 未签名数据，客户端签名后凭 ID 回传
type PrepareResult struct {
	IntentID  string                 `json:"intent_id"`
	Chain     string                 `json:"chain"`
	ExpiresAt time.Time              `json:"expires_at"`
	Payload   *chains.UnsignedPayload `json:"payload"`
}

// Prepare 校验顺序固定: 链 -> 金额 -> 地址归属，再进协议族策略。
// 私钥和签名从不经过这里。
func (s *PrepareService) Prepare(ctx context.Context, params PrepareParams) (*PrepareResult, error) {
	strategy, info, err := s.router.For(params.Chain)
	if err != nil {
		s.countPrepare(params.Chain, "invalid")
		return nil, err
	}

	amount, err := chains.ParsePositiveAmount(params.Amount)
	if err != nil {
		s.countPrepare(params.Chain, "invalid")
		return nil, err
	}

	if _, err := s.addresses.FindActive(ctx, params.WalletID, params.Chain, params.FromAddress); err != nil {
		s.countPrepare(params.Chain, "invalid")
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrAddressNotFound.WithDetail(params.FromAddress)
		}
		return nil, errno.ErrDatabase.WithDetail(err.Error())
	}

	payload, err := strategy.Prepare(ctx, chains.PrepareRequest{
		Chain:       params.Chain,
		FromAddress: params.FromAddress,
		ToAddress:   params.ToAddress,
		Amount:      amount,
		Priority:    chains.FeePriority(params.Priority),
	})
	if err != nil {
		s.countPrepare(params.Chain, "error")
		return nil, err
	}

	intentID, err := newIntentID()
	if err != nil {
		s.countPrepare(params.Chain, "error")
		return nil, errno.InternalServerError
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		s.countPrepare(params.Chain, "error")
		return nil, errno.InternalServerError
	}

	now := time.Now()
	intent := &model.TransactionIntent{
		ID:          intentID,
		WalletID:    params.WalletID,
		Chain:       params.Chain,
		FromAddress: params.FromAddress,
		ToAddress:   params.ToAddress,
		Amount:      amount,
		Priority:    params.Priority,
		Payload:     payloadBytes,
		ExpiresAt:   now.Add(intentTTL),
		CreatedAt:   now,
	}
	if err := s.intents.Create(ctx, intent); err != nil {
		s.countPrepare(params.Chain, "error")
		return nil, errno.ErrDatabase.WithDetail(err.Error())
	}

	s.countPrepare(params.Chain, "ok")
	s.log.Info("transaction intent prepared",
		zap.String("intent_id", intentID),
		zap.String("chain", params.Chain),
		zap.String("wallet_id", params.WalletID),
		zap.String("family", string(info.Family)))

	return &PrepareResult{
		IntentID:  intentID,
		Chain:     params.Chain,
		ExpiresAt: intent.ExpiresAt,
		Payload:   payload,
	}, nil
}

func (s *PrepareService) countPrepare(chain, result string) {
	if monitor.Business != nil {
		monitor.Business.PrepareTotal.WithLabelValues(chain, result).Inc()
	}
}

// newIntentID "tx_" 前缀保证意向 ID 和链上哈希在同一列里可区分，
// 对账查询依赖这个前缀排除未广播的占位行。
func newIntentID() (string, error) {
	entropy, err := safe_random.GenerateRandomBytes(16)
	if err != nil {
		return "", err
	}
	seed := append([]byte(uuid.NewString()), entropy...)
	sum := blake3.Sum256(seed)
	return "tx_" + hex.EncodeToString(sum[:16]), nil
}
