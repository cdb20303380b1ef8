package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wallet-engine/internal/model"
	"wallet-engine/internal/service/mq"
)

// 交易生命周期事件。webhook 订阅和 kafka 投递共用同一套名字。
const (
	EventTxPending   = "transaction.pending"
	EventTxConfirmed = "transaction.confirmed"
	EventTxFailed    = "transaction.failed"
	EventTxIncoming  = "transaction.incoming"
)

// ValidEvents webhook 注册时允许订阅的事件
var ValidEvents = []string{EventTxPending, EventTxConfirmed, EventTxFailed, EventTxIncoming}

func IsValidEvent(event string) bool {
	for _, e := range ValidEvents {
		if e == event {
			return true
		}
	}
	return false
}

// TxEvent 对外投递的事件体
type TxEvent struct {
	Event     string          `json:"event"`
	WalletID  string          `json:"wallet_id"`
	Chain     string          `json:"chain"`
	TxHash    string          `json:"tx_hash"`
	Status    string          `json:"status"`
	Direction string          `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp int64           `json:"timestamp"`
}

// EventPublisher 把生命周期事件发到 MQ。producer 为 nil 时静默跳过
// (kafka 未启用的部署形态)。事件投递永远不阻塞交易状态流转。
type EventPublisher struct {
	producer mq.Producer
	topic    string
	log      *zap.Logger
}

func NewEventPublisher(producer mq.Producer, topic string, log *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic, log: log}
}

// Emit 发送一条交易事件，失败只记日志
func (p *EventPublisher) Emit(ctx context.Context, event string, tx *model.Transaction) {
	if p == nil || p.producer == nil {
		return
	}

	payload, err := json.Marshal(TxEvent{
		Event:     event,
		WalletID:  tx.WalletID,
		Chain:     tx.Chain,
		TxHash:    tx.TxHash,
		Status:    tx.Status,
		Direction: tx.Direction,
		Amount:    tx.Amount,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		p.log.Error("marshal tx event failed", zap.Error(err))
		return
	}

	if err := p.producer.Publish(ctx, p.topic, tx.WalletID, payload); err != nil {
		p.log.Error("publish tx event failed",
			zap.String("event", event), zap.String("tx_hash", tx.TxHash), zap.Error(err))
	}
}
