package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"wallet-engine/internal/model"
	"wallet-engine/internal/store"
	"wallet-engine/pkg/crypto_util"
	"wallet-engine/pkg/errno"
	"wallet-engine/pkg/monitor"
	"wallet-engine/pkg/safe_random"
)

// webhookSecretBytes 注册时生成的签名密钥长度
const webhookSecretBytes = 32

// WebhookService webhook 订阅管理和事件投递。
// 投递失败从不向上传播，交易状态流转不被回调方拖住。
type WebhookService struct {
	store       store.WebhookStore
	client      *http.Client
	maxFailures int
	log         *zap.Logger
}

func NewWebhookService(whStore store.WebhookStore, timeout time.Duration, maxFailures int, log *zap.Logger) *WebhookService {
	return &WebhookService{
		store:       whStore,
		client:      &http.Client{Timeout: timeout},
		maxFailures: maxFailures,
		log:         log,
	}
}

// Register 注册订阅。密钥只在这次响应里返回，之后不再可读。
// 回调地址必须是 https，本地调试例外。
func (s *WebhookService) Register(ctx context.Context, walletID, rawURL string, events []string) (*model.WebhookRegistration, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, "", errno.ErrInvalidURL.WithDetail(rawURL)
	}
	if parsed.Scheme != "https" && !isLoopback(parsed.Hostname()) {
		return nil, "", errno.ErrInvalidURL.WithDetail("callback url must be https")
	}

	if len(events) == 0 {
		return nil, "", errno.ErrInvalidEvent.WithDetail("at least one event required")
	}
	for _, e := range events {
		if !IsValidEvent(e) {
			return nil, "", errno.ErrInvalidEvent.WithDetail(e)
		}
	}

	secret, err := safe_random.GenerateRandomHexString(webhookSecretBytes)
	if err != nil {
		return nil, "", errno.InternalServerError
	}

	reg := &model.WebhookRegistration{
		WalletID: walletID,
		URL:      rawURL,
		Events:   events,
		Secret:   secret,
		Active:   true,
	}
	if err := s.store.Create(ctx, reg); err != nil {
		return nil, "", errno.ErrDatabase.WithDetail(err.Error())
	}

	s.log.Info("webhook registered",
		zap.String("wallet_id", walletID), zap.Uint64("id", reg.ID))
	return reg, secret, nil
}

func (s *WebhookService) List(ctx context.Context, walletID string) ([]model.WebhookRegistration, error) {
	regs, err := s.store.ListByWallet(ctx, walletID)
	if err != nil {
		return nil, errno.ErrDatabase.WithDetail(err.Error())
	}
	return regs, nil
}

func (s *WebhookService) Delete(ctx context.Context, walletID string, id uint64) error {
	if _, err := s.store.Find(ctx, walletID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errno.ErrWebhookNotFound
		}
		return errno.ErrDatabase.WithDetail(err.Error())
	}
	if err := s.store.Delete(ctx, walletID, id); err != nil {
		return errno.ErrDatabase.WithDetail(err.Error())
	}
	return nil
}

// webhookEnvelope 投递体。签名对整个 body 计算。
type webhookEnvelope struct {
	Event     string      `json:"event"`
	WalletID  string      `json:"wallet_id"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Notify 向钱包的所有相关订阅投递事件。逐个投递，互不影响。
func (s *WebhookService) Notify(ctx context.Context, walletID, event string, data interface{}) {
	regs, err := s.store.ListActive(ctx, walletID)
	if err != nil {
		s.log.Error("list webhooks failed", zap.String("wallet_id", walletID), zap.Error(err))
		return
	}

	body, err := json.Marshal(webhookEnvelope{
		Event:     event,
		WalletID:  walletID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		s.log.Error("marshal webhook payload failed", zap.Error(err))
		return
	}

	for i := range regs {
		reg := &regs[i]
		if !reg.Events.Contains(event) {
			continue
		}
		s.deliver(ctx, reg, event, body)
	}
}

// deliver 单次投递。连续失败达到阈值后自动停用订阅。
func (s *WebhookService) deliver(ctx context.Context, reg *model.WebhookRegistration, event string, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reg.URL, bytes.NewReader(body))
	if err != nil {
		s.log.Error("build webhook request failed", zap.Uint64("id", reg.ID), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set("X-Webhook-Signature", crypto_util.SignHMACSHA256(reg.Secret, body))

	resp, err := s.client.Do(req)
	ok := err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300
	if resp != nil {
		resp.Body.Close()
	}

	if ok {
		s.countDelivery("ok")
		if reg.FailureCount != 0 {
			reg.FailureCount = 0
			s.persist(ctx, reg)
		}
		return
	}

	s.countDelivery("error")
	reg.FailureCount++
	s.log.Warn("webhook delivery failed",
		zap.Uint64("id", reg.ID),
		zap.String("url", reg.URL),
		zap.Int("failure_count", reg.FailureCount),
		zap.Error(err))

	if reg.FailureCount >= s.maxFailures {
		reg.Active = false
		s.log.Warn("webhook disabled after repeated failures",
			zap.Uint64("id", reg.ID), zap.String("url", reg.URL))
	}
	s.persist(ctx, reg)
}

func (s *WebhookService) persist(ctx context.Context, reg *model.WebhookRegistration) {
	if err := s.store.Update(ctx, reg); err != nil {
		s.log.Error("update webhook state failed", zap.Uint64("id", reg.ID), zap.Error(err))
	}
}

func (s *WebhookService) countDelivery(status string) {
	if monitor.Business != nil {
		monitor.Business.WebhookDeliveriesTotal.WithLabelValues(status).Inc()
	}
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
