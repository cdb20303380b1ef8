package handler

import (
	"strconv"

	"wallet-engine/internal/handler/request"
	"wallet-engine/internal/handler/response"
	"wallet-engine/internal/service"
	"wallet-engine/pkg/errno"

	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	webhooks *service.WebhookService
}

func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// Create 订阅 webhook
// @Summary 订阅 webhook
// @Description 登记回调地址，签名密钥只在本次响应中返回一次
// @Tags Webhook
// @Accept json
// @Produce json
// @Param request body request.CreateWebhookRequest true "Create Webhook Request"
// @Success 200 {object} response.Response
// @Router /api/v1/webhooks [post]
func (h *WebhookHandler) Create(c *gin.Context) {
	var req request.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	reg, secret, err := h.webhooks.Register(c.Request.Context(), req.WalletID, req.URL, req.Events)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"webhook": reg,
		"secret":  secret,
	})
}

// List 列出钱包的 webhook 订阅
// @Summary 列出 webhook 订阅
// @Tags Webhook
// @Produce json
// @Param wallet_id query string true "Wallet ID"
// @Success 200 {object} response.Response
// @Router /api/v1/webhooks [get]
func (h *WebhookHandler) List(c *gin.Context) {
	walletID := c.Query("wallet_id")
	if walletID == "" {
		response.Error(c, errno.ErrBind)
		return
	}

	regs, err := h.webhooks.List(c.Request.Context(), walletID)
	if err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}
	response.Success(c, gin.H{"webhooks": regs})
}

// Delete 删除 webhook 订阅
// @Summary 删除 webhook 订阅
// @Tags Webhook
// @Produce json
// @Param id path int true "Webhook ID"
// @Param wallet_id query string true "Wallet ID"
// @Success 200 {object} response.Response
// @Router /api/v1/webhooks/{id} [delete]
func (h *WebhookHandler) Delete(c *gin.Context) {
	walletID := c.Query("wallet_id")
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if walletID == "" || err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	if err := h.webhooks.Delete(c.Request.Context(), walletID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
