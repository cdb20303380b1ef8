package handler

import (
	"errors"
	"strconv"

	"wallet-engine/internal/chains"
	"wallet-engine/internal/handler/request"
	"wallet-engine/internal/handler/response"
	"wallet-engine/internal/service"
	"wallet-engine/internal/store"
	"wallet-engine/pkg/errno"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const defaultListLimit = 50

type TransactionHandler struct {
	prepare   *service.PrepareService
	broadcast *service.BroadcastService
	fees      *service.FeeService
	txs       store.TransactionStore
}

func NewTransactionHandler(prepare *service.PrepareService, broadcast *service.BroadcastService, fees *service.FeeService, txs store.TransactionStore) *TransactionHandler {
	return &TransactionHandler{prepare: prepare, broadcast: broadcast, fees: fees, txs: txs}
}

// Prepare 构建未签名交易
// @Summary 构建未签名交易
// @Description 校验链/金额/地址归属后返回意向 ID 和待签名数据，签名在客户端完成
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.PrepareRequest true "Prepare Request"
// @Success 200 {object} response.Response
// @Router /api/v1/transactions/prepare [post]
func (h *TransactionHandler) Prepare(c *gin.Context) {
	var req request.PrepareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	result, err := h.prepare.Prepare(c.Request.Context(), service.PrepareParams{
		WalletID:    req.WalletID,
		Chain:       req.Chain,
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
		Amount:      req.Amount,
		Priority:    req.Priority,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Broadcast 提交已签名交易
// @Summary 提交已签名交易
// @Description 凭意向 ID 提交签名数据，服务端广播并登记 pending 交易
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.BroadcastRequest true "Broadcast Request"
// @Success 200 {object} response.Response
// @Router /api/v1/transactions/broadcast [post]
func (h *TransactionHandler) Broadcast(c *gin.Context) {
	var req request.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	result, err := h.broadcast.Broadcast(c.Request.Context(), req.WalletID, req.IntentID, req.SignedPayload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetFee 查询费用档位
// @Summary 查询费用档位
// @Description 返回指定链的 low/medium/high 三档费用报价
// @Tags Transaction
// @Produce json
// @Param chain path string true "Chain ID"
// @Success 200 {object} response.Response
// @Router /api/v1/fees/{chain} [get]
func (h *TransactionHandler) GetFee(c *gin.Context) {
	quote, err := h.fees.GetFeeEstimate(c.Request.Context(), c.Param("chain"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, quote)
}

// ListChains 列出支持的链
// @Summary 列出支持的链
// @Tags Transaction
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/chains [get]
func (h *TransactionHandler) ListChains(c *gin.Context) {
	list := make([]gin.H, 0)
	for _, id := range chains.Supported() {
		info, err := chains.Lookup(id)
		if err != nil {
			continue
		}
		list = append(list, gin.H{
			"chain":                  info.ID,
			"family":                 info.Family,
			"symbol":                 info.Symbol,
			"decimals":               info.Decimals,
			"required_confirmations": info.RequiredConfirmations,
			"network_id":             info.NetworkID,
		})
	}
	response.Success(c, gin.H{"chains": list})
}

// ListTransactions 查询交易历史
// @Summary 查询交易历史
// @Description 按钱包查询交易记录，可选按链过滤
// @Tags Transaction
// @Produce json
// @Param wallet_id query string true "Wallet ID"
// @Param chain query string false "Chain ID"
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Response
// @Router /api/v1/transactions [get]
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	walletID := c.Query("wallet_id")
	if walletID == "" {
		response.Error(c, errno.ErrBind)
		return
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.Error(c, errno.ErrBind)
			return
		}
		limit = n
	}

	txs, err := h.txs.ListByWallet(c.Request.Context(), walletID, c.Query("chain"), limit)
	if err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}
	response.Success(c, gin.H{"transactions": txs})
}

// GetTransaction 查询单笔交易
// @Summary 查询单笔交易
// @Tags Transaction
// @Produce json
// @Param chain path string true "Chain ID"
// @Param tx_hash path string true "Transaction Hash"
// @Success 200 {object} response.Response
// @Router /api/v1/transactions/{chain}/{tx_hash} [get]
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	tx, err := h.txs.FindByChainHash(c.Request.Context(), c.Param("chain"), c.Param("tx_hash"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, errno.ErrTxNotFound)
			return
		}
		response.Error(c, errno.ErrDatabase)
		return
	}
	response.Success(c, tx)
}
