package handler

import (
	"wallet-engine/internal/chains"
	"wallet-engine/internal/handler/request"
	"wallet-engine/internal/handler/response"
	"wallet-engine/internal/model"
	"wallet-engine/internal/service"
	"wallet-engine/internal/store"
	"wallet-engine/pkg/errno"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	addresses store.AddressStore
	indexer   *service.IndexerService
}

func NewWalletHandler(addresses store.AddressStore, indexer *service.IndexerService) *WalletHandler {
	return &WalletHandler{addresses: addresses, indexer: indexer}
}

// RegisterAddress 登记钱包地址
// @Summary 登记钱包地址
// @Description 将链上地址挂到钱包下，登记后即可构建交易和索引历史
// @Tags Wallet
// @Accept json
// @Produce json
// @Param request body request.RegisterAddressRequest true "Register Address Request"
// @Success 200 {object} response.Response
// @Router /api/v1/addresses [post]
func (h *WalletHandler) RegisterAddress(c *gin.Context) {
	var req request.RegisterAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	if _, err := chains.Lookup(req.Chain); err != nil {
		response.Error(c, err)
		return
	}

	addr := &model.WalletAddress{
		WalletID: req.WalletID,
		Chain:    req.Chain,
		Address:  req.Address,
		Active:   true,
	}
	if err := h.addresses.Register(c.Request.Context(), addr); err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}
	response.Success(c, addr)
}

// SyncWallet 手动触发历史回填
// @Summary 手动触发历史回填
// @Description 拉取钱包所有活跃地址的链上历史，发现新交易时登记并发事件
// @Tags Wallet
// @Produce json
// @Param wallet_id path string true "Wallet ID"
// @Success 200 {object} response.Response
// @Router /api/v1/wallets/{wallet_id}/sync [post]
func (h *WalletHandler) SyncWallet(c *gin.Context) {
	result, err := h.indexer.SyncWallet(c.Request.Context(), c.Param("wallet_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
