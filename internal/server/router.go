package server

import (
	"wallet-engine/internal/handler"
	"wallet-engine/pkg/monitor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers 汇总所有业务 handler，由 main 装配后传入
type Handlers struct {
	Transaction *handler.TransactionHandler
	Wallet      *handler.WalletHandler
	Webhook     *handler.WebhookHandler
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h Handlers) *gin.Engine {
	// 0. 初始化监控指标
	monitor.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		api.GET("/chains", h.Transaction.ListChains)
		api.GET("/fees/:chain", h.Transaction.GetFee)

		api.POST("/transactions/prepare", h.Transaction.Prepare)
		api.POST("/transactions/broadcast", h.Transaction.Broadcast)
		api.GET("/transactions", h.Transaction.ListTransactions)
		api.GET("/transactions/:chain/:tx_hash", h.Transaction.GetTransaction)

		api.POST("/addresses", h.Wallet.RegisterAddress)
		api.POST("/wallets/:wallet_id/sync", h.Wallet.SyncWallet)

		api.POST("/webhooks", h.Webhook.Create)
		api.GET("/webhooks", h.Webhook.List)
		api.DELETE("/webhooks/:id", h.Webhook.Delete)
	}

	return r
}
