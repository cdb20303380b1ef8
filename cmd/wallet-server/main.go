package main

import (
	"context"
	"fmt"

	"wallet-engine/internal/chains"
	"wallet-engine/internal/chains/evm"
	"wallet-engine/internal/chains/solana"
	"wallet-engine/internal/chains/utxo"
	"wallet-engine/internal/handler"
	"wallet-engine/internal/model"
	"wallet-engine/internal/server"
	"wallet-engine/internal/service"
	"wallet-engine/internal/service/mq"
	"wallet-engine/internal/store"
	"wallet-engine/pkg/config"
	"wallet-engine/pkg/database"
	"wallet-engine/pkg/logger"
	"wallet-engine/pkg/monitor"

	"go.uber.org/zap"
)

// @title Wallet Engine API
// @version 1.0
// @description Non-custodial multi-chain transaction lifecycle API
// @host localhost:8080
// @BasePath /api/v1
func main() {
	// 0. 初始化 Config
	config.Init()

	// 1. 初始化 Logger
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	// 2. 连接数据库
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		config.Global.DB.Host,
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Name,
		config.Global.DB.Port,
	)
	db, err := database.ConnectPostgres(dsn, config.Global.App.Env)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3. 连接 Redis
	rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 4. 开发环境自动迁移，生产环境走 migrate 工具
	if config.Global.App.Env == "development" {
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
		logger.Info("数据库自动迁移完成 (Dev Mode)")
	}

	// 5. 业务指标
	monitor.InitBusinessMetrics()

	// 6. 按协议族装配链策略
	router, err := buildStrategies()
	if err != nil {
		logger.Fatal("链策略装配失败", zap.Error(err))
	}

	// 7. 存储层
	txStore := store.NewTransactionStore(db)
	addrStore := store.NewAddressStore(db)
	intentStore := store.NewIntentStore(db)
	webhookStore := store.NewWebhookStore(db)

	// 8. 事件发布 (kafka 可选，未启用时 Emit 是空操作)
	var producer mq.Producer
	if config.Global.Kafka.Enabled {
		producer = mq.NewKafkaProducer(config.Global.Kafka.Brokers, config.Global.Kafka.Topic, logger.Named("kafka"))
		defer producer.Close()
	}
	events := service.NewEventPublisher(producer, config.Global.Kafka.Topic, logger.Named("events"))

	// 9. 业务服务
	prepareSvc := service.NewPrepareService(router, addrStore, intentStore, logger.Named("prepare"))
	broadcastSvc := service.NewBroadcastService(router, intentStore, txStore, events, logger.Named("broadcast"))
	feeSvc := service.NewFeeService(router, rdb, logger.Named("fees"))
	webhookSvc := service.NewWebhookService(webhookStore, config.Global.Webhook.Timeout, config.Global.Webhook.MaxFailures, logger.Named("webhooks"))
	indexerSvc := service.NewIndexerService(router, addrStore, txStore, events, logger.Named("indexer"))
	reconciler := service.NewReconcilerService(
		router,
		txStore,
		webhookSvc,
		events,
		rdb,
		config.Global.Daemon.Interval,
		config.Global.Daemon.BatchSize,
		config.Global.Daemon.HTTPTimeout,
		logger.Named("reconciler"),
	)

	// 10. 后台任务
	daemonCtx, stopDaemon := context.WithCancel(context.Background())
	defer stopDaemon()
	go reconciler.Start(daemonCtx)

	cron := service.NewCronService(rdb, intentStore)
	cron.Start()
	defer cron.Stop()

	// 11. HTTP 路由
	r := server.NewHTTPRouter(server.Handlers{
		Transaction: handler.NewTransactionHandler(prepareSvc, broadcastSvc, feeSvc, txStore),
		Wallet:      handler.NewWalletHandler(addrStore, indexerSvc),
		Webhook:     handler.NewWebhookHandler(webhookSvc),
	})

	// 12. 启动并等待退出信号
	app := server.New(server.Config{HttpPort: config.Global.App.HttpPort}, r)
	app.Run()
}

// buildStrategies 把配置里的数据源按协议族分组，装配三套策略。
func buildStrategies() (service.StrategyRouter, error) {
	utxoEndpoints := make(map[string][]string)
	evmSources := make(map[string]evm.Sources)
	solanaEndpoints := make(map[string][]string)

	for _, id := range chains.Supported() {
		info, err := chains.Lookup(id)
		if err != nil {
			return nil, err
		}
		src := config.Global.Chains[id]

		switch info.Family {
		case chains.FamilyUTXO:
			utxoEndpoints[id] = src.ExplorerUrls
		case chains.FamilyAccount:
			evmSources[id] = evm.Sources{
				RpcUrls:        src.RpcUrls,
				ExplorerUrls:   src.ExplorerUrls,
				ExplorerApiKey: src.ExplorerApiKey,
			}
		case chains.FamilyBlockhash:
			solanaEndpoints[id] = src.RpcUrls
		}
	}

	evmStrategy, err := evm.NewStrategy(evmSources, config.Global.Daemon.HTTPTimeout, logger.Named("evm"))
	if err != nil {
		return nil, err
	}

	return service.StrategyRouter{
		chains.FamilyUTXO:      utxo.NewStrategy(utxoEndpoints, config.Global.Daemon.HTTPTimeout, logger.Named("utxo")),
		chains.FamilyAccount:   evmStrategy,
		chains.FamilyBlockhash: solana.NewStrategy(solanaEndpoints, logger.Named("solana")),
	}, nil
}
