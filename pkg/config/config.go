package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 进程启动时构造一次，之后只读。所有组件通过引用接收，
// 不允许在业务代码里散落 os.Getenv。
type Config struct {
	App     AppConfig               `mapstructure:"app"`
	DB      DBConfig                `mapstructure:"db"`
	Redis   RedisConfig             `mapstructure:"redis"`
	Kafka   KafkaConfig             `mapstructure:"kafka"`
	Daemon  DaemonConfig            `mapstructure:"daemon"`
	Webhook WebhookConfig           `mapstructure:"webhook"`
	Chains  map[string]ChainSources `mapstructure:"chains"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// DaemonConfig 对账守护进程参数
type DaemonConfig struct {
	Interval    time.Duration `mapstructure:"interval"`     // 对账周期
	BatchSize   int           `mapstructure:"batch_size"`   // 单周期最多处理的交易数
	HTTPTimeout time.Duration `mapstructure:"http_timeout"` // 单次外部数据源调用超时
}

type WebhookConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxFailures int           `mapstructure:"max_failures"` // 连续失败多少次后自动禁用
}

// ChainSources 每条链的外部数据源。RpcUrls / ExplorerUrls 按顺序
// 作为 primary + fallback 依次尝试。
type ChainSources struct {
	RpcUrls        []string `mapstructure:"rpc_urls"`
	ExplorerUrls   []string `mapstructure:"explorer_urls"`
	ExplorerApiKey string   `mapstructure:"explorer_api_key"`
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "wallet")
	viper.SetDefault("db.password", "wallet")
	viper.SetDefault("db.name", "wallet")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "wallet_tx_events")

	viper.SetDefault("daemon.interval", "15s")
	viper.SetDefault("daemon.batch_size", 200)
	viper.SetDefault("daemon.http_timeout", "10s")

	viper.SetDefault("webhook.timeout", "10s")
	viper.SetDefault("webhook.max_failures", 10)

	// 公共数据源默认值（免费档）。生产环境请在 config.yaml 覆盖。
	viper.SetDefault("chains.bitcoin.explorer_urls", []string{
		"https://blockstream.info/api",
		"https://mempool.space/api",
	})
	viper.SetDefault("chains.litecoin.explorer_urls", []string{
		"https://litecoinspace.org/api",
	})
	viper.SetDefault("chains.dogecoin.explorer_urls", []string{
		"https://dogechain.info/api/esplora",
	})
	viper.SetDefault("chains.ethereum.rpc_urls", []string{
		"https://eth.llamarpc.com",
		"https://cloudflare-eth.com",
	})
	viper.SetDefault("chains.ethereum.explorer_urls", []string{"https://api.etherscan.io"})
	viper.SetDefault("chains.polygon.rpc_urls", []string{"https://polygon-rpc.com"})
	viper.SetDefault("chains.bsc.rpc_urls", []string{"https://bsc-dataseed.binance.org"})
	viper.SetDefault("chains.arbitrum.rpc_urls", []string{"https://arb1.arbitrum.io/rpc"})
	viper.SetDefault("chains.base.rpc_urls", []string{"https://mainnet.base.org"})
	viper.SetDefault("chains.solana.rpc_urls", []string{
		"https://api.mainnet-beta.solana.com",
	})
}
