package mq

import "context"

// Message 代表一条通用的业务消息
type Message struct {
	ID       string            // 消息ID
	Topic    string            // 主题 (例如 "wallet_tx_events")
	Key      string            // 分区键 (例如 WalletID), 同样用于 Kafka Partition
	Payload  []byte            // 消息体 (JSON)
	Metadata map[string]string // 元数据
}

// Producer 生产者接口
type Producer interface {
	// Publish 发送消息
	// key: 用于分区排序 (Partition Key), 例如 WalletID. 传空字符串则随机分区.
	Publish(ctx context.Context, topic string, key string, payload []byte) error

	// Close 关闭连接
	Close() error
}
