package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"wallet-engine/pkg/safe_random"
)

// DistributedLock 定义分布式锁接口
type DistributedLock interface {
	// Acquire 尝试获取锁
	// key: 锁的唯一标识
	// ttl: 锁的过期时间
	// 返回: (是否成功, error)
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release 释放锁，只释放自己持有的
	Release(ctx context.Context, key string) error
}

// RedisLock 基于 Redis SETNX 的实现
type RedisLock struct {
	client *redis.Client
	token  string
}

// 释放时用 Lua 脚本校验 token 归属，避免删掉别的实例续期后的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLock(client *redis.Client) *RedisLock {
	token, err := safe_random.GenerateRandomHexString(16)
	if err != nil {
		token = "fallback"
	}
	return &RedisLock{client: client, token: token}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	// SET key token NX EX ttl
	success, err := l.client.SetNX(ctx, "lock:"+key, l.token, ttl).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

func (l *RedisLock) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, l.client, []string{"lock:" + key}, l.token).Err()
}
