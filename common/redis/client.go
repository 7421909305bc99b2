// Package redis 实时提示事件流与会话结果缓存使用的 Redis 连接
package redis

import (
	"context"
	"wisefido-gait/common/config"

	"github.com/go-redis/redis/v8"
)

// Client Redis客户端类型别名（cache 包直接使用 go-redis 客户端）
type Client = redis.Client

// NewRedisClient 创建Redis客户端（一个服务进程共用一个，供事件流和结果缓存使用）
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping 测试Redis连接，服务启动时调用，失败则不开始会话
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close 关闭Redis连接，服务 Stop 时调用
func Close(client *redis.Client) error {
	return client.Close()
}
