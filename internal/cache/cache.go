// Package cache 提供带种子排课结果的 Redis 缓存
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kebiao/kebiao/internal/config"
	"github.com/kebiao/kebiao/pkg/engine"
	apperrors "github.com/kebiao/kebiao/pkg/errors"
)

const keyPrefix = "kebiao:run:"

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = apperrors.New(apperrors.CodeCacheError, "缓存未命中")

// Store 键值存储
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}

// NewRedis 创建 Redis 客户端并测试连接
func NewRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redis 连接测试失败: %w", err)
	}
	return client, nil
}

// RedisStore 基于 go-redis 的存储
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 包装 Redis 客户端
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get 读取键值，不存在时返回 ErrCacheMiss
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return raw, nil
}

// Set 写入键值
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Del 删除键
func (s *RedisStore) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Health 检查连接
func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 关闭连接
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// RunCache 排课结果缓存
// 只缓存指定了种子且未被取消的运行，相同请求与种子的结果可复现
type RunCache struct {
	store Store
	ttl   time.Duration
}

// NewRunCache 创建结果缓存，store 为 nil 时所有操作为空操作
func NewRunCache(store Store, ttl time.Duration) *RunCache {
	return &RunCache{store: store, ttl: ttl}
}

// Key 计算请求的缓存键，未指定种子的请求不可缓存
func Key(req *engine.Request) (string, bool) {
	if req == nil || req.Seed == nil {
		return "", false
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(payload)
	return keyPrefix + hex.EncodeToString(sum[:]), true
}

// Get 读取缓存结果
func (c *RunCache) Get(ctx context.Context, req *engine.Request) (*engine.RunResult, error) {
	key, ok := Key(req)
	if c == nil || c.store == nil || !ok {
		return nil, ErrCacheMiss
	}
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	result := &engine.RunResult{}
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, fmt.Errorf("解析缓存结果 %s 失败: %w", key, err)
	}
	return result, nil
}

// Put 写入结果，被取消或受时间预算截断的运行不缓存
func (c *RunCache) Put(ctx context.Context, req *engine.Request, result *engine.RunResult) error {
	key, ok := Key(req)
	if c == nil || c.store == nil || !ok || result == nil || result.Metadata.Cancelled || result.Metadata.TimeLimited {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}
	return c.store.Set(ctx, key, payload, c.ttl)
}

// Invalidate 删除请求对应的缓存
func (c *RunCache) Invalidate(ctx context.Context, req *engine.Request) error {
	key, ok := Key(req)
	if c == nil || c.store == nil || !ok {
		return nil
	}
	return c.store.Del(ctx, key)
}

// Enabled 是否配置了存储
func (c *RunCache) Enabled() bool {
	return c != nil && c.store != nil
}

// Close 释放存储连接
func (c *RunCache) Close() error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Close()
}
