package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cheapfinder:cache:search:"

// Cache 短 TTL 的搜索结果缓存。
//
// key 是请求参数的规范化摘要；value 是 JSON 序列化的响应。
// Redis 不可用或未启用时所有操作都是 no-op，搜索路径不依赖它。
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New 创建缓存。ttl <= 0 时禁用缓存（Get 永不命中，Set 不写入）。
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Enabled 缓存是否生效。
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil && c.ttl > 0
}

// Get 按 key 读取缓存并反序列化到 dest。返回是否命中。
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, keyPrefix+hashKey(key)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		// 反序列化失败当作未命中，坏条目等 TTL 自然过期
		return false, nil
	}
	return true, nil
}

// Set 序列化 value 并按 TTL 写入。
func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.rdb.Set(ctx, keyPrefix+hashKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
