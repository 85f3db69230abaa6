package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = fmt.Errorf("cache miss")

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	return err == ErrCacheMiss
}

// Store 缓存后端的统一接口。
//
// Get 在键不存在或后端故障时返回 ErrCacheMiss;Set 与 Delete
// 在后端故障时返回 nil,故障细节只进日志。ttl 为 0 时使用后端默认值。
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// Key 把前缀与各部分拼接后做 sha256,生成定长缓存键。
func Key(prefix string, parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return prefix + ":" + hex.EncodeToString(h[:])
}

// GetJSON 读取缓存并反序列化到 dest。损坏的条目视为未命中。
func GetJSON(ctx context.Context, s Store, key string, dest any) error {
	val, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return ErrCacheMiss
	}
	return nil
}

// SetJSON 序列化 value 后写入缓存。
func SetJSON(ctx context.Context, s Store, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.Set(ctx, key, string(data), ttl)
}

// =============================================================================
// 🚫 空实现
// =============================================================================

// Noop 关闭缓存时使用的空实现,所有读取都未命中。
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) (string, error) { return "", ErrCacheMiss }

func (Noop) Set(ctx context.Context, key, value string, ttl time.Duration) error { return nil }

func (Noop) Delete(ctx context.Context, keys ...string) error { return nil }

func (Noop) Ping(ctx context.Context) error { return nil }

func (Noop) Close() error { return nil }
