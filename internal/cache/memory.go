package cache

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// 🧠 内存后端
// =============================================================================

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore 进程内缓存后端,用于 Redis 不可用或单机部署的场景。
// 过期条目在读取时惰性淘汰。
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	defaultTTL time.Duration
}

// NewMemoryStore 创建内存后端。defaultTTL 为 0 时条目默认一小时过期。
func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		defaultTTL: defaultTTL,
	}
}

// Get 获取缓存值,过期条目视为未命中并顺手删除。
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return "", ErrCacheMiss
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", ErrCacheMiss
	}

	return entry.value, nil
}

// Set 设置缓存值
func (s *MemoryStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()

	return nil
}

// Delete 删除缓存值
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	return nil
}

// Ping 内存后端永远可用
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close 清空所有条目
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.entries = make(map[string]memoryEntry)
	s.mu.Unlock()

	return nil
}

// Len 返回当前条目数,仅用于测试与统计。
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
