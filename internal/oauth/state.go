package oauth

import (
	"context"
	"sync"
	"time"
)

// DefaultStateTTL state 令牌的有效期。授权页停留超过这个时间后
// 回调会被拒绝，需要重新发起授权。
const DefaultStateTTL = 10 * time.Minute

type stateEntry struct {
	verifier  string
	expiresAt time.Time
}

// StateStore 保存 state -> PKCE code verifier 的临时映射。
//
// 进程级共享，仅存在于内存中，重启即清空。每个 state 一次性使用：
// Take 命中即删除。过期条目在读取时惰性剔除，Sweep 负责兜底清理。
type StateStore struct {
	mu      sync.Mutex
	entries map[string]stateEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewStateStore 创建 state 存储。ttl <= 0 时使用 DefaultStateTTL。
func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{
		entries: make(map[string]stateEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put 记录一个新的 state 及其 verifier。
func (s *StateStore) Put(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[state] = stateEntry{
		verifier:  verifier,
		expiresAt: s.now().Add(s.ttl),
	}
}

// Take 取出并删除 state 对应的 verifier。
//
// 未知或已过期的 state 返回 false。命中即删除，保证 state 单次使用。
func (s *StateStore) Take(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok {
		return "", false
	}
	delete(s.entries, state)
	if s.now().After(entry.expiresAt) {
		return "", false
	}
	return entry.verifier, true
}

// Sweep 移除所有已过期的条目，返回清理数量。
func (s *StateStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for state, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, state)
			removed++
		}
	}
	return removed
}

// StartSweeper 启动后台定时清理，直到 ctx 取消。
func (s *StateStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Len 返回当前未消费的 state 数量（仅用于观测与测试）。
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
