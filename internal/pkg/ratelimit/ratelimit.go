package ratelimit

import (
	"sync"
	"time"
)

// record 单个客户端在当前窗口内的计数。
type record struct {
	count       int
	windowStart time.Time
}

// Limiter 基于固定窗口的进程内限流器。
//
// 每个客户端身份（通常是 IP）独立计数：窗口过期则重置计数并放行，
// 计数达到容量则拒绝。固定窗口在窗口边界允许最多 2x 容量的突发，
// 这是已知且保留的行为，不要改成滑动窗口。
type Limiter struct {
	mu       sync.Mutex
	records  map[string]*record
	window   time.Duration
	capacity int
	now      func() time.Time
}

// NewLimiter 创建限流器。window 和 capacity 非法时回退到 60s/30。
func NewLimiter(window time.Duration, capacity int) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	if capacity <= 0 {
		capacity = 30
	}
	return &Limiter{
		records:  make(map[string]*record),
		window:   window,
		capacity: capacity,
		now:      time.Now,
	}
}

// Admit 判断某个客户端身份的本次请求是否放行。
//
// 返回 true 表示放行（并已计数），false 表示拒绝（不计数）。
func (l *Limiter) Admit(identity string) bool {
	if identity == "" {
		identity = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	r, ok := l.records[identity]
	if !ok || now.Sub(r.windowStart) >= l.window {
		l.records[identity] = &record{count: 1, windowStart: now}
		return true
	}
	if r.count >= l.capacity {
		return false
	}
	r.count++
	return true
}

// Len 返回当前跟踪的客户端数量（仅用于观测）。
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
