package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyEvents 搜索事件写入的 Redis List。
	KeyEvents = "cheapfinder:analytics:events"

	// maxEvents 事件列表的保留上限，超出后丢掉最旧的。
	maxEvents = 10000
)

// SearchEvent 一次搜索的分析事件。
//
// 通过 worker 队列异步写入，写失败只记日志，绝不影响搜索响应。
type SearchEvent struct {
	Query       string    `json:"query"`
	Zip         string    `json:"zip"`
	Limit       int       `json:"limit"`
	MinRating   float64   `json:"min_rating"`
	MinReviews  int       `json:"min_reviews"`
	MaxPrice    float64   `json:"max_price"`
	Sources     []string  `json:"sources"`      // 本次实际产出结果的来源
	ResultCount int       `json:"result_count"` // 返回的条目数
	MockServed  bool      `json:"mock_served"`  // 是否由 mock 兜底
	DurationMS  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// Recorder 接收搜索事件的单向观察者。
type Recorder interface {
	Record(ctx context.Context, event SearchEvent) error
}

// RedisRecorder 把事件序列化后推进 Redis List。
type RedisRecorder struct {
	rdb *redis.Client
}

// NewRedisRecorder 创建基于 Redis 的事件记录器。
func NewRedisRecorder(rdb *redis.Client) *RedisRecorder {
	return &RedisRecorder{rdb: rdb}
}

// Record 实现 Recorder。LPUSH 后用 LTRIM 限制列表长度。
func (r *RedisRecorder) Record(ctx context.Context, event SearchEvent) error {
	if r == nil || r.rdb == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, KeyEvents, data)
	pipe.LTrim(ctx, KeyEvents, 0, maxEvents-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}

// Nop 丢弃所有事件，在分析未启用时使用。
type Nop struct{}

// Record 实现 Recorder。
func (Nop) Record(ctx context.Context, event SearchEvent) error { return nil }
