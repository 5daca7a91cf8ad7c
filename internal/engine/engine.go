package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/centrender/cheapfinder-api/internal/model"
	"github.com/centrender/cheapfinder-api/internal/pkg/metrics"
	"github.com/centrender/cheapfinder-api/internal/source"
)

const defaultAdapterTimeout = 8 * time.Second

// Request 聚合引擎的搜索入参。字段边界由端点层校验，
// 引擎只假定 Query 非空、Limit 为正。
type Request struct {
	Query      string
	Zip        string
	Limit      int
	MinRating  float64  // <= 0 表示不过滤
	MinReviews int      // <= 0 表示不过滤
	MaxPrice   float64  // <= 0 表示不设上限
	Sources    []string // 来源白名单，空表示全部已注册来源
}

// Outcome 单个来源适配器本次调用的结果分类。
type Outcome string

const (
	OutcomeOK                Outcome = "ok"
	OutcomeAuthNotConfigured Outcome = "auth_not_configured"
	OutcomeFailed            Outcome = "failed"
)

// SourceResult 记录一次搜索中各来源的表现，用于日志与分析事件。
type SourceResult struct {
	Source   string
	Outcome  Outcome
	Listings int
	Err      error
}

// Engine 负责扇出到各来源适配器、归一化、过滤、排序与截断。
//
// 适配器失败只会让该来源贡献 0 条结果，绝不中断整次搜索。
// 所有真实来源合计为 0 条时回退到 Mock 数据源。
type Engine struct {
	adapters map[string]source.Adapter
	order    []string
	fallback source.Adapter
	timeout  time.Duration
	logger   *slog.Logger
}

// New 创建引擎。
//
// 参数:
//
//	adapters: 启用的真实来源适配器（按传入顺序决定合并顺序）
//	fallback: 兜底数据源（通常是 MockAdapter，不能为 nil）
//	timeout: 单个适配器调用的超时上限
//	logger: 日志记录器
func New(adapters []source.Adapter, fallback source.Adapter, timeout time.Duration, logger *slog.Logger) *Engine {
	if timeout <= 0 {
		timeout = defaultAdapterTimeout
	}
	byName := make(map[string]source.Adapter, len(adapters))
	order := make([]string, 0, len(adapters))
	for _, a := range adapters {
		if a == nil {
			continue
		}
		byName[a.Name()] = a
		order = append(order, a.Name())
	}
	return &Engine{
		adapters: byName,
		order:    order,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger,
	}
}

// Search 执行一次聚合搜索。
//
// 返回的列表已按到手价升序（平价时评分、评价数、送达天数依次决胜）
// 排好序并截断到 req.Limit。引擎是唯一做截断的地方。
func (e *Engine) Search(ctx context.Context, req Request) ([]model.Listing, []SourceResult, error) {
	enabled := e.enabledSources(req.Sources)

	merged, results := e.fanOut(ctx, enabled, req)

	// 真实来源颗粒无收时回退到确定性的 Mock 数据，
	// 保证端点在该场景下永远返回非空且可复现的结果。
	if len(merged) == 0 && e.fallback != nil {
		listings, err := e.fallback.Fetch(ctx, req.Query, req.Limit)
		if err == nil {
			merged = listings
			metrics.MockFallbackTotal.Inc()
			results = append(results, SourceResult{
				Source:   e.fallback.Name(),
				Outcome:  OutcomeOK,
				Listings: len(listings),
			})
		} else if e.logger != nil {
			e.logger.Warn("fallback source failed", slog.String("error", err.Error()))
		}
	}

	normalize(merged)
	filtered := applyFilters(merged, req.MinRating, req.MinReviews, req.MaxPrice)
	rank(filtered)

	if req.Limit > 0 && len(filtered) > req.Limit {
		filtered = filtered[:req.Limit]
	}
	return filtered, results, nil
}

// enabledSources 把请求的白名单解析为已注册来源键的有序子集。
// 无法识别的键静默忽略；空白名单等于全部来源。
func (e *Engine) enabledSources(allow []string) []string {
	if len(allow) == 0 {
		return e.order
	}
	allowed := make(map[string]bool, len(allow))
	for _, s := range allow {
		allowed[s] = true
	}
	enabled := make([]string, 0, len(e.order))
	for _, name := range e.order {
		if allowed[name] {
			enabled = append(enabled, name)
		}
	}
	return enabled
}

// fanOut 并发调用所有启用的适配器并等待全部结束。
//
// 结果按 enabled 的顺序合并，保证同一组输入的合并顺序稳定。
// 任何一个慢适配器都不会阻塞其他适配器，只受自身超时约束。
func (e *Engine) fanOut(ctx context.Context, enabled []string, req Request) ([]model.Listing, []SourceResult) {
	perSource := make([][]model.Listing, len(enabled))
	results := make([]SourceResult, len(enabled))

	var wg sync.WaitGroup
	for i, name := range enabled {
		adapter := e.adapters[name]
		wg.Add(1)
		go func(i int, name string, adapter source.Adapter) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			listings, err := adapter.Fetch(callCtx, req.Query, req.Limit)
			switch {
			case err == nil:
				perSource[i] = listings
				results[i] = SourceResult{Source: name, Outcome: OutcomeOK, Listings: len(listings)}
			case errors.Is(err, source.ErrAuthNotConfigured):
				results[i] = SourceResult{Source: name, Outcome: OutcomeAuthNotConfigured, Err: err}
				if e.logger != nil {
					e.logger.Debug("source skipped, auth not configured", slog.String("source", name))
				}
			default:
				results[i] = SourceResult{Source: name, Outcome: OutcomeFailed, Err: err}
				metrics.AdapterFailuresTotal.WithLabelValues(name).Inc()
				if e.logger != nil {
					e.logger.Warn("source adapter failed",
						slog.String("source", name),
						slog.String("error", err.Error()))
				}
			}
		}(i, name, adapter)
	}
	wg.Wait()

	var merged []model.Listing
	for _, listings := range perSource {
		merged = append(merged, listings...)
	}
	return merged, results
}

// normalize 统一派生字段：重算到手价、修正非法 ETA。
//
// landed_price 永远是引擎自己算的，适配器传入的值一律丢弃。
func normalize(listings []model.Listing) {
	for i := range listings {
		l := &listings[i]
		l.LandedPrice = model.Round2(l.Price + l.Shipping + l.EstimatedTax)
		if l.EtaDays <= 0 {
			l.EtaDays = model.EtaUnknown
		}
	}
}
