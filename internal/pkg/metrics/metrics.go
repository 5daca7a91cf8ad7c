package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 所有指标在包加载时就完成注册，使用方不需要任何初始化调用。
var (
	// SearchRequestsTotal 搜索请求总数，按结果分类 (ok / validation_error / internal_error)。
	SearchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cheapfinder_search_requests_total",
		Help: "Total search requests by outcome.",
	}, []string{"outcome"})

	// SearchDuration 聚合引擎单次搜索耗时。
	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cheapfinder_search_duration_seconds",
		Help:    "Aggregation engine search latency.",
		Buckets: prometheus.DefBuckets,
	})

	// AdapterFailuresTotal 各来源适配器失败次数。
	AdapterFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cheapfinder_adapter_failures_total",
		Help: "Adapter failures by source.",
	}, []string{"source"})

	// MockFallbackTotal 回退到 Mock 数据源的次数。
	MockFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cheapfinder_mock_fallback_total",
		Help: "Searches served from the mock fallback source.",
	})

	// RateLimitRejectedTotal 被限流拒绝的请求数。
	RateLimitRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cheapfinder_ratelimit_rejected_total",
		Help: "Requests rejected by the fixed-window rate limiter.",
	})

	// CacheHitTotal 搜索结果缓存命中次数。
	CacheHitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cheapfinder_cache_hit_total",
		Help: "Search responses served from the redis cache.",
	})

	// AnalyticsDroppedTotal 因队列满而丢弃的分析事件数。
	AnalyticsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cheapfinder_analytics_dropped_total",
		Help: "Analytics events dropped because the worker queue was full.",
	})
)
