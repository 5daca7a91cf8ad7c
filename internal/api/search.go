package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/centrender/cheapfinder-api/internal/engine"
	"github.com/centrender/cheapfinder-api/internal/model"
	"github.com/centrender/cheapfinder-api/internal/pkg/analytics"
	"github.com/centrender/cheapfinder-api/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// searchResponse 搜索端点的响应体。
type searchResponse struct {
	Items []model.Listing `json:"items"`
}

// handleSearch 处理商品比价搜索请求。
//
// GET /search?q=mug&zip=10001&limit=10&minRating=4.5&minReviews=0&maxPrice=25&sources=etsy,curated
func (s *Server) handleSearch(c *gin.Context) {
	req, err := s.parseSearchRequest(c)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("validation_error").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cacheKey := searchCacheKey(req)
	if s.cache.Enabled() {
		var cached searchResponse
		hit, err := s.cache.Get(c.Request.Context(), cacheKey, &cached)
		if err != nil {
			s.logger.Warn("cache lookup failed", slog.String("error", err.Error()))
		} else if hit {
			metrics.CacheHitTotal.Inc()
			metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	start := time.Now()
	items, results, err := s.engine.Search(c.Request.Context(), req)
	elapsed := time.Since(start)
	metrics.SearchDuration.Observe(elapsed.Seconds())

	if err != nil {
		// 引擎内部失败不向客户端暴露细节
		metrics.SearchRequestsTotal.WithLabelValues("internal_error").Inc()
		s.logger.Error("search failed",
			slog.String("query", req.Query),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if items == nil {
		items = []model.Listing{} // 保证 JSON 输出 [] 而不是 null
	}
	resp := searchResponse{Items: items}

	if s.cache.Enabled() {
		if err := s.cache.Set(c.Request.Context(), cacheKey, resp); err != nil {
			s.logger.Warn("cache store failed", slog.String("error", err.Error()))
		}
	}

	s.recordSearchEvent(req, results, len(items), elapsed)

	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, resp)
}

// parseSearchRequest 解析并校验查询参数。
func (s *Server) parseSearchRequest(c *gin.Context) (engine.Request, error) {
	var req engine.Request

	req.Query = strings.TrimSpace(c.Query("q"))
	if req.Query == "" {
		return req, fmt.Errorf("missing required parameter: q")
	}

	req.Zip = strings.TrimSpace(c.Query("zip"))
	if req.Zip == "" {
		req.Zip = s.cfg.App.DefaultZip
	}

	req.Limit = defaultLimit
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxLimit {
			return req, fmt.Errorf("invalid limit: must be an integer between 1 and %d", maxLimit)
		}
		req.Limit = limit
	}

	if v := c.Query("minRating"); v != "" {
		minRating, err := strconv.ParseFloat(v, 64)
		if err != nil || minRating < 0 {
			return req, fmt.Errorf("invalid minRating: must be a non-negative number")
		}
		req.MinRating = minRating
	}

	if v := c.Query("minReviews"); v != "" {
		minReviews, err := strconv.Atoi(v)
		if err != nil || minReviews < 0 {
			return req, fmt.Errorf("invalid minReviews: must be a non-negative integer")
		}
		req.MinReviews = minReviews
	}

	if v := c.Query("maxPrice"); v != "" {
		maxPrice, err := strconv.ParseFloat(v, 64)
		if err != nil || maxPrice < 0 {
			return req, fmt.Errorf("invalid maxPrice: must be a non-negative number")
		}
		req.MaxPrice = maxPrice
	}

	if v := strings.TrimSpace(c.Query("sources")); v != "" {
		for _, part := range strings.Split(v, ",") {
			if key := strings.TrimSpace(part); key != "" {
				req.Sources = append(req.Sources, key)
			}
		}
	}

	return req, nil
}

// recordSearchEvent 异步投递分析事件。
//
// 非阻塞：队列满就丢弃，事件记录失败也只影响它自己。
func (s *Server) recordSearchEvent(req engine.Request, results []engine.SourceResult, count int, elapsed time.Duration) {
	if !s.cfg.App.AnalyticsEnabled {
		return
	}

	contributed := make([]string, 0, len(results))
	mockServed := false
	for _, r := range results {
		if r.Outcome == engine.OutcomeOK && r.Listings > 0 {
			contributed = append(contributed, r.Source)
			if r.Source == "mock" {
				mockServed = true
			}
		}
	}

	event := analytics.SearchEvent{
		Query:       req.Query,
		Zip:         req.Zip,
		Limit:       req.Limit,
		MinRating:   req.MinRating,
		MinReviews:  req.MinReviews,
		MaxPrice:    req.MaxPrice,
		Sources:     contributed,
		ResultCount: count,
		MockServed:  mockServed,
		DurationMS:  elapsed.Milliseconds(),
		Timestamp:   time.Now().UTC(),
	}

	ok := s.jobs.Enqueue(func(ctx context.Context) error {
		recordCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return s.recorder.Record(recordCtx, event)
	})
	if !ok {
		metrics.AnalyticsDroppedTotal.Inc()
	}
}

// searchCacheKey 把请求参数规范化为缓存键。
func searchCacheKey(req engine.Request) string {
	return fmt.Sprintf("q=%s|zip=%s|limit=%d|minRating=%g|minReviews=%d|maxPrice=%g|sources=%s",
		strings.ToLower(req.Query), req.Zip, req.Limit,
		req.MinRating, req.MinReviews, req.MaxPrice,
		strings.Join(req.Sources, ","))
}
