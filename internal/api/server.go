package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/centrender/cheapfinder-api/internal/api/middleware"
	"github.com/centrender/cheapfinder-api/internal/config"
	"github.com/centrender/cheapfinder-api/internal/engine"
	"github.com/centrender/cheapfinder-api/internal/model"
	"github.com/centrender/cheapfinder-api/internal/oauth"
	"github.com/centrender/cheapfinder-api/internal/pkg/analytics"
	"github.com/centrender/cheapfinder-api/internal/pkg/cache"
	"github.com/centrender/cheapfinder-api/internal/pkg/queue"
	"github.com/centrender/cheapfinder-api/internal/pkg/ratelimit"
	"github.com/centrender/cheapfinder-api/internal/source"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Searcher 聚合引擎的调用契约，便于在测试中替换。
type Searcher interface {
	Search(ctx context.Context, req engine.Request) ([]model.Listing, []engine.SourceResult, error)
}

// OAuthFlow OAuth 引导流程的调用契约。
type OAuthFlow interface {
	StartAuthorization(source string) (string, error)
	CompleteAuthorization(ctx context.Context, source, code, state string) (*oauth.Token, error)
}

// Server 封装 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接（精选目录）、Redis 客户端（缓存与分析事件）、
// 聚合引擎、OAuth 引导流程以及 Gin 路由引擎。
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *gorm.DB
	rdb      *redis.Client
	router   *gin.Engine
	engine   Searcher
	flow     OAuthFlow
	limiter  *ratelimit.Limiter
	cache    *cache.Cache
	recorder analytics.Recorder
	jobs     *queue.Queue
	states   *oauth.StateStore
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接精选目录数据库并执行自动迁移（Mock-only 模式下跳过）
// 2. 连接 Redis（未配置时缓存与分析自动降级为 no-op）
// 3. 按配置组装来源适配器与聚合引擎
// 4. 初始化 OAuth 引导流程与 Gin 路由引擎
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	var db *gorm.DB
	if !cfg.App.MockOnly && cfg.MySQL.DSN != "" {
		var err error
		db, err = gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("open curated catalog db: %w", err)
		}
		if err := db.AutoMigrate(&model.CuratedListing{}); err != nil {
			return nil, fmt.Errorf("migrate curated catalog: %w", err)
		}
		if err := source.SeedCuratedCatalog(ctx, db); err != nil {
			return nil, fmt.Errorf("seed curated catalog: %w", err)
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	var recorder analytics.Recorder = analytics.Nop{}
	if cfg.App.AnalyticsEnabled && rdb != nil {
		recorder = analytics.NewRedisRecorder(rdb)
	}

	states := oauth.NewStateStore(oauth.DefaultStateTTL)
	states.StartSweeper(ctx, time.Minute)

	eng := engine.New(
		buildAdapters(cfg, db),
		source.NewMockAdapter(cfg.App.MockListingCount),
		cfg.App.AdapterTimeout,
		logger,
	)

	jobs := queue.NewQueue(logger, cfg.App.WorkerPoolSize, cfg.App.QueueCapacity)
	jobs.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		rdb:      rdb,
		router:   r,
		engine:   eng,
		flow:     oauth.NewAuthorizer(buildProviders(cfg), states, logger),
		limiter:  ratelimit.NewLimiter(cfg.App.RateLimitWindow, cfg.App.RateLimitCapacity),
		cache:    cache.New(rdb, cfg.App.CacheTTL),
		recorder: recorder,
		jobs:     jobs,
		states:   states,
	}
	s.registerRoutes()
	return s, nil
}

// buildAdapters 按配置组装启用的真实来源适配器。
//
// Mock-only 模式不注册任何真实来源，引擎会直接走兜底数据。
func buildAdapters(cfg *config.Config, db *gorm.DB) []source.Adapter {
	if cfg.App.MockOnly {
		return nil
	}
	adapters := []source.Adapter{
		source.NewEtsyAdapter(cfg.Sources.Etsy.ClientID, cfg.Sources.Etsy.AccessToken),
		source.NewAggregatorAdapter(cfg.Sources.Aggregator.Endpoint, cfg.Sources.Aggregator.AccessToken),
	}
	if db != nil {
		adapters = append(adapters, source.NewCuratedAdapter(db))
	}
	return adapters
}

// buildProviders 组装各来源的 OAuth 端点配置。
func buildProviders(cfg *config.Config) map[string]oauth.Provider {
	base := cfg.Sources.RedirectBase
	return map[string]oauth.Provider{
		source.KeyEtsy: {
			Name:        source.KeyEtsy,
			AuthURL:     "https://www.etsy.com/oauth/connect",
			TokenURL:    "https://api.etsy.com/v3/public/oauth/token",
			Scope:       "listings_r transactions_r",
			ClientID:    cfg.Sources.Etsy.ClientID,
			RedirectURI: base + "/oauth/etsy/callback",
		},
		source.KeyAggregator: {
			Name:        source.KeyAggregator,
			AuthURL:     cfg.Sources.Aggregator.AuthURL,
			TokenURL:    cfg.Sources.Aggregator.TokenURL,
			Scope:       "read_products",
			ClientID:    cfg.Sources.Aggregator.ClientID,
			RedirectURI: base + "/oauth/aggregator/callback",
		},
	}
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭数据库与缓存连接，并等待异步任务清空。
func (s *Server) Close() error {
	s.jobs.Shutdown(5 * time.Second)

	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else if closeErr := sqlDB.Close(); closeErr != nil {
			if firstErr == nil {
				firstErr = closeErr
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/health", s.handleHealth)

	// 限流只保护搜索端点；OAuth 引导是低频的运维操作
	s.router.GET("/search", middleware.RateLimit(s.limiter), s.handleSearch)

	s.router.GET("/oauth/:source/start", s.handleOAuthStart)
	s.router.GET("/oauth/:source/callback", s.handleOAuthCallback)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":   true,
		"env":  s.cfg.App.Env,
		"mock": s.cfg.App.MockOnly,
	})
}
