package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App     AppConfig     `json:"app"`
	Sources SourcesConfig `json:"sources"`
	MySQL   MySQLConfig   `json:"mysql"`
	Redis   RedisConfig   `json:"redis"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env               string        `json:"env"`                 // 运行环境: local / prod
	LogLevel          string        `json:"log_level"`           // 日志级别: debug / info / warn / error
	HTTPAddr          string        `json:"http_addr"`           // API 服务监听地址
	MockOnly          bool          `json:"mock_only"`           // 只使用 Mock 数据源（演示/开发模式）
	DefaultZip        string        `json:"default_zip"`         // 请求未携带 zip 时的默认邮编
	AdapterTimeout    time.Duration `json:"adapter_timeout"`     // 单个来源适配器的超时（如 "8s"）
	RateLimitWindow   time.Duration `json:"rate_limit_window"`   // 限流固定窗口长度（如 "60s"）
	RateLimitCapacity int           `json:"rate_limit_capacity"` // 单窗口内每个客户端的请求上限
	CacheTTL          time.Duration `json:"cache_ttl"`           // 搜索结果缓存 TTL（0 表示禁用）
	AnalyticsEnabled  bool          `json:"analytics_enabled"`   // 是否记录搜索分析事件
	WorkerPoolSize    int           `json:"worker_pool_size"`    // 异步任务 worker 数
	QueueCapacity     int           `json:"queue_capacity"`      // 异步任务队列容量
	MockListingCount  int           `json:"mock_listing_count"`  // Mock 数据源每次生成的条数
}

// SourceCredentials 单个上游市场的 OAuth 凭证。
//
// AccessToken / RefreshToken 由 /oauth/{source}/start 引导流程获取后
// 由操作者写入配置，不会在进程运行中自动更新。
type SourceCredentials struct {
	ClientID     string `json:"client_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AggregatorConfig Shopify 聚合源配置。
type AggregatorConfig struct {
	Endpoint          string `json:"endpoint"` // 聚合服务的检索端点
	SourceCredentials        // OAuth 凭证（AccessToken 同时用作 API token）
	AuthURL           string `json:"auth_url"`  // 聚合服务的授权页
	TokenURL          string `json:"token_url"` // 聚合服务的 token 端点
}

// SourcesConfig 各来源与 OAuth 回调配置。
type SourcesConfig struct {
	RedirectBase string            `json:"redirect_base"` // OAuth 回调地址前缀 (如 "http://localhost:8080")
	Etsy         SourceCredentials `json:"etsy"`
	Aggregator   AggregatorConfig  `json:"aggregator"`
}

// MySQLConfig 精选目录数据库配置。
type MySQLConfig struct {
	DSN string `json:"dsn"` // 数据库连接字符串
}

// RedisConfig Redis 配置（分析事件与结果缓存）。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)，为空表示不使用 Redis
	Password string `json:"password"` // Redis 密码
}

// Load 从 JSON 文件加载配置。
//
// 文件不存在时使用默认值；环境变量始终可以覆盖。
//
// 参数:
//
//	configPath: 配置文件路径（为空则使用默认路径 "configs/config.json"）
//
// 返回值:
//
//	*Config: 加载完成的配置对象
//	error: 加载失败返回错误
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save 保存配置到 JSON 文件。
//
// OAuth 引导流程换到 token 后，操作者可以把 token 写回配置文件。
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:               "local",
			LogLevel:          "info",
			HTTPAddr:          ":8080",
			MockOnly:          false,
			DefaultZip:        "10001",
			AdapterTimeout:    8 * time.Second,
			RateLimitWindow:   time.Minute,
			RateLimitCapacity: 30,
			CacheTTL:          time.Minute,
			AnalyticsEnabled:  false,
			WorkerPoolSize:    4,
			QueueCapacity:     256,
			MockListingCount:  8,
		},
		Sources: SourcesConfig{
			RedirectBase: "http://localhost:8080",
			Aggregator: AggregatorConfig{
				AuthURL:  "https://aggregator.example.com/oauth/authorize",
				TokenURL: "https://aggregator.example.com/oauth/token",
			},
		},
		MySQL: MySQLConfig{
			DSN: "root:password@tcp(localhost:3306)/cheapfinder?parseTime=true&loc=Local",
		},
		Redis: RedisConfig{
			Addr:     "",
			Password: "",
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.DefaultZip == "" {
		cfg.App.DefaultZip = defaults.App.DefaultZip
	}
	if cfg.App.AdapterTimeout == 0 {
		cfg.App.AdapterTimeout = defaults.App.AdapterTimeout
	}
	// 文件里显式写 "0s" 会被解析为负哨兵值，表示禁用缓存；
	// 只有完全没写 cache_ttl 的才落回默认值
	if cfg.App.CacheTTL == 0 {
		cfg.App.CacheTTL = defaults.App.CacheTTL
	}
	if cfg.App.RateLimitWindow == 0 {
		cfg.App.RateLimitWindow = defaults.App.RateLimitWindow
	}
	if cfg.App.RateLimitCapacity == 0 {
		cfg.App.RateLimitCapacity = defaults.App.RateLimitCapacity
	}
	if cfg.App.WorkerPoolSize == 0 {
		cfg.App.WorkerPoolSize = defaults.App.WorkerPoolSize
	}
	if cfg.App.QueueCapacity == 0 {
		cfg.App.QueueCapacity = defaults.App.QueueCapacity
	}
	if cfg.App.MockListingCount == 0 {
		cfg.App.MockListingCount = defaults.App.MockListingCount
	}
	if cfg.Sources.RedirectBase == "" {
		cfg.Sources.RedirectBase = defaults.Sources.RedirectBase
	}
	if cfg.Sources.Aggregator.AuthURL == "" {
		cfg.Sources.Aggregator.AuthURL = defaults.Sources.Aggregator.AuthURL
	}
	if cfg.Sources.Aggregator.TokenURL == "" {
		cfg.Sources.Aggregator.TokenURL = defaults.Sources.Aggregator.TokenURL
	}
	if cfg.MySQL.DSN == "" {
		cfg.MySQL.DSN = defaults.MySQL.DSN
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("db_host", "DB_HOST")
	_ = viper.BindEnv("db_password", "DB_PASSWORD")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("etsy_client_id", "ETSY_CLIENT_ID")
	_ = viper.BindEnv("etsy_access_token", "ETSY_ACCESS_TOKEN")
	_ = viper.BindEnv("etsy_refresh_token", "ETSY_REFRESH_TOKEN")
	_ = viper.BindEnv("aggregator_client_id", "AGGREGATOR_CLIENT_ID")
	_ = viper.BindEnv("aggregator_access_token", "AGGREGATOR_ACCESS_TOKEN")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_MOCK_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.App.MockOnly = b
		}
	}
	if v := os.Getenv("APP_DEFAULT_ZIP"); v != "" {
		cfg.App.DefaultZip = v
	}
	if v := os.Getenv("APP_ADAPTER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.AdapterTimeout = d
		}
	}
	if v := os.Getenv("APP_RATE_LIMIT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.RateLimitWindow = d
		}
	}
	if v := os.Getenv("APP_RATE_LIMIT_CAPACITY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.RateLimitCapacity = i
		}
	}
	if v := os.Getenv("APP_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.CacheTTL = d
		}
	}
	if v := os.Getenv("APP_ANALYTICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.App.AnalyticsEnabled = b
		}
	}
	if v := os.Getenv("APP_WORKER_POOL_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.WorkerPoolSize = i
		}
	}
	if v := os.Getenv("APP_QUEUE_CAPACITY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.QueueCapacity = i
		}
	}

	if v := os.Getenv("OAUTH_REDIRECT_BASE"); v != "" {
		cfg.Sources.RedirectBase = v
	}
	if v := viper.GetString("etsy_client_id"); v != "" {
		cfg.Sources.Etsy.ClientID = v
	}
	if v := viper.GetString("etsy_access_token"); v != "" {
		cfg.Sources.Etsy.AccessToken = v
	}
	if v := viper.GetString("etsy_refresh_token"); v != "" {
		cfg.Sources.Etsy.RefreshToken = v
	}
	if v := os.Getenv("AGGREGATOR_ENDPOINT"); v != "" {
		cfg.Sources.Aggregator.Endpoint = v
	}
	if v := viper.GetString("aggregator_client_id"); v != "" {
		cfg.Sources.Aggregator.ClientID = v
	}
	if v := viper.GetString("aggregator_access_token"); v != "" {
		cfg.Sources.Aggregator.AccessToken = v
	}

	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.MySQL.DSN = v
	} else if hasAnyEnv("DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME") || viper.GetString("db_host") != "" || viper.GetString("db_password") != "" {
		parsed := parseMySQLDSN(cfg.MySQL.DSN)
		if v := viper.GetString("db_host"); v != "" {
			port := getenvDefault("DB_PORT", parsed.Addr, "3306")
			parsed.Addr = v + ":" + port
		} else if v := os.Getenv("DB_PORT"); v != "" {
			host := parsed.Addr
			if strings.Contains(host, ":") {
				host = strings.Split(host, ":")[0]
			}
			parsed.Addr = host + ":" + v
		}
		if v := os.Getenv("DB_USER"); v != "" {
			parsed.User = v
		}
		if v := viper.GetString("db_password"); v != "" {
			parsed.Passwd = v
		}
		if v := os.Getenv("DB_NAME"); v != "" {
			parsed.DBName = v
		}
		cfg.MySQL.DSN = parsed.FormatDSN()
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func getenvDefault(envKey, fallbackAddr, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fallbackAddr == "" {
		return defaultValue
	}
	if strings.Contains(fallbackAddr, ":") {
		parts := strings.Split(fallbackAddr, ":")
		if len(parts) == 2 && parts[1] != "" {
			return parts[1]
		}
	}
	return defaultValue
}

func parseMySQLDSN(dsn string) *mysql.Config {
	fallback := &mysql.Config{
		User:   "root",
		Net:    "tcp",
		Addr:   "localhost:3306",
		DBName: "cheapfinder",
		Params: map[string]string{
			"parseTime": "true",
			"loc":       "Local",
		},
	}
	if dsn == "" {
		return fallback
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fallback
	}
	return parsed
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串（如 "8s"）。
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		AdapterTimeout  string `json:"adapter_timeout"`
		RateLimitWindow string `json:"rate_limit_window"`
		CacheTTL        string `json:"cache_ttl"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.AdapterTimeout != "" {
		d, err := time.ParseDuration(aux.AdapterTimeout)
		if err != nil {
			return fmt.Errorf("invalid adapter_timeout format: %w", err)
		}
		a.AdapterTimeout = d
	}
	if aux.RateLimitWindow != "" {
		d, err := time.ParseDuration(aux.RateLimitWindow)
		if err != nil {
			return fmt.Errorf("invalid rate_limit_window format: %w", err)
		}
		a.RateLimitWindow = d
	}
	if aux.CacheTTL != "" {
		d, err := time.ParseDuration(aux.CacheTTL)
		if err != nil {
			return fmt.Errorf("invalid cache_ttl format: %w", err)
		}
		if d <= 0 {
			// 显式禁用与"未设置"要能区分开，后者会落回默认 TTL
			d = -1
		}
		a.CacheTTL = d
	}
	return nil
}

// cacheTTLString 把内部的禁用哨兵值还原为文件里的 "0s" 写法。
func cacheTTLString(d time.Duration) string {
	if d < 0 {
		return "0s"
	}
	return d.String()
}

// MarshalJSON 自定义 JSON 序列化，将 Duration 转为字符串。
func (a AppConfig) MarshalJSON() ([]byte, error) {
	type Alias AppConfig
	return json.Marshal(&struct {
		AdapterTimeout  string `json:"adapter_timeout"`
		RateLimitWindow string `json:"rate_limit_window"`
		CacheTTL        string `json:"cache_ttl"`
		*Alias
	}{
		AdapterTimeout:  a.AdapterTimeout.String(),
		RateLimitWindow: a.RateLimitWindow.String(),
		CacheTTL:        cacheTTLString(a.CacheTTL),
		Alias:           (*Alias)(&a),
	})
}
