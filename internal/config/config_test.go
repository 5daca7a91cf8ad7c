package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.App.HTTPAddr)
	}
	if cfg.App.RateLimitWindow != time.Minute || cfg.App.RateLimitCapacity != 30 {
		t.Errorf("rate limit defaults = %v / %d", cfg.App.RateLimitWindow, cfg.App.RateLimitCapacity)
	}
	if cfg.App.AdapterTimeout != 8*time.Second {
		t.Errorf("AdapterTimeout = %v", cfg.App.AdapterTimeout)
	}
	if cfg.App.DefaultZip != "10001" {
		t.Errorf("DefaultZip = %q", cfg.App.DefaultZip)
	}
	if cfg.App.MockListingCount != 8 {
		t.Errorf("MockListingCount = %d", cfg.App.MockListingCount)
	}
}

func TestLoad_FileWithDurationStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  "app": {
    "env": "prod",
    "adapter_timeout": "3s",
    "rate_limit_window": "30s",
    "rate_limit_capacity": 10,
    "cache_ttl": "5m"
  }
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Env != "prod" {
		t.Errorf("Env = %q", cfg.App.Env)
	}
	if cfg.App.AdapterTimeout != 3*time.Second {
		t.Errorf("AdapterTimeout = %v", cfg.App.AdapterTimeout)
	}
	if cfg.App.RateLimitWindow != 30*time.Second || cfg.App.RateLimitCapacity != 10 {
		t.Errorf("rate limit = %v / %d", cfg.App.RateLimitWindow, cfg.App.RateLimitCapacity)
	}
	if cfg.App.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v", cfg.App.CacheTTL)
	}
	// 文件未覆盖的字段保持默认
	if cfg.App.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.App.HTTPAddr)
	}
}

func TestLoad_CacheTTLDefaultsWhenOmitted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"app": {"env": "prod"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// 没写 cache_ttl 的文件和没有文件一样：都用默认 TTL
	if cfg.App.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %v, want 1m", cfg.App.CacheTTL)
	}
}

func TestLoad_CacheTTLExplicitZeroDisables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"app": {"cache_ttl": "0s"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.CacheTTL > 0 {
		t.Errorf("CacheTTL = %v, explicit 0s must disable the cache", cfg.App.CacheTTL)
	}
}

func TestLoad_InvalidDurationRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"app": {"adapter_timeout": "not-a-duration"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_MOCK_ONLY", "true")
	t.Setenv("APP_RATE_LIMIT_CAPACITY", "5")
	t.Setenv("APP_RATE_LIMIT_WINDOW", "10s")
	t.Setenv("ETSY_CLIENT_ID", "env-client")
	t.Setenv("ETSY_ACCESS_TOKEN", "env-token")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("OAUTH_REDIRECT_BASE", "https://api.example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.App.MockOnly {
		t.Error("MockOnly not overridden")
	}
	if cfg.App.RateLimitCapacity != 5 || cfg.App.RateLimitWindow != 10*time.Second {
		t.Errorf("rate limit = %v / %d", cfg.App.RateLimitWindow, cfg.App.RateLimitCapacity)
	}
	if cfg.Sources.Etsy.ClientID != "env-client" || cfg.Sources.Etsy.AccessToken != "env-token" {
		t.Errorf("etsy credentials = %+v", cfg.Sources.Etsy)
	}
	if cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Sources.RedirectBase != "https://api.example.com" {
		t.Errorf("RedirectBase = %q", cfg.Sources.RedirectBase)
	}
}

func TestLoad_DBEnvRebuildsDSN(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dsn := cfg.MySQL.DSN
	for _, want := range []string{"db.internal:3306", "s3cret", "cheapfinder"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := getDefaultConfig()
	cfg.App.AdapterTimeout = 7 * time.Second
	cfg.Sources.Etsy.AccessToken = "tok-1"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.App.AdapterTimeout != 7*time.Second {
		t.Errorf("AdapterTimeout = %v", loaded.App.AdapterTimeout)
	}
	if loaded.Sources.Etsy.AccessToken != "tok-1" {
		t.Errorf("AccessToken = %q", loaded.Sources.Etsy.AccessToken)
	}
}
