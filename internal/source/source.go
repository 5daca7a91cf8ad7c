package source

import (
	"context"
	"errors"

	"github.com/centrender/cheapfinder-api/internal/model"
)

// 已知的来源键。请求中的 sources 参数使用这些键做白名单过滤。
const (
	KeyEtsy       = "etsy"
	KeyAggregator = "aggregator"
	KeyCurated    = "curated"
)

// ErrAuthNotConfigured 该来源缺少凭证或连接配置，本次搜索跳过它。
//
// 引擎用它区分“没配置”与“配置了但失败”两种结果。
var ErrAuthNotConfigured = errors.New("source auth not configured")

// Adapter 是每个市场集成需要实现的契约。
//
// Fetch 返回归一化后的 Listing 列表。失败（超时、上游错误、响应
// 格式错误）通过 error 表达即可，引擎不关心具体错误形状，只要求
// 失败与成功可区分。
type Adapter interface {
	// Name 返回来源键（KeyEtsy 等）。
	Name() string

	// Fetch 按关键词抓取至多 limit 条结果。
	Fetch(ctx context.Context, query string, limit int) ([]model.Listing, error)
}

// Known 返回全部已知来源键，顺序固定。
func Known() []string {
	return []string{KeyEtsy, KeyAggregator, KeyCurated}
}
