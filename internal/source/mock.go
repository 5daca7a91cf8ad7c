package source

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"

	"github.com/centrender/cheapfinder-api/internal/model"
)

// MockAdapter 生成确定性的假数据。
//
// 同一个查询词永远产出同一组商品：用查询词的 FNV 哈希做随机种子。
// 它是引擎在所有真实来源都不可用时的兜底，保证搜索端点永远能
// 返回非空且可复现的结果。
type MockAdapter struct {
	count int
}

// NewMockAdapter 创建 Mock 数据源。count <= 0 时默认生成 8 条。
func NewMockAdapter(count int) *MockAdapter {
	if count <= 0 {
		count = 8
	}
	return &MockAdapter{count: count}
}

// Name 实现 Adapter。
func (a *MockAdapter) Name() string { return "mock" }

var (
	mockAdjectives = []string{"Handmade", "Vintage", "Minimalist", "Artisan", "Classic", "Modern", "Rustic", "Premium"}
	mockSellers    = []string{"Maple & Main", "Willow Works", "Copper Fox Goods", "Bluebird Supply", "Oak Haven", "Tidewater Trade"}
	mockVariants   = []string{"Standard", "Small / Natural", "Large / Black", "Set of 2", "Limited Edition"}
	mockSources    = []string{"Etsy", "Aggregator-Shopify", "Curated-Shopify"}
)

// Fetch 实现 Adapter。永不失败。
func (a *MockAdapter) Fetch(ctx context.Context, query string, limit int) ([]model.Listing, error) {
	n := a.count
	if limit > 0 && limit < n {
		n = limit
	}

	q := strings.TrimSpace(query)
	rng := rand.New(rand.NewSource(int64(seedFor(q))))

	listings := make([]model.Listing, 0, n)
	for i := 0; i < n; i++ {
		price := model.Round2(8 + rng.Float64()*72)
		shipping := model.Round2(rng.Float64() * 9)
		if rng.Intn(4) == 0 {
			shipping = 0 // 部分商品包邮
		}
		tax := model.Round2(price * 0.07)

		eta := 2 + rng.Intn(12)
		if rng.Intn(6) == 0 {
			eta = model.EtaUnknown
		}

		listings = append(listings, model.Listing{
			Source:       mockSources[rng.Intn(len(mockSources))],
			Title:        fmt.Sprintf("%s %s", mockAdjectives[rng.Intn(len(mockAdjectives))], titleCase(q)),
			Seller:       mockSellers[rng.Intn(len(mockSellers))],
			Variant:      mockVariants[rng.Intn(len(mockVariants))],
			ListingURL:   fmt.Sprintf("https://shop.example.com/%s/item-%d", strings.ReplaceAll(strings.ToLower(q), " ", "-"), i+1),
			Rating:       model.Round2(3.5 + rng.Float64()*1.5),
			Reviews:      rng.Intn(1200),
			Price:        price,
			Shipping:     shipping,
			EstimatedTax: tax,
			EtaDays:      eta,
		})
	}
	return listings, nil
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func seedFor(query string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(query)))
	return h.Sum64()
}
