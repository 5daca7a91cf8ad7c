package model

import (
	"math"
	"time"
)

// EtaUnknown 表示上游没有给出预计送达天数。
//
// 排序时未知的 ETA 必须排在所有已知值之后（视为“最差”），
// 所以这里用一个足够大的天数哨兵值，而不是 0。
const EtaUnknown = 9999

// Listing 表示一条归一化后的商品搜索结果。
//
// 所有来源（Etsy、Shopify 聚合源、自建精选目录、Mock）都会被
// 适配器转换为这个统一结构。LandedPrice 永远由引擎重算，
// 适配器传入的值不可信。
type Listing struct {
	Source       string  `json:"source"`        // 来源渠道标签 (如 "Etsy", "Curated-Shopify")
	Title        string  `json:"title"`         // 商品标题
	Seller       string  `json:"seller"`        // 卖家名称
	Variant      string  `json:"variant"`       // 规格/变体描述
	ListingURL   string  `json:"listing_url"`   // 商品详情页链接
	Rating       float64 `json:"rating"`        // 卖家评分 (0.0 - 5.0)
	Reviews      int     `json:"reviews"`       // 评价数量
	Price        float64 `json:"price"`         // 商品价格 (美元, 两位小数)
	Shipping     float64 `json:"shipping"`      // 运费
	EstimatedTax float64 `json:"estimated_tax"` // 预估税费
	LandedPrice  float64 `json:"landed_price"`  // 到手价 = price + shipping + tax (引擎重算)
	EtaDays      int     `json:"eta_days"`      // 预计送达天数 (未知时为 EtaUnknown)
}

// Round2 将金额四舍五入到两位小数（最小货币单位为美分）。
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CuratedListing 表示精选目录中的一条商品记录。
//
// 它是 "Curated-Shopify" 来源的底层存储：由运营人工维护的
// 一组 Shopify 店铺商品，随服务启动写入演示数据。
type CuratedListing struct {
	ID        uint      `gorm:"primaryKey"` // 内部 ID
	CreatedAt time.Time // 入库时间
	UpdatedAt time.Time // 更新时间

	Title        string  `gorm:"not null"` // 商品标题（LIKE 检索字段）
	Seller       string  `gorm:"not null"` // 店铺名称
	Variant      string  // 规格描述
	ListingURL   string  // 商品链接
	Rating       float64 // 店铺评分
	Reviews      int     // 评价数量
	Price        float64 // 商品价格
	Shipping     float64 // 运费
	EstimatedTax float64 // 预估税费
	EtaDays      int     // 预计送达天数 (0 表示未知)
}

// ToListing 将目录记录转换为统一的 Listing 结构。
func (c *CuratedListing) ToListing() Listing {
	eta := c.EtaDays
	if eta <= 0 {
		eta = EtaUnknown
	}
	return Listing{
		Source:       "Curated-Shopify",
		Title:        c.Title,
		Seller:       c.Seller,
		Variant:      c.Variant,
		ListingURL:   c.ListingURL,
		Rating:       c.Rating,
		Reviews:      c.Reviews,
		Price:        c.Price,
		Shipping:     c.Shipping,
		EstimatedTax: c.EstimatedTax,
		EtaDays:      eta,
	}
}
