package source

import (
	"context"
	"fmt"

	"github.com/centrender/cheapfinder-api/internal/model"

	"gorm.io/gorm"
)

// CuratedAdapter 从本地精选目录检索商品。
//
// 目录是运营维护的一组 Shopify 店铺商品，存在 MySQL 中，
// 服务启动时写入演示数据。该来源不需要上游凭证。
type CuratedAdapter struct {
	db *gorm.DB
}

// NewCuratedAdapter 创建精选目录适配器。
func NewCuratedAdapter(db *gorm.DB) *CuratedAdapter {
	return &CuratedAdapter{db: db}
}

// Name 实现 Adapter。
func (a *CuratedAdapter) Name() string { return KeyCurated }

// Fetch 实现 Adapter。按标题模糊匹配，价格升序。
func (a *CuratedAdapter) Fetch(ctx context.Context, query string, limit int) ([]model.Listing, error) {
	if a.db == nil {
		return nil, ErrAuthNotConfigured
	}

	var rows []model.CuratedListing
	q := a.db.WithContext(ctx).
		Where("title LIKE ?", "%"+query+"%").
		Order("price ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query curated catalog: %w", err)
	}

	listings := make([]model.Listing, 0, len(rows))
	for i := range rows {
		listings = append(listings, rows[i].ToListing())
	}
	return listings, nil
}

// SeedCuratedCatalog 写入精选目录的演示数据（已有同名记录时跳过）。
func SeedCuratedCatalog(ctx context.Context, db *gorm.DB) error {
	demo := []model.CuratedListing{
		{
			Title: "Handmade Ceramic Coffee Mug", Seller: "ClayWorks Studio",
			Variant: "12oz / Matte White", ListingURL: "https://clayworks.example.com/products/ceramic-mug",
			Rating: 4.8, Reviews: 412, Price: 24.50, Shipping: 4.99, EstimatedTax: 1.72, EtaDays: 5,
		},
		{
			Title: "Stoneware Espresso Mug Set", Seller: "Kiln & Co",
			Variant: "Set of 2 / Charcoal", ListingURL: "https://kilnco.example.com/products/espresso-set",
			Rating: 4.6, Reviews: 188, Price: 31.00, Shipping: 0, EstimatedTax: 2.17, EtaDays: 7,
		},
		{
			Title: "Insulated Travel Mug", Seller: "Northbound Gear",
			Variant: "16oz / Forest Green", ListingURL: "https://northbound.example.com/products/travel-mug",
			Rating: 4.4, Reviews: 951, Price: 19.95, Shipping: 5.49, EstimatedTax: 1.40, EtaDays: 3,
		},
		{
			Title: "Wool Throw Blanket", Seller: "Fjord Textiles",
			Variant: "130x180cm / Oat", ListingURL: "https://fjord.example.com/products/wool-throw",
			Rating: 4.9, Reviews: 77, Price: 89.00, Shipping: 9.99, EstimatedTax: 6.23, EtaDays: 10,
		},
		{
			Title: "Walnut Desk Organizer", Seller: "Grain & Grove",
			Variant: "Standard", ListingURL: "https://grainandgrove.example.com/products/desk-organizer",
			Rating: 4.7, Reviews: 265, Price: 42.00, Shipping: 6.50, EstimatedTax: 2.94, EtaDays: 6,
		},
	}

	for i := range demo {
		var existing model.CuratedListing
		err := db.WithContext(ctx).
			Where("title = ? AND seller = ?", demo[i].Title, demo[i].Seller).
			First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("check curated row: %w", err)
		}
		if err := db.WithContext(ctx).Create(&demo[i]).Error; err != nil {
			return fmt.Errorf("seed curated row: %w", err)
		}
	}
	return nil
}
