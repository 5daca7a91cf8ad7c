package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/centrender/cheapfinder-api/internal/model"
)

const aggregatorClientTimeout = 10 * time.Second

// AggregatorAdapter 对接一个聚合多家 Shopify 店铺的上游检索服务。
//
// 上游会返回自己计算的 landed_price，但引擎会丢弃并重算，
// 这里只做字段搬运，不信任派生值。
type AggregatorAdapter struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewAggregatorAdapter 创建 Shopify 聚合源适配器。
func NewAggregatorAdapter(endpoint, token string) *AggregatorAdapter {
	return &AggregatorAdapter{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		token:    strings.TrimSpace(token),
		client:   &http.Client{Timeout: aggregatorClientTimeout},
	}
}

// Name 实现 Adapter。
func (a *AggregatorAdapter) Name() string { return KeyAggregator }

type aggregatorProduct struct {
	Title       string  `json:"title"`
	Vendor      string  `json:"vendor"`
	Variant     string  `json:"variant"`
	URL         string  `json:"url"`
	Rating      float64 `json:"rating"`
	Reviews     int     `json:"reviews"`
	Price       float64 `json:"price"`
	Shipping    float64 `json:"shipping"`
	Tax         float64 `json:"estimated_tax"`
	LandedPrice float64 `json:"landed_price"` // 上游派生值，引擎会重算
	EtaDays     int     `json:"eta_days"`
}

type aggregatorResponse struct {
	Products []aggregatorProduct `json:"products"`
}

// Fetch 实现 Adapter。
func (a *AggregatorAdapter) Fetch(ctx context.Context, query string, limit int) ([]model.Listing, error) {
	if a.endpoint == "" || a.token == "" {
		return nil, ErrAuthNotConfigured
	}

	values := url.Values{}
	values.Set("q", query)
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"/search?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build aggregator request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aggregator search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aggregator search: unexpected status %d", resp.StatusCode)
	}

	var payload aggregatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode aggregator response: %w", err)
	}

	listings := make([]model.Listing, 0, len(payload.Products))
	for _, p := range payload.Products {
		eta := p.EtaDays
		if eta <= 0 {
			eta = model.EtaUnknown
		}
		listings = append(listings, model.Listing{
			Source:       "Aggregator-Shopify",
			Title:        p.Title,
			Seller:       p.Vendor,
			Variant:      p.Variant,
			ListingURL:   p.URL,
			Rating:       p.Rating,
			Reviews:      p.Reviews,
			Price:        p.Price,
			Shipping:     p.Shipping,
			EstimatedTax: p.Tax,
			LandedPrice:  p.LandedPrice,
			EtaDays:      eta,
		})
	}
	return listings, nil
}
