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

const (
	etsyDefaultBaseURL = "https://openapi.etsy.com"
	etsyClientTimeout  = 10 * time.Second
)

// EtsyAdapter 通过 Etsy Open API v3 检索在售商品。
//
// 需要应用的 API key（即 OAuth client id）和用户授权后获得的
// access token。token 通过 /oauth/etsy/start 引导流程获取后写入配置。
type EtsyAdapter struct {
	apiKey      string
	accessToken string
	baseURL     string
	client      *http.Client
}

// NewEtsyAdapter 创建 Etsy 适配器。
func NewEtsyAdapter(apiKey, accessToken string) *EtsyAdapter {
	return &EtsyAdapter{
		apiKey:      strings.TrimSpace(apiKey),
		accessToken: strings.TrimSpace(accessToken),
		baseURL:     etsyDefaultBaseURL,
		client:      &http.Client{Timeout: etsyClientTimeout},
	}
}

// Name 实现 Adapter。
func (a *EtsyAdapter) Name() string { return KeyEtsy }

// etsyMoney Etsy 的金额表示：amount / divisor。
type etsyMoney struct {
	Amount  int `json:"amount"`
	Divisor int `json:"divisor"`
}

func (m etsyMoney) toFloat() float64 {
	if m.Divisor <= 0 {
		return 0
	}
	return float64(m.Amount) / float64(m.Divisor)
}

type etsyListing struct {
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Price          etsyMoney `json:"price"`
	ShopName       string    `json:"shop_name"`
	ReviewAverage  float64   `json:"review_average"`
	ReviewCount    int       `json:"review_count"`
	ShippingCost   etsyMoney `json:"shipping_cost"`
	ProcessingMax  int       `json:"processing_max"`
	WhoMade        string    `json:"who_made"`
	ListingVariant string    `json:"variation_title"`
}

type etsySearchResponse struct {
	Count   int           `json:"count"`
	Results []etsyListing `json:"results"`
}

// Fetch 实现 Adapter。
func (a *EtsyAdapter) Fetch(ctx context.Context, query string, limit int) ([]model.Listing, error) {
	if a.apiKey == "" || a.accessToken == "" {
		return nil, ErrAuthNotConfigured
	}

	values := url.Values{}
	values.Set("keywords", query)
	values.Set("state", "active")
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}

	endpoint := a.baseURL + "/v3/application/listings/active?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build etsy request: %w", err)
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("Authorization", "Bearer "+a.accessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("etsy search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("etsy search: unexpected status %d", resp.StatusCode)
	}

	var payload etsySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode etsy response: %w", err)
	}

	listings := make([]model.Listing, 0, len(payload.Results))
	for _, r := range payload.Results {
		eta := r.ProcessingMax
		if eta <= 0 {
			eta = model.EtaUnknown
		}
		price := r.Price.toFloat()
		listings = append(listings, model.Listing{
			Source:       "Etsy",
			Title:        r.Title,
			Seller:       r.ShopName,
			Variant:      r.ListingVariant,
			ListingURL:   r.URL,
			Rating:       r.ReviewAverage,
			Reviews:      r.ReviewCount,
			Price:        price,
			Shipping:     r.ShippingCost.toFloat(),
			// Etsy 不返回税费，用固定税率粗估（税费精度不是本系统的目标）
			EstimatedTax: model.Round2(price * estimatedTaxRate),
			EtaDays:      eta,
		})
	}
	return listings, nil
}

// estimatedTaxRate 没有上游税费数据时使用的粗估税率。
const estimatedTaxRate = 0.07
