package extract

import "pricescout/internal/platform"

// ProductRecord 是平台无关的商品详情。
//
// 每次抓取都重新构造，缺失字段保留零值/nil，不做原地修改。
type ProductRecord struct {
	Platform     platform.Platform `json:"platform"`
	URL          string            `json:"url"`
	Name         string            `json:"name"`
	Price        *float64          `json:"price"`    // 无法解析时为 nil
	Currency     string            `json:"currency"` // ISO 货币码，默认 USD
	Description  string            `json:"description,omitempty"`
	Brand        string            `json:"brand,omitempty"`
	Seller       string            `json:"seller,omitempty"`
	Availability string            `json:"availability,omitempty"`
	ImageURL     string            `json:"image_url,omitempty"`
	Specs        map[string]string `json:"specs,omitempty"`    // 规格表: 标签 -> 值
	Variants     []Variant         `json:"variants,omitempty"` // 有序变体列表
}

// Variant 商品的一个规格变体（颜色、尺码等）。
type Variant struct {
	Name      string   `json:"name"`
	Available bool     `json:"available"`
	Price     *float64 `json:"price,omitempty"`
}

// SearchResult 是平台无关的搜索结果条目。
//
// 只有名称、价格、链接齐全的条目才会被构造出来。
type SearchResult struct {
	Platform    platform.Platform `json:"platform"`
	Name        string            `json:"name"`
	Price       float64           `json:"price"`
	Currency    string            `json:"currency"`
	URL         string            `json:"url"`
	ImageURL    string            `json:"image_url,omitempty"`
	Rating      *float64          `json:"rating,omitempty"`
	ReviewCount *int              `json:"review_count,omitempty"`
}
