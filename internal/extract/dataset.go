package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"pricescout/internal/platform"
)

// datasetRecord 结构化数据集快照中的一条记录。
//
// 各平台数据集的字段名略有出入（final_price/price、seller_name/seller），
// 这里把常见别名都收进来，归一化时按优先级取值。
type datasetRecord struct {
	Title        string          `json:"title"`
	Name         string          `json:"name"`
	URL          string          `json:"url"`
	FinalPrice   json.RawMessage `json:"final_price"`
	Price        json.RawMessage `json:"price"`
	Currency     string          `json:"currency"`
	Description  string          `json:"description"`
	Brand        string          `json:"brand"`
	SellerName   string          `json:"seller_name"`
	Seller       string          `json:"seller"`
	Availability string          `json:"availability"`
	IsAvailable  *bool           `json:"is_available"`
	ImageURL     string          `json:"image_url"`
	Images       []string        `json:"images"`
	Specs        json.RawMessage `json:"product_specifications"`
}

// specPair 数据集规格表的一项。
type specPair struct {
	Name  string `json:"specification_name"`
	Value string `json:"specification_value"`
}

// FromDataset 将数据集快照归一化为商品详情。
//
// 快照通常是记录数组，取第一条；也兼容单条对象的形式。快照为空
// 或不含任何可用字段时返回错误。
func FromDataset(payload json.RawMessage, p platform.Platform, targetURL string) (*ProductRecord, error) {
	var records []datasetRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		var single datasetRecord
		if err := json.Unmarshal(payload, &single); err != nil {
			return nil, fmt.Errorf("parse dataset snapshot: %w", err)
		}
		records = []datasetRecord{single}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset snapshot is empty")
	}
	raw := records[0]

	rec := &ProductRecord{
		Platform:     p,
		URL:          targetURL,
		Name:         firstNonEmpty(raw.Title, raw.Name),
		Currency:     raw.Currency,
		Description:  raw.Description,
		Brand:        raw.Brand,
		Seller:       firstNonEmpty(raw.SellerName, raw.Seller),
		Availability: raw.Availability,
		ImageURL:     raw.ImageURL,
	}
	if rec.Currency == "" {
		rec.Currency = "USD"
	}
	if raw.URL != "" {
		rec.URL = raw.URL
	}
	if rec.ImageURL == "" && len(raw.Images) > 0 {
		rec.ImageURL = raw.Images[0]
	}
	if rec.Availability == "" && raw.IsAvailable != nil {
		if *raw.IsAvailable {
			rec.Availability = "In Stock"
		} else {
			rec.Availability = "Out of Stock"
		}
	}

	// 价格字段既可能是数字也可能是 "$19.99" 这样的字符串
	if price := rawToPrice(raw.FinalPrice); price != nil {
		rec.Price = price
	} else {
		rec.Price = rawToPrice(raw.Price)
	}

	// 规格表既可能是对象也可能是 name/value 对数组
	if len(raw.Specs) > 0 {
		specs := map[string]string{}
		var pairs []specPair
		if err := json.Unmarshal(raw.Specs, &pairs); err == nil {
			for _, pair := range pairs {
				if pair.Name != "" && pair.Value != "" {
					specs[pair.Name] = pair.Value
				}
			}
		} else {
			_ = json.Unmarshal(raw.Specs, &specs)
		}
		if len(specs) > 0 {
			rec.Specs = specs
		}
	}

	if rec.Name == "" && rec.Price == nil {
		return nil, fmt.Errorf("dataset record has no usable fields")
	}
	return rec, nil
}

func rawToPrice(raw json.RawMessage) *float64 {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	if s == "" || s == "null" {
		return nil
	}
	return ParsePrice(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
