package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"pricescout/internal/pkg/metrics"
	"pricescout/internal/platform"

	"github.com/PuerkitoBio/goquery"
)

// ErrUnsupportedPlatform 表示该平台没有详情提取规则。
var ErrUnsupportedPlatform = errors.New("unsupported platform for detail extraction")

// Detail 从已加载的 HTML 中提取商品详情。
//
// 各平台的结构锚点不同，但输出形状统一。字段缺失不报错：
// 解析不出价格时记录返回 Price=nil，由调用方决定如何处理。
//
// 参数:
//
//	html: 页面 HTML
//	p: 平台标签
//	baseURL: 用于补全相对链接的基准地址
//
// 返回值:
//
//	*ProductRecord: 归一化的商品详情
//	error: HTML 解析失败，或平台没有提取规则（ErrUnsupportedPlatform）
func Detail(html string, p platform.Platform, baseURL string) (*ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var rec *ProductRecord
	switch p {
	case platform.Amazon:
		rec = amazonDetail(doc)
	case platform.BestBuy:
		rec = bestbuyDetail(doc)
	case platform.EBay:
		rec = ebayDetail(doc)
	case platform.Etsy:
		rec = etsyDetail(doc)
	case platform.HomeDepot:
		rec = homedepotDetail(doc)
	case platform.Walmart:
		rec = walmartDetail(doc)
	case platform.Zara:
		rec = zaraDetail(doc)
	case platform.Unknown:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}

	rec.Platform = p
	rec.URL = baseURL
	if rec.Currency == "" {
		rec.Currency = "USD"
	}
	rec.ImageURL = resolveURL(baseURL, rec.ImageURL)
	return rec, nil
}

// Search 从搜索结果页 HTML 中提取条目列表。
//
// 与详情提取不同，这里是严格模式：名称、可解析价格、可补全链接
// 三者缺一的条目直接丢弃，不会以空字段形式混入结果。没有提取
// 规则的平台返回空列表而不是报错，避免中断跨平台批量搜索。
func Search(html string, p platform.Platform, baseURL string) ([]SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var items []SearchResult
	switch p {
	case platform.Amazon:
		items = amazonSearch(doc, baseURL)
	case platform.BestBuy:
		items = bestbuySearch(doc, baseURL)
	case platform.EBay:
		items = ebaySearch(doc, baseURL)
	case platform.Etsy:
		items = etsySearch(doc, baseURL)
	case platform.HomeDepot:
		items = homedepotSearch(doc, baseURL)
	case platform.Walmart:
		items = walmartSearch(doc, baseURL)
	case platform.Zara:
		items = zaraSearch(doc, baseURL)
	default:
		return []SearchResult{}, nil
	}

	for i := range items {
		items[i].Platform = p
		if items[i].Currency == "" {
			items[i].Currency = "USD"
		}
	}
	return items, nil
}

// emitSearchResult 应用严格的搜索条目准入规则。
//
// 名称、价格、链接任一缺失则返回 nil，条目被静默丢弃。
func emitSearchResult(name string, priceText, href, baseURL string) *SearchResult {
	name = strings.TrimSpace(name)
	if name == "" {
		metrics.SearchItemsDropped.Inc()
		return nil
	}
	price := ParsePrice(priceText)
	if price == nil {
		metrics.SearchItemsDropped.Inc()
		return nil
	}
	resolved := resolveURL(baseURL, href)
	if resolved == "" {
		metrics.SearchItemsDropped.Inc()
		return nil
	}
	return &SearchResult{
		Name:  name,
		Price: *price,
		URL:   resolved,
	}
}

// resolveURL 将相对链接补全为绝对链接。补不全时返回空串。
func resolveURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// firstText 返回一组候选选择器中第一个非空文本。
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if txt := strings.TrimSpace(doc.Find(sel).First().Text()); txt != "" {
			return txt
		}
	}
	return ""
}

// firstAttr 返回一组候选选择器中第一个非空属性值。
func firstAttr(doc *goquery.Document, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if val, ok := doc.Find(sel).First().Attr(attr); ok && strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
