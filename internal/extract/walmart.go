package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// walmartDetail 解析 Walmart 商品详情页。
func walmartDetail(doc *goquery.Document) *ProductRecord {
	rec := &ProductRecord{
		Name: firstText(doc, "h1#main-title", `h1[itemprop="name"]`),
		Price: ParsePrice(firstText(doc,
			`span[itemprop="price"]`,
			`span[data-automation-id="product-price"]`,
			`div[data-testid="price-wrap"] span.f1`)),
		Description:  firstText(doc, ".dangerous-html", `div[data-testid="product-description-content"]`),
		Brand:        firstText(doc, `a[link-identifier="brandName"]`),
		Seller:       firstText(doc, `div[data-testid="seller-name"] a`, `span[data-testid="product-seller-info"]`),
		Availability: firstText(doc, `div[data-testid="fulfillment-badge"]`, `span[data-automation-id="fulfillment-shipping"]`),
		ImageURL: firstAttr(doc, "src",
			`img[data-testid="hero-image"]`,
			`div[data-testid="media-thumbnail"] img`),
	}

	specs := map[string]string{}
	doc.Find(`div[data-testid="product-specification"] tr, .nt1 tr`).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		label := strings.TrimSpace(cells.Eq(0).Text())
		value := strings.TrimSpace(cells.Eq(1).Text())
		if label != "" && value != "" {
			specs[label] = value
		}
	})
	if len(specs) > 0 {
		rec.Specs = specs
	}

	// 变体按钮（尺寸/颜色）
	doc.Find(`div[data-testid="variant-group"] button`).Each(func(_ int, btn *goquery.Selection) {
		name := strings.TrimSpace(btn.Text())
		if name == "" {
			return
		}
		_, disabled := btn.Attr("disabled")
		rec.Variants = append(rec.Variants, Variant{
			Name:      name,
			Available: !disabled,
		})
	})

	return rec
}

// walmartSearch 解析 Walmart 搜索结果页。
//
// 价格取屏幕阅读文本（"current price $19.99"），展示用的拆分
// 数字节点不可靠。
func walmartSearch(doc *goquery.Document, baseURL string) []SearchResult {
	results := []SearchResult{}
	doc.Find("div[data-item-id]").Each(func(_ int, card *goquery.Selection) {
		name := card.Find(`span[data-automation-id="product-title"]`).First().Text()
		priceText := card.Find(`div[data-automation-id="product-price"] .w_iUH7`).First().Text()
		if priceText == "" {
			priceText = card.Find(`div[data-automation-id="product-price"]`).First().Text()
		}
		href, _ := card.Find("a").First().Attr("href")

		item := emitSearchResult(name, priceText, href, baseURL)
		if item == nil {
			return
		}

		if img, ok := card.Find(`img[data-testid="productTileImage"]`).First().Attr("src"); ok {
			item.ImageURL = img
		}
		// "4.2 out of 5 Stars. 123 reviews"
		if ariaText, ok := card.Find(`span[data-testid="product-ratings"]`).First().Attr("data-value"); ok {
			if rating, err := strconv.ParseFloat(ariaText, 64); err == nil {
				item.Rating = &rating
			}
		}
		if countText := card.Find(`span[data-testid="product-reviews"]`).First().AttrOr("data-value", ""); countText != "" {
			if count, err := strconv.Atoi(strings.ReplaceAll(countText, ",", "")); err == nil {
				item.ReviewCount = &count
			}
		}

		results = append(results, *item)
	})
	return results
}
