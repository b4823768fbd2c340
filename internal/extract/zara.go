package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// zaraDetail 解析 Zara 商品详情页。
//
// Zara 没有评分体系，规格信息也只有成分/护理说明，详情比其他
// 平台稀疏；尺码选择器是主要的变体来源。
func zaraDetail(doc *goquery.Document) *ProductRecord {
	rec := &ProductRecord{
		Name: firstText(doc, "h1.product-detail-info__header-name", `h1[data-qa-qualifier="product-detail-info-name"]`),
		Price: ParsePrice(firstText(doc,
			".product-detail-info .money-amount__main",
			`span[data-qa-qualifier="price-amount-current"]`)),
		Description: firstText(doc, ".expandable-text__inner-content", ".product-detail-description"),
		Brand:       "Zara",
		ImageURL: firstAttr(doc, "src",
			".media-image__image",
			`img[data-qa-qualifier="media-image"]`),
	}

	doc.Find(".size-selector-sizes li, ul[data-qa-qualifier='size-selector-sizes'] li").Each(func(_ int, li *goquery.Selection) {
		name := strings.TrimSpace(li.Find(".product-size-info__main-label").First().Text())
		if name == "" {
			name = strings.TrimSpace(li.Text())
		}
		if name == "" {
			return
		}
		disabled := li.HasClass("size-selector-sizes-size--disabled") ||
			li.AttrOr("data-qa-action", "") == "size-out-of-stock"
		rec.Variants = append(rec.Variants, Variant{
			Name:      name,
			Available: !disabled,
		})
	})

	return rec
}

// zaraSearch 解析 Zara 搜索结果页。
func zaraSearch(doc *goquery.Document, baseURL string) []SearchResult {
	results := []SearchResult{}
	doc.Find("li.product-grid-product, div.product-grid-product").Each(func(_ int, card *goquery.Selection) {
		name := card.Find(".product-grid-product-info__name").First().Text()
		if name == "" {
			name = card.Find("h2").First().Text()
		}
		priceText := card.Find(".money-amount__main").First().Text()
		href, _ := card.Find("a.product-link").First().Attr("href")
		if href == "" {
			href, _ = card.Find("a").First().Attr("href")
		}

		item := emitSearchResult(name, priceText, href, baseURL)
		if item == nil {
			return
		}

		if img, ok := card.Find("img.media-image__image").First().Attr("src"); ok {
			item.ImageURL = img
		}

		results = append(results, *item)
	})
	return results
}
