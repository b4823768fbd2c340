package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// homedepotDetail 解析 Home Depot 商品详情页。
//
// 价格被拆成多个节点展示，优先读整块容器文本再做数值清洗。
func homedepotDetail(doc *goquery.Document) *ProductRecord {
	rec := &ProductRecord{
		Name: firstText(doc, `h1[data-component="product-details:title"]`, "h1.product-details__title"),
		Price: ParsePrice(firstText(doc,
			`div[data-testid="price"]`,
			".price-format__large",
			`span[id="standard-price"]`)),
		Description:  firstText(doc, `div[data-component="product-overview:description"]`, ".product-description__text"),
		Brand:        firstText(doc, `span[data-component="product-details:brand"]`, ".product-details__brand"),
		Availability: firstText(doc, `div[data-testid="fulfillment-tile"]`, ".fulfillment__content"),
		ImageURL: firstAttr(doc, "src",
			`img[data-testid="mediaBrowserImage"]`,
			".mediagallery__mainimage img"),
	}

	specs := map[string]string{}
	doc.Find(`div[data-component="product-section-specifications"] .kpf__specs div, .specs__table tr`).Each(func(_ int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find(".kpf__name, th").First().Text())
		value := strings.TrimSpace(row.Find(".kpf__value, td").First().Text())
		if label != "" && value != "" {
			specs[label] = value
		}
	})
	if len(specs) > 0 {
		rec.Specs = specs
	}

	return rec
}

// homedepotSearch 解析 Home Depot 搜索结果页。
func homedepotSearch(doc *goquery.Document, baseURL string) []SearchResult {
	results := []SearchResult{}
	doc.Find(`div[data-testid="product-pod"]`).Each(func(_ int, card *goquery.Selection) {
		name := card.Find(`span[data-testid="attribute-product-label"]`).First().Text()
		if name == "" {
			name = card.Find(".product-pod__title__product").First().Text()
		}
		priceText := card.Find(`div[data-testid="price-simple"]`).First().Text()
		if priceText == "" {
			priceText = card.Find(".price-format__main-price").First().Text()
		}
		href, _ := card.Find("a").First().Attr("href")

		item := emitSearchResult(name, priceText, href, baseURL)
		if item == nil {
			return
		}

		if img, ok := card.Find(`img[data-testid="product-image"]`).First().Attr("src"); ok {
			item.ImageURL = img
		}
		// "(1,234)" 形式的评论数
		if countText := card.Find(".ratings-reviews__count").First().Text(); countText != "" {
			cleaned := strings.Trim(strings.ReplaceAll(countText, ",", ""), "() ")
			if count, err := strconv.Atoi(cleaned); err == nil {
				item.ReviewCount = &count
			}
		}

		results = append(results, *item)
	})
	return results
}
