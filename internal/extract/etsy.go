package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// etsyDetail 解析 Etsy 商品详情页。
//
// Etsy 是手作平台，卖家即品牌，两个字段取同一来源。
func etsyDetail(doc *goquery.Document) *ProductRecord {
	seller := firstText(doc,
		`div[data-appears-component-name="shop_owners"] p`,
		`a[data-shop-name]`,
		".wt-text-link-no-underline span")

	rec := &ProductRecord{
		Name: firstText(doc, `h1[data-buy-box-listing-title]`, "h1.wt-text-body-01"),
		Price: ParsePrice(firstText(doc,
			`div[data-buy-box-region="price"] p.wt-text-title-larger`,
			`p[data-selector="price-only"]`,
			`div[data-selector="listing-page-cart"] .wt-text-title-larger`)),
		Description:  firstText(doc, `div[data-id="description-text"]`, `p[data-product-details-description-text-content]`),
		Brand:        seller,
		Seller:       seller,
		Availability: firstText(doc, `p[data-selector="quantity-remaining"]`),
		ImageURL: firstAttr(doc, "src",
			`img[data-index="0"]`,
			".image-carousel-container img"),
	}

	specs := map[string]string{}
	doc.Find(`div[data-product-details-attributes] li, #product-details-content-toggle li`).Each(func(_ int, li *goquery.Selection) {
		text := strings.TrimSpace(li.Text())
		if label, value, found := strings.Cut(text, ":"); found {
			label = strings.TrimSpace(label)
			value = strings.TrimSpace(value)
			if label != "" && value != "" {
				specs[label] = value
			}
		}
	})
	if len(specs) > 0 {
		rec.Specs = specs
	}

	// 个性化选项下拉框作为变体
	doc.Find(`select[data-variation-number] option`).Each(func(_ int, opt *goquery.Selection) {
		name := strings.TrimSpace(opt.Text())
		if name == "" || strings.HasPrefix(name, "Select") {
			return
		}
		rec.Variants = append(rec.Variants, Variant{
			Name:      name,
			Available: true,
			Price:     ParsePrice(name), // 选项文本可能带加价，如 "Large (+$5.00)"
		})
	})

	return rec
}

// etsySearch 解析 Etsy 搜索结果页。
func etsySearch(doc *goquery.Document, baseURL string) []SearchResult {
	results := []SearchResult{}
	doc.Find("div.v2-listing-card, li.wt-list-unstyled div.js-merch-stash-check-listing").Each(func(_ int, card *goquery.Selection) {
		name := card.Find("h3").First().Text()
		priceText := card.Find(".currency-value").First().Text()
		if symbol := card.Find(".currency-symbol").First().Text(); symbol != "" {
			priceText = symbol + priceText
		}
		href, _ := card.Find("a.listing-link").First().Attr("href")
		if href == "" {
			href, _ = card.Find("a").First().Attr("href")
		}

		item := emitSearchResult(name, priceText, href, baseURL)
		if item == nil {
			return
		}

		if img, ok := card.Find("img").First().Attr("src"); ok {
			item.ImageURL = img
		}
		if ratingText, ok := card.Find("input[name=rating]").First().Attr("value"); ok {
			if rating, err := strconv.ParseFloat(ratingText, 64); err == nil {
				item.Rating = &rating
			}
		}

		results = append(results, *item)
	})
	return results
}
