package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// bestbuyDetail 解析 Best Buy 商品详情页。
func bestbuyDetail(doc *goquery.Document) *ProductRecord {
	rec := &ProductRecord{
		Name: firstText(doc, ".sku-title h1", `h1[data-testid="heading-product-title"]`),
		Price: ParsePrice(firstText(doc,
			`.priceView-customer-price span[aria-hidden="true"]`,
			`div[data-testid="customer-price"] span`,
			".priceView-hero-price span")),
		Description:  firstText(doc, ".item-description", `div[data-testid="product-description"]`, ".long-description-container"),
		Brand:        firstText(doc, ".shop-product-title a", `a[data-track="Brand Link"]`),
		Availability: firstText(doc, ".fulfillment-add-to-cart-button button", `button[data-button-state="ADD_TO_CART"]`),
		ImageURL: firstAttr(doc, "src",
			"img.primary-image",
			`img[data-testid="carousel-main-image"]`),
	}

	specs := map[string]string{}
	doc.Find(".specs-table .row, div[data-testid='specifications'] li").Each(func(_ int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find(".row-title, .specification-name").First().Text())
		value := strings.TrimSpace(row.Find(".row-value, .specification-value").First().Text())
		if label != "" && value != "" {
			specs[label] = value
		}
	})
	if len(specs) > 0 {
		rec.Specs = specs
	}

	// SKU 变体条（颜色/容量）
	doc.Find(".variation-button-wrapper button, div[data-testid='variant'] button").Each(func(_ int, btn *goquery.Selection) {
		name := strings.TrimSpace(btn.AttrOr("aria-label", btn.Text()))
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

// bestbuySearch 解析 Best Buy 搜索结果页。
func bestbuySearch(doc *goquery.Document, baseURL string) []SearchResult {
	results := []SearchResult{}
	doc.Find("li.sku-item").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("h4.sku-title a").First()
		name := link.Text()
		href, _ := link.Attr("href")
		priceText := card.Find(`.priceView-customer-price span[aria-hidden="true"]`).First().Text()
		if priceText == "" {
			priceText = card.Find(".priceView-customer-price span").First().Text()
		}

		item := emitSearchResult(name, priceText, href, baseURL)
		if item == nil {
			return
		}

		if img, ok := card.Find("img.product-image").First().Attr("src"); ok {
			item.ImageURL = img
		}
		// "Rating 4.6 out of 5 stars with 1024 reviews"
		if ratingText := card.Find(".ratings-reviews p.visually-hidden").First().Text(); ratingText != "" {
			fields := strings.Fields(ratingText)
			for i, f := range fields {
				if f == "Rating" && i+1 < len(fields) {
					if rating, err := strconv.ParseFloat(fields[i+1], 64); err == nil {
						item.Rating = &rating
					}
				}
				if f == "with" && i+1 < len(fields) {
					if count, err := strconv.Atoi(strings.ReplaceAll(fields[i+1], ",", "")); err == nil {
						item.ReviewCount = &count
					}
				}
			}
		}

		results = append(results, *item)
	})
	return results
}
