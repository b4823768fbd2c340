package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ebayDetail 解析 eBay 商品详情页。
func ebayDetail(doc *goquery.Document) *ProductRecord {
	rec := &ProductRecord{
		Name: firstText(doc, "h1.x-item-title__mainTitle", "#itemTitle"),
		Price: ParsePrice(firstText(doc,
			".x-price-primary .ux-textspans",
			"#prcIsum",
			"#mm-saleDscPrc")),
		Description:  firstText(doc, ".x-about-this-item", "#viTabs_0_is"),
		Seller:       firstText(doc, ".x-sellercard-atf__info__about-seller span.ux-textspans--BOLD", ".mbg-nw"),
		Availability: firstText(doc, ".d-quantity__availability", "#qtySubTxt"),
		ImageURL: firstAttr(doc, "src",
			".ux-image-carousel-item.active img",
			".ux-image-carousel-item img",
			"#icImg"),
	}

	// eBay 把条件/品牌等都放在 item specifics 里
	specs := map[string]string{}
	doc.Find(".ux-layout-section-evo__item .ux-labels-values").Each(func(_ int, pair *goquery.Selection) {
		label := strings.TrimSpace(pair.Find(".ux-labels-values__labels").Text())
		value := strings.TrimSpace(pair.Find(".ux-labels-values__values").Text())
		if label != "" && value != "" {
			specs[strings.TrimSuffix(label, ":")] = value
		}
	})
	if len(specs) > 0 {
		rec.Specs = specs
		if rec.Brand == "" {
			rec.Brand = specs["Brand"]
		}
	}

	return rec
}

// ebaySearch 解析 eBay 搜索结果页。
//
// 列表首项常常是 "Shop on eBay" 占位卡片，没有价格，会被严格
// 准入规则自然过滤掉。
func ebaySearch(doc *goquery.Document, baseURL string) []SearchResult {
	results := []SearchResult{}
	doc.Find("li.s-item").Each(func(_ int, card *goquery.Selection) {
		name := card.Find(".s-item__title").First().Text()
		priceText := card.Find(".s-item__price").First().Text()
		href, _ := card.Find("a.s-item__link").First().Attr("href")

		item := emitSearchResult(name, priceText, href, baseURL)
		if item == nil {
			return
		}

		if img, ok := card.Find(".s-item__image-img").First().Attr("src"); ok {
			item.ImageURL = img
		}
		// "4.5 out of 5 stars."
		if ratingText := card.Find(".x-star-rating .clipped").First().Text(); ratingText != "" {
			fields := strings.Fields(ratingText)
			if len(fields) > 0 {
				if rating, err := strconv.ParseFloat(fields[0], 64); err == nil {
					item.Rating = &rating
				}
			}
		}
		if countText := card.Find(".s-item__reviews-count span").First().Text(); countText != "" {
			cleaned := strings.Fields(strings.ReplaceAll(countText, ",", ""))
			if len(cleaned) > 0 {
				if count, err := strconv.Atoi(cleaned[0]); err == nil {
					item.ReviewCount = &count
				}
			}
		}

		results = append(results, *item)
	})
	return results
}
