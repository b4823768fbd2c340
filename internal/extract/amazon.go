package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// amazonDetail 解析 Amazon 商品详情页。
//
// 价格优先取 .a-price 内的屏幕阅读文本（完整金额），旧版模板
// 回退到 priceblock 系列 ID。
func amazonDetail(doc *goquery.Document) *ProductRecord {
	rec := &ProductRecord{
		Name: firstText(doc, "#productTitle"),
		Price: ParsePrice(firstText(doc,
			".a-price .a-offscreen",
			"#priceblock_ourprice",
			"#priceblock_dealprice",
			"#price_inside_buybox")),
		Description:  firstText(doc, "#feature-bullets", "#productDescription"),
		Brand:        strings.TrimPrefix(firstText(doc, "#bylineInfo"), "Brand: "),
		Seller:       firstText(doc, "#sellerProfileTriggerId", "#merchant-info a"),
		Availability: firstText(doc, "#availability span", "#availability"),
		ImageURL:     firstAttr(doc, "src", "#landingImage", "#imgBlkFront"),
	}

	// 规格表: 技术参数 + 附加信息两张表
	specs := map[string]string{}
	doc.Find("#productDetails_techSpec_section_1 tr, #productDetails_detailBullets_sections1 tr").Each(func(_ int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find("th").Text())
		value := strings.TrimSpace(row.Find("td").Text())
		if label != "" && value != "" {
			specs[label] = value
		}
	})
	if len(specs) > 0 {
		rec.Specs = specs
	}

	// 变体（颜色/型号切换按钮）
	doc.Find("#variation_color_name li, #variation_style_name li").Each(func(_ int, li *goquery.Selection) {
		name, ok := li.Attr("title")
		if !ok || name == "" {
			return
		}
		name = strings.TrimPrefix(name, "Click to select ")
		rec.Variants = append(rec.Variants, Variant{
			Name:      name,
			Available: !li.HasClass("swatchUnavailable"),
		})
	})

	return rec
}

// amazonSearch 解析 Amazon 搜索结果页。
func amazonSearch(doc *goquery.Document, baseURL string) []SearchResult {
	results := []SearchResult{}
	doc.Find(`div[data-component-type="s-search-result"]`).Each(func(_ int, card *goquery.Selection) {
		name := card.Find("h2 a span").First().Text()
		if name == "" {
			name = card.Find("h2 span").First().Text()
		}
		priceText := card.Find(".a-price .a-offscreen").First().Text()
		href, _ := card.Find("h2 a").First().Attr("href")
		if href == "" {
			href, _ = card.Find("a.a-link-normal").First().Attr("href")
		}

		item := emitSearchResult(name, priceText, href, baseURL)
		if item == nil {
			return
		}

		if img, ok := card.Find("img.s-image").First().Attr("src"); ok {
			item.ImageURL = img
		}
		// "4.5 out of 5 stars"
		if ratingText := card.Find("span.a-icon-alt").First().Text(); ratingText != "" {
			fields := strings.Fields(ratingText)
			if len(fields) > 0 {
				if rating, err := strconv.ParseFloat(fields[0], 64); err == nil {
					item.Rating = &rating
				}
			}
		}
		if countText := card.Find(`span[aria-label$="ratings"], span.s-underline-text`).First().Text(); countText != "" {
			cleaned := strings.ReplaceAll(strings.TrimSpace(countText), ",", "")
			if count, err := strconv.Atoi(cleaned); err == nil {
				item.ReviewCount = &count
			}
		}

		results = append(results, *item)
	})
	return results
}
