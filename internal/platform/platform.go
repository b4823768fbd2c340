package platform

import (
	"net/url"
	"strings"
)

// Platform 表示支持的电商平台。
//
// 闭合枚举：新增平台时需要同时扩展 Detect 的域名表、
// 数据集映射表以及 extract 包中的解析分支。
type Platform string

const (
	Amazon    Platform = "amazon"
	BestBuy   Platform = "bestbuy"
	EBay      Platform = "ebay"
	Etsy      Platform = "etsy"
	HomeDepot Platform = "homedepot"
	Walmart   Platform = "walmart"
	Zara      Platform = "zara"
	Unknown   Platform = "unknown"
)

// All 返回全部可抓取平台（不含 unknown），按固定顺序。
func All() []Platform {
	return []Platform{Amazon, BestBuy, EBay, Etsy, HomeDepot, Walmart, Zara}
}

// domainRule 域名片段 → 平台的检测规则。
type domainRule struct {
	fragment string
	platform Platform
}

// 检测顺序即优先级：URL 同时包含多个片段时首个命中者胜出。
var domainRules = []domainRule{
	{"amazon.", Amazon},
	{"ebay.", EBay},
	{"walmart.", Walmart},
	{"etsy.", Etsy},
	{"bestbuy.", BestBuy},
	{"homedepot.", HomeDepot},
	{"zara.", Zara},
}

// Detect 根据 URL 识别电商平台。
//
// 纯函数：只做子串包含测试，永不失败；无法识别时返回 Unknown。
func Detect(rawURL string) Platform {
	lower := strings.ToLower(rawURL)
	for _, rule := range domainRules {
		if strings.Contains(lower, rule.fragment) {
			return rule.platform
		}
	}
	return Unknown
}

// Parse 将平台字符串解析为枚举值，无法识别时返回 Unknown 与 false。
func Parse(s string) (Platform, bool) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case Amazon:
		return Amazon, true
	case BestBuy:
		return BestBuy, true
	case EBay:
		return EBay, true
	case Etsy:
		return Etsy, true
	case HomeDepot:
		return HomeDepot, true
	case Walmart:
		return Walmart, true
	case Zara:
		return Zara, true
	default:
		return Unknown, false
	}
}

// 平台 → 结构化数据集 ID 映射。
//
// 配置了数据集的平台走服务商的结构化采集任务（trigger → poll → snapshot），
// 其余平台（含 Unknown）回退到原始 HTML 抓取 + 本地解析。
var datasetIDs = map[Platform]string{
	Amazon:  "gd_l7q7dkf244hwjntr0",
	Walmart: "gd_l95fol7l1ru6rlo116",
	EBay:    "gd_ltr9mjt81n0zzdk1fb",
}

// DatasetID 返回平台对应的数据集 ID。
//
// 第二个返回值为 false 表示该平台没有配置数据集，调用方应走原始抓取路径。
func DatasetID(p Platform) (string, bool) {
	id, ok := datasetIDs[p]
	return id, ok
}

// SearchURL 构建平台的关键词搜索页 URL。
//
// Unknown 平台返回空字符串。
func SearchURL(p Platform, query string) string {
	q := url.QueryEscape(strings.TrimSpace(query))
	switch p {
	case Amazon:
		return "https://www.amazon.com/s?k=" + q
	case BestBuy:
		return "https://www.bestbuy.com/site/searchpage.jsp?st=" + q
	case EBay:
		return "https://www.ebay.com/sch/i.html?_nkw=" + q
	case Etsy:
		return "https://www.etsy.com/search?q=" + q
	case HomeDepot:
		return "https://www.homedepot.com/s/" + q
	case Walmart:
		return "https://www.walmart.com/search?q=" + q
	case Zara:
		return "https://www.zara.com/us/en/search?searchTerm=" + q
	case Unknown:
		return ""
	}
	return ""
}

// BaseURL 返回平台站点根地址，用于补全相对链接。
func BaseURL(p Platform) string {
	switch p {
	case Amazon:
		return "https://www.amazon.com"
	case BestBuy:
		return "https://www.bestbuy.com"
	case EBay:
		return "https://www.ebay.com"
	case Etsy:
		return "https://www.etsy.com"
	case HomeDepot:
		return "https://www.homedepot.com"
	case Walmart:
		return "https://www.walmart.com"
	case Zara:
		return "https://www.zara.com"
	case Unknown:
		return ""
	}
	return ""
}
