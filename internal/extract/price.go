package extract

import (
	"strconv"
	"strings"
)

// ParsePrice 将价格文本转换为数值。
//
// 先剔除数字和小数点以外的所有字符（货币符号、千位分隔符、空白），
// 再按浮点数解析。解析不出来返回 nil，调用方按字段缺失处理。
//
// 参数:
//
//	txt: 原始价格字符串，如 "$1,299.99" 或 "US $24.50"
//
// 返回值:
//
//	*float64: 解析后的数值，失败时为 nil
func ParsePrice(txt string) *float64 {
	var b strings.Builder
	for _, r := range txt {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return nil
	}

	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &val
}
