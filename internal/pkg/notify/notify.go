package notify

import (
	"context"

	"pricescout/internal/model"
)

// Notifier 定义降价通知接口。
type Notifier interface {
	// SendPriceDrop 发送降价通知。
	//
	// 参数:
	//   ctx: 上下文
	//   product: 降价的商品
	//   oldPrice: 降价前价格
	//   newPrice: 降价后价格
	//   toEmail: 接收邮箱
	SendPriceDrop(ctx context.Context, product *model.Product, oldPrice, newPrice float64, toEmail string) error
}
