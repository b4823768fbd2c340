package model

import (
	"time"

	"pricescout/internal/platform"
)

// Product 表示一个被追踪的商品。
//
// URL 在同一用户下唯一，用于去重：同一用户重复追踪同一链接时只更新
// 现有记录，不同用户可以各自追踪同一链接。Platform 在创建时由链接推断
// 并固定下来。
type Product struct {
	ID        uint      `gorm:"primaryKey"` // 内部 ID
	CreatedAt time.Time // 开始追踪时间
	UpdatedAt time.Time // 更新时间

	UserID uint `gorm:"uniqueIndex:idx_user_url"` // 所属用户 ID（0 表示未绑定用户）
	User   User `gorm:"foreignKey:UserID"`        // 所属用户

	URL      string            `gorm:"type:varchar(768);uniqueIndex:idx_user_url;not null"` // 商品详情页链接（用户内唯一）
	Platform platform.Platform `gorm:"type:varchar(16);not null"`              // 所属平台
	Name     string            // 商品名称
	Currency string            `gorm:"type:varchar(8);default:USD"` // 价格币种
	ImageURL string            // 主图链接

	CurrentPrice  *float64   // 最近一次抓取到的价格（可能缺失）
	LastCheckedAt *time.Time // 上次刷新时间

	Prices []Price `gorm:"foreignKey:ProductID"` // 价格历史（按插入顺序）
}

// Price 表示商品价格历史中的一条记录。
//
// 价格历史只追加不修改，ID 递增即插入顺序。
type Price struct {
	ID        uint      `gorm:"primaryKey"` // 记录 ID
	CreatedAt time.Time // 采集时间

	ProductID uint    `gorm:"index;not null"` // 所属商品 ID
	Amount    float64 `gorm:"not null"`       // 价格
	Currency  string  `gorm:"type:varchar(8)"` // 币种
	Source    string  `gorm:"type:varchar(32)"` // 来源: "structured_dataset" / "scraping"
}
