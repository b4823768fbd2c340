package store

import (
	"context"
	"errors"
	"time"

	"pricescout/internal/model"
	"pricescout/internal/platform"

	"gorm.io/gorm"
)

// ErrNotTracked 表示请求的商品不在追踪列表中。
var ErrNotTracked = errors.New("product is not tracked")

// Store 封装商品追踪与价格历史的数据库操作。
//
// 价格历史只追加不修改：每次刷新成功都会向 prices 表插入一条记录，
// 商品本身只缓存最近一次的价格和刷新时间。
type Store struct {
	db *gorm.DB
}

// New 基于已打开的数据库连接创建 Store，并执行自动迁移。
//
// 参数:
//
//	db: GORM 数据库连接
//
// 返回值:
//
//	*Store: 初始化完成的实例
//	error: 迁移失败返回错误
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&model.User{}, &model.Product{}, &model.Price{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB 返回底层数据库连接（供 API 层做健康检查）。
func (s *Store) DB() *gorm.DB {
	return s.db
}

// TrackProduct 将商品加入追踪列表。
//
// 按用户 + URL 去重：同一用户已追踪该链接时更新现有记录（名称、价格
// 等字段取新值），不会产生重复行；不同用户追踪同一链接各自独立成行。
// 首次出现价格时同步写入一条历史记录。
//
// 参数:
//
//	ctx: 上下文
//	p: 商品信息（URL 必填）
//	source: 价格来源，写入价格历史（"structured_dataset"/"scraping"/"manual"）
//
// 返回值:
//
//	*model.Product: 落库后的商品（含 ID）
//	error: 数据库错误
func (s *Store) TrackProduct(ctx context.Context, p *model.Product, source string) (*model.Product, error) {
	var existing model.Product
	err := s.db.WithContext(ctx).Where("user_id = ? AND url = ?", p.UserID, p.URL).First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"platform": p.Platform,
		}
		if p.Name != "" {
			updates["name"] = p.Name
		}
		if p.ImageURL != "" {
			updates["image_url"] = p.ImageURL
		}
		if p.Currency != "" {
			updates["currency"] = p.Currency
		}
		if p.CurrentPrice != nil {
			now := time.Now()
			updates["current_price"] = *p.CurrentPrice
			updates["last_checked_at"] = now
		}
		if err := s.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		if p.CurrentPrice != nil {
			if err := s.AppendPrice(ctx, existing.ID, *p.CurrentPrice, p.Currency, source); err != nil {
				return nil, err
			}
		}
		if err := s.db.WithContext(ctx).First(&existing, existing.ID).Error; err != nil {
			return nil, err
		}
		return &existing, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		if p.CurrentPrice != nil {
			now := time.Now()
			p.LastCheckedAt = &now
		}
		if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
			return nil, err
		}
		if p.CurrentPrice != nil {
			if err := s.AppendPrice(ctx, p.ID, *p.CurrentPrice, p.Currency, source); err != nil {
				return nil, err
			}
		}
		return p, nil

	default:
		return nil, err
	}
}

// UntrackProduct 将商品移出追踪列表，并删除其价格历史。
//
// 返回值:
//
//	error: 商品不存在时返回 ErrNotTracked
func (s *Store) UntrackProduct(ctx context.Context, url string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product model.Product
		if err := tx.Where("url = ?", url).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotTracked
			}
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&model.Price{}).Error; err != nil {
			return err
		}
		return tx.Delete(&product).Error
	})
}

// UntrackProductByID 按商品 ID 将其移出指定用户的追踪列表。
//
// 商品不存在或不属于该用户时返回 ErrNotTracked。
func (s *Store) UntrackProductByID(ctx context.Context, userID, productID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product model.Product
		query := tx.Where("id = ?", productID)
		if userID > 0 {
			query = query.Where("user_id = ?", userID)
		}
		if err := query.First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotTracked
			}
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&model.Price{}).Error; err != nil {
			return err
		}
		return tx.Delete(&product).Error
	})
}

// FindProductByID 查找指定用户追踪的商品。
//
// userID 为 0 时不限用户。不存在时返回 ErrNotTracked。
func (s *Store) FindProductByID(ctx context.Context, userID, productID uint) (*model.Product, error) {
	var product model.Product
	query := s.db.WithContext(ctx).Where("id = ?", productID)
	if userID > 0 {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotTracked
		}
		return nil, err
	}
	return &product, nil
}

// FindProductByURL 按链接查找被追踪的商品。
func (s *Store) FindProductByURL(ctx context.Context, url string) (*model.Product, error) {
	var product model.Product
	if err := s.db.WithContext(ctx).Where("url = ?", url).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotTracked
		}
		return nil, err
	}
	return &product, nil
}

// ListTrackedProducts 返回追踪列表。
//
// withHistory 为 true 时预加载每个商品的完整价格历史，按插入顺序排列。
func (s *Store) ListTrackedProducts(ctx context.Context, userID uint, withHistory bool) ([]model.Product, error) {
	products := []model.Product{}
	query := s.db.WithContext(ctx).Order("id ASC")
	if userID > 0 {
		query = query.Where("user_id = ?", userID)
	}
	if withHistory {
		query = query.Preload("Prices", func(db *gorm.DB) *gorm.DB {
			return db.Order("prices.id ASC")
		})
	}
	if err := query.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// ListAllTracked 返回整个追踪列表（不区分用户），供定时刷新使用。
// 预加载归属用户，降价通知需要收件邮箱。
func (s *Store) ListAllTracked(ctx context.Context) ([]model.Product, error) {
	products := []model.Product{}
	if err := s.db.WithContext(ctx).Order("id ASC").Preload("User").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// AppendPrice 向商品的价格历史追加一条记录。
func (s *Store) AppendPrice(ctx context.Context, productID uint, amount float64, currency, source string) error {
	price := model.Price{
		ProductID: productID,
		Amount:    amount,
		Currency:  currency,
		Source:    source,
	}
	return s.db.WithContext(ctx).Create(&price).Error
}

// UpdateProductPrice 记录一次刷新结果。
//
// 价格存在时写入历史并更新缓存字段；价格缺失时只更新刷新时间，
// 历史保持不变。
//
// 参数:
//
//	ctx: 上下文
//	productID: 商品 ID
//	amount: 本次抓取到的价格（nil 表示缺失）
//	source: 采集方式（"structured_dataset" / "scraping"）
func (s *Store) UpdateProductPrice(ctx context.Context, productID uint, amount *float64, source string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"last_checked_at": now,
	}
	if amount != nil {
		updates["current_price"] = *amount
	}
	if err := s.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", productID).Updates(updates).Error; err != nil {
		return err
	}
	if amount == nil {
		return nil
	}

	var currency string
	if err := s.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", productID).Pluck("currency", &currency).Error; err != nil {
		return err
	}
	return s.AppendPrice(ctx, productID, *amount, currency, source)
}

// PriceHistory 返回商品的价格历史，按插入顺序排列。
func (s *Store) PriceHistory(ctx context.Context, productID uint) ([]model.Price, error) {
	prices := []model.Price{}
	if err := s.db.WithContext(ctx).Where("product_id = ?", productID).Order("id ASC").Find(&prices).Error; err != nil {
		return nil, err
	}
	return prices, nil
}

// FindOrCreateUser 按邮箱查找用户，不存在时创建。
func (s *Store) FindOrCreateUser(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = model.User{Email: email, Password: "-", Role: "admin"}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetUserNotify 开关用户的降价通知。
func (s *Store) SetUserNotify(ctx context.Context, userID uint, on bool) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Update("notify_on", on)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// InferPlatform 在商品入库前补齐平台字段。
func InferPlatform(p *model.Product) {
	if p.Platform == "" {
		p.Platform = platform.Detect(p.URL)
	}
}
