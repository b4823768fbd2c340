package store

import (
	"context"
	"errors"
	"testing"

	"pricescout/internal/model"
	"pricescout/internal/platform"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// 内存库同名共享，逐条清理避免用例间串连
	db.Exec("DROP TABLE IF EXISTS prices")
	db.Exec("DROP TABLE IF EXISTS products")
	db.Exec("DROP TABLE IF EXISTS users")

	s, err := New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func floatPtr(f float64) *float64 { return &f }

func TestTrackProduct_DeduplicatesByURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.TrackProduct(ctx, &model.Product{
		URL:          "https://www.amazon.com/dp/B0TEST",
		Platform:     platform.Amazon,
		Name:         "USB Cable",
		CurrentPrice: floatPtr(19.99),
		Currency:     "USD",
	}, "manual")
	if err != nil {
		t.Fatalf("track: %v", err)
	}

	// 再次追踪同一链接：不产生新行，信息取新值
	second, err := s.TrackProduct(ctx, &model.Product{
		URL:          "https://www.amazon.com/dp/B0TEST",
		Platform:     platform.Amazon,
		Name:         "USB Cable (2m)",
		CurrentPrice: floatPtr(17.49),
		Currency:     "USD",
	}, "manual")
	if err != nil {
		t.Fatalf("re-track: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same product id, got %d and %d", first.ID, second.ID)
	}
	if second.Name != "USB Cable (2m)" {
		t.Errorf("expected updated name, got %q", second.Name)
	}

	products, err := s.ListTrackedProducts(ctx, 0, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected 1 tracked product, got %d", len(products))
	}

	// 两次追踪各记一条价格历史
	history, err := s.PriceHistory(ctx, first.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
}

func TestTrackProduct_SameURLDifferentUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice, err := s.FindOrCreateUser(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := s.FindOrCreateUser(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	const sharedURL = "https://www.amazon.com/dp/B0SHARED"
	first, err := s.TrackProduct(ctx, &model.Product{
		UserID:       alice.ID,
		URL:          sharedURL,
		Platform:     platform.Amazon,
		Name:         "Monitor",
		CurrentPrice: floatPtr(249.99),
		Currency:     "USD",
	}, "manual")
	if err != nil {
		t.Fatalf("track for alice: %v", err)
	}

	// 另一个用户追踪同一链接：各自成行，互不影响
	second, err := s.TrackProduct(ctx, &model.Product{
		UserID:       bob.ID,
		URL:          sharedURL,
		Platform:     platform.Amazon,
		Name:         "Monitor (bob)",
		CurrentPrice: floatPtr(239.99),
		Currency:     "USD",
	}, "manual")
	if err != nil {
		t.Fatalf("track for bob: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected separate rows per user, both got id %d", first.ID)
	}
	if second.UserID != bob.ID {
		t.Errorf("expected bob's row owned by user %d, got %d", bob.ID, second.UserID)
	}

	var reloaded model.Product
	if err := s.DB().First(&reloaded, first.ID).Error; err != nil {
		t.Fatalf("reload alice's row: %v", err)
	}
	if reloaded.UserID != alice.ID {
		t.Errorf("alice's row re-owned by user %d", reloaded.UserID)
	}
	if reloaded.Name != "Monitor" {
		t.Errorf("alice's row mutated, name %q", reloaded.Name)
	}

	for _, tc := range []struct {
		userID uint
		wantID uint
	}{
		{alice.ID, first.ID},
		{bob.ID, second.ID},
	} {
		products, err := s.ListTrackedProducts(ctx, tc.userID, false)
		if err != nil {
			t.Fatalf("list for user %d: %v", tc.userID, err)
		}
		if len(products) != 1 || products[0].ID != tc.wantID {
			t.Errorf("user %d: expected exactly product %d, got %+v", tc.userID, tc.wantID, products)
		}
	}

	// 同一用户重复追踪仍然去重
	again, err := s.TrackProduct(ctx, &model.Product{
		UserID:   bob.ID,
		URL:      sharedURL,
		Platform: platform.Amazon,
	}, "manual")
	if err != nil {
		t.Fatalf("re-track for bob: %v", err)
	}
	if again.ID != second.ID {
		t.Errorf("expected bob's existing row %d, got %d", second.ID, again.ID)
	}
}

func TestUpdateProductPrice_AppendOnlyHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.TrackProduct(ctx, &model.Product{
		URL:      "https://www.ebay.com/itm/42",
		Platform: platform.EBay,
		Name:     "Camera",
		Currency: "EUR",
	}, "manual")
	if err != nil {
		t.Fatalf("track: %v", err)
	}

	// 按顺序写入三次价格，历史应保持插入顺序
	for _, amount := range []float64{100, 90, 95} {
		a := amount
		if err := s.UpdateProductPrice(ctx, p.ID, &a, "scraping"); err != nil {
			t.Fatalf("update price: %v", err)
		}
	}

	history, err := s.PriceHistory(ctx, p.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	expected := []float64{100, 90, 95}
	if len(history) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(history))
	}
	for i, h := range history {
		if h.Amount != expected[i] {
			t.Errorf("entry %d: expected %.2f, got %.2f", i, expected[i], h.Amount)
		}
		if h.Source != "scraping" {
			t.Errorf("entry %d: expected source scraping, got %q", i, h.Source)
		}
		// 币种取自商品行，不能落成空串
		if h.Currency != "EUR" {
			t.Errorf("entry %d: expected currency EUR, got %q", i, h.Currency)
		}
	}

	// 价格缺失的刷新只更新时间，不写历史
	if err := s.UpdateProductPrice(ctx, p.ID, nil, "scraping"); err != nil {
		t.Fatalf("update without price: %v", err)
	}
	history, _ = s.PriceHistory(ctx, p.ID)
	if len(history) != 3 {
		t.Errorf("expected history unchanged at 3 entries, got %d", len(history))
	}

	var updated model.Product
	if err := s.DB().First(&updated, p.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.LastCheckedAt == nil {
		t.Error("expected last_checked_at set after refresh without price")
	}
	if updated.CurrentPrice == nil || *updated.CurrentPrice != 95 {
		t.Errorf("expected cached price 95, got %v", updated.CurrentPrice)
	}
}

func TestUntrackProduct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.TrackProduct(ctx, &model.Product{
		URL:          "https://www.walmart.com/ip/7",
		Platform:     platform.Walmart,
		Name:         "TV Stand",
		CurrentPrice: floatPtr(59.00),
	}, "manual")
	if err != nil {
		t.Fatalf("track: %v", err)
	}

	if err := s.UntrackProduct(ctx, p.URL); err != nil {
		t.Fatalf("untrack: %v", err)
	}

	if _, err := s.FindProductByURL(ctx, p.URL); !errors.Is(err, ErrNotTracked) {
		t.Errorf("expected ErrNotTracked, got %v", err)
	}

	// 价格历史随商品一并删除
	history, err := s.PriceHistory(ctx, p.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected history purged, got %d entries", len(history))
	}

	// 重复删除返回 ErrNotTracked
	if err := s.UntrackProduct(ctx, p.URL); !errors.Is(err, ErrNotTracked) {
		t.Errorf("expected ErrNotTracked on second untrack, got %v", err)
	}
}

func TestFindOrCreateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u1, err := s.FindOrCreateUser(ctx, "dev@example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	u2, err := s.FindOrCreateUser(ctx, "dev@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if u1.ID != u2.ID {
		t.Errorf("expected same user, got ids %d and %d", u1.ID, u2.ID)
	}
}
