package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"pricescout/internal/extract"
	"pricescout/internal/model"
	"pricescout/internal/pipeline"
	"pricescout/internal/pkg/dedup"
	"pricescout/internal/pkg/queue"
	"pricescout/internal/platform"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stubSource struct {
	mu       sync.Mutex
	products []model.Product
	updates  []uint
	listErr  error
}

func (f *stubSource) ListAllTracked(_ context.Context) ([]model.Product, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.products, nil
}

func (f *stubSource) UpdateProductPrice(_ context.Context, productID uint, _ *float64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, productID)
	return nil
}

func (f *stubSource) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type stubFetcher struct {
	mu     sync.Mutex
	price  *float64
	err    error
	calls  int
	byURL  map[string]*float64
}

func (f *stubFetcher) FetchProductRecord(_ context.Context, targetURL string) (*extract.ProductRecord, string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, "", f.err
	}
	price := f.price
	if p, ok := f.byURL[targetURL]; ok {
		price = p
	}
	return &extract.ProductRecord{Name: "Stub", Price: price}, pipeline.MethodScraping, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingNotifier struct {
	mu    sync.Mutex
	sends []string
}

func (n *recordingNotifier) SendPriceDrop(_ context.Context, product *model.Product, _, _ float64, toEmail string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, toEmail)
	return nil
}

func (n *recordingNotifier) sendCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sends)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDedup(t *testing.T) *dedup.Deduplicator {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return dedup.New(rdb, time.Minute)
}

func floatPtr(f float64) *float64 { return &f }

func trackedProduct(id uint, url string, current *float64) model.Product {
	return model.Product{
		ID:           id,
		URL:          url,
		Platform:     platform.Detect(url),
		Name:         "Tracked",
		CurrentPrice: current,
		User:         model.User{ID: 1, Email: "dev@example.com", NotifyOn: true},
	}
}

func runCycle(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.queue.Start(ctx)
	s.enqueueRefreshCycle(ctx)
	s.queue.Shutdown()
}

func TestRefreshCycle_UpdatesAllProducts(t *testing.T) {
	source := &stubSource{products: []model.Product{
		trackedProduct(1, "https://www.amazon.com/dp/B01", floatPtr(20)),
		trackedProduct(2, "https://www.ebay.com/itm/2", floatPtr(30)),
	}}
	fetcher := &stubFetcher{price: floatPtr(15)}
	s := New(source, fetcher, queue.New(testLogger(), 2, 10), nil, nil, nil, testLogger(), time.Hour, time.Minute)

	runCycle(t, s)

	if got := source.updateCount(); got != 2 {
		t.Errorf("expected 2 price updates, got %d", got)
	}
	if got := fetcher.callCount(); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
}

func TestRefreshCycle_DedupSkipsRepeatedURL(t *testing.T) {
	product := trackedProduct(1, "https://www.amazon.com/dp/B01", floatPtr(20))
	source := &stubSource{products: []model.Product{product, product}}
	fetcher := &stubFetcher{price: floatPtr(20)}
	s := New(source, fetcher, queue.New(testLogger(), 1, 10), newTestDedup(t), nil, nil, testLogger(), time.Hour, time.Minute)

	runCycle(t, s)

	if got := fetcher.callCount(); got != 1 {
		t.Errorf("expected dedup to leave 1 fetch, got %d", got)
	}
	if got := source.updateCount(); got != 1 {
		t.Errorf("expected 1 update, got %d", got)
	}
}

func TestRefreshCycle_FetchFailureDoesNotBlockOthers(t *testing.T) {
	source := &stubSource{products: []model.Product{
		trackedProduct(1, "https://www.amazon.com/dp/BAD", floatPtr(20)),
		trackedProduct(2, "https://www.ebay.com/itm/2", floatPtr(30)),
	}}
	fetcher := &stubFetcher{
		price: floatPtr(25),
		byURL: map[string]*float64{},
	}
	// 第一个商品抓取失败
	s := New(source, &failFirstFetcher{inner: fetcher}, queue.New(testLogger(), 1, 10), nil, nil, nil, testLogger(), time.Hour, time.Minute)

	runCycle(t, s)

	if got := source.updateCount(); got != 1 {
		t.Errorf("expected 1 successful update, got %d", got)
	}
}

type failFirstFetcher struct {
	mu    sync.Mutex
	inner *stubFetcher
	first bool
}

func (f *failFirstFetcher) FetchProductRecord(ctx context.Context, targetURL string) (*extract.ProductRecord, string, error) {
	f.mu.Lock()
	firstCall := !f.first
	f.first = true
	f.mu.Unlock()
	if firstCall {
		return nil, "", errors.New("blocked by upstream")
	}
	return f.inner.FetchProductRecord(ctx, targetURL)
}

func TestDetectPriceDrop_NotifiesOnDrop(t *testing.T) {
	notifier := &recordingNotifier{}
	source := &stubSource{products: []model.Product{
		trackedProduct(1, "https://www.amazon.com/dp/B01", floatPtr(20)),
	}}
	fetcher := &stubFetcher{price: floatPtr(15)}
	s := New(source, fetcher, queue.New(testLogger(), 1, 10), nil, nil, notifier, testLogger(), time.Hour, time.Minute)

	runCycle(t, s)

	if got := notifier.sendCount(); got != 1 {
		t.Errorf("expected 1 notification, got %d", got)
	}
}

func TestDetectPriceDrop_NoNotificationWhenPriceRises(t *testing.T) {
	notifier := &recordingNotifier{}
	source := &stubSource{products: []model.Product{
		trackedProduct(1, "https://www.amazon.com/dp/B01", floatPtr(20)),
	}}
	fetcher := &stubFetcher{price: floatPtr(25)}
	s := New(source, fetcher, queue.New(testLogger(), 1, 10), nil, nil, notifier, testLogger(), time.Hour, time.Minute)

	runCycle(t, s)

	if got := notifier.sendCount(); got != 0 {
		t.Errorf("expected no notification on price rise, got %d", got)
	}
}

func TestDetectPriceDrop_RespectsUserOptOut(t *testing.T) {
	notifier := &recordingNotifier{}
	product := trackedProduct(1, "https://www.amazon.com/dp/B01", floatPtr(20))
	product.User.NotifyOn = false
	source := &stubSource{products: []model.Product{product}}
	fetcher := &stubFetcher{price: floatPtr(10)}
	s := New(source, fetcher, queue.New(testLogger(), 1, 10), nil, nil, notifier, testLogger(), time.Hour, time.Minute)

	runCycle(t, s)

	if got := notifier.sendCount(); got != 0 {
		t.Errorf("expected no notification for opted-out user, got %d", got)
	}
}

func TestDetectPriceDrop_MissingPriceIsIgnored(t *testing.T) {
	notifier := &recordingNotifier{}
	source := &stubSource{products: []model.Product{
		trackedProduct(1, "https://www.amazon.com/dp/B01", floatPtr(20)),
	}}
	fetcher := &stubFetcher{price: nil}
	s := New(source, fetcher, queue.New(testLogger(), 1, 10), nil, nil, notifier, testLogger(), time.Hour, time.Minute)

	runCycle(t, s)

	// 价格缺失：仍然落库（只更新时间），但不触发降价
	if got := source.updateCount(); got != 1 {
		t.Errorf("expected 1 update, got %d", got)
	}
	if got := notifier.sendCount(); got != 0 {
		t.Errorf("expected no notification, got %d", got)
	}
}
