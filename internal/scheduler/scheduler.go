package scheduler

import (
	"context"
	"log/slog"
	"time"

	"pricescout/internal/extract"
	"pricescout/internal/model"
	"pricescout/internal/pkg/dedup"
	"pricescout/internal/pkg/metrics"
	"pricescout/internal/pkg/notify"
	"pricescout/internal/pkg/queue"
	"pricescout/internal/pkg/ratelimit"
)

// 优雅关闭时等待在途刷新完成的上限。
const shutdownGrace = 30 * time.Second

// ProductSource 调度器需要的存储能力（由 store.Store 实现）。
type ProductSource interface {
	ListAllTracked(ctx context.Context) ([]model.Product, error)
	UpdateProductPrice(ctx context.Context, productID uint, amount *float64, source string) error
}

// Fetcher 刷新单个商品时使用的抓取能力（由 pipeline.Pipeline 实现）。
type Fetcher interface {
	FetchProductRecord(ctx context.Context, targetURL string) (*extract.ProductRecord, string, error)
}

// Scheduler 周期性刷新全部追踪商品的价格。
//
// 每个刷新周期把追踪列表整体入队，worker 池并发消费；同一 URL
// 在去重窗口内只刷新一次，服务商请求整体受令牌桶限流。
type Scheduler struct {
	store          ProductSource
	fetcher        Fetcher
	queue          *queue.Queue
	dedup          *dedup.Deduplicator
	limiter        *ratelimit.RateLimiter
	notifier       notify.Notifier
	logger         *slog.Logger
	interval       time.Duration
	refreshTimeout time.Duration
}

// New 创建调度器。
//
// 参数:
//
//	store: 追踪列表存储
//	fetcher: 商品抓取管线
//	q: 刷新任务队列
//	d: URL 去重器（可为 nil，表示不去重）
//	limiter: 服务商限流器（可为 nil，表示不限流）
//	notifier: 降价通知器（可为 nil，表示不通知）
//	logger: 日志记录器
//	interval: 刷新周期
//	refreshTimeout: 单个商品刷新超时
func New(store ProductSource, fetcher Fetcher, q *queue.Queue, d *dedup.Deduplicator, limiter *ratelimit.RateLimiter, notifier notify.Notifier, logger *slog.Logger, interval, refreshTimeout time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if refreshTimeout <= 0 {
		refreshTimeout = 2 * time.Minute
	}
	return &Scheduler{
		store:          store,
		fetcher:        fetcher,
		queue:          q,
		dedup:          d,
		limiter:        limiter,
		notifier:       notifier,
		logger:         logger,
		interval:       interval,
		refreshTimeout: refreshTimeout,
	}
}

// Run 启动调度循环，直到 ctx 被取消。
//
// 启动后先立即跑一轮，之后按 interval 周期执行。
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		slog.String("interval", s.interval.String()),
		slog.String("refresh_timeout", s.refreshTimeout.String()))

	s.queue.Start(ctx)
	s.enqueueRefreshCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(1 * time.Minute)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			if err := s.queue.ShutdownWithTimeout(shutdownGrace); err != nil {
				s.logger.Error("queue shutdown timeout", slog.String("error", err.Error()))
			}
			s.logger.Info("scheduler stopped")
			return

		case <-ticker.C:
			s.enqueueRefreshCycle(ctx)

		case <-statsTicker.C:
			stats := s.queue.Stats()
			s.logger.Info("refresh queue stats",
				slog.Int("pending", s.queue.Len()),
				slog.Int64("processed", stats.TotalProcessed),
				slog.Int64("succeeded", stats.TotalSucceeded),
				slog.Int64("failed", stats.TotalFailed),
				slog.Int64("dropped", stats.TotalDropped))
		}
	}
}

// enqueueRefreshCycle 把当前追踪列表整体入队。
func (s *Scheduler) enqueueRefreshCycle(ctx context.Context) {
	products, err := s.store.ListAllTracked(ctx)
	if err != nil {
		s.logger.Error("load tracked products failed", slog.String("error", err.Error()))
		return
	}
	if len(products) == 0 {
		s.logger.Debug("no tracked products, skip cycle")
		return
	}

	enqueued := 0
	for i := range products {
		product := products[i]
		ok := s.queue.Enqueue(func(jobCtx context.Context) error {
			return s.refreshOne(jobCtx, &product)
		})
		if ok {
			enqueued++
		}
	}

	s.logger.Info("refresh cycle enqueued",
		slog.Int("tracked", len(products)),
		slog.Int("enqueued", enqueued))
}

// RefreshAll 立即对追踪列表跑一轮刷新（阻塞入队）。
// HTTP API 的手动触发入口使用。
func (s *Scheduler) RefreshAll(ctx context.Context) (int, error) {
	products, err := s.store.ListAllTracked(ctx)
	if err != nil {
		return 0, err
	}
	for i := range products {
		product := products[i]
		if err := s.queue.EnqueueBlocking(ctx, func(jobCtx context.Context) error {
			return s.refreshOne(jobCtx, &product)
		}); err != nil {
			return i, err
		}
	}
	return len(products), nil
}

// refreshOne 刷新单个商品：去重 → 限流 → 抓取 → 落库 → 降价检测。
func (s *Scheduler) refreshOne(ctx context.Context, product *model.Product) error {
	ctx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer cancel()

	seen, err := s.dedup.Seen(ctx, product.URL)
	if err != nil {
		s.logger.Warn("dedup probe failed, refreshing anyway",
			slog.String("url", product.URL),
			slog.String("error", err.Error()))
	} else if seen {
		metrics.RefreshDedupSkipped.Inc()
		metrics.RefreshTotal.WithLabelValues("skipped").Inc()
		s.logger.Debug("refresh skipped, url seen in dedup window",
			slog.String("url", product.URL))
		return nil
	}

	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			metrics.RefreshTotal.WithLabelValues("failed").Inc()
			return err
		}
	}

	record, method, err := s.fetcher.FetchProductRecord(ctx, product.URL)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("refresh fetch failed",
			slog.Uint64("product_id", uint64(product.ID)),
			slog.String("platform", string(product.Platform)),
			slog.String("error", err.Error()))
		return err
	}

	if err := s.store.UpdateProductPrice(ctx, product.ID, record.Price, method); err != nil {
		metrics.RefreshTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.RefreshTotal.WithLabelValues("success").Inc()

	s.detectPriceDrop(ctx, product, record.Price)
	return nil
}

// detectPriceDrop 比较新旧价格，降价时发送通知。
//
// 通知失败只记日志，不影响刷新结果。
func (s *Scheduler) detectPriceDrop(ctx context.Context, product *model.Product, newPrice *float64) {
	if newPrice == nil || product.CurrentPrice == nil {
		return
	}
	oldPrice := *product.CurrentPrice
	if *newPrice >= oldPrice {
		return
	}

	metrics.PriceDropsDetected.Inc()
	s.logger.Info("price drop detected",
		slog.Uint64("product_id", uint64(product.ID)),
		slog.String("platform", string(product.Platform)),
		slog.Float64("old_price", oldPrice),
		slog.Float64("new_price", *newPrice))

	if s.notifier == nil || !product.User.NotifyOn || product.User.Email == "" {
		return
	}
	if err := s.notifier.SendPriceDrop(ctx, product, oldPrice, *newPrice, product.User.Email); err != nil {
		s.logger.Error("price drop notification failed",
			slog.Uint64("product_id", uint64(product.ID)),
			slog.String("error", err.Error()))
	}
}
