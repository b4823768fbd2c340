package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus 指标定义。
//
// 命名约定: pricescout_<子系统>_<指标名>
var (
	// 工具调用指标
	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricescout_tool_calls_total",
		Help: "Total tool invocations by tool name and status.",
	}, []string{"tool", "status"})

	ToolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricescout_tool_call_duration_seconds",
		Help:    "Tool invocation latency.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"tool"})

	// 抓取服务商指标
	ProviderRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricescout_provider_requests_total",
		Help: "Total requests to the scraping provider by endpoint and status.",
	}, []string{"endpoint", "status"})

	ProviderRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricescout_provider_request_duration_seconds",
		Help:    "Scraping provider request latency by endpoint.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"endpoint"})

	DatasetPollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricescout_dataset_poll_attempts",
		Help:    "Poll attempts until a dataset snapshot reached a terminal state.",
		Buckets: prometheus.LinearBuckets(1, 3, 10),
	})

	// 抓取与解析指标
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricescout_fetch_total",
		Help: "Product fetches by platform, method and status.",
	}, []string{"platform", "method", "status"})

	SearchItemsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricescout_search_items_dropped_total",
		Help: "Search result items dropped for missing required fields.",
	})

	// 刷新调度指标
	RefreshQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricescout_refresh_queue_depth",
		Help: "Products currently waiting in the refresh queue.",
	})

	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricescout_refresh_total",
		Help: "Tracked product refreshes by status.",
	}, []string{"status"})

	PriceDropsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricescout_price_drops_detected_total",
		Help: "Price drops detected during refresh cycles.",
	})

	RefreshDedupSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricescout_refresh_dedup_skipped_total",
		Help: "Refresh jobs skipped because the URL was refreshed within the dedup window.",
	})

	// 限流指标
	RateLimitWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricescout_ratelimit_wait_duration_seconds",
		Help:    "Time spent waiting for a rate limit token.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	RateLimitTimeoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricescout_ratelimit_timeout_total",
		Help: "Rate limit waits aborted by context cancellation.",
	})
)
