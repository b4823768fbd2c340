package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"pricescout/internal/extract"
	"pricescout/internal/pkg/metrics"
	"pricescout/internal/platform"
)

// 采集方式标签，随 Envelope 返回给调用方。
const (
	MethodDataset  = "structured_dataset"
	MethodScraping = "scraping"
)

// Envelope 是详情抓取的统一返回包装。
//
// Method 区分数据来源：structured_dataset 来自服务商托管的结构化
// 数据集，scraping 来自原始 HTML 的尽力解析，后者字段可能缺失。
type Envelope struct {
	Data     *extract.ProductRecord `json:"data"`
	Method   string                 `json:"method"`
	Platform platform.Platform      `json:"platform"`
	URL      string                 `json:"url"`
}

// PlatformResult 是批量搜索中单个平台的结果。
//
// Error 非空表示该平台抓取或解析失败，其余平台不受影响。
type PlatformResult struct {
	Platform platform.Platform      `json:"platform"`
	Results  []extract.SearchResult `json:"results,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Fetcher 原始页面抓取接口（由 provider.Client 实现）。
type Fetcher interface {
	Request(ctx context.Context, targetURL string) (string, error)
}

// Collector 数据集采集接口（由 provider.Poller 实现）。
type Collector interface {
	Collect(ctx context.Context, datasetID, targetURL string) (json.RawMessage, error)
}

// Pipeline 编排一次商品抓取的完整流程：
// 识别平台 -> 选择采集策略 -> 抓取 -> 归一化。
type Pipeline struct {
	fetcher    Fetcher
	collector  Collector
	logger     *slog.Logger
	maxResults int
}

// New 创建抓取管线。
//
// 参数:
//
//	fetcher: 原始页面抓取客户端
//	collector: 数据集轮询器
//	logger: 日志记录器
//	maxResults: 单平台搜索结果上限（<=0 使用 10）
func New(fetcher Fetcher, collector Collector, logger *slog.Logger, maxResults int) *Pipeline {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Pipeline{
		fetcher:    fetcher,
		collector:  collector,
		logger:     logger,
		maxResults: maxResults,
	}
}

// FetchProductDetail 抓取单个商品的详情。
//
// 平台配置了数据集时走 trigger/poll/snapshot 协议并归一化快照，
// 否则抓原始 HTML 走平台提取规则。两条路径的失败都直接向调用方
// 传播，单目标调用没有部分成功语义。
//
// 参数:
//
//	ctx: 上下文
//	targetURL: 商品详情页链接
//
// 返回值:
//
//	*Envelope: 统一包装的商品详情
//	error: 平台不支持或抓取失败
func (p *Pipeline) FetchProductDetail(ctx context.Context, targetURL string) (*Envelope, error) {
	plat := platform.Detect(targetURL)
	start := time.Now()

	method := MethodScraping
	if _, ok := platform.DatasetID(plat); ok {
		method = MethodDataset
	}

	rec, err := p.fetchRecord(ctx, plat, targetURL, method)
	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.FetchTotal.WithLabelValues(string(plat), method, status).Inc()

	if err != nil {
		p.logger.Warn("product detail fetch failed",
			slog.String("platform", string(plat)),
			slog.String("method", method),
			slog.String("url", targetURL),
			slog.String("error", err.Error()))
		return nil, err
	}

	p.logger.Info("product detail fetched",
		slog.String("platform", string(plat)),
		slog.String("method", method),
		slog.Duration("duration", time.Since(start)))

	return &Envelope{
		Data:     rec,
		Method:   method,
		Platform: plat,
		URL:      targetURL,
	}, nil
}

// FetchProductRecord 返回归一化详情而不是 Envelope，供刷新调度使用。
func (p *Pipeline) FetchProductRecord(ctx context.Context, targetURL string) (*extract.ProductRecord, string, error) {
	env, err := p.FetchProductDetail(ctx, targetURL)
	if err != nil {
		return nil, "", err
	}
	return env.Data, env.Method, nil
}

func (p *Pipeline) fetchRecord(ctx context.Context, plat platform.Platform, targetURL, method string) (*extract.ProductRecord, error) {
	if method == MethodDataset {
		datasetID, _ := platform.DatasetID(plat)
		payload, err := p.collector.Collect(ctx, datasetID, targetURL)
		if err != nil {
			return nil, err
		}
		return extract.FromDataset(payload, plat, targetURL)
	}

	html, err := p.fetcher.Request(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	return extract.Detail(html, plat, targetURL)
}

// Search 在多个平台上执行同一查询。
//
// 平台按给定顺序逐个处理，单个平台的失败转成该平台的错误条目，
// 不中断其余平台。整个调用本身永不失败。
//
// 参数:
//
//	ctx: 上下文
//	query: 搜索关键词
//	platforms: 目标平台列表（空列表则搜索全部已知平台）
//	maxResults: 单平台结果上限（<=0 使用默认值）
//
// 返回值:
//
//	[]PlatformResult: 每个平台一条结果或错误
func (p *Pipeline) Search(ctx context.Context, query string, platforms []platform.Platform, maxResults int) []PlatformResult {
	if len(platforms) == 0 {
		platforms = platform.All()
	}
	if maxResults <= 0 || maxResults > p.maxResults {
		maxResults = p.maxResults
	}

	out := make([]PlatformResult, 0, len(platforms))
	for _, plat := range platforms {
		entry := PlatformResult{Platform: plat}

		results, err := p.searchOne(ctx, plat, query, maxResults)
		if err != nil {
			entry.Error = err.Error()
			p.logger.Warn("platform search failed",
				slog.String("platform", string(plat)),
				slog.String("query", query),
				slog.String("error", err.Error()))
		} else {
			entry.Results = results
		}
		out = append(out, entry)
	}
	return out
}

func (p *Pipeline) searchOne(ctx context.Context, plat platform.Platform, query string, maxResults int) ([]extract.SearchResult, error) {
	searchURL := platform.SearchURL(plat, query)
	if searchURL == "" {
		return nil, fmt.Errorf("no search support for platform %q", plat)
	}

	start := time.Now()
	html, err := p.fetcher.Request(ctx, searchURL)
	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.FetchTotal.WithLabelValues(string(plat), "search", status).Inc()
	if err != nil {
		return nil, fmt.Errorf("fetch search page: %w", err)
	}

	results, err := extract.Search(html, plat, platform.BaseURL(plat))
	if err != nil {
		return nil, err
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	p.logger.Debug("platform search completed",
		slog.String("platform", string(plat)),
		slog.Int("count", len(results)),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}

// ComparePrices 对一组商品链接逐个抓取详情，用于跨平台比价。
//
// 与搜索一致采用部分失败语义：失败的链接转成错误条目。
func (p *Pipeline) ComparePrices(ctx context.Context, urls []string) []CompareResult {
	out := make([]CompareResult, 0, len(urls))
	for _, u := range urls {
		entry := CompareResult{URL: u, Platform: platform.Detect(u)}
		env, err := p.FetchProductDetail(ctx, u)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Detail = env.Data
			entry.Method = env.Method
		}
		out = append(out, entry)
	}
	return out
}

// CompareResult 是比价调用中单个链接的结果。
type CompareResult struct {
	URL      string                 `json:"url"`
	Platform platform.Platform      `json:"platform"`
	Method   string                 `json:"method,omitempty"`
	Detail   *extract.ProductRecord `json:"detail,omitempty"`
	Error    string                 `json:"error,omitempty"`
}
