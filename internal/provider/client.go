package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pricescout/internal/config"
	"pricescout/internal/pkg/metrics"
)

const (
	defaultUserAgent = "pricescout/1.0 (+https://github.com/pricescout/pricescout)"

	// 超时常量
	zoneSetupTimeout = 30 * time.Second // Zone 创建/查询超时
	snapshotTimeout  = 60 * time.Second // 快照下载超时
)

// Client 封装抓取服务商（Bright Data）的 HTTP API。
//
// 两条采集路径共用同一个客户端：
//   - /request: 通过 Web Unlocker zone 抓取原始 HTML
//   - /datasets/v3/*: 触发结构化数据集任务并轮询取回快照
//
// 所有请求携带 Bearer 凭证与固定 User-Agent。
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	zone       string
	logger     *slog.Logger
}

// NewClient 创建服务商 API 客户端。
//
// 参数:
//
//	cfg: 服务商配置（凭证、根地址、zone 名称、请求超时）
//	logger: 日志记录器
//
// 返回值:
//
//	*Client: 初始化完成的客户端
func NewClient(cfg *config.ProviderConfig, logger *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.APIToken,
		zone:       cfg.Zone,
		logger:     logger,
	}
}

// Zone 返回当前使用的解锁 Zone 名称。
func (c *Client) Zone() string {
	return c.zone
}

// zoneInfo 服务商返回的 Zone 描述。
type zoneInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// requestPayload /request 接口的请求体。
type requestPayload struct {
	URL    string `json:"url"`
	Zone   string `json:"zone"`
	Format string `json:"format"`
}

// triggerResponse 数据集触发接口的响应。
type triggerResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// progressResponse 数据集进度接口的响应。
type progressResponse struct {
	Status string `json:"status"`
}

// Request 通过 Web Unlocker 抓取目标页面的原始 HTML。
//
// 服务商在其出口侧完成页面渲染与反爬绕过，返回最终 HTML 文本。
//
// 参数:
//
//	ctx: 上下文
//	targetURL: 目标页面链接
//
// 返回值:
//
//	string: 页面 HTML
//	error: 请求失败返回错误
func (c *Client) Request(ctx context.Context, targetURL string) (string, error) {
	start := time.Now()
	payload := requestPayload{
		URL:    targetURL,
		Zone:   c.zone,
		Format: "raw",
	}

	body, err := c.post(ctx, "/request", payload)
	recordProviderMetrics("request", start, err)
	if err != nil {
		return "", fmt.Errorf("unlocker request: %w", err)
	}
	return string(body), nil
}

// TriggerDataset 触发一次结构化数据集采集任务。
//
// 参数:
//
//	ctx: 上下文
//	datasetID: 平台对应的数据集 ID
//	targetURL: 目标商品链接
//
// 返回值:
//
//	string: 快照 ID，用于后续轮询
//	error: 触发失败或响应缺少快照 ID 时返回错误（含 ErrTriggerFailed）
func (c *Client) TriggerDataset(ctx context.Context, datasetID, targetURL string) (string, error) {
	start := time.Now()
	endpoint := "/datasets/v3/trigger?" + url.Values{
		"dataset_id":     {datasetID},
		"include_errors": {"true"},
	}.Encode()

	body, err := c.post(ctx, endpoint, []map[string]string{{"url": targetURL}})
	recordProviderMetrics("trigger", start, err)
	if err != nil {
		return "", fmt.Errorf("trigger dataset: %w", err)
	}

	var resp triggerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse trigger response: %w", err)
	}
	if resp.SnapshotID == "" {
		return "", ErrTriggerFailed
	}
	return resp.SnapshotID, nil
}

// Progress 查询数据集任务的当前状态。
//
// 返回值:
//
//	string: 状态字符串（"running" / "ready" / "failed" 等）
func (c *Client) Progress(ctx context.Context, snapshotID string) (string, error) {
	start := time.Now()
	body, err := c.get(ctx, "/datasets/v3/progress/"+snapshotID)
	recordProviderMetrics("progress", start, err)
	if err != nil {
		return "", fmt.Errorf("dataset progress: %w", err)
	}

	var resp progressResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse progress response: %w", err)
	}
	return resp.Status, nil
}

// Snapshot 下载就绪快照的结构化数据。
//
// 返回值:
//
//	json.RawMessage: 快照原始 JSON（通常是记录数组）
func (c *Client) Snapshot(ctx context.Context, snapshotID string) (json.RawMessage, error) {
	start := time.Now()
	snapCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	body, err := c.get(snapCtx, "/datasets/v3/snapshot/"+snapshotID+"?format=json")
	recordProviderMetrics("snapshot", start, err)
	if err != nil {
		return nil, fmt.Errorf("dataset snapshot: %w", err)
	}
	return json.RawMessage(body), nil
}

// GetActiveZones 列出账户下处于激活状态的 Zone。
func (c *Client) GetActiveZones(ctx context.Context) ([]zoneInfo, error) {
	start := time.Now()
	zoneCtx, cancel := context.WithTimeout(ctx, zoneSetupTimeout)
	defer cancel()

	body, err := c.get(zoneCtx, "/zone/get_active_zones")
	recordProviderMetrics("zones", start, err)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}

	zones := []zoneInfo{}
	if err := json.Unmarshal(body, &zones); err != nil {
		return nil, fmt.Errorf("parse zones response: %w", err)
	}
	return zones, nil
}

// CheckZone 校验配置的解锁 Zone 已存在，只读不创建。
//
// 供不负责 Zone 生命周期的进程在启动时探测；Zone 缺失返回
// ErrZoneNotFound。
func (c *Client) CheckZone(ctx context.Context) error {
	zones, err := c.GetActiveZones(ctx)
	if err != nil {
		return err
	}
	for _, z := range zones {
		if z.Name == c.zone {
			return nil
		}
	}
	return fmt.Errorf("zone %q: %w", c.zone, ErrZoneNotFound)
}

// EnsureZone 确保配置的解锁 Zone 存在，不存在时自动创建。
//
// 启动阶段调用一次。创建失败不致命：已有同名 Zone 的账户会在
// 列表中命中，直接返回。
func (c *Client) EnsureZone(ctx context.Context) error {
	zones, err := c.GetActiveZones(ctx)
	if err != nil {
		return err
	}
	for _, z := range zones {
		if z.Name == c.zone {
			c.logger.Debug("unlocker zone exists", slog.String("zone", c.zone))
			return nil
		}
	}

	c.logger.Info("creating unlocker zone", slog.String("zone", c.zone))

	start := time.Now()
	createCtx, cancel := context.WithTimeout(ctx, zoneSetupTimeout)
	defer cancel()

	payload := map[string]interface{}{
		"zone": map[string]string{
			"name": c.zone,
			"type": "unblocker",
		},
		"plan": map[string]string{
			"type": "unblocker",
		},
	}
	_, err = c.post(createCtx, "/zone", payload)
	recordProviderMetrics("zone_create", start, err)
	if err != nil {
		return fmt.Errorf("create zone %q: %w", c.zone, err)
	}

	c.logger.Info("unlocker zone created", slog.String("zone", c.zone))
	return nil
}

// post 发送 JSON POST 请求并返回响应体。
func (c *Client) post(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// get 发送 GET 请求并返回响应体。
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, snippet)
	}
	return body, nil
}

// recordProviderMetrics 记录服务商请求的计数与耗时指标。
func recordProviderMetrics(endpoint string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = ClassifyError(err)
	}
	metrics.ProviderRequestsTotal.WithLabelValues(endpoint, status).Inc()
	metrics.ProviderRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
