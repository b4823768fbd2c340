package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"pricescout/internal/pkg/metrics"
)

// PollState 数据集采集任务的状态。
type PollState string

const (
	StateTriggered PollState = "triggered" // 任务已触发，尚未轮询
	StatePolling   PollState = "polling"   // 轮询中
	StateReady     PollState = "ready"     // 快照就绪
	StateFailed    PollState = "failed"    // 采集失败
	StateTimedOut  PollState = "timed-out" // 轮询次数用尽
)

// NextState 纯状态转移函数。
//
// 根据服务商返回的进度字符串与已用轮询次数计算下一个状态。
// "running" 继续轮询，"failed" 为致命错误，其余一律视为就绪。
//
// 参数:
//
//	current: 当前状态
//	progress: 服务商返回的进度（"running" / "ready" / "failed"）
//	attempt: 已完成的轮询次数
//	maxAttempts: 轮询次数上限
//
// 返回值:
//
//	PollState: 下一个状态
func NextState(current PollState, progress string, attempt, maxAttempts int) PollState {
	// 终态不再转移
	switch current {
	case StateReady, StateFailed, StateTimedOut:
		return current
	}

	switch progress {
	case "failed":
		return StateFailed
	case "running":
		if attempt >= maxAttempts {
			return StateTimedOut
		}
		return StatePolling
	default:
		return StateReady
	}
}

// datasetAPI 是轮询器依赖的服务商接口，便于测试替换。
type datasetAPI interface {
	TriggerDataset(ctx context.Context, datasetID, targetURL string) (string, error)
	Progress(ctx context.Context, snapshotID string) (string, error)
	Snapshot(ctx context.Context, snapshotID string) (json.RawMessage, error)
}

// Poller 驱动数据集任务从触发到快照就绪的完整流程。
//
// 轮询间隔通过注入的 sleep 函数实现，测试中可替换为空操作。
type Poller struct {
	api      datasetAPI
	logger   *slog.Logger
	interval time.Duration
	attempts int
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewPoller 创建数据集轮询器。
//
// 参数:
//
//	api: 服务商客户端
//	logger: 日志记录器
//	interval: 轮询间隔
//	attempts: 轮询次数上限
func NewPoller(api datasetAPI, logger *slog.Logger, interval time.Duration, attempts int) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if attempts <= 0 {
		attempts = 30
	}
	return &Poller{
		api:      api,
		logger:   logger,
		interval: interval,
		attempts: attempts,
		sleep:    sleepCtx,
	}
}

// Collect 触发数据集任务并等待快照就绪。
//
// 流程：
// 1. 触发任务，取得快照 ID
// 2. 每隔 interval 查询一次进度，最多 attempts 次
// 3. 就绪后下载快照并返回
//
// 参数:
//
//	ctx: 上下文（取消时立即中断等待）
//	datasetID: 数据集 ID
//	targetURL: 目标商品链接
//
// 返回值:
//
//	json.RawMessage: 快照原始 JSON
//	error: 触发失败、采集失败或超时（ErrTriggerFailed / ErrCollectionFailed / ErrPollTimeout）
func (p *Poller) Collect(ctx context.Context, datasetID, targetURL string) (json.RawMessage, error) {
	snapshotID, err := p.api.TriggerDataset(ctx, datasetID, targetURL)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("dataset triggered",
		slog.String("dataset_id", datasetID),
		slog.String("snapshot_id", snapshotID))

	state := StateTriggered
	attempt := 0
	for {
		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, fmt.Errorf("poll wait interrupted: %w", err)
		}

		progress, err := p.api.Progress(ctx, snapshotID)
		if err != nil {
			return nil, err
		}
		attempt++

		state = NextState(state, progress, attempt, p.attempts)
		switch state {
		case StateReady:
			metrics.DatasetPollAttempts.Observe(float64(attempt))
			p.logger.Debug("dataset snapshot ready",
				slog.String("snapshot_id", snapshotID),
				slog.Int("attempts", attempt))
			return p.api.Snapshot(ctx, snapshotID)
		case StateFailed:
			metrics.DatasetPollAttempts.Observe(float64(attempt))
			return nil, fmt.Errorf("snapshot %s: %w", snapshotID, ErrCollectionFailed)
		case StateTimedOut:
			metrics.DatasetPollAttempts.Observe(float64(attempt))
			p.logger.Warn("dataset polling timed out",
				slog.String("snapshot_id", snapshotID),
				slog.Int("attempts", attempt))
			return nil, fmt.Errorf("snapshot %s after %d attempts: %w", snapshotID, attempt, ErrPollTimeout)
		}
	}
}

// sleepCtx 可被 context 取消的休眠。
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
