package queue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"pricescout/internal/pkg/metrics"
)

// Job 表示一个可执行的刷新任务。
type Job func(ctx context.Context) error

// Queue 内存任务队列 + 固定 worker 池，用于并发刷新追踪商品。
type Queue struct {
	logger  *slog.Logger
	workers int
	jobs    chan Job

	wg     sync.WaitGroup
	closed atomic.Bool

	stats queueStats
}

// queueStats 队列内部统计信息（使用 atomic 类型）。
type queueStats struct {
	TotalEnqueued  atomic.Int64
	TotalProcessed atomic.Int64
	TotalSucceeded atomic.Int64
	TotalFailed    atomic.Int64
	TotalDropped   atomic.Int64
	TotalPanics    atomic.Int64
}

// Stats 队列统计信息快照（普通值类型，可安全拷贝）。
type Stats struct {
	TotalEnqueued  int64
	TotalProcessed int64
	TotalSucceeded int64
	TotalFailed    int64
	TotalDropped   int64
	TotalPanics    int64
}

// New 创建任务队列。
//
// 参数:
//
//	logger: 日志记录器
//	workers: worker 数量（至少为 1）
//	capacity: 队列容量（至少为 1）
func New(logger *slog.Logger, workers int, capacity int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		logger:  logger,
		workers: workers,
		jobs:    make(chan Job, capacity),
	}
}

// Start 启动 worker 池，直到 ctx 被取消或调用 Shutdown。
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			q.logger.Debug("worker stopped", slog.Int("worker_id", id))
			return

		case job, ok := <-q.jobs:
			if !ok {
				q.logger.Debug("worker exit on closed channel", slog.Int("worker_id", id))
				return
			}
			metrics.RefreshQueueDepth.Set(float64(len(q.jobs)))
			if job != nil {
				q.executeJob(ctx, job, id)
			}
		}
	}
}

// executeJob 执行单个任务，带 panic 恢复。
func (q *Queue) executeJob(ctx context.Context, job Job, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			q.stats.TotalPanics.Add(1)
			q.logger.Error("job panic recovered",
				slog.Int("worker_id", workerID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	err := job(ctx)
	q.stats.TotalProcessed.Add(1)

	if err != nil {
		q.stats.TotalFailed.Add(1)
		q.logger.Warn("job failed",
			slog.Int("worker_id", workerID),
			slog.String("error", err.Error()))
	} else {
		q.stats.TotalSucceeded.Add(1)
	}
}

// Enqueue 将任务放入队列，若队列已满则返回 false（非阻塞）。
func (q *Queue) Enqueue(job Job) bool {
	if job == nil {
		return false
	}
	if q.closed.Load() {
		q.logger.Warn("queue is closed, reject job")
		return false
	}

	select {
	case q.jobs <- job:
		q.stats.TotalEnqueued.Add(1)
		metrics.RefreshQueueDepth.Set(float64(len(q.jobs)))
		return true
	default:
		q.stats.TotalDropped.Add(1)
		q.logger.Warn("queue full, drop job",
			slog.Int("capacity", cap(q.jobs)),
			slog.Int("pending", len(q.jobs)))
		return false
	}
}

// EnqueueBlocking 阻塞式入队，直到成功或 ctx 被取消。
func (q *Queue) EnqueueBlocking(ctx context.Context, job Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	if q.closed.Load() {
		return fmt.Errorf("queue is closed")
	}

	select {
	case q.jobs <- job:
		q.stats.TotalEnqueued.Add(1)
		metrics.RefreshQueueDepth.Set(float64(len(q.jobs)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown 优雅关闭：拒绝新任务，关闭通道，等待 worker 清空队列。
func (q *Queue) Shutdown() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.jobs)
		q.logger.Info("queue shutdown initiated, waiting for workers to finish")
		q.wg.Wait()
		q.logger.Info("queue shutdown completed")
	}
}

// ShutdownWithTimeout 带超时的优雅关闭。
func (q *Queue) ShutdownWithTimeout(timeout time.Duration) error {
	if !q.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("queue already closed")
	}

	close(q.jobs)
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("queue shutdown completed")
		return nil
	case <-time.After(timeout):
		q.logger.Error("queue shutdown timeout")
		return fmt.Errorf("shutdown timeout after %s", timeout)
	}
}

// Stats 获取统计信息快照。
func (q *Queue) Stats() Stats {
	return Stats{
		TotalEnqueued:  q.stats.TotalEnqueued.Load(),
		TotalProcessed: q.stats.TotalProcessed.Load(),
		TotalSucceeded: q.stats.TotalSucceeded.Load(),
		TotalFailed:    q.stats.TotalFailed.Load(),
		TotalDropped:   q.stats.TotalDropped.Load(),
		TotalPanics:    q.stats.TotalPanics.Load(),
	}
}

// Len 返回当前待处理的任务数量。
func (q *Queue) Len() int {
	return len(q.jobs)
}
