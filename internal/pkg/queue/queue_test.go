package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func newTestQueue(workers, capacity int) *Queue {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, workers, capacity)
}

func TestQueue_ProcessesAllJobs(t *testing.T) {
	q := newTestQueue(3, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	var completed atomic.Int32
	for i := 0; i < 5; i++ {
		ok := q.Enqueue(func(ctx context.Context) error {
			completed.Add(1)
			return nil
		})
		if !ok {
			t.Fatalf("failed to enqueue job %d", i)
		}
	}

	q.Shutdown()

	if completed.Load() != 5 {
		t.Errorf("expected 5 completed jobs, got %d", completed.Load())
	}
	stats := q.Stats()
	if stats.TotalEnqueued != 5 || stats.TotalSucceeded != 5 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestQueue_CountsFailures(t *testing.T) {
	q := newTestQueue(2, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(func(ctx context.Context) error { return nil })
	q.Enqueue(func(ctx context.Context) error { return errors.New("refresh failed") })

	q.Shutdown()

	stats := q.Stats()
	if stats.TotalSucceeded != 1 {
		t.Errorf("expected 1 succeeded, got %d", stats.TotalSucceeded)
	}
	if stats.TotalFailed != 1 {
		t.Errorf("expected 1 failed, got %d", stats.TotalFailed)
	}
}

func TestQueue_RecoversFromPanic(t *testing.T) {
	q := newTestQueue(1, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(func(ctx context.Context) error { panic("boom") })
	q.Enqueue(func(ctx context.Context) error { return nil })

	q.Shutdown()

	stats := q.Stats()
	if stats.TotalPanics != 1 {
		t.Errorf("expected 1 panic recorded, got %d", stats.TotalPanics)
	}
	if stats.TotalSucceeded != 1 {
		t.Errorf("expected follow-up job to run, got %d succeeded", stats.TotalSucceeded)
	}
}

func TestQueue_DropsWhenFull(t *testing.T) {
	q := newTestQueue(1, 1)
	// 不启动 worker，让队列保持满载

	if !q.Enqueue(func(ctx context.Context) error { return nil }) {
		t.Fatal("first enqueue should succeed")
	}
	if q.Enqueue(func(ctx context.Context) error { return nil }) {
		t.Fatal("second enqueue should be dropped")
	}
	if q.Stats().TotalDropped != 1 {
		t.Errorf("expected 1 dropped, got %d", q.Stats().TotalDropped)
	}
}

func TestQueue_RejectsAfterShutdown(t *testing.T) {
	q := newTestQueue(1, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	q.Shutdown()

	if q.Enqueue(func(ctx context.Context) error { return nil }) {
		t.Error("expected enqueue to fail after shutdown")
	}
	if err := q.EnqueueBlocking(context.Background(), func(ctx context.Context) error { return nil }); err == nil {
		t.Error("expected blocking enqueue to fail after shutdown")
	}
}

func TestQueue_ShutdownWithTimeout(t *testing.T) {
	q := newTestQueue(1, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	if err := q.ShutdownWithTimeout(2 * time.Second); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}
