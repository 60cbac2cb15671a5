package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/streamfan/pkg/logger"
)

// TaskWorker 定时驱动 Processor.Drain；每次调用受 budget 限制
type TaskWorker struct {
	processor    *Processor
	workers      int
	pollInterval time.Duration
	budget       time.Duration
	processed    chan int
}

func NewTaskWorker(processor *Processor, workers int, pollInterval, budget time.Duration) *TaskWorker {
	if workers <= 0 {
		workers = 4
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if budget <= 0 {
		budget = 25 * time.Second
	}
	return &TaskWorker{processor: processor, workers: workers, pollInterval: pollInterval, budget: budget, processed: make(chan int, 1024)}
}

// Processed 每轮处理的任务数（非阻塞投递，满了丢弃）
func (w *TaskWorker) Processed() <-chan int { return w.processed }

// Start 启动若干 worker 轮询；返回停止函数，等待进行中的一轮结束。
func (w *TaskWorker) Start() func(context.Context) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(stop)
		}()
	}
	logger.Info("task worker started", zap.Int("workers", w.workers), zap.Duration("poll", w.pollInterval))
	return func(ctx context.Context) error {
		close(stop)
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
			logger.Info("task worker stopped")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *TaskWorker) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.runOnce()
		}
	}
}

func (w *TaskWorker) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), w.budget)
	defer cancel()
	n, err := w.processor.Drain(ctx, "")
	if err != nil {
		logger.Warn("drain tasks failed", zap.Error(err))
	}
	if n > 0 {
		select {
		case w.processed <- n:
		default:
		}
	}
}
