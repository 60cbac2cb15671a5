package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/streamfan/config"
	"github.com/d60-Lab/streamfan/internal/model"
	"github.com/d60-Lab/streamfan/pkg/logger"
)

// Processor 在竞争下挑选并推进待处理任务
type Processor struct {
	store     *TaskStore
	publisher *Publisher
	cfg       config.FanoutConfig
	shuffle   func(n int, swap func(i, j int))
}

func NewProcessor(store *TaskStore, publisher *Publisher, cfg config.FanoutConfig) *Processor {
	return &Processor{store: store, publisher: publisher, cfg: cfg, shuffle: rand.Shuffle}
}

// ProcessAny 推进至多 workCount 个任务（通常为 1）：
// 取最旧的 sampleRatio×workCount 个样本，随机挑 lockRatio×workCount 个批量抢租约，
// 多抢到的立即释放。没有任何任务时返回 ErrNoOutstandingWork；候选全被占用时返回 ErrLocked。
func (p *Processor) ProcessAny(ctx context.Context, actor string, workCount int) (int, error) {
	if workCount <= 0 {
		workCount = 1
	}
	sampleSize := ratioOf(p.cfg.SampleRatio, workCount)
	lockCount := ratioOf(p.cfg.LockRatio, workCount)

	sample, err := p.store.ListOutstanding(ctx, actor, sampleSize)
	if err != nil {
		return 0, fmt.Errorf("sample tasks: %w", err)
	}
	if len(sample) == 0 {
		return 0, ErrNoOutstandingWork
	}

	p.shuffle(len(sample), func(i, j int) { sample[i], sample[j] = sample[j], sample[i] })
	if len(sample) > lockCount {
		sample = sample[:lockCount]
	}

	keys := make([]string, len(sample))
	for i, t := range sample {
		keys[i] = t.ID().Key()
	}
	token := uuid.NewString()
	failed, err := p.store.leases.AcquireMany(ctx, keys, token, p.store.TTL())
	if err != nil {
		return 0, err
	}
	held := make(map[string]struct{}, len(failed))
	for _, k := range failed {
		held[k] = struct{}{}
	}

	var leased []*model.Task
	var surplus []string
	for _, t := range sample {
		k := t.ID().Key()
		if _, ok := held[k]; ok {
			continue
		}
		if len(leased) < workCount {
			leased = append(leased, t)
		} else {
			surplus = append(surplus, k)
		}
	}
	if len(surplus) > 0 {
		if err := p.store.leases.ReleaseMany(ctx, surplus, token); err != nil {
			logger.Warn("release surplus leases failed", zap.Strings("tasks", surplus), zap.Error(err))
		}
	}
	if len(leased) == 0 {
		logger.Debug("all sampled tasks are leased", zap.Int("sampled", len(sample)))
		return 0, ErrLocked
	}

	var errs []error
	processed := 0
	for _, candidate := range leased {
		task, err := p.store.loadLeased(ctx, candidate.ID(), token)
		if err != nil {
			// 已被其他 worker 完成删除
			continue
		}
		processed++
		if err := p.handle(ctx, task); err != nil {
			errs = append(errs, err)
		}
	}
	return processed, errors.Join(errs...)
}

// handle 按动作分派；已删除身份视为致命，删除任务后不再返回错误
func (p *Processor) handle(ctx context.Context, task *model.Task) error {
	var err error
	switch task.Action {
	case model.ActionPost:
		err = p.publisher.resumePost(ctx, Internal(), task, task.Args.Post)
	case model.ActionAddComment:
		err = p.publisher.resumeComment(ctx, Internal(), task, task.Args.Comment)
	default:
		err = fmt.Errorf("%w: unknown action %q", ErrInvalidProgress, task.Action)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDeletedIdentity), errors.Is(err, ErrInvalidProgress):
		logger.Error("aborting task", zap.String("task", task.Key), zap.String("progress", task.Progress), zap.Error(err))
		sentry.CaptureException(fmt.Errorf("abort task %s: %w", task.Key, err))
		if rErr := p.store.Remove(ctx, task); rErr != nil {
			return rErr
		}
		return nil
	case errors.Is(err, ErrDuplicateEntry):
		// 起始阶段已删除任务
		return nil
	default:
		logger.Warn("task stage failed, lease left to expire",
			zap.String("task", task.Key), zap.String("progress", task.Progress), zap.Error(err))
		return err
	}
}

// Drain 反复 ProcessAny，直到没有任务、候选全被占用，或 ctx 到期。
// 单个任务的失败不中断循环，汇总后一并返回。
func (p *Processor) Drain(ctx context.Context, actor string) (int, error) {
	total := 0
	var errs []error
	for {
		if ctx.Err() != nil {
			return total, errors.Join(errs...)
		}
		n, err := p.ProcessAny(ctx, actor, p.cfg.WorkCount)
		total += n
		switch {
		case err == nil:
		case errors.Is(err, ErrNoOutstandingWork), errors.Is(err, ErrLocked):
			return total, errors.Join(errs...)
		case ctx.Err() != nil:
			return total, errors.Join(errs...)
		case n == 0:
			return total, errors.Join(append(errs, err)...)
		default:
			errs = append(errs, err)
		}
	}
}

func ratioOf(ratio float64, n int) int {
	v := int(math.Ceil(ratio * float64(n)))
	if v < n {
		v = n
	}
	return v
}
