package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/streamfan/internal/lease"
	"github.com/d60-Lab/streamfan/internal/model"
	"github.com/d60-Lab/streamfan/internal/repository"
	"github.com/d60-Lab/streamfan/pkg/logger"
)

// TaskStore 任务记录 + 租约
type TaskStore struct {
	tasks  repository.TaskRepository
	leases lease.Registry
	ttl    time.Duration
}

func NewTaskStore(tasks repository.TaskRepository, leases lease.Registry, ttl time.Duration) *TaskStore {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &TaskStore{tasks: tasks, leases: leases, ttl: ttl}
}

// with 绑定到另一个仓储（事务内使用），租约共享
func (s *TaskStore) with(tasks repository.TaskRepository) *TaskStore {
	return &TaskStore{tasks: tasks, leases: s.leases, ttl: s.ttl}
}

func (s *TaskStore) TTL() time.Duration { return s.ttl }

// Acquire 以新 token 占用租约；返回的 token 用于释放
func (s *TaskStore) Acquire(ctx context.Context, id model.TaskID) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.leases.Acquire(ctx, id.Key(), token, s.ttl)
	return token, ok, err
}

// Release 释放 task 持有的租约；租约已过期并被他人接手时不影响对方
func (s *TaskStore) Release(ctx context.Context, task *model.Task) error {
	if task.LeaseToken == "" {
		return nil
	}
	if err := s.leases.Release(ctx, task.Key, task.LeaseToken); err != nil {
		return err
	}
	task.LeaseToken = ""
	return nil
}

// CreateOrGet 已存在则原样返回（不授予租约），否则以空进度创建
func (s *TaskStore) CreateOrGet(ctx context.Context, id model.TaskID, args model.TaskArgs) (*model.Task, error) {
	t := &model.Task{
		Key:      id.Key(),
		Actor:    id.Actor,
		Action:   id.Action,
		ActionID: id.ActionID,
		Args:     args,
	}
	task, err := s.tasks.CreateIfAbsent(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create task %s: %w", id.Key(), err)
	}
	return task, nil
}

// GetLeased 取得租约后读取任务；租约被占用时返回 ErrLocked
func (s *TaskStore) GetLeased(ctx context.Context, id model.TaskID) (*model.Task, error) {
	token, ok, err := s.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.Debug("task lease held elsewhere", zap.String("task", id.Key()))
		return nil, ErrLocked
	}
	return s.loadLeased(ctx, id, token)
}

// loadLeased 调用方已用 token 持有租约
func (s *TaskStore) loadLeased(ctx context.Context, id model.TaskID, token string) (*model.Task, error) {
	task, err := s.tasks.Get(ctx, id.Key())
	if err != nil {
		if rErr := s.leases.Release(ctx, id.Key(), token); rErr != nil {
			logger.Warn("release lease failed", zap.String("task", id.Key()), zap.Error(rErr))
		}
		return nil, err
	}
	task.LeaseToken = token
	expires := time.Now().Add(s.ttl)
	if err := s.tasks.SetExpires(ctx, task.Key, expires); err != nil {
		logger.Warn("record lease expiry failed", zap.String("task", task.Key), zap.Error(err))
	} else {
		task.ExpiresAt = &expires
	}
	return task, nil
}

// UpdateProgress 持久化新游标；unlock 为 true 时同时释放租约
func (s *TaskStore) UpdateProgress(ctx context.Context, task *model.Task, progress string, unlock bool) (*model.Task, error) {
	if err := s.tasks.UpdateProgress(ctx, task.Key, progress); err != nil {
		return nil, fmt.Errorf("update progress %s: %w", task.Key, err)
	}
	task.Progress = progress
	if unlock {
		if err := s.Release(ctx, task); err != nil {
			// 租约到期后自然可被接手
			logger.Warn("release lease failed", zap.String("task", task.Key), zap.Error(err))
		}
	}
	return task, nil
}

// Remove 删除任务及其租约，仅在终止阶段或致命错误时调用
func (s *TaskStore) Remove(ctx context.Context, task *model.Task) error {
	if err := s.tasks.Delete(ctx, task.Key); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("remove task %s: %w", task.Key, err)
	}
	return s.Release(ctx, task)
}

func (s *TaskStore) ListOutstanding(ctx context.Context, actor string, limit int) ([]*model.Task, error) {
	return s.tasks.ListOutstanding(ctx, actor, limit)
}
