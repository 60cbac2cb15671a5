package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/streamfan/internal/model"
)

// TaskRepository 任务记录；租约不在这里，见 lease 包
type TaskRepository interface {
	// CreateIfAbsent 已存在同身份任务时不做任何事，返回库中的那一条
	CreateIfAbsent(ctx context.Context, task *model.Task) (*model.Task, error)
	Get(ctx context.Context, key string) (*model.Task, error)
	UpdateProgress(ctx context.Context, key, progress string) error
	SetExpires(ctx context.Context, key string, at time.Time) error
	Delete(ctx context.Context, key string) error
	// ListOutstanding 按创建时间从旧到新；actor 为空表示不过滤
	ListOutstanding(ctx context.Context, actor string, limit int) ([]*model.Task, error)
}

type taskRepository struct{ db *gorm.DB }

func NewTaskRepository(db *gorm.DB) TaskRepository { return &taskRepository{db: db} }

func (r *taskRepository) CreateIfAbsent(ctx context.Context, task *model.Task) (*model.Task, error) {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(task).Error; err != nil {
		return nil, err
	}
	return r.Get(ctx, task.Key)
}

func (r *taskRepository) Get(ctx context.Context, key string) (*model.Task, error) {
	var t model.Task
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *taskRepository) UpdateProgress(ctx context.Context, key, progress string) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("key = ?", key).
		Updates(map[string]any{"progress": progress, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *taskRepository) SetExpires(ctx context.Context, key string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Task{}).
		Where("key = ?", key).
		Update("expires_at", at).Error
}

func (r *taskRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("key = ?", key).Delete(&model.Task{}).Error
}

func (r *taskRepository) ListOutstanding(ctx context.Context, actor string, limit int) ([]*model.Task, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{})
	if actor != "" {
		q = q.Where("actor = ?", actor)
	}
	var res []*model.Task
	err := q.Order("created_at, key").Limit(limit).Find(&res).Error
	return res, err
}
