package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/streamfan/internal/model"
)

// EntryRepository 条目存储；uuid 全局唯一
type EntryRepository interface {
	Create(ctx context.Context, entry *model.Entry) error
	Get(ctx context.Context, key string) (*model.Entry, error)
	GetByUUID(ctx context.Context, uuid string) (*model.Entry, error)
	IncrementCommentCount(ctx context.Context, key string) error
}

type entryRepository struct{ db *gorm.DB }

func NewEntryRepository(db *gorm.DB) EntryRepository { return &entryRepository{db: db} }

func (r *entryRepository) Create(ctx context.Context, entry *model.Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *entryRepository) Get(ctx context.Context, key string) (*model.Entry, error) {
	var e model.Entry
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&e).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (r *entryRepository) GetByUUID(ctx context.Context, uuid string) (*model.Entry, error) {
	var e model.Entry
	if err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&e).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (r *entryRepository) IncrementCommentCount(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Model(&model.Entry{}).
		Where("key = ?", key).
		UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1)).Error
}
