package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/streamfan/internal/model"
)

type StreamRepository interface {
	Create(ctx context.Context, stream *model.Stream) error
	Get(ctx context.Context, key string) (*model.Stream, error)
}

type streamRepository struct{ db *gorm.DB }

func NewStreamRepository(db *gorm.DB) StreamRepository { return &streamRepository{db: db} }

func (r *streamRepository) Create(ctx context.Context, stream *model.Stream) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(stream).Error
}

func (r *streamRepository) Get(ctx context.Context, key string) (*model.Stream, error) {
	var s model.Stream
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}
