package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/streamfan/internal/model"
)

// InboxRepository 扇出批次，只追加
type InboxRepository interface {
	// Append 写入一批；同 (entry, shard) 已存在时忽略
	Append(ctx context.Context, ie *model.InboxEntry) error
	ListForEntry(ctx context.Context, entryKey string) ([]*model.InboxEntry, error)
}

type inboxRepository struct{ db *gorm.DB }

func NewInboxRepository(db *gorm.DB) InboxRepository { return &inboxRepository{db: db} }

func (r *inboxRepository) Append(ctx context.Context, ie *model.InboxEntry) error {
	if ie.ID == "" {
		ie.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ie).Error
}

func (r *inboxRepository) ListForEntry(ctx context.Context, entryKey string) ([]*model.InboxEntry, error) {
	var res []*model.InboxEntry
	err := r.db.WithContext(ctx).Where("entry = ?", entryKey).Order("created_at, shard").Find(&res).Error
	return res, err
}
