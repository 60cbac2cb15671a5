package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/streamfan/internal/model"
)

// SubscriptionRepository 订阅索引：topic 内按 target 稳定排序
type SubscriptionRepository interface {
	// Upsert 创建订阅；已存在时覆盖状态
	Upsert(ctx context.Context, topic, target, state string) error
	Delete(ctx context.Context, topic, target string) error
	Get(ctx context.Context, topic, target string) (*model.Subscription, error)
	// ListAfter 返回 target > after 的前 limit 条，按 target 升序
	ListAfter(ctx context.Context, topic, after string, limit int) ([]*model.Subscription, error)
	// ListAfterMany 对多个 topic 分别执行 ListAfter
	ListAfterMany(ctx context.Context, topics []string, after string, limitPerTopic int) ([]*model.Subscription, error)
	ListByTarget(ctx context.Context, target string) ([]*model.Subscription, error)
}

type subscriptionRepository struct{ db *gorm.DB }

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Upsert(ctx context.Context, topic, target, state string) error {
	s := &model.Subscription{ID: uuid.New().String(), Topic: topic, Target: target, State: state}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "topic"}, {Name: "target"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
	}).Create(s).Error
}

func (r *subscriptionRepository) Delete(ctx context.Context, topic, target string) error {
	return r.db.WithContext(ctx).
		Where("topic = ? AND target = ?", topic, target).
		Delete(&model.Subscription{}).Error
}

func (r *subscriptionRepository) Get(ctx context.Context, topic, target string) (*model.Subscription, error) {
	var s model.Subscription
	err := r.db.WithContext(ctx).Where("topic = ? AND target = ?", topic, target).First(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *subscriptionRepository) ListAfter(ctx context.Context, topic, after string, limit int) ([]*model.Subscription, error) {
	var res []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("topic = ? AND target > ?", topic, after).
		Order("target").
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *subscriptionRepository) ListAfterMany(ctx context.Context, topics []string, after string, limitPerTopic int) ([]*model.Subscription, error) {
	var res []*model.Subscription
	for _, topic := range topics {
		subs, err := r.ListAfter(ctx, topic, after, limitPerTopic)
		if err != nil {
			return nil, err
		}
		res = append(res, subs...)
	}
	return res, nil
}

func (r *subscriptionRepository) ListByTarget(ctx context.Context, target string) ([]*model.Subscription, error) {
	var res []*model.Subscription
	err := r.db.WithContext(ctx).Where("target = ?", target).Order("topic").Find(&res).Error
	return res, err
}
