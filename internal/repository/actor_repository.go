package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/streamfan/internal/model"
)

type ActorRepository interface {
	Create(ctx context.Context, actor *model.Actor) error
	Get(ctx context.Context, nick string) (*model.Actor, error)
	GetMany(ctx context.Context, nicks []string) ([]*model.Actor, error)
	UpdatePresence(ctx context.Context, nick, entryKey string, at time.Time) error
	UpdateNotifications(ctx context.Context, nick string, im, sms, email bool) error
	MarkDeleted(ctx context.Context, nick string, at time.Time) error
}

type actorRepository struct{ db *gorm.DB }

func NewActorRepository(db *gorm.DB) ActorRepository { return &actorRepository{db: db} }

func (r *actorRepository) Create(ctx context.Context, actor *model.Actor) error {
	return r.db.WithContext(ctx).Create(actor).Error
}

// Get 不过滤墓碑，调用方用 IsDeleted 判断
func (r *actorRepository) Get(ctx context.Context, nick string) (*model.Actor, error) {
	var a model.Actor
	if err := r.db.WithContext(ctx).Where("nick = ?", nick).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *actorRepository) GetMany(ctx context.Context, nicks []string) ([]*model.Actor, error) {
	if len(nicks) == 0 {
		return nil, nil
	}
	var res []*model.Actor
	err := r.db.WithContext(ctx).Where("nick IN ?", nicks).Order("nick").Find(&res).Error
	return res, err
}

func (r *actorRepository) UpdatePresence(ctx context.Context, nick, entryKey string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Actor{}).
		Where("nick = ?", nick).
		Updates(map[string]any{"presence_entry": entryKey, "presence_at": at}).Error
}

func (r *actorRepository) UpdateNotifications(ctx context.Context, nick string, im, sms, email bool) error {
	res := r.db.WithContext(ctx).Model(&model.Actor{}).
		Where("nick = ?", nick).
		Updates(map[string]any{"notify_im": im, "notify_sms": sms, "notify_email": email})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *actorRepository) MarkDeleted(ctx context.Context, nick string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Actor{}).
		Where("nick = ?", nick).
		Update("deleted_at", at).Error
}
