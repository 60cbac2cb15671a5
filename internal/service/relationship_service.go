package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/d60-Lab/streamfan/internal/cache"
	"github.com/d60-Lab/streamfan/internal/model"
	"github.com/d60-Lab/streamfan/internal/repository"
)

// CreateActorRequest 注册用户或频道
type CreateActorRequest struct {
	Nick        string `json:"nick" validate:"required,alphanum,min=2,max=64"`
	Type        string `json:"type" validate:"omitempty,oneof=user channel"`
	Privacy     int    `json:"privacy" validate:"omitempty,min=1,max=3"`
	IMAddress   string `json:"im_address" validate:"max=255"`
	Mobile      string `json:"mobile" validate:"max=32"`
	Email       string `json:"email" validate:"omitempty,email"`
	NotifyIM    bool   `json:"notify_im"`
	NotifySMS   bool   `json:"notify_sms"`
	NotifyEmail bool   `json:"notify_email"`
}

// RelationshipService 关系链服务：维护扇出所读的订阅索引
type RelationshipService interface {
	CreateActor(ctx context.Context, req CreateActorRequest) (*model.Actor, error)
	Follow(ctx context.Context, fromNick, toNick string) error
	Unfollow(ctx context.Context, fromNick, toNick string) error
	// Approve 受限 stream 的 owner 通过一个 pending 订阅
	Approve(ctx context.Context, ownerNick, followerNick string) error
	// ListFollowers 按 target 游标分页
	ListFollowers(ctx context.Context, nick, after string, limit int) ([]string, error)
	SetNotifications(ctx context.Context, nick string, im, sms, email bool) error
	MarkDeleted(ctx context.Context, nick string) error
}

type relationshipService struct {
	db       *gorm.DB
	actors   repository.ActorRepository
	streams  repository.StreamRepository
	subs     repository.SubscriptionRepository
	people   *cache.ActorCache
	validate *validator.Validate
}

func NewRelationshipService(db *gorm.DB, people *cache.ActorCache) RelationshipService {
	return &relationshipService{
		db:       db,
		actors:   repository.NewActorRepository(db),
		streams:  repository.NewStreamRepository(db),
		subs:     repository.NewSubscriptionRepository(db),
		people:   people,
		validate: validator.New(),
	}
}

// CreateActor 同一事务内创建 actor、presence/comments 两个 stream，并订阅自己的 presence
func (s *relationshipService) CreateActor(ctx context.Context, req CreateActorRequest) (*model.Actor, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = model.ActorTypeUser
	}
	if req.Privacy == 0 {
		req.Privacy = model.PrivacyPublic
	}

	actor := &model.Actor{
		Nick:        req.Nick,
		Type:        req.Type,
		Privacy:     req.Privacy,
		IMAddress:   req.IMAddress,
		Mobile:      req.Mobile,
		Email:       req.Email,
		NotifyIM:    req.NotifyIM,
		NotifySMS:   req.NotifySMS,
		NotifyEmail: req.NotifyEmail,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewActorRepository(tx).Create(ctx, actor); err != nil {
			return err
		}
		streams := repository.NewStreamRepository(tx)
		for _, name := range []string{model.StreamPresence, model.StreamComments} {
			st := &model.Stream{
				Key:   model.StreamKey(req.Nick, name),
				Owner: req.Nick,
				Name:  name,
				Type:  name,
				Read:  req.Privacy,
				Write: model.PrivacyPrivate,
			}
			if err := streams.Create(ctx, st); err != nil {
				return err
			}
		}
		return repository.NewSubscriptionRepository(tx).Upsert(ctx,
			model.StreamKey(req.Nick, model.StreamPresence),
			model.InboxKey(req.Nick, model.ViewOverview),
			model.SubscriptionSubscribed)
	})
	if err != nil {
		return nil, fmt.Errorf("create actor %s: %w", req.Nick, err)
	}
	return actor, nil
}

// Follow 公开 stream 直接 subscribed；受限 stream 先 pending 等待 owner 通过
func (s *relationshipService) Follow(ctx context.Context, fromNick, toNick string) error {
	if fromNick == toNick {
		return ErrFollowSelf
	}
	if _, err := s.liveActor(ctx, fromNick); err != nil {
		return err
	}
	if _, err := s.liveActor(ctx, toNick); err != nil {
		return err
	}
	stream, err := s.streams.Get(ctx, model.StreamKey(toNick, model.StreamPresence))
	if err != nil {
		return err
	}
	target := model.InboxKey(fromNick, model.ViewOverview)

	// 幂等：已通过的订阅不降级为 pending
	if sub, err := s.subs.Get(ctx, stream.Key, target); err == nil && sub.IsSubscribed() {
		return nil
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	state := model.SubscriptionSubscribed
	if stream.Restricted() {
		state = model.SubscriptionPending
	}
	return s.subs.Upsert(ctx, stream.Key, target, state)
}

func (s *relationshipService) Unfollow(ctx context.Context, fromNick, toNick string) error {
	return s.subs.Delete(ctx, model.StreamKey(toNick, model.StreamPresence), model.InboxKey(fromNick, model.ViewOverview))
}

func (s *relationshipService) Approve(ctx context.Context, ownerNick, followerNick string) error {
	topic := model.StreamKey(ownerNick, model.StreamPresence)
	target := model.InboxKey(followerNick, model.ViewOverview)
	if _, err := s.subs.Get(ctx, topic, target); err != nil {
		return err
	}
	return s.subs.Upsert(ctx, topic, target, model.SubscriptionSubscribed)
}

func (s *relationshipService) ListFollowers(ctx context.Context, nick, after string, limit int) ([]string, error) {
	if limit < 1 {
		limit = 10
	}
	items, err := s.subs.ListAfter(ctx, model.StreamKey(nick, model.StreamPresence), after, limit)
	if err != nil {
		return nil, err
	}
	res := make([]string, 0, len(items))
	for _, it := range items {
		if n, _, ok := parseInbox(it.Target); ok && n != nick {
			res = append(res, n)
		}
	}
	return res, nil
}

func (s *relationshipService) SetNotifications(ctx context.Context, nick string, im, sms, email bool) error {
	if err := s.actors.UpdateNotifications(ctx, nick, im, sms, email); err != nil {
		return err
	}
	if s.people != nil {
		return s.people.Invalidate(ctx, nick)
	}
	return nil
}

// MarkDeleted 墓碑化；仍在途的任务会在下次推进时被判定为致命并删除
func (s *relationshipService) MarkDeleted(ctx context.Context, nick string) error {
	if err := s.actors.MarkDeleted(ctx, nick, time.Now()); err != nil {
		return err
	}
	if s.people != nil {
		return s.people.Invalidate(ctx, nick)
	}
	return nil
}

func (s *relationshipService) liveActor(ctx context.Context, nick string) (*model.Actor, error) {
	a, err := s.actors.Get(ctx, nick)
	if err != nil {
		return nil, fmt.Errorf("actor %s: %w", nick, err)
	}
	if a.IsDeleted() {
		return nil, fmt.Errorf("actor %s: %w", nick, repository.ErrNotFound)
	}
	return a, nil
}
