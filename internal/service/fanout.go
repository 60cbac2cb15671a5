package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/streamfan/config"
	"github.com/d60-Lab/streamfan/internal/cache"
	"github.com/d60-Lab/streamfan/internal/model"
	"github.com/d60-Lab/streamfan/internal/notify"
	"github.com/d60-Lab/streamfan/internal/repository"
	"github.com/d60-Lab/streamfan/pkg/logger"
)

// FanoutEngine 按任务进度推进一个阶段：
//
//	start → inboxes:<after>* → notifications:im:* → sms:* → email:* → 删除任务
//
// 每个阶段只做一页解析 + 一次写入/发送，然后持久化游标并释放租约。
// 调用方必须已持有任务租约。
type FanoutEngine struct {
	db         *gorm.DB
	store      *TaskStore
	entries    repository.EntryRepository
	streams    repository.StreamRepository
	actors     repository.ActorRepository
	inbox      repository.InboxRepository
	resolver   *Resolver
	people     *cache.ActorCache
	dispatcher *notify.Dispatcher
	cfg        config.FanoutConfig
	tracer     trace.Tracer
	now        func() time.Time
}

func NewFanoutEngine(db *gorm.DB, store *TaskStore, people *cache.ActorCache, dispatcher *notify.Dispatcher, cfg config.FanoutConfig) *FanoutEngine {
	return &FanoutEngine{
		db:         db,
		store:      store,
		entries:    repository.NewEntryRepository(db),
		streams:    repository.NewStreamRepository(db),
		actors:     repository.NewActorRepository(db),
		inbox:      repository.NewInboxRepository(db),
		resolver:   NewResolver(repository.NewSubscriptionRepository(db)),
		people:     people,
		dispatcher: dispatcher,
		cfg:        cfg,
		tracer:     otel.Tracer("github.com/d60-Lab/streamfan/fanout"),
		now:        time.Now,
	}
}

// Advance 执行当前进度对应的一个阶段，返回正在扇出的条目。
// 成功时租约已释放（或任务已删除）；出错时租约保留，等待过期后由其他 worker 重试。
func (e *FanoutEngine) Advance(ctx context.Context, task *model.Task) (*model.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cur, err := parseProgress(task.Progress)
	if err != nil {
		return nil, err
	}

	switch cur.stage {
	case stageStart:
		return e.start(ctx, task)
	case stageInboxes:
		sc, err := e.loadScope(ctx, task)
		if err != nil {
			return nil, err
		}
		return sc.entry, e.fanoutInboxes(ctx, task, sc, cur.after)
	default:
		sc, err := e.loadScope(ctx, task)
		if err != nil {
			return nil, err
		}
		return sc.entry, e.notify(ctx, task, sc, cur.channel, cur.after)
	}
}

// start 创建条目并写入起始收件批次；两者与进度 "inboxes:" 在同一事务提交，
// 因此进度为空而条目已存在只可能是重放，按重复处理。
func (e *FanoutEngine) start(ctx context.Context, task *model.Task) (*model.Entry, error) {
	ctx, span := e.tracer.Start(ctx, "fanout.start", trace.WithAttributes(attribute.String("task", task.Key)))
	defer span.End()

	entry, parent, stream, err := e.buildEntry(ctx, task)
	if err != nil {
		return nil, e.fail(span, err)
	}
	sc := newScope(entry, parent, stream)

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		if err := addEntry(ctx, r, entry); err != nil {
			return err
		}
		if err := r.inbox.Append(ctx, e.inboxBatch(sc, model.ShardInitial, sc.initial)); err != nil {
			return fmt.Errorf("initial inbox batch: %w", err)
		}
		_, err := e.store.with(r.tasks).UpdateProgress(ctx, task, inboxesAfter(""), false)
		return err
	})
	if err != nil {
		var dup *DuplicateEntryError
		if errors.As(err, &dup) {
			logger.Info("entry already exists, dropping task",
				zap.String("task", task.Key), zap.String("entry", dup.Existing.Key))
			if rErr := e.store.Remove(ctx, task); rErr != nil {
				logger.Warn("remove duplicate task failed", zap.String("task", task.Key), zap.Error(rErr))
			}
		}
		task.Progress = ""
		return nil, e.fail(span, err)
	}

	if err := e.store.Release(ctx, task); err != nil {
		logger.Warn("release lease failed", zap.String("task", task.Key), zap.Error(err))
	}
	logger.Debug("entry created", zap.String("task", task.Key), zap.String("entry", entry.Key), zap.Int("initial", len(sc.initial)))
	return entry, nil
}

// fanoutInboxes 解析下一页订阅者，去掉起始收件人后写成一批；shard 取本页最后一个目标
func (e *FanoutEngine) fanoutInboxes(ctx context.Context, task *model.Task, sc *scope, after string) error {
	ctx, span := e.tracer.Start(ctx, "fanout.inboxes", trace.WithAttributes(
		attribute.String("task", task.Key),
		attribute.String("after", after),
	))
	defer span.End()

	page, err := e.resolver.Page(ctx, sc.topics, sc.restricted, after, e.cfg.InboxPageSize)
	if err != nil {
		return e.fail(span, fmt.Errorf("resolve inboxes: %w", err))
	}
	targets := sc.inboxTargets(page.Targets)
	if len(targets) > 0 {
		if err := e.inbox.Append(ctx, e.inboxBatch(sc, page.Next, targets)); err != nil {
			return e.fail(span, fmt.Errorf("append inbox batch: %w", err))
		}
	}
	span.SetAttributes(attribute.Int("targets", len(targets)), attribute.Bool("more", page.More))

	next := prefixNotifications
	if page.More {
		next = inboxesAfter(page.Next)
	}
	if _, err := e.store.UpdateProgress(ctx, task, next, true); err != nil {
		return e.fail(span, err)
	}
	return nil
}

// notify 某通道一页：解析 → 发送 → 推进游标。适配器故障只记录并推进；
// 限流或超时属于可重试失败，本阶段报错且不推进，租约到期后重发本页（至少一次）。
func (e *FanoutEngine) notify(ctx context.Context, task *model.Task, sc *scope, ch notify.Channel, after string) error {
	ctx, span := e.tracer.Start(ctx, "fanout.notify", trace.WithAttributes(
		attribute.String("task", task.Key),
		attribute.String("channel", string(ch)),
		attribute.String("after", after),
	))
	defer span.End()

	// 邮件只通知评论
	if ch == notify.ChannelEmail && !sc.entry.IsComment() {
		return e.finish(ctx, span, task)
	}

	page, err := e.resolver.Page(ctx, sc.topics, sc.restricted, after, e.limit(ch))
	if err != nil {
		return e.fail(span, fmt.Errorf("resolve %s recipients: %w", ch, err))
	}
	nicks := sc.recipients(ch, page.Targets, after == "")
	people, err := e.people.GetMany(ctx, nicks)
	if err != nil {
		return e.fail(span, fmt.Errorf("load %s recipients: %w", ch, err))
	}
	// 发送不得拖过租约，否则其他 worker 会接手同一页
	sendCtx, cancel := context.WithTimeout(ctx, e.store.TTL()/2)
	sent, err := e.dispatcher.Dispatch(sendCtx, ch, notify.Addresses(ch, people), notify.Compose(ch, sc.entry))
	cancel()
	if err != nil {
		return e.fail(span, fmt.Errorf("send %s: %w", ch, err))
	}
	span.SetAttributes(attribute.Int("sent", sent), attribute.Bool("more", page.More))

	if page.More {
		_, err := e.store.UpdateProgress(ctx, task, notifyAfter(ch, page.Next), true)
		return e.fail(span, err)
	}
	if nextCh, ok := nextChannel(ch); ok {
		_, err := e.store.UpdateProgress(ctx, task, notifyAfter(nextCh, ""), true)
		return e.fail(span, err)
	}
	return e.finish(ctx, span, task)
}

func (e *FanoutEngine) finish(ctx context.Context, span trace.Span, task *model.Task) error {
	if err := e.store.Remove(ctx, task); err != nil {
		return e.fail(span, err)
	}
	logger.Debug("fan-out complete", zap.String("task", task.Key))
	return nil
}

func (e *FanoutEngine) fail(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (e *FanoutEngine) limit(ch notify.Channel) int {
	switch ch {
	case notify.ChannelSMS:
		return e.cfg.SMSPerTask
	case notify.ChannelEmail:
		return e.cfg.EmailPerTask
	default:
		return e.cfg.IMPerTask
	}
}

func (e *FanoutEngine) inboxBatch(sc *scope, shard string, targets []string) *model.InboxEntry {
	return &model.InboxEntry{
		Entry:       sc.entry.Key,
		Shard:       shard,
		Stream:      sc.entry.Stream,
		StreamType:  streamType(sc.entry),
		EntryUUID:   sc.entry.UUID,
		ParentEntry: sc.entry.ParentEntry,
		Targets:     targets,
		CreatedAt:   e.now(),
	}
}

func streamType(e *model.Entry) string {
	if e.IsComment() {
		return model.StreamComments
	}
	return model.StreamPresence
}

// buildEntry 由任务参数构造待创建的条目，同时校验引用的身份仍然存在
func (e *FanoutEngine) buildEntry(ctx context.Context, task *model.Task) (entry, parent *model.Entry, stream *model.Stream, err error) {
	if _, err := e.liveActor(ctx, task.Actor); err != nil {
		return nil, nil, nil, err
	}
	now := e.now()

	switch task.Action {
	case model.ActionPost:
		args := task.Args.Post
		if args == nil {
			return nil, nil, nil, fmt.Errorf("%w: post task %s without args", ErrInvalidProgress, task.Key)
		}
		stream, err = e.liveStream(ctx, args.Stream)
		if err != nil {
			return nil, nil, nil, err
		}
		entry = &model.Entry{
			Key:       model.EntryKey(stream.Key, args.UUID),
			Stream:    stream.Key,
			Owner:     stream.Owner,
			Actor:     args.Nick,
			UUID:      args.UUID,
			Extra:     model.EntryExtra{Title: args.Title, Content: args.Message, Location: args.Location},
			CreatedAt: now,
		}
		return entry, nil, stream, nil

	case model.ActionAddComment:
		args := task.Args.Comment
		if args == nil {
			return nil, nil, nil, fmt.Errorf("%w: comment task %s without args", ErrInvalidProgress, task.Key)
		}
		parent, err = e.liveEntry(ctx, args.Entry)
		if err != nil {
			return nil, nil, nil, err
		}
		comments, err := e.liveStream(ctx, model.StreamKey(args.Nick, model.StreamComments))
		if err != nil {
			return nil, nil, nil, err
		}
		stream, err = e.liveStream(ctx, parent.Stream)
		if err != nil {
			return nil, nil, nil, err
		}
		entry = &model.Entry{
			Key:         model.EntryKey(comments.Key, args.UUID),
			Stream:      comments.Key,
			Owner:       parent.Owner,
			Actor:       args.Nick,
			ParentEntry: parent.Key,
			UUID:        args.UUID,
			Extra:       model.EntryExtra{Content: args.Content},
			CreatedAt:   now,
		}
		return entry, parent, stream, nil
	}
	return nil, nil, nil, fmt.Errorf("%w: unknown action %q", ErrInvalidProgress, task.Action)
}

// loadScope 恢复时重新加载条目并重算扇出范围
func (e *FanoutEngine) loadScope(ctx context.Context, task *model.Task) (*scope, error) {
	if _, err := e.liveActor(ctx, task.Actor); err != nil {
		return nil, err
	}

	var key string
	switch task.Action {
	case model.ActionPost:
		if task.Args.Post == nil {
			return nil, fmt.Errorf("%w: post task %s without args", ErrInvalidProgress, task.Key)
		}
		key = model.EntryKey(task.Args.Post.Stream, task.Args.Post.UUID)
	case model.ActionAddComment:
		if task.Args.Comment == nil {
			return nil, fmt.Errorf("%w: comment task %s without args", ErrInvalidProgress, task.Key)
		}
		c := task.Args.Comment
		key = model.EntryKey(model.StreamKey(c.Nick, model.StreamComments), c.UUID)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidProgress, task.Action)
	}

	entry, err := e.liveEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	var parent *model.Entry
	streamKey := entry.Stream
	if entry.IsComment() {
		if parent, err = e.liveEntry(ctx, entry.ParentEntry); err != nil {
			return nil, err
		}
		streamKey = parent.Stream
	}
	stream, err := e.liveStream(ctx, streamKey)
	if err != nil {
		return nil, err
	}
	return newScope(entry, parent, stream), nil
}

func (e *FanoutEngine) liveActor(ctx context.Context, nick string) (*model.Actor, error) {
	a, err := e.actors.Get(ctx, nick)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && a.IsDeleted()) {
		return nil, deletedIdentity("actor", nick)
	}
	return a, err
}

func (e *FanoutEngine) liveEntry(ctx context.Context, key string) (*model.Entry, error) {
	entry, err := e.entries.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && entry.IsDeleted()) {
		return nil, deletedIdentity("entry", key)
	}
	return entry, err
}

func (e *FanoutEngine) liveStream(ctx context.Context, key string) (*model.Stream, error) {
	s, err := e.streams.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && s.DeletedAt != nil) {
		return nil, deletedIdentity("stream", key)
	}
	return s, err
}
