package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/d60-Lab/streamfan/internal/model"
	"github.com/d60-Lab/streamfan/internal/repository"
)

// PostRequest 发布顶层条目；Stream 为空时发到作者的 presence stream
type PostRequest struct {
	Nick     string `json:"nick" validate:"required,max=64"`
	Stream   string `json:"stream" validate:"omitempty,max=255"`
	UUID     string `json:"uuid" validate:"required,max=64"`
	Title    string `json:"title" validate:"max=200"`
	Message  string `json:"message" validate:"required,max=4096"`
	Location string `json:"location" validate:"max=255"`
}

// CommentRequest 对已有条目发表评论
type CommentRequest struct {
	Nick    string `json:"nick" validate:"required,max=64"`
	Entry   string `json:"entry" validate:"required,max=255"`
	UUID    string `json:"uuid" validate:"required,max=64"`
	Content string `json:"content" validate:"required,max=4096"`
}

// Publisher 发布入口：建立（或复用）任务，持有租约执行起始阶段后返回；
// 余下阶段由 Processor 在后台推进。
type Publisher struct {
	engine   *FanoutEngine
	store    *TaskStore
	entries  repository.EntryRepository
	streams  repository.StreamRepository
	subs     repository.SubscriptionRepository
	validate *validator.Validate
}

func NewPublisher(db *gorm.DB, engine *FanoutEngine, store *TaskStore) *Publisher {
	return &Publisher{
		engine:   engine,
		store:    store,
		entries:  repository.NewEntryRepository(db),
		streams:  repository.NewStreamRepository(db),
		subs:     repository.NewSubscriptionRepository(db),
		validate: validator.New(),
	}
}

// Post 发布；同一 uuid 重放时返回已存在的条目
func (p *Publisher) Post(ctx context.Context, caller Caller, req PostRequest) (*model.Entry, error) {
	if err := p.validate.Struct(req); err != nil {
		return nil, err
	}
	if !caller.canActAs(req.Nick) {
		return nil, ErrPermissionDenied
	}
	if req.Stream == "" {
		req.Stream = model.StreamKey(req.Nick, model.StreamPresence)
	}
	stream, err := p.streams.Get(ctx, req.Stream)
	if err != nil {
		return nil, fmt.Errorf("stream %s: %w", req.Stream, err)
	}
	if !caller.IsInternal() && stream.Owner != req.Nick {
		return nil, ErrPermissionDenied
	}

	args := model.TaskArgs{Post: &model.PostArgs{
		Nick:     req.Nick,
		Stream:   stream.Key,
		UUID:     req.UUID,
		Title:    req.Title,
		Message:  req.Message,
		Location: req.Location,
	}}
	id := model.TaskID{Actor: req.Nick, Action: model.ActionPost, ActionID: req.UUID}
	return p.run(ctx, id, args, model.EntryKey(stream.Key, req.UUID))
}

// AddComment 评论；受限 stream 上只有 owner 与已通过的订阅者可以评论
func (p *Publisher) AddComment(ctx context.Context, caller Caller, req CommentRequest) (*model.Entry, error) {
	if err := p.validate.Struct(req); err != nil {
		return nil, err
	}
	if !caller.canActAs(req.Nick) {
		return nil, ErrPermissionDenied
	}
	parent, err := p.entries.Get(ctx, req.Entry)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", req.Entry, err)
	}
	if parent.IsDeleted() {
		return nil, fmt.Errorf("entry %s: %w", req.Entry, repository.ErrNotFound)
	}
	if !caller.IsInternal() {
		if err := p.checkCanRead(ctx, req.Nick, parent); err != nil {
			return nil, err
		}
	}

	args := model.TaskArgs{Comment: &model.CommentArgs{
		Nick:    req.Nick,
		Entry:   parent.Key,
		UUID:    req.UUID,
		Content: req.Content,
	}}
	id := model.TaskID{Actor: req.Nick, Action: model.ActionAddComment, ActionID: req.UUID}
	key := model.EntryKey(model.StreamKey(req.Nick, model.StreamComments), req.UUID)
	return p.run(ctx, id, args, key)
}

func (p *Publisher) checkCanRead(ctx context.Context, nick string, e *model.Entry) error {
	stream, err := p.streams.Get(ctx, e.Stream)
	if err != nil {
		return fmt.Errorf("stream %s: %w", e.Stream, err)
	}
	if !stream.Restricted() || stream.Owner == nick {
		return nil
	}
	sub, err := p.subs.Get(ctx, stream.Key, model.InboxKey(nick, model.ViewOverview))
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPermissionDenied
	}
	if err != nil {
		return err
	}
	if !sub.IsSubscribed() {
		return ErrPermissionDenied
	}
	return nil
}

// run 建立任务 → 取租约 → 推进一个阶段。
// 同一 uuid 已有指向别处的任务时按重复处理，不推进对方的任务。
func (p *Publisher) run(ctx context.Context, id model.TaskID, args model.TaskArgs, entryKey string) (*model.Entry, error) {
	existing, err := p.store.CreateOrGet(ctx, id, args)
	if err != nil {
		return nil, err
	}
	if !sameTarget(existing.Args, args) {
		return nil, p.conflict(ctx, id.ActionID)
	}
	task, err := p.store.GetLeased(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		// 任务在两步之间已由其他 worker 完成
		return p.existing(ctx, id.ActionID, entryKey)
	}
	if err != nil {
		return nil, err
	}

	entry, err := p.engine.Advance(ctx, task)
	var dup *DuplicateEntryError
	if errors.As(err, &dup) {
		if dup.Existing != nil && dup.Existing.Key == entryKey {
			return dup.Existing, nil
		}
		return nil, err
	}
	return entry, err
}

// sameTarget 两次请求是否发往同一 stream / 父条目
func sameTarget(a, b model.TaskArgs) bool {
	switch {
	case a.Post != nil && b.Post != nil:
		return a.Post.Stream == b.Post.Stream
	case a.Comment != nil && b.Comment != nil:
		return a.Comment.Entry == b.Comment.Entry
	}
	return false
}

func (p *Publisher) conflict(ctx context.Context, uuid string) error {
	e, err := p.entries.GetByUUID(ctx, uuid)
	if errors.Is(err, repository.ErrNotFound) {
		return &DuplicateEntryError{UUID: uuid}
	}
	if err != nil {
		return err
	}
	return &DuplicateEntryError{Existing: e, UUID: uuid}
}

func (p *Publisher) existing(ctx context.Context, uuid, entryKey string) (*model.Entry, error) {
	e, err := p.entries.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if e.Key != entryKey {
		return nil, &DuplicateEntryError{Existing: e, UUID: uuid}
	}
	return e, nil
}

// resumePost / resumeComment 供 Processor 按动作恢复任务；任务须已持有租约
func (p *Publisher) resumePost(ctx context.Context, caller Caller, task *model.Task, args *model.PostArgs) error {
	if !caller.IsInternal() {
		return ErrPermissionDenied
	}
	if args == nil || args.UUID != task.ActionID {
		return fmt.Errorf("%w: post task %s has mismatched args", ErrInvalidProgress, task.Key)
	}
	_, err := p.engine.Advance(ctx, task)
	return err
}

func (p *Publisher) resumeComment(ctx context.Context, caller Caller, task *model.Task, args *model.CommentArgs) error {
	if !caller.IsInternal() {
		return ErrPermissionDenied
	}
	if args == nil || args.UUID != task.ActionID {
		return fmt.Errorf("%w: comment task %s has mismatched args", ErrInvalidProgress, task.Key)
	}
	_, err := p.engine.Advance(ctx, task)
	return err
}
