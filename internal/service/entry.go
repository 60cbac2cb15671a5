package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/d60-Lab/streamfan/internal/model"
	"github.com/d60-Lab/streamfan/internal/repository"
)

// txRepos 事务内使用的一组仓储
type txRepos struct {
	entries repository.EntryRepository
	actors  repository.ActorRepository
	subs    repository.SubscriptionRepository
	inbox   repository.InboxRepository
	tasks   repository.TaskRepository
}

func reposFor(db *gorm.DB) txRepos {
	return txRepos{
		entries: repository.NewEntryRepository(db),
		actors:  repository.NewActorRepository(db),
		subs:    repository.NewSubscriptionRepository(db),
		inbox:   repository.NewInboxRepository(db),
		tasks:   repository.NewTaskRepository(db),
	}
}

// addEntry 恰好创建一次条目。
// uuid 全局唯一；uuid 或确定性主键已存在时返回 *DuplicateEntryError。
// 评论：父条目评论数 +1，并让评论者订阅该条目的后续评论；
// 顶层条目：更新作者的当前状态，并让作者订阅自己条目的评论。
func addEntry(ctx context.Context, r txRepos, entry *model.Entry) error {
	if existing, err := r.entries.GetByUUID(ctx, entry.UUID); err == nil {
		return &DuplicateEntryError{Existing: existing, UUID: existing.UUID}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if existing, err := r.entries.Get(ctx, entry.Key); err == nil {
		return &DuplicateEntryError{Existing: existing, UUID: existing.UUID}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if err := r.entries.Create(ctx, entry); err != nil {
		// 并发插入时唯一约束兜底
		if existing, gErr := r.entries.GetByUUID(ctx, entry.UUID); gErr == nil {
			return &DuplicateEntryError{Existing: existing, UUID: existing.UUID}
		}
		return fmt.Errorf("create entry %s: %w", entry.Key, err)
	}

	commenter := model.InboxKey(entry.Actor, model.ViewOverview)
	if entry.IsComment() {
		if err := r.entries.IncrementCommentCount(ctx, entry.ParentEntry); err != nil {
			return fmt.Errorf("bump comment count %s: %w", entry.ParentEntry, err)
		}
		if err := r.subs.Upsert(ctx, entry.ParentEntry, commenter, model.SubscriptionSubscribed); err != nil {
			return fmt.Errorf("subscribe commenter: %w", err)
		}
		return nil
	}

	if err := r.actors.UpdatePresence(ctx, entry.Actor, entry.Key, entry.CreatedAt); err != nil {
		return fmt.Errorf("update presence %s: %w", entry.Actor, err)
	}
	if err := r.subs.Upsert(ctx, entry.Key, commenter, model.SubscriptionSubscribed); err != nil {
		return fmt.Errorf("subscribe author: %w", err)
	}
	return nil
}
