package service

import (
	"errors"
	"fmt"

	"github.com/d60-Lab/streamfan/internal/model"
)

var (
	// ErrLocked 另一个 worker 持有任务租约；稍后重试即可，不是应用错误
	ErrLocked = errors.New("task is leased by another worker")
	// ErrNoOutstandingWork 没有待处理任务，轮询方据此停止
	ErrNoOutstandingWork = errors.New("no outstanding tasks")
	// ErrDuplicateEntry uuid 或确定性主键已存在，视为已成功
	ErrDuplicateEntry = errors.New("duplicate entry")
	// ErrDeletedIdentity 任务引用的 actor / entry 已删除；该任务致命，不再重试
	ErrDeletedIdentity = errors.New("referenced identity was deleted")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidProgress  = errors.New("invalid task progress")
	ErrFollowSelf       = errors.New("cannot follow self")
)

// DuplicateEntryError 携带已存在的条目；uuid 被尚未建出条目的任务占用时 Existing 为空
type DuplicateEntryError struct {
	Existing *model.Entry
	UUID     string
}

func (e *DuplicateEntryError) Error() string {
	if e.Existing == nil {
		return fmt.Sprintf("duplicate entry: uuid %s is being published elsewhere", e.UUID)
	}
	return fmt.Sprintf("duplicate entry: %s (uuid %s)", e.Existing.Key, e.Existing.UUID)
}

func (e *DuplicateEntryError) Is(target error) bool { return target == ErrDuplicateEntry }

func deletedIdentity(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrDeletedIdentity, kind, id)
}
