package model

import (
	"fmt"
	"time"
)

// Action 可恢复任务对应的发布操作
type Action string

const (
	ActionPost       Action = "post"
	ActionAddComment Action = "entry_add_comment"
)

// PostArgs 发布顶层条目的参数（恢复时原样重放）
type PostArgs struct {
	Nick     string `json:"nick"`
	Stream   string `json:"stream"`
	UUID     string `json:"uuid"`
	Title    string `json:"title,omitempty"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// CommentArgs 评论参数
type CommentArgs struct {
	Nick    string `json:"nick"`
	Entry   string `json:"entry"`
	UUID    string `json:"uuid"`
	Content string `json:"content"`
}

// TaskArgs 按 Action 区分的参数，恰有一个字段非空
type TaskArgs struct {
	Post    *PostArgs    `json:"post,omitempty"`
	Comment *CommentArgs `json:"comment,omitempty"`
}

// Task 一次可续跑的扇出工作单元，(actor, action, action_id) 唯一
type Task struct {
	Key       string    `gorm:"primaryKey;type:varchar(255)"`
	Actor     string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_task_identity,priority:1;index:idx_task_actor_created,priority:1"`
	Action    Action    `gorm:"type:varchar(32);not null;uniqueIndex:ux_task_identity,priority:2"`
	ActionID  string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_task_identity,priority:3"`
	Args      TaskArgs  `gorm:"serializer:json;type:text"`
	Progress  string    `gorm:"type:text;not null;default:''"`
	ExpiresAt *time.Time // 最近一次租约截止时间，仅作观测
	CreatedAt time.Time `gorm:"index;index:idx_task_actor_created,priority:2"`
	UpdatedAt time.Time

	// LeaseToken 当前 worker 持有租约时的 token，不落库
	LeaseToken string `gorm:"-" json:"-"`
}

func (Task) TableName() string { return "tasks" }

// TaskID 任务身份
type TaskID struct {
	Actor    string
	Action   Action
	ActionID string
}

func (id TaskID) Key() string {
	return fmt.Sprintf("task/%s/%s/%s", id.Actor, id.Action, id.ActionID)
}

func (t *Task) ID() TaskID {
	return TaskID{Actor: t.Actor, Action: t.Action, ActionID: t.ActionID}
}
