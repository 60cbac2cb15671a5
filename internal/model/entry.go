package model

import (
	"time"
)

// EntryExtra 条目正文等附加字段
type EntryExtra struct {
	Title    string `json:"title,omitempty"`
	Content  string `json:"content,omitempty"`
	Location string `json:"location,omitempty"`
}

// Entry 帖子或评论（ParentEntry 非空即为评论）
type Entry struct {
	Key          string     `gorm:"primaryKey;type:varchar(255)"` // <stream>/<uuid>
	Stream       string     `gorm:"type:varchar(255);index;not null"`
	Owner        string     `gorm:"type:varchar(64);index;not null"`
	Actor        string     `gorm:"type:varchar(64);index;not null"`
	ParentEntry  string     `gorm:"type:varchar(255);index"`
	UUID         string     `gorm:"column:uuid;type:varchar(64);uniqueIndex;not null"`
	Extra        EntryExtra `gorm:"serializer:json;type:text"`
	CommentCount int64      `gorm:"not null;default:0"`
	CreatedAt    time.Time  `gorm:"index"`
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

func (Entry) TableName() string { return "entries" }

func (e *Entry) IsComment() bool { return e.ParentEntry != "" }

func (e *Entry) IsDeleted() bool { return e.DeletedAt != nil }

// EntryKey 条目的确定性主键
func EntryKey(stream, uuid string) string { return stream + "/" + uuid }
