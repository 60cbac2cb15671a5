package model

import (
	"fmt"
	"time"
)

const (
	StreamPresence = "presence"
	StreamComments = "comments"
)

// Stream 归属于一个 Actor 的条目通道
type Stream struct {
	Key       string `gorm:"primaryKey;type:varchar(255)"` // stream/<owner>/<name>
	Owner     string `gorm:"type:varchar(64);index;not null"`
	Name      string `gorm:"type:varchar(64);not null"`
	Type      string `gorm:"type:varchar(16);not null"`
	Read      int    `gorm:"not null;default:3"`
	Write     int    `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (Stream) TableName() string { return "streams" }

// Restricted 读权限低于公开时，pending 订阅者不能收到内容
func (s *Stream) Restricted() bool { return s.Read < PrivacyPublic }

func StreamKey(owner, name string) string { return fmt.Sprintf("stream/%s/%s", owner, name) }
