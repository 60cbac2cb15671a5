package model

import (
	"fmt"
	"time"
)

// 隐私级别（Stream 读写权限 / Actor 资料可见性）
const (
	PrivacyPrivate  = 1
	PrivacyContacts = 2
	PrivacyPublic   = 3
)

const (
	ActorTypeUser    = "user"
	ActorTypeChannel = "channel"
)

// Actor 用户或频道；DeletedAt 非空即视为已删除（墓碑）
type Actor struct {
	Nick    string `gorm:"primaryKey;type:varchar(64)"`
	Type    string `gorm:"type:varchar(16);not null;default:user"`
	Privacy int    `gorm:"not null;default:3"`

	IMAddress   string `gorm:"type:varchar(255)"`
	Mobile      string `gorm:"type:varchar(32)"`
	Email       string `gorm:"type:varchar(255)"`
	NotifyIM    bool
	NotifySMS   bool
	NotifyEmail bool

	// 当前状态快照：最近一条顶层 Post
	PresenceEntry string `gorm:"type:varchar(255)"`
	PresenceAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time `gorm:"index"`
}

func (Actor) TableName() string { return "actors" }

func (a *Actor) IsDeleted() bool { return a.DeletedAt != nil }

// InboxKey 形如 inbox/<nick>/<view>
func InboxKey(nick, view string) string { return fmt.Sprintf("inbox/%s/%s", nick, view) }

// inbox 视图
const (
	ViewOverview = "overview"
	ViewPrivate  = "private"
	ViewContacts = "contacts"
	ViewPublic   = "public"
)
