package model

import "time"

const (
	SubscriptionPending    = "pending"
	SubscriptionSubscribed = "subscribed"
)

// Subscription 订阅关系（topic → target），(topic, target) 唯一
type Subscription struct {
	ID     string `gorm:"primaryKey;type:varchar(36)"`
	Topic  string `gorm:"type:varchar(255);not null;uniqueIndex:ux_sub_topic_target,priority:1"`
	Target string `gorm:"type:varchar(255);not null;uniqueIndex:ux_sub_topic_target,priority:2;index:idx_sub_target"`
	// 复合唯一键同时充当 topic 内按 target 排序的范围索引
	State     string `gorm:"type:varchar(16);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Subscription) TableName() string { return "subscriptions" }

func (s *Subscription) IsSubscribed() bool { return s.State == SubscriptionSubscribed }
