package model

import "time"

// InboxEntry 一批 inbox 目标可见某条目；同一条目的多批以 Shard 区分，只追加不合并。
// (Entry, Shard) 唯一：重新推导同一 shard 时忽略。
type InboxEntry struct {
	ID          string   `gorm:"primaryKey;type:varchar(36)"`
	Entry       string   `gorm:"type:varchar(255);not null;uniqueIndex:ux_inbox_entry_shard,priority:1"`
	Shard       string   `gorm:"type:varchar(255);not null;uniqueIndex:ux_inbox_entry_shard,priority:2"`
	Stream      string   `gorm:"type:varchar(255);index;not null"`
	StreamType  string   `gorm:"type:varchar(16);not null"`
	EntryUUID   string   `gorm:"column:entry_uuid;type:varchar(64);not null"`
	ParentEntry string   `gorm:"type:varchar(255)"`
	Targets     []string `gorm:"serializer:json;type:text"`
	CreatedAt   time.Time
}

func (InboxEntry) TableName() string { return "inbox_entries" }

// ShardInitial 起始阶段固定收件人批次
const ShardInitial = "initial"
