// Package lease 跨 worker 的限时独占租约，用于保证同一任务同一时刻只有一个 worker 推进。
package lease

import (
	"context"
	"time"
)

// Registry 带 TTL 的 set-if-absent 键空间。每次占用写入持有者 token，
// 释放时只删除仍属于该 token 的键，过期后被他人接手的租约不会被误删。
type Registry interface {
	// Acquire 键不存在时写入 token；true 表示调用方在 ttl 内持有
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// AcquireMany 逐个尝试，返回已被占用的键
	AcquireMany(ctx context.Context, keys []string, token string, ttl time.Duration) (failed []string, err error)
	Release(ctx context.Context, key, token string) error
	ReleaseMany(ctx context.Context, keys []string, token string) error
}
