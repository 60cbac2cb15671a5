package service

import (
	"context"
	"sort"

	"github.com/d60-Lab/streamfan/internal/repository"
)

// Page 一页订阅目标
type Page struct {
	// Targets 升序、去重；受限 topic 已过滤掉 pending
	Targets []string
	More    bool
	// Next 本页（过滤前）最后一个目标，作为下一页游标
	Next string
}

// Resolver 按 topic 分页解析订阅目标
type Resolver struct {
	subs repository.SubscriptionRepository
}

func NewResolver(subs repository.SubscriptionRepository) *Resolver {
	return &Resolver{subs: subs}
}

// Page 对每个 topic 取 target > after 的 limit+1 条，合并排序去重后截断到 limit。
// 受限过滤在截断之后进行：pending 订阅同样占用页额度，游标推进与过滤无关。
func (r *Resolver) Page(ctx context.Context, topics []string, restricted bool, after string, limit int) (Page, error) {
	if limit <= 0 {
		limit = 1
	}
	subs, err := r.subs.ListAfterMany(ctx, topics, after, limit+1)
	if err != nil {
		return Page{}, err
	}

	seen := make(map[string]struct{}, len(subs))
	subscribed := make(map[string]struct{}, len(subs))
	targets := make([]string, 0, len(subs))
	for _, s := range subs {
		if s.IsSubscribed() {
			subscribed[s.Target] = struct{}{}
		}
		if _, ok := seen[s.Target]; ok {
			continue
		}
		seen[s.Target] = struct{}{}
		targets = append(targets, s.Target)
	}
	sort.Strings(targets)

	page := Page{}
	if len(targets) > limit {
		page.More = true
		targets = targets[:limit]
	}
	if len(targets) > 0 {
		page.Next = targets[len(targets)-1]
	}

	if restricted {
		kept := targets[:0]
		for _, t := range targets {
			if _, ok := subscribed[t]; ok {
				kept = append(kept, t)
			}
		}
		targets = kept
	}
	page.Targets = targets
	return page, nil
}
