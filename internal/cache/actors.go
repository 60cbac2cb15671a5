package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/streamfan/internal/model"
	"github.com/d60-Lab/streamfan/internal/repository"
	"github.com/d60-Lab/streamfan/pkg/logger"
)

// ActorSnapshot contains the actor fields notification dispatch needs.
type ActorSnapshot struct {
	Nick        string `json:"nick"`
	IMAddress   string `json:"im,omitempty"`
	Mobile      string `json:"mobile,omitempty"`
	Email       string `json:"email,omitempty"`
	NotifyIM    bool   `json:"notify_im"`
	NotifySMS   bool   `json:"notify_sms"`
	NotifyEmail bool   `json:"notify_email"`
	Deleted     bool   `json:"deleted"`
}

// SnapshotOf projects an actor row into its cached form.
func SnapshotOf(a *model.Actor) ActorSnapshot {
	return ActorSnapshot{
		Nick:        a.Nick,
		IMAddress:   a.IMAddress,
		Mobile:      a.Mobile,
		Email:       a.Email,
		NotifyIM:    a.NotifyIM,
		NotifySMS:   a.NotifySMS,
		NotifyEmail: a.NotifyEmail,
		Deleted:     a.IsDeleted(),
	}
}

// ActorCache is a read-through Redis cache in front of the actor table.
// Every notification page resolves a batch of nicks, so lookups are MGET
// first and one bulk query for whatever missed.
type ActorCache struct {
	actors repository.ActorRepository
	cache  *redis.Client
	ttl    time.Duration

	hits     atomic.Int64
	bulkLoad atomic.Int64
}

func NewActorCache(actors repository.ActorRepository, cache *redis.Client, ttl time.Duration) *ActorCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ActorCache{actors: actors, cache: cache, ttl: ttl}
}

func actorKey(nick string) string { return fmt.Sprintf("actor:%s", nick) }

// GetMany returns snapshots in input order; unknown nicks are skipped.
func (c *ActorCache) GetMany(ctx context.Context, nicks []string) ([]ActorSnapshot, error) {
	if len(nicks) == 0 {
		return []ActorSnapshot{}, nil
	}

	keys := make([]string, len(nicks))
	for i, n := range nicks {
		keys[i] = actorKey(n)
	}

	found := make(map[string]ActorSnapshot, len(nicks))
	if vals, err := c.cache.MGet(ctx, keys...).Result(); err == nil {
		for i, v := range vals {
			str, ok := v.(string)
			if !ok {
				continue
			}
			var snap ActorSnapshot
			if uErr := json.Unmarshal([]byte(str), &snap); uErr == nil {
				found[nicks[i]] = snap
				c.hits.Add(1)
			}
		}
	} else {
		logger.Warn("actor cache mget failed", zap.Int("keys", len(keys)), zap.Error(err))
	}

	missing := make([]string, 0, len(nicks))
	for _, n := range nicks {
		if _, ok := found[n]; !ok {
			missing = append(missing, n)
		}
	}

	if len(missing) > 0 {
		c.bulkLoad.Add(1)
		rows, err := c.actors.GetMany(ctx, missing)
		if err != nil {
			return nil, err
		}
		pipe := c.cache.Pipeline()
		for _, a := range rows {
			snap := SnapshotOf(a)
			found[a.Nick] = snap
			if payload, err := json.Marshal(snap); err == nil {
				pipe.Set(ctx, actorKey(a.Nick), payload, c.ttl)
			}
		}
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn("actor cache fill failed", zap.Int("actors", len(rows)), zap.Error(err))
		}
	}

	result := make([]ActorSnapshot, 0, len(nicks))
	for _, n := range nicks {
		if snap, ok := found[n]; ok {
			result = append(result, snap)
		}
	}
	return result, nil
}

// Invalidate drops cached snapshots after an actor changes.
func (c *ActorCache) Invalidate(ctx context.Context, nicks ...string) error {
	if len(nicks) == 0 {
		return nil
	}
	keys := make([]string, len(nicks))
	for i, n := range nicks {
		keys[i] = actorKey(n)
	}
	return c.cache.Del(ctx, keys...).Err()
}

// Counters reports cache hits and how many bulk DB loads ran.
func (c *ActorCache) Counters() (hits, bulkLoads int64) {
	return c.hits.Load(), c.bulkLoad.Load()
}
