package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 逐键比较 token，相同才删除；返回删除数
var releaseScript = redis.NewScript(`
local n = 0
for _, k in ipairs(KEYS) do
	if redis.call("GET", k) == ARGV[1] then
		n = n + redis.call("DEL", k)
	end
end
return n
`)

// RedisRegistry 基于 SET NX PX 的租约
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

func NewRedisRegistry(client *redis.Client, prefix string) *RedisRegistry {
	return &RedisRegistry{client: client, prefix: prefix}
}

func (r *RedisRegistry) key(k string) string { return r.prefix + k }

func (r *RedisRegistry) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(key), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	return ok, nil
}

func (r *RedisRegistry) AcquireMany(ctx context.Context, keys []string, token string, ttl time.Duration) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pipe := r.client.Pipeline()
	cmds := make([]*redis.BoolCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.SetNX(ctx, r.key(k), token, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("acquire %d leases: %w", len(keys), err)
	}

	var failed []string
	for i, cmd := range cmds {
		if !cmd.Val() {
			failed = append(failed, keys[i])
		}
	}
	return failed, nil
}

func (r *RedisRegistry) Release(ctx context.Context, key, token string) error {
	if err := r.release(ctx, []string{key}, token); err != nil {
		return fmt.Errorf("release lease %s: %w", key, err)
	}
	return nil
}

func (r *RedisRegistry) ReleaseMany(ctx context.Context, keys []string, token string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.release(ctx, keys, token); err != nil {
		return fmt.Errorf("release %d leases: %w", len(keys), err)
	}
	return nil
}

func (r *RedisRegistry) release(ctx context.Context, keys []string, token string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	return releaseScript.Run(ctx, r.client, full, token).Err()
}
