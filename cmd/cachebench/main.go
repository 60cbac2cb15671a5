package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/d60-Lab/streamfan/internal/cache"
	"github.com/d60-Lab/streamfan/internal/model"
	"github.com/d60-Lab/streamfan/internal/repository"
	"github.com/d60-Lab/streamfan/pkg/database"
)

// 通知阶段每页都要按 nick 批量取收件人资料；对比直接查库与 Redis 读穿缓存
func main() {
	ctx := context.Background()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=postgres port=5434 sslmode=disable"
	}
	db := must(gorm.Open(postgres.Open(dsn), &gorm.Config{}))
	mustDo(database.Migrate(db))

	actorCount := envInt("ACTORS", 20000)
	pageSize := envInt("PAGE", 100)
	rounds := envInt("ROUNDS", 500)

	run := uuid.NewString()[:8]
	actors := make([]model.Actor, actorCount)
	nicks := make([]string, actorCount)
	for i := range actors {
		nicks[i] = fmt.Sprintf("c%s%06d", run, i)
		actors[i] = model.Actor{
			Nick: nicks[i], Type: model.ActorTypeUser, Privacy: model.PrivacyPublic,
			IMAddress: "im:" + nicks[i], Mobile: "sms:" + nicks[i], NotifyIM: true, NotifySMS: i%3 == 0,
		}
	}
	mustDo(db.CreateInBatches(&actors, 1000).Error)
	fmt.Printf("seeded %d actors\n", actorCount)

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6380"
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer client.Close()

	repo := repository.NewActorRepository(db)
	people := cache.NewActorCache(repo, client, 10*time.Minute)

	// 热门作者的关注者集中在前 20%，模拟多次扇出命中同一批收件人
	hot := actorCount / 5
	pages := make([][]string, rounds)
	r := rand.New(rand.NewSource(42))
	for i := range pages {
		start := r.Intn(hot - pageSize)
		pages[i] = nicks[start : start+pageSize]
	}

	direct := make([]time.Duration, 0, rounds)
	for _, p := range pages {
		st := time.Now()
		_ = must(repo.GetMany(ctx, p))
		direct = append(direct, time.Since(st))
	}

	cached := make([]time.Duration, 0, rounds)
	for _, p := range pages {
		st := time.Now()
		_ = must(people.GetMany(ctx, p))
		cached = append(cached, time.Since(st))
	}

	hits, loads := people.Counters()
	fmt.Printf("ACTORS=%d PAGE=%d ROUNDS=%d\n", actorCount, pageSize, rounds)
	report("db GetMany", direct)
	report("cache GetMany", cached)
	fmt.Printf("cache hits=%d bulk_loads=%d hit_ratio=%.2f\n", hits, loads, float64(hits)/float64(rounds*pageSize))
}

func report(name string, vs []time.Duration) {
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	var sum time.Duration
	for _, d := range xs {
		sum += d
	}
	fmt.Printf("%-14s avg=%v p95=%v p99=%v\n", name, sum/time.Duration(len(xs)), xs[len(xs)*95/100], xs[len(xs)*99/100])
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}
