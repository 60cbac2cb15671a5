package main

import (
    "context"
    "fmt"
    "os"
    "sort"
    "strconv"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/d60-Lab/streamfan/config"
    "github.com/d60-Lab/streamfan/internal/cache"
    "github.com/d60-Lab/streamfan/internal/lease"
    "github.com/d60-Lab/streamfan/internal/model"
    "github.com/d60-Lab/streamfan/internal/notify"
    "github.com/d60-Lab/streamfan/internal/repository"
    "github.com/d60-Lab/streamfan/internal/service"
    "github.com/d60-Lab/streamfan/pkg/database"
)

// 发布 → 并发 worker 续跑扇出 → 统计每条帖子从发布到任务删除的耗时
func main() {
    cfg, err := config.Load()
    if err != nil { panic(err) }
    db, err := database.InitDB(cfg)
    if err != nil { panic(err) }
    if err := database.Migrate(db); err != nil { panic(err) }
    rdb := database.InitRedis(cfg)
    defer rdb.Close()

    FOLLOWERS := envInt("FOLLOWERS", 2000)
    POSTS := envInt("POSTS", 20)
    WORKERS := envInt("WORKERS", 4)

    ctx := context.Background()
    fc := cfg.Fanout
    rec := &notify.Recorder{}
    people := cache.NewActorCache(repository.NewActorRepository(db), rdb, cfg.Redis.CacheTTL)
    store := service.NewTaskStore(repository.NewTaskRepository(db), lease.NewRedisRegistry(rdb, cfg.Redis.LeasePrefix), fc.LeaseTTL)
    dispatcher := notify.NewDispatcher(map[notify.Channel]notify.Sender{notify.ChannelIM: rec, notify.ChannelSMS: rec, notify.ChannelEmail: rec})
    engine := service.NewFanoutEngine(db, store, people, dispatcher, fc)
    publisher := service.NewPublisher(db, engine, store)
    processor := service.NewProcessor(store, publisher, fc)
    rel := service.NewRelationshipService(db, people)

    // 每次运行用新的前缀，避免和上一次的数据冲突
    run := uuid.NewString()[:8]
    author := "a" + run
    if _, err := rel.CreateActor(ctx, service.CreateActorRequest{Nick: author, IMAddress: "im:" + author, NotifyIM: true}); err != nil { panic(err) }
    seedStart := time.Now()
    for i := 0; i < FOLLOWERS; i++ {
        nick := fmt.Sprintf("f%s%06d", run, i)
        if _, err := rel.CreateActor(ctx, service.CreateActorRequest{Nick: nick, IMAddress: "im:" + nick, Mobile: "sms:" + nick, NotifyIM: true, NotifySMS: i%2 == 0}); err != nil { panic(err) }
        if err := rel.Follow(ctx, nick, author); err != nil { panic(err) }
    }
    fmt.Printf("seeded %d followers in %v\n", FOLLOWERS, time.Since(seedStart))

    published := make(map[string]time.Time, POSTS)
    for i := 0; i < POSTS; i++ {
        id := fmt.Sprintf("p%s%04d", run, i)
        if _, err := publisher.Post(ctx, service.AsActor(author), service.PostRequest{Nick: author, UUID: id, Message: fmt.Sprintf("post %d", i)}); err != nil { panic(err) }
        published[model.TaskID{Actor: author, Action: model.ActionPost, ActionID: id}.Key()] = time.Now()
    }

    var mu sync.Mutex
    latencies := make([]time.Duration, 0, POSTS)
    done := make(chan struct{})
    go func() {
        // 轮询剩余任务，任务消失即视为该帖子扇出完成
        for {
            mu.Lock(); left := len(published); mu.Unlock()
            if left == 0 { break }
            tasks, err := store.ListOutstanding(ctx, author, POSTS)
            if err != nil { panic(err) }
            open := make(map[string]struct{}, len(tasks))
            for _, t := range tasks { open[t.Key] = struct{}{} }
            mu.Lock()
            for k, at := range published {
                if _, ok := open[k]; !ok { latencies = append(latencies, time.Since(at)); delete(published, k) }
            }
            mu.Unlock()
            time.Sleep(5 * time.Millisecond)
        }
        close(done)
    }()

    drainStart := time.Now()
    var wg sync.WaitGroup
    var steps int
    for w := 0; w < WORKERS; w++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for {
                n, err := processor.Drain(ctx, author)
                if err != nil { fmt.Println("drain:", err) }
                mu.Lock(); steps += n; left := len(published); mu.Unlock()
                if left == 0 { return }
                if n == 0 { time.Sleep(10 * time.Millisecond) }
            }
        }()
    }
    wg.Wait()
    <-done
    total := time.Since(drainStart)

    pct := func(vs []time.Duration, p float64) time.Duration {
        xs := append([]time.Duration(nil), vs...)
        sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
        k := int(float64(len(xs))*p)
        if k >= len(xs) { k = len(xs)-1 }
        return xs[k]
    }
    fmt.Printf("FOLLOWERS=%d POSTS=%d WORKERS=%d PAGE=%d\n", FOLLOWERS, POSTS, WORKERS, fc.InboxPageSize)
    fmt.Printf("stages=%d total=%v stages/s=%.1f\n", steps, total, float64(steps)/total.Seconds())
    fmt.Printf("post latency: p50=%v p95=%v max=%v\n", pct(latencies, 0.5), pct(latencies, 0.95), pct(latencies, 1))
    fmt.Printf("notifications: batches=%d recipients=%d\n", len(rec.Sent()), len(rec.Recipients()))
    hits, loads := people.Counters()
    fmt.Printf("actor cache: hits=%d bulk_loads=%d\n", hits, loads)
}

func envInt(name string, def int) int {
    if s := os.Getenv(name); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { return v } }
    return def
}
