package repository

import (
    "context"
    "fmt"
    "testing"

    "github.com/google/uuid"

    "github.com/d60-Lab/streamfan/internal/model"
    "github.com/d60-Lab/streamfan/internal/testutil"
)

// 构造：一个 topic 有 N 个订阅者，按 target 游标逐页扫完
func BenchmarkSubscriptionPaging(b *testing.B) {
    db := testutil.NewDB(b)
    repo := NewSubscriptionRepository(db)
    ctx := context.Background()

    const N = 5000
    subs := make([]model.Subscription, N)
    for i := range subs {
        subs[i] = model.Subscription{ID: uuid.NewString(), Topic: "stream/u0/presence", Target: model.InboxKey(fmt.Sprintf("u%05d", i), model.ViewOverview), State: model.SubscriptionSubscribed}
    }
    if err := db.CreateInBatches(&subs, 500).Error; err != nil { b.Fatalf("seed subs: %v", err) }

    for _, limit := range []int{50, 200, 1000} {
        b.Run(fmt.Sprintf("limit=%d", limit), func(b *testing.B) {
            for i := 0; i < b.N; i++ {
                after, seen := "", 0
                for {
                    page, err := repo.ListAfter(ctx, "stream/u0/presence", after, limit+1)
                    if err != nil { b.Fatalf("list: %v", err) }
                    if len(page) > limit { page = page[:limit] }
                    seen += len(page)
                    if len(page) < limit { break }
                    after = page[len(page)-1].Target
                }
                if seen != N { b.Fatalf("seen %d want %d", seen, N) }
            }
        })
    }
}

// 评论的扇出同时读 stream 与条目两个 topic
func BenchmarkSubscriptionPagingMany(b *testing.B) {
    db := testutil.NewDB(b)
    repo := NewSubscriptionRepository(db)
    ctx := context.Background()

    const N = 2000
    for t, topic := range []string{"stream/u0/presence", "stream/u0/presence/e1"} {
        subs := make([]model.Subscription, N)
        for i := range subs {
            subs[i] = model.Subscription{ID: uuid.NewString(), Topic: topic, Target: model.InboxKey(fmt.Sprintf("u%05d", i*2+t), model.ViewOverview), State: model.SubscriptionSubscribed}
        }
        if err := db.CreateInBatches(&subs, 500).Error; err != nil { b.Fatalf("seed subs: %v", err) }
    }

    topics := []string{"stream/u0/presence", "stream/u0/presence/e1"}
    b.ResetTimer()
    for i := 0; i < b.N; i++ {
        if _, err := repo.ListAfterMany(ctx, topics, "", 201); err != nil { b.Fatalf("list: %v", err) }
    }
}
