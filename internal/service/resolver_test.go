package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/streamfan/internal/model"
	"github.com/d60-Lab/streamfan/internal/repository"
	"github.com/d60-Lab/streamfan/internal/testutil"
)

func seedSubs(t *testing.T, subs repository.SubscriptionRepository, topic string, states map[string]string) {
	t.Helper()
	for target, state := range states {
		require.NoError(t, subs.Upsert(context.Background(), topic, target, state))
	}
}

func TestResolver_RestrictedFilterRunsAfterPaging(t *testing.T) {
	subs := repository.NewSubscriptionRepository(testutil.NewDB(t))
	seedSubs(t, subs, "stream/x/presence", map[string]string{
		"A": model.SubscriptionSubscribed,
		"B": model.SubscriptionPending,
		"C": model.SubscriptionSubscribed,
	})
	r := NewResolver(subs)
	ctx := context.Background()

	// pending 的 B 占用了第一页的额度
	p1, err := r.Page(ctx, []string{"stream/x/presence"}, true, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, p1.Targets)
	assert.True(t, p1.More)
	assert.Equal(t, "B", p1.Next)

	p2, err := r.Page(ctx, []string{"stream/x/presence"}, true, p1.Next, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, p2.Targets)
	assert.False(t, p2.More)
	assert.Equal(t, "C", p2.Next)

	open, err := r.Page(ctx, []string{"stream/x/presence"}, false, "", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, open.Targets)
	assert.False(t, open.More)
}

func TestResolver_UnionAcrossTopics(t *testing.T) {
	subs := repository.NewSubscriptionRepository(testutil.NewDB(t))
	seedSubs(t, subs, "t1", map[string]string{"A": model.SubscriptionSubscribed, "C": model.SubscriptionSubscribed, "E": model.SubscriptionSubscribed})
	seedSubs(t, subs, "t2", map[string]string{"A": model.SubscriptionSubscribed, "B": model.SubscriptionSubscribed, "D": model.SubscriptionSubscribed})
	r := NewResolver(subs)
	ctx := context.Background()

	all, err := r.Page(ctx, []string{"t1", "t2"}, false, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, all.Targets)
	assert.False(t, all.More)

	var got []string
	after := ""
	for i := 0; i < 10; i++ {
		p, err := r.Page(ctx, []string{"t1", "t2"}, false, after, 2)
		require.NoError(t, err)
		got = append(got, p.Targets...)
		if !p.More {
			break
		}
		after = p.Next
	}
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, got)
}

func TestResolver_PendingOnOneTopicSubscribedOnAnother(t *testing.T) {
	subs := repository.NewSubscriptionRepository(testutil.NewDB(t))
	seedSubs(t, subs, "t1", map[string]string{"A": model.SubscriptionPending})
	seedSubs(t, subs, "t2", map[string]string{"A": model.SubscriptionSubscribed})

	p, err := NewResolver(subs).Page(context.Background(), []string{"t1", "t2"}, true, "", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, p.Targets)
}

func TestResolver_Empty(t *testing.T) {
	subs := repository.NewSubscriptionRepository(testutil.NewDB(t))
	p, err := NewResolver(subs).Page(context.Background(), []string{"nothing"}, false, "", 5)
	require.NoError(t, err)
	assert.Empty(t, p.Targets)
	assert.False(t, p.More)
	assert.Equal(t, "", p.Next)
}
