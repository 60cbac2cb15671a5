package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/streamfan/internal/model"
	"github.com/d60-Lab/streamfan/internal/repository"
)

func TestRelationship_CreateActor(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.actor("alice", model.PrivacyContacts)

	streams := repository.NewStreamRepository(f.db)
	presence, err := streams.Get(ctx, "stream/alice/presence")
	require.NoError(t, err)
	assert.Equal(t, model.PrivacyContacts, presence.Read)
	assert.Equal(t, model.PrivacyPrivate, presence.Write)
	assert.True(t, presence.Restricted())
	_, err = streams.Get(ctx, "stream/alice/comments")
	require.NoError(t, err)

	sub, err := repository.NewSubscriptionRepository(f.db).Get(ctx, "stream/alice/presence", "inbox/alice/overview")
	require.NoError(t, err)
	assert.True(t, sub.IsSubscribed())

	_, err = f.rel.CreateActor(ctx, CreateActorRequest{Nick: "alice"})
	assert.Error(t, err, "nick is taken")
	_, err = f.rel.CreateActor(ctx, CreateActorRequest{Nick: "bad nick!"})
	assert.Error(t, err)
}

func TestRelationship_FollowPublicAndRestricted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.actor("alice", model.PrivacyPublic)
	f.actor("bob", model.PrivacyPrivate)
	f.actor("carol", model.PrivacyPublic)
	subs := repository.NewSubscriptionRepository(f.db)

	require.NoError(t, f.rel.Follow(ctx, "carol", "alice"))
	sub, err := subs.Get(ctx, "stream/alice/presence", "inbox/carol/overview")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionSubscribed, sub.State)

	require.NoError(t, f.rel.Follow(ctx, "carol", "bob"))
	sub, err = subs.Get(ctx, "stream/bob/presence", "inbox/carol/overview")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionPending, sub.State)

	require.NoError(t, f.rel.Approve(ctx, "bob", "carol"))
	// 已通过的订阅重复 follow 不降级
	require.NoError(t, f.rel.Follow(ctx, "carol", "bob"))
	sub, err = subs.Get(ctx, "stream/bob/presence", "inbox/carol/overview")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionSubscribed, sub.State)

	assert.ErrorIs(t, f.rel.Follow(ctx, "alice", "alice"), ErrFollowSelf)
	assert.ErrorIs(t, f.rel.Follow(ctx, "alice", "nobody"), repository.ErrNotFound)
	assert.ErrorIs(t, f.rel.Approve(ctx, "alice", "bob"), repository.ErrNotFound)

	require.NoError(t, f.rel.Unfollow(ctx, "carol", "alice"))
	_, err = subs.Get(ctx, "stream/alice/presence", "inbox/carol/overview")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRelationship_ListFollowers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.actor("alice", model.PrivacyPublic)
	f.followers("alice", 3)

	first, err := f.rel.ListFollowers(ctx, "alice", "", 3)
	require.NoError(t, err)
	// alice 自己的订阅占一个位置但不计入关注者
	assert.Equal(t, []string{"f01", "f02"}, first)

	rest, err := f.rel.ListFollowers(ctx, "alice", model.InboxKey("f02", model.ViewOverview), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"f03"}, rest)
}

func TestRelationship_SetNotifications(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.actor("alice", model.PrivacyPublic)
	f.actor("bob", model.PrivacyPublic)
	require.NoError(t, f.rel.Follow(ctx, "bob", "alice"))

	// 先把 bob 读进缓存，确认关闭后缓存失效
	f.post("alice", "p1", "one")
	f.drain()
	require.Contains(t, f.sms.Recipients(), "sms:bob")

	require.NoError(t, f.rel.SetNotifications(ctx, "bob", true, false, false))
	f.post("alice", "p2", "two")
	f.drain()

	count := 0
	for _, r := range f.sms.Recipients() {
		if r == "sms:bob" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.ErrorIs(t, f.rel.SetNotifications(ctx, "nobody", true, true, true), repository.ErrNotFound)
}
