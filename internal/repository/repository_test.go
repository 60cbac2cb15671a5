package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/streamfan/internal/model"
	"github.com/d60-Lab/streamfan/internal/testutil"
)

func TestSubscriptionRepository_UpsertAndList(t *testing.T) {
	repo := NewSubscriptionRepository(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "t1", "c", model.SubscriptionPending))
	require.NoError(t, repo.Upsert(ctx, "t1", "a", model.SubscriptionSubscribed))
	require.NoError(t, repo.Upsert(ctx, "t1", "b", model.SubscriptionSubscribed))
	require.NoError(t, repo.Upsert(ctx, "t1", "c", model.SubscriptionSubscribed))
	require.NoError(t, repo.Upsert(ctx, "t2", "a", model.SubscriptionSubscribed))

	got, err := repo.Get(ctx, "t1", "c")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionSubscribed, got.State)

	page, err := repo.ListAfter(ctx, "t1", "a", 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Target)
	assert.Equal(t, "c", page[1].Target)

	many, err := repo.ListAfterMany(ctx, []string{"t1", "t2"}, "", 1)
	require.NoError(t, err)
	require.Len(t, many, 2)
	assert.Equal(t, "a", many[0].Target)

	byTarget, err := repo.ListByTarget(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, byTarget, 2)

	require.NoError(t, repo.Delete(ctx, "t1", "a"))
	_, err = repo.Get(ctx, "t1", "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRepository_Lifecycle(t *testing.T) {
	repo := NewTaskRepository(testutil.NewDB(t))
	ctx := context.Background()

	task := &model.Task{
		Key:      "task/alice/post/u1",
		Actor:    "alice",
		Action:   model.ActionPost,
		ActionID: "u1",
		Args:     model.TaskArgs{Post: &model.PostArgs{Nick: "alice", Stream: "stream/alice/presence", UUID: "u1", Message: "hi"}},
	}
	got, err := repo.CreateIfAbsent(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, "", got.Progress)
	require.NotNil(t, got.Args.Post)
	assert.Equal(t, "hi", got.Args.Post.Message)

	require.NoError(t, repo.UpdateProgress(ctx, task.Key, "inboxes:"))
	dup := *task
	dup.Progress = ""
	got, err = repo.CreateIfAbsent(ctx, &dup)
	require.NoError(t, err)
	assert.Equal(t, "inboxes:", got.Progress)

	require.NoError(t, repo.SetExpires(ctx, task.Key, time.Now().Add(time.Second)))
	other := &model.Task{Key: "task/bob/post/u2", Actor: "bob", Action: model.ActionPost, ActionID: "u2"}
	_, err = repo.CreateIfAbsent(ctx, other)
	require.NoError(t, err)

	all, err := repo.ListOutstanding(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	mine, err := repo.ListOutstanding(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "u2", mine[0].ActionID)

	require.NoError(t, repo.Delete(ctx, task.Key))
	_, err = repo.Get(ctx, task.Key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.UpdateProgress(ctx, task.Key, "notifications:"), ErrNotFound)
}

func TestInboxRepository_AppendIsIdempotentPerShard(t *testing.T) {
	repo := NewInboxRepository(testutil.NewDB(t))
	ctx := context.Background()
	batch := func(shard string, targets ...string) *model.InboxEntry {
		return &model.InboxEntry{
			Entry: "stream/alice/presence/u1", Shard: shard, Stream: "stream/alice/presence",
			StreamType: model.StreamPresence, EntryUUID: "u1", Targets: targets, CreatedAt: time.Now(),
		}
	}

	require.NoError(t, repo.Append(ctx, batch(model.ShardInitial, "inbox/alice/overview")))
	require.NoError(t, repo.Append(ctx, batch("inbox/bob/overview", "inbox/bob/overview")))
	require.NoError(t, repo.Append(ctx, batch("inbox/bob/overview", "inbox/bob/overview")))

	got, err := repo.ListForEntry(ctx, "stream/alice/presence/u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"inbox/alice/overview"}, got[0].Targets)
}

func TestEntryRepository(t *testing.T) {
	repo := NewEntryRepository(testutil.NewDB(t))
	ctx := context.Background()

	e := &model.Entry{Key: "stream/alice/presence/u1", Stream: "stream/alice/presence", Owner: "alice", Actor: "alice", UUID: "u1",
		Extra: model.EntryExtra{Title: "t", Content: "c"}}
	require.NoError(t, repo.Create(ctx, e))
	assert.Error(t, repo.Create(ctx, &model.Entry{Key: "stream/bob/presence/u1", Stream: "stream/bob/presence", Owner: "bob", Actor: "bob", UUID: "u1"}))

	byUUID, err := repo.GetByUUID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, e.Key, byUUID.Key)
	assert.Equal(t, "c", byUUID.Extra.Content)

	require.NoError(t, repo.IncrementCommentCount(ctx, e.Key))
	require.NoError(t, repo.IncrementCommentCount(ctx, e.Key))
	got, err := repo.Get(ctx, e.Key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.CommentCount)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActorRepository(t *testing.T) {
	repo := NewActorRepository(testutil.NewDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &model.Actor{Nick: "alice", Type: model.ActorTypeUser, Privacy: model.PrivacyPublic}))
	require.NoError(t, repo.Create(ctx, &model.Actor{Nick: "bob", Type: model.ActorTypeUser, Privacy: model.PrivacyPublic}))

	now := time.Now()
	require.NoError(t, repo.UpdatePresence(ctx, "alice", "stream/alice/presence/u1", now))
	require.NoError(t, repo.UpdateNotifications(ctx, "alice", true, false, true))
	require.NoError(t, repo.MarkDeleted(ctx, "bob", now))

	many, err := repo.GetMany(ctx, []string{"alice", "bob", "nobody"})
	require.NoError(t, err)
	require.Len(t, many, 2)
	assert.Equal(t, "stream/alice/presence/u1", many[0].PresenceEntry)
	assert.True(t, many[0].NotifyIM)
	assert.False(t, many[0].NotifySMS)
	assert.True(t, many[1].IsDeleted())

	assert.ErrorIs(t, repo.UpdateNotifications(ctx, "nobody", true, true, true), ErrNotFound)
}
