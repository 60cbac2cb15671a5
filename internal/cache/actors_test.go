package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/streamfan/internal/model"
	"github.com/d60-Lab/streamfan/internal/repository"
	"github.com/d60-Lab/streamfan/internal/testutil"
)

func TestActorCacheReadThrough(t *testing.T) {
	db := testutil.NewDB(t)
	client, mr := testutil.NewRedis(t)
	ctx := context.Background()

	actors := repository.NewActorRepository(db)
	require.NoError(t, actors.Create(ctx, &model.Actor{Nick: "alice", Type: model.ActorTypeUser, Privacy: model.PrivacyPublic, IMAddress: "alice@im", NotifyIM: true}))
	require.NoError(t, actors.Create(ctx, &model.Actor{Nick: "bob", Type: model.ActorTypeUser, Privacy: model.PrivacyPublic, Mobile: "+100"}))

	c := NewActorCache(actors, client, time.Minute)

	snaps, err := c.GetMany(ctx, []string{"bob", "ghost", "alice"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "bob", snaps[0].Nick)
	assert.Equal(t, "alice", snaps[1].Nick)
	assert.True(t, snaps[1].NotifyIM)
	assert.True(t, mr.Exists("actor:alice"))

	hits, loads := c.Counters()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(1), loads)

	_, err = c.GetMany(ctx, []string{"alice", "bob"})
	require.NoError(t, err)
	hits, loads = c.Counters()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), loads)
}

func TestActorCacheInvalidate(t *testing.T) {
	db := testutil.NewDB(t)
	client, mr := testutil.NewRedis(t)
	ctx := context.Background()

	actors := repository.NewActorRepository(db)
	require.NoError(t, actors.Create(ctx, &model.Actor{Nick: "alice", Type: model.ActorTypeUser, Privacy: model.PrivacyPublic}))

	c := NewActorCache(actors, client, time.Minute)
	_, err := c.GetMany(ctx, []string{"alice"})
	require.NoError(t, err)

	require.NoError(t, actors.UpdateNotifications(ctx, "alice", false, false, true))
	require.NoError(t, c.Invalidate(ctx, "alice"))
	assert.False(t, mr.Exists("actor:alice"))

	snaps, err := c.GetMany(ctx, []string{"alice"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].NotifyEmail)
}
