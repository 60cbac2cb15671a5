package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/streamfan/internal/cache"
	"github.com/d60-Lab/streamfan/internal/model"
)

func TestAddressesFiltersByPreference(t *testing.T) {
	actors := []cache.ActorSnapshot{
		{Nick: "a", IMAddress: "a@im", NotifyIM: true, Mobile: "+1", NotifySMS: true},
		{Nick: "b", IMAddress: "b@im", NotifyIM: false, Email: "b@x", NotifyEmail: true},
		{Nick: "c", IMAddress: "c@im", NotifyIM: true, Deleted: true},
		{Nick: "d", NotifyIM: true},
	}
	assert.Equal(t, []string{"a@im"}, Addresses(ChannelIM, actors))
	assert.Equal(t, []string{"+1"}, Addresses(ChannelSMS, actors))
	assert.Equal(t, []string{"b@x"}, Addresses(ChannelEmail, actors))
}

func TestDispatchSwallowsSenderErrors(t *testing.T) {
	broken := SenderFunc(func(context.Context, []string, string, string) error {
		return errors.New("gateway down")
	})
	rec := &Recorder{}
	d := NewDispatcher(map[Channel]Sender{ChannelIM: broken, ChannelSMS: rec})

	n, err := d.Dispatch(context.Background(), ChannelIM, []string{"a@im"}, Message{Body: "hi"})
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = d.Dispatch(context.Background(), ChannelSMS, []string{"+1", "+2"}, Message{Body: "hi"})
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, rec.Sent(), 1)
	assert.Equal(t, []string{"+1", "+2"}, rec.Sent()[0].Recipients)

	n, err = d.Dispatch(context.Background(), ChannelEmail, []string{"x@y"}, Message{})
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDispatchReturnsDeferredSends(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(map[Channel]Sender{ChannelIM: NewThrottled(rec, 0.001, 1)})
	ctx := context.Background()

	n, err := d.Dispatch(ctx, ChannelIM, []string{"a@im"}, Message{Body: "1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	n, err = d.Dispatch(ctx, ChannelIM, []string{"a@im"}, Message{Body: "2"})
	assert.ErrorIs(t, err, ErrDeferred)
	assert.Equal(t, 0, n)
	assert.Len(t, rec.Sent(), 1)
}

func TestComposeComment(t *testing.T) {
	e := &model.Entry{Actor: "bob", Owner: "alice", ParentEntry: "stream/alice/presence/1", Extra: model.EntryExtra{Content: "nice"}}
	msg := Compose(ChannelEmail, e)
	assert.Equal(t, "bob commented on alice's post: nice", msg.Body)
	assert.Contains(t, msg.HTML, "<p>")

	post := &model.Entry{Actor: "alice", Owner: "alice", Extra: model.EntryExtra{Title: "hello"}}
	assert.Equal(t, "alice: hello", Compose(ChannelIM, post).Body)
	assert.Empty(t, Compose(ChannelIM, post).HTML)
}

func TestThrottledHonoursContext(t *testing.T) {
	rec := &Recorder{}
	th := NewThrottled(rec, 0.001, 1)
	ctx := context.Background()
	require.NoError(t, th.SendMessage(ctx, []string{"a"}, "1", ""))

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, th.SendMessage(ctx, []string{"a"}, "2", ""), ErrDeferred)
	assert.Len(t, rec.Sent(), 1)
}
