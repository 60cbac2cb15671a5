package service

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/streamfan/config"
	"github.com/d60-Lab/streamfan/internal/cache"
	"github.com/d60-Lab/streamfan/internal/lease"
	"github.com/d60-Lab/streamfan/internal/model"
	"github.com/d60-Lab/streamfan/internal/notify"
	"github.com/d60-Lab/streamfan/internal/repository"
	"github.com/d60-Lab/streamfan/internal/testutil"
)

type fixture struct {
	t      *testing.T
	db     *gorm.DB
	client *redis.Client
	mr     *miniredis.Miniredis
	cfg    config.FanoutConfig

	im, sms, email *notify.Recorder
	// imSender 非空时替代 im 作为 IM 适配器（如限流包装）
	imSender notify.Sender

	store     *TaskStore
	engine    *FanoutEngine
	publisher *Publisher
	processor *Processor
	rel       RelationshipService
}

func newFixture(t *testing.T, tweak func(*config.FanoutConfig)) *fixture {
	t.Helper()
	cfg := config.DefaultFanout()
	if tweak != nil {
		tweak(&cfg)
	}
	client, mr := testutil.NewRedis(t)
	f := &fixture{
		t:      t,
		db:     testutil.NewDB(t),
		client: client,
		mr:     mr,
		cfg:    cfg,
		im:     &notify.Recorder{},
		sms:    &notify.Recorder{},
		email:  &notify.Recorder{},
	}
	f.rewire()
	return f
}

// rewire 模拟一个全新的 worker：不共享任何内存状态，只共享数据库与 redis
func (f *fixture) rewire() {
	people := cache.NewActorCache(repository.NewActorRepository(f.db), f.client, time.Minute)
	var im notify.Sender = f.im
	if f.imSender != nil {
		im = f.imSender
	}
	dispatcher := notify.NewDispatcher(map[notify.Channel]notify.Sender{
		notify.ChannelIM:    im,
		notify.ChannelSMS:   f.sms,
		notify.ChannelEmail: f.email,
	})
	f.store = NewTaskStore(repository.NewTaskRepository(f.db), lease.NewRedisRegistry(f.client, "lease:"), f.cfg.LeaseTTL)
	f.engine = NewFanoutEngine(f.db, f.store, people, dispatcher, f.cfg)
	f.publisher = NewPublisher(f.db, f.engine, f.store)
	f.processor = NewProcessor(f.store, f.publisher, f.cfg)
	f.processor.shuffle = func(int, func(i, j int)) {}
	f.rel = NewRelationshipService(f.db, people)
}

func (f *fixture) actor(nick string, privacy int) {
	f.t.Helper()
	_, err := f.rel.CreateActor(context.Background(), CreateActorRequest{
		Nick:        nick,
		Privacy:     privacy,
		IMAddress:   "im:" + nick,
		Mobile:      "sms:" + nick,
		Email:       nick + "@example.com",
		NotifyIM:    true,
		NotifySMS:   true,
		NotifyEmail: true,
	})
	require.NoError(f.t, err)
}

func (f *fixture) followers(of string, n int) []string {
	f.t.Helper()
	nicks := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		nick := fmt.Sprintf("f%02d", i)
		f.actor(nick, model.PrivacyPublic)
		require.NoError(f.t, f.rel.Follow(context.Background(), nick, of))
		nicks = append(nicks, nick)
	}
	return nicks
}

func (f *fixture) post(nick, uuid, message string) *model.Entry {
	f.t.Helper()
	e, err := f.publisher.Post(context.Background(), AsActor(nick), PostRequest{Nick: nick, UUID: uuid, Message: message})
	require.NoError(f.t, err)
	return e
}

func (f *fixture) drain() int {
	f.t.Helper()
	n, err := f.processor.Drain(context.Background(), "")
	require.NoError(f.t, err)
	return n
}

func (f *fixture) batches(entryKey string) []*model.InboxEntry {
	f.t.Helper()
	res, err := repository.NewInboxRepository(f.db).ListForEntry(context.Background(), entryKey)
	require.NoError(f.t, err)
	return res
}

// delivered 所有批次的目标（含重复），升序
func (f *fixture) delivered(entryKey string) []string {
	var out []string
	for _, b := range f.batches(entryKey) {
		out = append(out, b.Targets...)
	}
	sort.Strings(out)
	return out
}

func (f *fixture) outstanding() []*model.Task {
	f.t.Helper()
	tasks, err := f.store.ListOutstanding(context.Background(), "", 100)
	require.NoError(f.t, err)
	return tasks
}

func sorted(xs []string) []string {
	out := append([]string(nil), xs...)
	sort.Strings(out)
	return out
}

func overviews(nicks ...string) []string {
	out := make([]string, len(nicks))
	for i, n := range nicks {
		out[i] = model.InboxKey(n, model.ViewOverview)
	}
	return out
}
