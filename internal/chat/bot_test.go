package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/leveler/internal/apperr"
	"github.com/starford/leveler/internal/curve"
	"github.com/starford/leveler/internal/ping"
	"github.com/starford/leveler/internal/progression"
	"github.com/starford/leveler/internal/testutil"
)

type inbox struct {
	mu  sync.Mutex
	got []Announcement
	err error
}

func (in *inbox) Notify(_ context.Context, a Announcement) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.got = append(in.got, a)
	return in.err
}

func (in *inbox) snapshot() []Announcement {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]Announcement(nil), in.got...)
}

func newBot(t *testing.T, n Notifier, opts ...Option) (*Bot, *progression.Engine) {
	t.Helper()
	engine := progression.NewEngine(testutil.TestLedger(t), curve.Default())
	return NewBot(engine, n, opts...), engine
}

func TestHandleMessage_AwardsTenXP(t *testing.T) {
	in := &inbox{}
	bot, _ := newBot(t, in)

	reply, err := bot.HandleMessage(context.Background(), Message{CommunityID: "g1", ChannelID: "c1", UserID: "u1", Content: "hello"})
	require.NoError(t, err)
	require.NotNil(t, reply.Record)
	assert.Equal(t, int64(10), reply.Record.XP)
	assert.Equal(t, 1, reply.Record.Level)
	assert.Empty(t, reply.LevelUps)
	assert.Empty(t, in.snapshot())
}

func TestHandleMessage_IgnoresBots(t *testing.T) {
	in := &inbox{}
	bot, _ := newBot(t, in)

	reply, err := bot.HandleMessage(context.Background(), Message{CommunityID: "g1", UserID: "bot", IsBot: true, Content: "beep"})
	require.NoError(t, err)
	assert.True(t, reply.Ignored)
	assert.Nil(t, reply.Record)
}

func TestHandleMessage_AnnouncesLevelUp(t *testing.T) {
	in := &inbox{}
	bot, _ := newBot(t, in)
	ctx := context.Background()

	var reply Reply
	var err error
	for i := 0; i < 5; i++ {
		reply, err = bot.HandleMessage(ctx, Message{CommunityID: "g1", ChannelID: "c1", UserID: "u1"})
		require.NoError(t, err)
	}

	require.Len(t, reply.LevelUps, 1)
	assert.Equal(t, 2, reply.LevelUps[0].NewLevel)

	got := in.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, KindLevelUp, got[0].Kind)
	assert.Equal(t, "c1", got[0].ChannelID)
	assert.Equal(t, 2, got[0].Level)
	assert.Equal(t, "Congrats <@u1>, you've leveled up to level 2!", got[0].Text)
	assert.NotEmpty(t, got[0].ID)
}

func TestHandleMessage_NotifierFailureIsNotFatal(t *testing.T) {
	in := &inbox{err: errors.New("channel gone")}
	bot, _ := newBot(t, in, WithXPPerMessage(60))

	reply, err := bot.HandleMessage(context.Background(), Message{CommunityID: "g1", UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, reply.LevelUps, 1)
}

type brokenAwarder struct{}

func (brokenAwarder) AwardXP(context.Context, string, string, int64) (progression.Result, error) {
	return progression.Result{}, apperr.ErrPersistence
}

func TestHandleMessage_PersistenceFailureDropsEvent(t *testing.T) {
	in := &inbox{}
	bot := NewBot(brokenAwarder{}, in)

	_, err := bot.HandleMessage(context.Background(), Message{CommunityID: "g1", UserID: "u1"})
	assert.ErrorIs(t, err, apperr.ErrPersistence)
	assert.Empty(t, in.snapshot())

	// The bot keeps serving afterwards.
	_, err = bot.HandleMessage(context.Background(), Message{CommunityID: "g1", UserID: "u2", IsBot: true})
	assert.NoError(t, err)
}

func TestHandleMessage_EnablePing(t *testing.T) {
	in := &inbox{}
	runner := ping.NewRunner(10*time.Millisecond, 15*time.Millisecond, nil)
	bot, _ := newBot(t, in, WithPinger(runner))

	reply, err := bot.HandleMessage(context.Background(), Message{CommunityID: "g1", ChannelID: "c7", UserID: "u1", Content: "Enable ping."})
	require.NoError(t, err)
	assert.True(t, reply.Pinging)
	runner.Wait()

	var texts []string
	for _, a := range in.snapshot() {
		if a.Kind == KindPing {
			assert.Equal(t, "c7", a.ChannelID)
			assert.Equal(t, "g1", a.CommunityID)
			texts = append(texts, a.Text)
		}
	}
	assert.Equal(t, []string{"Pong! (1)", "Pong! (2)"}, texts)
}

func TestHandleMessage_PingNeedsExactContent(t *testing.T) {
	runner := ping.NewRunner(time.Hour, time.Hour, nil)
	bot, _ := newBot(t, &inbox{}, WithPinger(runner))

	for _, content := range []string{"enable ping.", "Enable ping", " Enable ping."} {
		reply, err := bot.HandleMessage(context.Background(), Message{CommunityID: "g1", UserID: "u1", Content: content})
		require.NoError(t, err)
		assert.False(t, reply.Pinging, content)
	}
}

func TestNotifierFunc(t *testing.T) {
	var seen Announcement
	n := NotifierFunc(func(_ context.Context, a Announcement) error {
		seen = a
		return nil
	})
	require.NoError(t, n.Notify(context.Background(), Announcement{Kind: KindPing, Text: "x"}))
	assert.Equal(t, "x", seen.Text)
}
