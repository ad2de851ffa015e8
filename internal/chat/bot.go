// Package chat connects inbound chat messages to the progression engine and
// turns level-ups into announcements.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/leveler/internal/metrics"
	"github.com/starford/leveler/internal/models"
	"github.com/starford/leveler/internal/ping"
	"github.com/starford/leveler/internal/progression"
)

// DefaultXPPerMessage is awarded for every message from a human author.
const DefaultXPPerMessage = 10

// Announcement kinds.
const (
	KindLevelUp = "level_up"
	KindPing    = "ping"
)

// Message is one inbound chat message.
type Message struct {
	CommunityID string `json:"community_id"`
	ChannelID   string `json:"channel_id"`
	UserID      string `json:"user_id"`
	IsBot       bool   `json:"is_bot"`
	Content     string `json:"content"`
}

// Announcement is an outbound notice for the chat layer to deliver.
type Announcement struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	CommunityID string `json:"community_id"`
	ChannelID   string `json:"channel_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Level       int    `json:"level,omitempty"`
	Text        string `json:"text"`
}

// Notifier delivers announcements.
type Notifier interface {
	Notify(ctx context.Context, a Announcement) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, a Announcement) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, a Announcement) error {
	return f(ctx, a)
}

// Awarder is the subset of progression.Engine the bot needs.
type Awarder interface {
	AwardXP(ctx context.Context, communityID, userID string, delta int64) (progression.Result, error)
}

// Pinger starts ping sequences.
type Pinger interface {
	Start(ctx context.Context, channelID string, say ping.SayFunc)
}

// Reply summarizes what handling a message did.
type Reply struct {
	Ignored  bool                  `json:"ignored"`
	Pinging  bool                  `json:"pinging"`
	Record   *models.LevelRecord   `json:"record,omitempty"`
	LevelUps []models.LevelUpEvent `json:"level_ups"`
}

// Bot handles inbound messages.
type Bot struct {
	awarder      Awarder
	notifier     Notifier
	pinger       Pinger
	xpPerMessage int64
	pingCtx      context.Context
	logger       *slog.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithPinger enables the ping demo.
func WithPinger(p Pinger) Option {
	return func(b *Bot) {
		b.pinger = p
	}
}

// WithXPPerMessage overrides the per-message award.
func WithXPPerMessage(xp int64) Option {
	return func(b *Bot) {
		if xp > 0 {
			b.xpPerMessage = xp
		}
	}
}

// WithPingContext sets the context ping sequences run under. Sequences
// outlive the message that started them.
func WithPingContext(ctx context.Context) Option {
	return func(b *Bot) {
		b.pingCtx = ctx
	}
}

// WithLogger sets the bot logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = l
	}
}

// NewBot creates a Bot awarding through a and announcing through n.
func NewBot(a Awarder, n Notifier, opts ...Option) *Bot {
	b := &Bot{
		awarder:      a,
		notifier:     n,
		xpPerMessage: DefaultXPPerMessage,
		pingCtx:      context.Background(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// LevelUpText is the announcement posted for a level-up.
func LevelUpText(userID string, level int) string {
	return fmt.Sprintf("Congrats <@%s>, you've leveled up to level %d!", userID, level)
}

// HandleMessage awards XP for msg and announces any level-ups. Messages from
// bots earn nothing. An award failure is logged and returned; the message is
// not retried.
func (b *Bot) HandleMessage(ctx context.Context, msg Message) (Reply, error) {
	reply := Reply{LevelUps: []models.LevelUpEvent{}}

	if msg.Content == ping.Trigger && b.pinger != nil {
		b.startPing(msg)
		reply.Pinging = true
	}

	if msg.IsBot {
		metrics.MessagesTotal.WithLabelValues("ignored").Inc()
		reply.Ignored = true
		return reply, nil
	}

	res, err := b.awarder.AwardXP(ctx, msg.CommunityID, msg.UserID, b.xpPerMessage)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("failed").Inc()
		b.logger.Error("award failed, message dropped",
			slog.String("community_id", msg.CommunityID),
			slog.String("user_id", msg.UserID),
			slog.String("error", err.Error()))
		return reply, err
	}
	metrics.MessagesTotal.WithLabelValues("awarded").Inc()

	rec := res.Record
	reply.Record = &rec
	reply.LevelUps = res.LevelUps

	for _, ev := range res.LevelUps {
		a := Announcement{
			ID:          uuid.NewString(),
			Kind:        KindLevelUp,
			CommunityID: ev.CommunityID,
			ChannelID:   msg.ChannelID,
			UserID:      ev.UserID,
			Level:       ev.NewLevel,
			Text:        LevelUpText(ev.UserID, ev.NewLevel),
		}
		b.notify(ctx, a)
	}
	return reply, nil
}

func (b *Bot) startPing(msg Message) {
	b.logger.Info("ping enabled",
		slog.String("community_id", msg.CommunityID),
		slog.String("channel_id", msg.ChannelID))
	b.pinger.Start(b.pingCtx, msg.ChannelID, func(ctx context.Context, channelID, text string) error {
		if b.notifier == nil {
			return nil
		}
		return b.notifier.Notify(ctx, Announcement{
			ID:          uuid.NewString(),
			Kind:        KindPing,
			CommunityID: msg.CommunityID,
			ChannelID:   channelID,
			Text:        text,
		})
	})
}

func (b *Bot) notify(ctx context.Context, a Announcement) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.Notify(ctx, a); err != nil {
		b.logger.Warn("announcement failed",
			slog.String("kind", a.Kind),
			slog.String("community_id", a.CommunityID),
			slog.String("error", err.Error()))
	}
}
