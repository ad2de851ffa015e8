package api

import (
	"context"

	"github.com/starford/leveler/internal/chat"
	"github.com/starford/leveler/internal/models"
	"github.com/starford/leveler/internal/query"
)

// MessageHandler processes inbound chat messages.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg chat.Message) (chat.Reply, error)
}

// Queries serves the read-only progression views.
type Queries interface {
	RankOf(ctx context.Context, communityID, userID string) (query.Rank, error)
	Leaderboard(ctx context.Context, communityID string, limit int) ([]models.LevelRecord, error)
	Levels() []models.CurveEntry
	MaxLevel() int
}

var (
	_ MessageHandler = (*chat.Bot)(nil)
	_ Queries        = (*query.Service)(nil)
)
