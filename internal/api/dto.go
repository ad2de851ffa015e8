package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/leveler/internal/chat"
	"github.com/starford/leveler/internal/models"
	"github.com/starford/leveler/internal/query"
)

const maxContentLen = 4000

// MessageRequest is the request body for an inbound chat message.
type MessageRequest struct {
	CommunityID string `json:"community_id" example:"guild-1" validate:"required"`
	ChannelID   string `json:"channel_id" example:"general"`
	UserID      string `json:"user_id" example:"user-42" validate:"required"`
	IsBot       bool   `json:"is_bot" example:"false"`
	Content     string `json:"content" example:"hello"`
}

// Validate validates the message request.
func (m MessageRequest) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.CommunityID, validation.Required, validation.Length(1, 64)),
		validation.Field(&m.UserID, validation.Required, validation.Length(1, 64)),
		validation.Field(&m.ChannelID, validation.Length(0, 64)),
		validation.Field(&m.Content, validation.Length(0, maxContentLen)),
	)
}

func (m MessageRequest) toMessage() chat.Message {
	return chat.Message{
		CommunityID: m.CommunityID,
		ChannelID:   m.ChannelID,
		UserID:      m.UserID,
		IsBot:       m.IsBot,
		Content:     m.Content,
	}
}

// MessageResponse reports what handling a message did (aliased from the chat layer).
type MessageResponse = chat.Reply

// RankResponse is a member's progress (aliased from the query layer).
type RankResponse = query.Rank

// LeaderboardEntry is one ranked member.
type LeaderboardEntry struct {
	Position int    `json:"position" example:"1" validate:"required"`
	UserID   string `json:"user_id" example:"user-42" validate:"required"`
	XP       int64  `json:"xp" example:"1200" validate:"required"`
	Level    int    `json:"level" example:"5" validate:"required"`
}

// LeaderboardResponse wraps a community leaderboard.
type LeaderboardResponse struct {
	CommunityID string             `json:"community_id" validate:"required"`
	Entries     []LeaderboardEntry `json:"entries" validate:"required"`
}

// LevelsResponse wraps the XP curve.
type LevelsResponse struct {
	MaxLevel int                 `json:"max_level" example:"35" validate:"required"`
	Levels   []models.CurveEntry `json:"levels" validate:"required"`
}

func toLeaderboard(communityID string, recs []models.LevelRecord) LeaderboardResponse {
	entries := make([]LeaderboardEntry, len(recs))
	for i, r := range recs {
		entries[i] = LeaderboardEntry{
			Position: i + 1,
			UserID:   r.UserID,
			XP:       r.XP,
			Level:    r.Level,
		}
	}
	return LeaderboardResponse{CommunityID: communityID, Entries: entries}
}
