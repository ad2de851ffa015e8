// Package query serves the read-only progression views: a member's rank, a
// community leaderboard, and the level curve.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/leveler/internal/curve"
	"github.com/starford/leveler/internal/lbcache"
	"github.com/starford/leveler/internal/ledger"
	"github.com/starford/leveler/internal/metrics"
	"github.com/starford/leveler/internal/models"
	"github.com/starford/leveler/internal/progression"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// BoardReader serves cached leaderboards. It returns lbcache.ErrMiss when it
// has nothing for a community.
type BoardReader interface {
	Top(ctx context.Context, communityID string, limit int) ([]models.LevelRecord, error)
}

// Rank is the progress view of one member.
// XPNeeded and ProgressPercent are zero when IsMaxLevel is set.
type Rank struct {
	CommunityID     string `json:"community_id"`
	UserID          string `json:"user_id"`
	Level           int    `json:"level"`
	XP              int64  `json:"xp"`
	XPNeeded        int64  `json:"xp_needed,omitempty"`
	ProgressPercent int    `json:"progress_percent"`
	IsMaxLevel      bool   `json:"is_max_level"`
}

// Service answers rank, leaderboard and curve queries.
type Service struct {
	ledger       ledger.Ledger
	table        *curve.Table
	board        BoardReader
	defaultLimit int
	logger       *slog.Logger
}

// NewService creates a query service. board may be nil.
func NewService(l ledger.Ledger, table *curve.Table, board BoardReader, defaultLimit int, logger *slog.Logger) *Service {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLeaderboardLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledger:       l,
		table:        table,
		board:        board,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// RankOf returns the progress of one member, or apperr.ErrNotFound.
func (s *Service) RankOf(ctx context.Context, communityID, userID string) (Rank, error) {
	rec, err := s.ledger.Get(ctx, communityID, userID)
	if err != nil {
		return Rank{}, err
	}
	r := Rank{
		CommunityID: rec.CommunityID,
		UserID:      rec.UserID,
		Level:       rec.Level,
		XP:          rec.XP,
	}
	if progression.InOverflow(rec.Level, s.table) {
		r.IsMaxLevel = true
		return r, nil
	}
	needed, err := s.table.Threshold(rec.Level)
	if err != nil {
		return Rank{}, fmt.Errorf("query: rank %s/%s: %w", communityID, userID, err)
	}
	r.XPNeeded = needed
	r.ProgressPercent = int(rec.XP * 100 / needed)
	return r, nil
}

// Leaderboard returns up to limit members ordered by XP descending, ties by
// user id ascending. limit <= 0 means the configured default.
func (s *Service) Leaderboard(ctx context.Context, communityID string, limit int) ([]models.LevelRecord, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	if s.board != nil {
		recs, err := s.board.Top(ctx, communityID, limit)
		switch {
		case err == nil:
			return recs, nil
		case errors.Is(err, lbcache.ErrMiss):
		default:
			metrics.CacheErrorsTotal.WithLabelValues("top").Inc()
			s.logger.Warn("leaderboard cache read failed, using ledger",
				slog.String("community_id", communityID),
				slog.String("error", err.Error()))
		}
	}
	return s.ledger.Top(ctx, communityID, limit)
}

// Levels returns the XP curve.
func (s *Service) Levels() []models.CurveEntry {
	return s.table.Entries()
}

// MaxLevel returns the last level of the curve.
func (s *Service) MaxLevel() int {
	return s.table.MaxLevel()
}
