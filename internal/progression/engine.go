// Package progression implements the XP award state machine on top of the
// ledger.
package progression

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/leveler/internal/apperr"
	"github.com/starford/leveler/internal/curve"
	"github.com/starford/leveler/internal/ledger"
	"github.com/starford/leveler/internal/metrics"
	"github.com/starford/leveler/internal/models"
)

// BoardRecorder receives every committed record, e.g. a leaderboard cache.
type BoardRecorder interface {
	Record(ctx context.Context, rec models.LevelRecord) error
}

// Result is the outcome of one award.
type Result struct {
	Record   models.LevelRecord    `json:"record"`
	LevelUps []models.LevelUpEvent `json:"level_ups"`
}

// Engine awards XP and persists the resulting progression.
// Awards to the same (community, user) key are serialized.
type Engine struct {
	ledger ledger.Ledger
	table  *curve.Table
	board  BoardRecorder
	logger *slog.Logger
	locks  *keyLocks
}

// Option configures an Engine.
type Option func(*Engine)

// WithBoard mirrors committed records into r. Failures are logged only.
func WithBoard(r BoardRecorder) Option {
	return func(e *Engine) {
		e.board = r
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an Engine over l using table.
func NewEngine(l ledger.Ledger, table *curve.Table, opts ...Option) *Engine {
	e := &Engine{
		ledger: l,
		table:  table,
		logger: slog.Default(),
		locks:  newKeyLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the curve the engine resolves levels against.
func (e *Engine) Table() *curve.Table {
	return e.table
}

// AwardXP adds delta XP to the member, creating the record on first touch,
// and returns the committed record with the level-ups it caused.
func (e *Engine) AwardXP(ctx context.Context, communityID, userID string, delta int64) (Result, error) {
	if communityID == "" || userID == "" {
		return Result{}, fmt.Errorf("progression: community and user ids are required")
	}
	if delta < 0 {
		return Result{}, fmt.Errorf("progression: negative delta %d: %w", delta, apperr.ErrOutOfRange)
	}

	start := time.Now()
	unlock := e.locks.lock(lockKey(communityID, userID))
	defer unlock()

	var events []models.LevelUpEvent
	rec, err := e.ledger.Mutate(ctx, communityID, userID, func(r *models.LevelRecord) error {
		next, evs, err := Apply(*r, delta, e.table)
		if err != nil {
			return err
		}
		if next.Level < 1 || next.Level > e.table.MaxLevel()+1 || next.XP < 0 {
			return fmt.Errorf("progression: refusing to store level %d xp %d: %w", next.Level, next.XP, apperr.ErrOutOfRange)
		}
		*r = next
		events = evs
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("progression: award %s/%s: %w", communityID, userID, err)
	}
	metrics.AwardDuration.Observe(time.Since(start).Seconds())
	metrics.XPAwardedTotal.Add(float64(delta))
	metrics.LevelUpsTotal.Add(float64(len(events)))

	if e.board != nil {
		if err := e.board.Record(ctx, *rec); err != nil {
			metrics.CacheErrorsTotal.WithLabelValues("record").Inc()
			e.logger.Warn("board record failed",
				slog.String("community_id", communityID),
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
		}
	}

	for _, ev := range events {
		e.logger.Debug("level up",
			slog.String("community_id", ev.CommunityID),
			slog.String("user_id", ev.UserID),
			slog.Int("level", ev.NewLevel))
	}
	return Result{Record: *rec, LevelUps: events}, nil
}
