package ledger

import (
	"context"

	"github.com/starford/leveler/internal/models"
)

// Ledger defines the progression store operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type Ledger interface {
	Get(ctx context.Context, communityID, userID string) (*models.LevelRecord, error)
	Create(ctx context.Context, communityID, userID string) (*models.LevelRecord, error)
	Update(ctx context.Context, communityID, userID string, xp int64, level int) error
	Mutate(ctx context.Context, communityID, userID string, fn func(rec *models.LevelRecord) error) (*models.LevelRecord, error)
	Top(ctx context.Context, communityID string, limit int) ([]models.LevelRecord, error)
	All(ctx context.Context) ([]models.LevelRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies Ledger at compile time.
var _ Ledger = (*DB)(nil)
