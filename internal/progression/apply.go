package progression

import (
	"fmt"
	"math"

	"github.com/starford/leveler/internal/apperr"
	"github.com/starford/leveler/internal/curve"
	"github.com/starford/leveler/internal/models"
)

// Apply adds delta to rec and resolves every level-up it triggers against
// table. Events come back in ascending level order.
//
// Crossing the threshold of the last level moves the record into the
// overflow state: level becomes MaxLevel+1, xp is floored at
// curve.OverflowFloor, and no further lookups happen for that record.
//
// A negative delta or one that would overflow xp yields apperr.ErrOutOfRange
// and leaves rec untouched.
func Apply(rec models.LevelRecord, delta int64, table *curve.Table) (models.LevelRecord, []models.LevelUpEvent, error) {
	if delta < 0 {
		return rec, nil, fmt.Errorf("progression: negative delta %d: %w", delta, apperr.ErrOutOfRange)
	}
	if rec.XP > math.MaxInt64-delta {
		return rec, nil, fmt.Errorf("progression: xp %d + %d overflows: %w", rec.XP, delta, apperr.ErrOutOfRange)
	}
	rec.XP += delta
	events := make([]models.LevelUpEvent, 0)

	last := table.MaxLevel()
	for rec.Level <= last {
		threshold, err := table.Threshold(rec.Level)
		if err != nil {
			return rec, nil, err
		}
		if rec.XP < threshold {
			break
		}
		rec.Level++
		events = append(events, models.LevelUpEvent{
			CommunityID: rec.CommunityID,
			UserID:      rec.UserID,
			NewLevel:    rec.Level,
		})
		if rec.Level > last {
			rec.XP = max(curve.OverflowFloor, rec.XP)
			break
		}
	}
	return rec, events, nil
}

// InOverflow reports whether a level is past the last threshold of table.
func InOverflow(level int, table *curve.Table) bool {
	return level > table.MaxLevel()
}
