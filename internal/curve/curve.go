// Package curve holds the fixed XP curve: the cumulative XP a member needs at
// each level before moving on to the next one.
package curve

import (
	"fmt"

	"github.com/starford/leveler/internal/apperr"
	"github.com/starford/leveler/internal/models"
)

// MaxLevel is the last level with a threshold in the reference curve.
// It must stay next to defaultThresholds.
const MaxLevel = 35

// OverflowFloor is the minimum XP a member holds after crossing the
// threshold of the last level.
const OverflowFloor int64 = 1_000_000

var defaultThresholds = [MaxLevel]int64{
	50, 250, 500, 750, 1000, 2500, 5000, 7500, 10000, 15000,
	20000, 25000, 30000, 35000, 40000, 45000, 50000, 62500, 75000, 100000,
	125000, 150000, 175000, 200000, 250000, 300000, 400000, 500000, 750000, 1000000,
	1250000, 1500000, 1750000, 2000000, 2500000,
}

var defaultTable = mustNew(defaultThresholds[:])

// Table maps level (1-based) to the XP threshold for leaving that level.
// A Table is immutable once built.
type Table struct {
	thresholds []int64
}

// Default returns the reference curve.
func Default() *Table {
	return defaultTable
}

// New builds a table from thresholds ordered by level, starting at level 1.
// Thresholds must be positive and strictly increasing.
func New(thresholds []int64) (*Table, error) {
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("curve: at least one threshold is required")
	}
	for i, t := range thresholds {
		if t <= 0 {
			return nil, fmt.Errorf("curve: level %d threshold %d must be positive", i+1, t)
		}
		if i > 0 && t <= thresholds[i-1] {
			return nil, fmt.Errorf("curve: level %d threshold %d not above level %d threshold %d",
				i+1, t, i, thresholds[i-1])
		}
	}
	cp := make([]int64, len(thresholds))
	copy(cp, thresholds)
	return &Table{thresholds: cp}, nil
}

func mustNew(thresholds []int64) *Table {
	t, err := New(thresholds)
	if err != nil {
		panic(err)
	}
	return t
}

// MaxLevel returns the last level that has a threshold.
func (t *Table) MaxLevel() int {
	return len(t.thresholds)
}

// Threshold returns the cumulative XP needed to leave level.
func (t *Table) Threshold(level int) (int64, error) {
	if level < 1 || level > len(t.thresholds) {
		return 0, fmt.Errorf("curve: level %d outside [1, %d]: %w", level, len(t.thresholds), apperr.ErrOutOfRange)
	}
	return t.thresholds[level-1], nil
}

// Entries lists every level with its threshold, in level order.
func (t *Table) Entries() []models.CurveEntry {
	out := make([]models.CurveEntry, len(t.thresholds))
	for i, th := range t.thresholds {
		out[i] = models.CurveEntry{Level: i + 1, Threshold: th}
	}
	return out
}
