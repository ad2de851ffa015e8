package curve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/leveler/internal/apperr"
)

func TestDefault_Shape(t *testing.T) {
	tbl := Default()
	assert.Equal(t, MaxLevel, tbl.MaxLevel())

	first, err := tbl.Threshold(1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), first)

	last, err := tbl.Threshold(MaxLevel)
	require.NoError(t, err)
	assert.Equal(t, int64(2_500_000), last)
}

func TestDefault_StrictlyIncreasing(t *testing.T) {
	entries := Default().Entries()
	require.Len(t, entries, MaxLevel)
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].Threshold, entries[i-1].Threshold, "level %d", entries[i].Level)
		assert.Equal(t, i+1, entries[i].Level)
	}
}

func TestThreshold_OutOfRange(t *testing.T) {
	tbl := Default()
	for _, lvl := range []int{0, -1, MaxLevel + 1} {
		_, err := tbl.Threshold(lvl)
		assert.ErrorIs(t, err, apperr.ErrOutOfRange, "level %d", lvl)
	}
}

func TestNew_RejectsBadTables(t *testing.T) {
	cases := map[string][]int64{
		"empty":      {},
		"zero":       {0, 10},
		"negative":   {-5},
		"equal":      {50, 50},
		"decreasing": {50, 250, 200},
	}
	for name, th := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(th)
			assert.Error(t, err)
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	in := []int64{10, 20, 30}
	tbl, err := New(in)
	require.NoError(t, err)

	in[0] = 999
	got, err := tbl.Threshold(1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got)
}
