package lbcache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/leveler/internal/models"
)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c, err := New(context.Background(), "redis://"+s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.Rebuild(context.Background(), nil))
	return c, s
}

func rec(community, user string, xp int64, level int) models.LevelRecord {
	return models.LevelRecord{CommunityID: community, UserID: user, XP: xp, Level: level}
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestRecordAndTop_Order(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	for _, r := range []models.LevelRecord{
		rec("g1", "c", 300, 3),
		rec("g1", "b", 900, 5),
		rec("g1", "a", 900, 5),
		rec("g1", "d", 50, 2),
	} {
		require.NoError(t, c.Record(ctx, r))
	}

	top, err := c.Top(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, top, 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string{top[0].UserID, top[1].UserID, top[2].UserID, top[3].UserID})
	assert.Equal(t, int64(900), top[0].XP)
	assert.Equal(t, 5, top[0].Level)
	assert.Equal(t, int64(50), top[3].XP)
	assert.Equal(t, 2, top[3].Level)
}

func TestRecord_Overwrites(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, rec("g1", "u1", 40, 1)))
	require.NoError(t, c.Record(ctx, rec("g1", "u1", 60, 2)))

	top, err := c.Top(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(60), top[0].XP)
	assert.Equal(t, 2, top[0].Level)
}

func TestTop_Limit(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()
	for i, u := range []string{"a", "b", "c"} {
		require.NoError(t, c.Record(ctx, rec("g1", u, int64(100*(i+1)), 1)))
	}
	top, err := c.Top(ctx, "g1", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "c", top[0].UserID)
	assert.Equal(t, "b", top[1].UserID)
}

func TestTop_Miss(t *testing.T) {
	c, _ := setupCache(t)
	_, err := c.Top(context.Background(), "empty", 10)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestTop_MissUntilRebuilt(t *testing.T) {
	s := miniredis.RunT(t)
	c, err := New(context.Background(), "redis://"+s.Addr())
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, rec("g1", "u1", 10, 1)))
	_, err = c.Top(ctx, "g1", 10)
	assert.ErrorIs(t, err, ErrMiss, "a board built only from Record is not complete")

	require.NoError(t, c.Rebuild(ctx, []models.LevelRecord{rec("g1", "u1", 10, 1), rec("g1", "u2", 5, 1)}))
	top, err := c.Top(ctx, "g1", 10)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestTop_MissAfterFlush(t *testing.T) {
	c, s := setupCache(t)
	ctx := context.Background()
	require.NoError(t, c.Rebuild(ctx, []models.LevelRecord{rec("g1", "a", 500, 3), rec("g1", "b", 300, 2)}))

	s.FlushAll()
	require.NoError(t, c.Record(ctx, rec("g1", "newbie", 10, 1)))

	_, err := c.Top(ctx, "g1", 10)
	assert.ErrorIs(t, err, ErrMiss)
	synced, err := c.Synced(ctx)
	require.NoError(t, err)
	assert.False(t, synced)
}

func TestRecord_FailureMarksStale(t *testing.T) {
	c, s := setupCache(t)
	ctx := context.Background()
	require.NoError(t, c.Rebuild(ctx, []models.LevelRecord{rec("g1", "a", 500, 3)}))

	s.SetError("ERR write failed")
	assert.Error(t, c.Record(ctx, rec("g1", "a", 510, 3)))
	s.SetError("")

	// The marker survived in Redis, but the cache still refuses to answer.
	assert.True(t, s.Exists(keySynced))
	_, err := c.Top(ctx, "g1", 10)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Rebuild(ctx, []models.LevelRecord{rec("g1", "a", 510, 3)}))
	top, err := c.Top(ctx, "g1", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(510), top[0].XP)
}

func TestRebuild_ReplacesBoards(t *testing.T) {
	c, s := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, rec("stale", "x", 10, 1)))
	require.NoError(t, c.Record(ctx, rec("g1", "old", 5, 1)))

	err := c.Rebuild(ctx, []models.LevelRecord{
		rec("g1", "u1", 120, 2),
		rec("g1", "u2", 700, 4),
		rec("g2", "u3", 10, 1),
	})
	require.NoError(t, err)

	assert.False(t, s.Exists(keyBoard+"stale"), "stale board should be dropped")

	top, err := c.Top(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "u2", top[0].UserID)
	assert.Equal(t, "u1", top[1].UserID)

	top, err = c.Top(ctx, "g2", 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
}

func TestPing(t *testing.T) {
	c, s := setupCache(t)
	require.NoError(t, c.Ping(context.Background()))
	s.Close()
	assert.Error(t, c.Ping(context.Background()))
}
