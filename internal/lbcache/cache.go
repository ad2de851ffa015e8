// Package lbcache keeps per-community leaderboards in Redis sorted sets.
//
// Layout per community:
//   - sorted set "leveler:board:{community}" holds userID with score -xp
//   - hash "leveler:level:{community}" holds userID -> level
//   - string "leveler:synced" marks every board as a full copy of the ledger
//
// Only Rebuild sets the marker. A failed Record or a Redis restart removes
// it, and Top reports ErrMiss until the next Rebuild.
//
// Scores are negated so that ZRANGE returns highest XP first while members
// with equal scores come back in ascending user id order, the same order the
// ledger uses.
package lbcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/starford/leveler/internal/models"
)

const (
	keyBoard = "leveler:board:"
	keyLevel  = "leveler:level:"
	keySynced = "leveler:synced"
)

// ErrMiss is returned by Top when the cache cannot answer for the community.
var ErrMiss = errors.New("lbcache: miss")

// Cache is a Redis-backed leaderboard cache.
type Cache struct {
	client *redis.Client
	// stale is set when a Record failed; it covers the case where the
	// invalidation could not reach Redis either.
	stale atomic.Bool
}

// New connects to redisURL and verifies the connection.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("lbcache: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("lbcache: connect to redis: %w", err)
	}
	return &Cache{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Record stores the current xp and level of one member. On failure the
// sync marker and the community's board are dropped so reads go to the
// ledger.
func (c *Cache) Record(ctx context.Context, rec models.LevelRecord) error {
	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, keyBoard+rec.CommunityID, redis.Z{Score: -float64(rec.XP), Member: rec.UserID})
	pipe.HSet(ctx, keyLevel+rec.CommunityID, rec.UserID, rec.Level)
	if _, err := pipe.Exec(ctx); err != nil {
		c.stale.Store(true)
		err = fmt.Errorf("lbcache: record %s/%s: %w", rec.CommunityID, rec.UserID, err)
		if delErr := c.invalidate(ctx, rec.CommunityID); delErr != nil {
			return errors.Join(err, delErr)
		}
		return err
	}
	return nil
}

func (c *Cache) invalidate(ctx context.Context, communityID string) error {
	if err := c.client.Del(ctx, keySynced, keyBoard+communityID, keyLevel+communityID).Err(); err != nil {
		return fmt.Errorf("lbcache: invalidate %s: %w", communityID, err)
	}
	return nil
}

// Synced reports whether the boards are a full copy of the ledger.
func (c *Cache) Synced(ctx context.Context) (bool, error) {
	if c.stale.Load() {
		return false, nil
	}
	n, err := c.client.Exists(ctx, keySynced).Result()
	if err != nil {
		return false, fmt.Errorf("lbcache: synced: %w", err)
	}
	return n == 1, nil
}

// Top returns up to limit members of the community, highest XP first.
func (c *Cache) Top(ctx context.Context, communityID string, limit int) ([]models.LevelRecord, error) {
	synced, err := c.Synced(ctx)
	if err != nil {
		return nil, err
	}
	if !synced {
		return nil, ErrMiss
	}

	zs, err := c.client.ZRangeWithScores(ctx, keyBoard+communityID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("lbcache: range %s: %w", communityID, err)
	}
	if len(zs) == 0 {
		return nil, ErrMiss
	}

	users := make([]string, len(zs))
	for i, z := range zs {
		users[i], _ = z.Member.(string)
	}
	levels, err := c.client.HMGet(ctx, keyLevel+communityID, users...).Result()
	if err != nil {
		return nil, fmt.Errorf("lbcache: levels %s: %w", communityID, err)
	}

	out := make([]models.LevelRecord, len(zs))
	for i, z := range zs {
		lvl := 1
		if s, ok := levels[i].(string); ok {
			if n, convErr := strconv.Atoi(s); convErr == nil {
				lvl = n
			}
		}
		out[i] = models.LevelRecord{
			CommunityID: communityID,
			UserID:      users[i],
			XP:          int64(-z.Score),
			Level:       lvl,
		}
	}
	return out, nil
}

// Rebuild replaces every cached board with the given records and marks the
// cache as synced.
func (c *Cache) Rebuild(ctx context.Context, records []models.LevelRecord) error {
	if err := c.client.Del(ctx, keySynced).Err(); err != nil {
		return fmt.Errorf("lbcache: clear sync marker: %w", err)
	}

	byCommunity := make(map[string][]models.LevelRecord)
	for _, r := range records {
		byCommunity[r.CommunityID] = append(byCommunity[r.CommunityID], r)
	}

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyBoard+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("lbcache: scan: %w", err)
		}
		for _, k := range keys {
			community := k[len(keyBoard):]
			if _, ok := byCommunity[community]; !ok {
				if err := c.client.Del(ctx, k, keyLevel+community).Err(); err != nil {
					return fmt.Errorf("lbcache: drop %s: %w", community, err)
				}
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	for community, recs := range byCommunity {
		pipe := c.client.TxPipeline()
		pipe.Del(ctx, keyBoard+community, keyLevel+community)
		zs := make([]redis.Z, len(recs))
		levels := make([]any, 0, 2*len(recs))
		for i, r := range recs {
			zs[i] = redis.Z{Score: -float64(r.XP), Member: r.UserID}
			levels = append(levels, r.UserID, r.Level)
		}
		pipe.ZAdd(ctx, keyBoard+community, zs...)
		pipe.HSet(ctx, keyLevel+community, levels...)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("lbcache: rebuild %s: %w", community, err)
		}
	}

	if err := c.client.Set(ctx, keySynced, time.Now().UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("lbcache: set sync marker: %w", err)
	}
	c.stale.Store(false)
	return nil
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
