// Package testutil provides shared test helpers for ledgers and caches.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/starford/leveler/internal/lbcache"
	"github.com/starford/leveler/internal/ledger"
)

// TestLedger creates a temporary SQLite ledger that is automatically cleaned up.
func TestLedger(t *testing.T) *ledger.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "leveler-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := ledger.Open(ledger.DriverSQLite, dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Seed writes a record with the given xp and level, creating it if needed.
func Seed(t *testing.T, db ledger.Ledger, communityID, userID string, xp int64, level int) {
	t.Helper()
	ctx := context.Background()
	if _, err := db.Get(ctx, communityID, userID); err != nil {
		if _, err := db.Create(ctx, communityID, userID); err != nil {
			t.Fatalf("seed create: %v", err)
		}
	}
	if err := db.Update(ctx, communityID, userID, xp, level); err != nil {
		t.Fatalf("seed update: %v", err)
	}
}

// TestCache starts an in-process Redis and returns an empty, synced cache
// bound to it.
func TestCache(t *testing.T) (*lbcache.Cache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c, err := lbcache.New(context.Background(), "redis://"+s.Addr())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.Rebuild(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	return c, s
}
