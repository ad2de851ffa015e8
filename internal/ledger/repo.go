package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/leveler/internal/apperr"
	"github.com/starford/leveler/internal/models"
)

const selectRecord = `SELECT community_id, user_id, xp, level, updated_at FROM levels`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.LevelRecord, error) {
	var r models.LevelRecord
	if err := s.Scan(&r.CommunityID, &r.UserID, &r.XP, &r.Level, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func persistence(op string, err error) error {
	return fmt.Errorf("ledger: %s: %w: %w", op, apperr.ErrPersistence, err)
}

// Get returns the record for the key, or apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, communityID, userID string) (*models.LevelRecord, error) {
	row := db.conn.QueryRowContext(ctx,
		db.dialect.rebind(selectRecord+` WHERE community_id = ? AND user_id = ?`),
		communityID, userID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, persistence("get", err)
	}
	return rec, nil
}

// Create inserts a fresh record (xp 0, level 1). An existing key yields
// apperr.ErrAlreadyExists.
func (db *DB) Create(ctx context.Context, communityID, userID string) (*models.LevelRecord, error) {
	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx, db.dialect.rebind(`
		INSERT INTO levels (community_id, user_id, xp, level, updated_at)
		VALUES (?, ?, 0, 1, ?)
		ON CONFLICT (community_id, user_id) DO NOTHING
	`), communityID, userID, now)
	if err != nil {
		return nil, persistence("create", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, persistence("create", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("ledger: create %s/%s: %w", communityID, userID, apperr.ErrAlreadyExists)
	}
	return &models.LevelRecord{
		CommunityID: communityID,
		UserID:      userID,
		XP:          0,
		Level:       1,
		UpdatedAt:   now,
	}, nil
}

// Update overwrites xp and level. A missing key yields apperr.ErrNotFound.
func (db *DB) Update(ctx context.Context, communityID, userID string, xp int64, level int) error {
	return update(ctx, db.conn, db.dialect, communityID, userID, xp, level, time.Now().UTC())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func update(ctx context.Context, ex execer, d dialect, communityID, userID string, xp int64, level int, at time.Time) error {
	res, err := ex.ExecContext(ctx, d.rebind(`
		UPDATE levels SET xp = ?, level = ?, updated_at = ?
		WHERE community_id = ? AND user_id = ?
	`), xp, level, at, communityID, userID)
	if err != nil {
		return persistence("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistence("update", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Mutate loads the record for the key inside a transaction, creating it with
// xp 0 and level 1 when absent, hands it to fn and writes back whatever fn left
// in it. Nothing is written if fn returns an error.
func (db *DB) Mutate(ctx context.Context, communityID, userID string, fn func(rec *models.LevelRecord) error) (*models.LevelRecord, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistence("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, db.dialect.rebind(`
		INSERT INTO levels (community_id, user_id, xp, level, updated_at)
		VALUES (?, ?, 0, 1, ?)
		ON CONFLICT (community_id, user_id) DO NOTHING
	`), communityID, userID, time.Now().UTC()); err != nil {
		return nil, persistence("get-or-create", err)
	}

	row := tx.QueryRowContext(ctx,
		db.dialect.rebind(selectRecord+` WHERE community_id = ? AND user_id = ?`+db.dialect.forUpdate),
		communityID, userID)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, persistence("load", err)
	}

	if err := fn(rec); err != nil {
		return nil, err
	}

	// Postgres keeps microseconds; truncate so the returned record matches the row.
	rec.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	if err := update(ctx, tx, db.dialect, communityID, userID, rec.XP, rec.Level, rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, persistence("commit", err)
	}
	return rec, nil
}

// Top returns up to limit records of a community, highest XP first and ties
// by user id ascending.
func (db *DB) Top(ctx context.Context, communityID string, limit int) ([]models.LevelRecord, error) {
	rows, err := db.conn.QueryContext(ctx, db.dialect.rebind(selectRecord+`
		WHERE community_id = ?
		ORDER BY xp DESC, user_id`+db.dialect.byteOrder+` ASC
		LIMIT ?
	`), communityID, limit)
	if err != nil {
		return nil, persistence("top", err)
	}
	return collect(rows)
}

// All returns every record in the ledger.
func (db *DB) All(ctx context.Context) ([]models.LevelRecord, error) {
	rows, err := db.conn.QueryContext(ctx, selectRecord+` ORDER BY community_id, user_id`)
	if err != nil {
		return nil, persistence("all", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]models.LevelRecord, error) {
	defer rows.Close()
	out := []models.LevelRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, persistence("scan", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("rows", err)
	}
	return out, nil
}
