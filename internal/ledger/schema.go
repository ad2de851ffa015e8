// Package ledger provides the durable per-(community, user) progression store,
// backed by SQLite by default or Postgres through pgx.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS levels (
	community_id TEXT      NOT NULL,
	user_id      TEXT      NOT NULL,
	xp           BIGINT    NOT NULL DEFAULT 0,
	level        INTEGER   NOT NULL DEFAULT 1,
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (community_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_levels_board ON levels(community_id, xp DESC, user_id);
`

// dialect papers over the two SQL flavours we speak.
type dialect struct {
	numbered  bool   // $1, $2 placeholders instead of ?
	forUpdate string // row lock suffix for read-modify-write selects
	byteOrder string // collation that sorts user ids bytewise, like Redis
}

// dialectFor returns the dialect of driver. SQLite compares text with
// BINARY by default; Postgres needs the C collation for the same order.
func dialectFor(driver string) dialect {
	if driver == DriverPostgres {
		return dialect{numbered: true, forUpdate: " FOR UPDATE", byteOrder: ` COLLATE "C"`}
	}
	return dialect{}
}

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DB wraps a sql.DB with ledger operations.
type DB struct {
	conn    *sql.DB
	dialect dialect
}

// Open opens (or creates) the ledger database and applies the schema.
// For sqlite3 dsn is a file path; for pgx it is a connection URL.
func Open(driver, dsn string) (*DB, error) {
	var openDSN string
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		// _txlock=immediate takes the write lock at BEGIN, so two processes
		// cannot both read the same row before either writes it.
		openDSN = dsn + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	case DriverPostgres:
		openDSN = dsn
	default:
		return nil, fmt.Errorf("ledger: unsupported driver %q", driver)
	}
	d := dialectFor(driver)

	conn, err := sql.Open(driver, openDSN)
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if driver == DriverPostgres {
		// pgx runs one statement per Exec in extended mode.
		for _, stmt := range strings.Split(schemaSQL, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := conn.Exec(stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ledger: apply schema: %w", err)
			}
		}
	} else if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &DB{conn: conn, dialect: d}, nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
