package database

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

type SQLiteClient struct {
	DB *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	event_id    TEXT    PRIMARY KEY,
	site_id     TEXT    NOT NULL,
	session_id  TEXT    NOT NULL,
	type        TEXT    NOT NULL CHECK (type IN ('page_view','click','scroll')),
	path        TEXT    NOT NULL,
	url         TEXT,
	referrer    TEXT,
	x           INTEGER,
	y           INTEGER,
	viewport_w  INTEGER,
	viewport_h  INTEGER,
	scroll_y    INTEGER,
	ts_ms       INTEGER NOT NULL,
	received_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_site_ts      ON events(site_id, ts_ms);
CREATE INDEX IF NOT EXISTS idx_events_site_path_ts ON events(site_id, path, ts_ms);
CREATE INDEX IF NOT EXISTS idx_events_site_type_ts ON events(site_id, type, ts_ms);
`

// NewSQLiteDB opens (and creates if needed) an embedded event database.
func NewSQLiteDB(path string) (*SQLiteClient, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single writer keeps batch transactions from contending on the file lock.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite tables: %w", err)
	}

	log.Info().Str("path", path).Msg("opened SQLite event database")
	return &SQLiteClient{DB: db}, nil
}

func (c *SQLiteClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
