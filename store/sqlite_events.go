package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"heatpulse/api/database"
	"heatpulse/api/models"
)

// SQLiteEventStore is the embedded event backend. Each batch is one
// transaction; any failed row rolls the whole batch back.
type SQLiteEventStore struct {
	db *sql.DB
}

func NewSQLiteEventStore(client *database.SQLiteClient) *SQLiteEventStore {
	return &SQLiteEventStore{db: client.DB}
}

func (s *SQLiteEventStore) Append(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (
			event_id, site_id, session_id, type, path, url, referrer,
			x, y, viewport_w, viewport_h, scroll_y, ts_ms, received_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		event := &events[i]
		url, referrer, x, y, vw, vh, scrollY := flatten(event)
		if _, err := stmt.ExecContext(ctx,
			event.EventID,
			event.SiteID,
			event.SessionID,
			string(event.Type),
			event.Path,
			url,
			referrer,
			x,
			y,
			vw,
			vh,
			scrollY,
			event.Timestamp.UnixMilli(),
			event.ReceivedAt.UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteEventStore) Scan(ctx context.Context, filter EventFilter, fn func(models.Event) error) error {
	where, args := whereClause(filter, "ts_ms", func(t time.Time) any { return t.UnixMilli() })

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, site_id, session_id, type, path, url, referrer,
			x, y, viewport_w, viewport_h, scroll_y, ts_ms, received_ms
		FROM events `+where+`
		ORDER BY ts_ms ASC, rowid ASC`, args...)
	if err != nil {
		return fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			event                 models.Event
			eventType             string
			url, referrer         sql.NullString
			x, y, vw, vh, scrollY sql.NullInt32
			tsMs, receivedMs      int64
		)
		if err := rows.Scan(
			&event.EventID,
			&event.SiteID,
			&event.SessionID,
			&eventType,
			&event.Path,
			&url,
			&referrer,
			&x,
			&y,
			&vw,
			&vh,
			&scrollY,
			&tsMs,
			&receivedMs,
		); err != nil {
			return fmt.Errorf("failed to scan event row: %w", err)
		}
		event.Type = models.EventType(eventType)
		event.Timestamp = time.UnixMilli(tsMs).UTC()
		event.ReceivedAt = time.UnixMilli(receivedMs).UTC()
		assemble(&event,
			nullStr(url), nullStr(referrer),
			nullInt(x), nullInt(y), nullInt(vw), nullInt(vh), nullInt(scrollY))
		if err := fn(event); err != nil {
			return err
		}
	}
	return rows.Err()
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt(v sql.NullInt32) *int32 {
	if !v.Valid {
		return nil
	}
	return &v.Int32
}
