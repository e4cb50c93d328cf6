package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"heatpulse/api/database"
	"heatpulse/api/models"
)

// ClickHouseEventStore keeps events in the ClickHouse events table. A batch is
// sent as a single native insert block, which ClickHouse applies atomically.
type ClickHouseEventStore struct {
	DB *database.ClickHouseClient
}

func NewClickHouseEventStore(chClient *database.ClickHouseClient) *ClickHouseEventStore {
	return &ClickHouseEventStore{
		DB: chClient,
	}
}

func (s *ClickHouseEventStore) Append(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO events (
			event_id, site_id, session_id, type, path, url, referrer,
			x, y, viewport_w, viewport_h, scroll_y, timestamp, received_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for i := range events {
		event := &events[i]
		url, referrer, x, y, vw, vh, scrollY := flatten(event)
		err := batch.Append(
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
			event.Timestamp,
			event.ReceivedAt,
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append event %d to batch: %w", i, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Debug().Int("events", len(events)).Msg("inserted events into ClickHouse")
	return nil
}

func (s *ClickHouseEventStore) Scan(ctx context.Context, filter EventFilter, fn func(models.Event) error) error {
	where, args := whereClause(filter, "timestamp", func(t time.Time) any { return t })

	query := fmt.Sprintf(`
		SELECT
			toString(event_id), site_id, session_id, type, path, url, referrer,
			x, y, viewport_w, viewport_h, scroll_y, timestamp, received_at
		FROM events
		%s
		ORDER BY timestamp ASC
	`, where)

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			event                 models.Event
			eventType             string
			url, referrer         *string
			x, y, vw, vh, scrollY *int32
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
			&event.Timestamp,
			&event.ReceivedAt,
		); err != nil {
			return fmt.Errorf("failed to scan event row: %w", err)
		}
		event.Type = models.EventType(eventType)
		assemble(&event, url, referrer, x, y, vw, vh, scrollY)
		if err := fn(event); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row error during events query: %w", err)
	}
	return nil
}
