package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog/log"

	"heatpulse/api/config"
)

type ClickHouseClient struct {
	Conn clickhouse.Conn
}

// The sort key backs the site+timestamp range scans; the skip indexes narrow
// path and type filters inside a site's range.
const clickHouseEventsTable = `
CREATE TABLE IF NOT EXISTS events (
	event_id    UUID,
	site_id     String,
	session_id  String,
	type        LowCardinality(String),
	path        String,
	url         Nullable(String),
	referrer    Nullable(String),
	x           Nullable(Int32),
	y           Nullable(Int32),
	viewport_w  Nullable(Int32),
	viewport_h  Nullable(Int32),
	scroll_y    Nullable(Int32),
	timestamp   DateTime64(3, 'UTC'),
	received_at DateTime64(3, 'UTC'),
	INDEX idx_events_path path TYPE bloom_filter GRANULARITY 4,
	INDEX idx_events_type type TYPE set(8) GRANULARITY 4
) ENGINE = MergeTree
ORDER BY (site_id, timestamp)`

func NewClickHouseDB(cfg config.ClickHouseConfig) (*ClickHouseClient, error) {
	if cfg.Host == "" || cfg.NativePort == 0 || cfg.Database == "" {
		return nil, fmt.Errorf("clickhouse host, native port and database must be set")
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.NativePort)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "heatpulse-api", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: time.Second * 5,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := conn.Exec(ctx, clickHouseEventsTable); err != nil {
		return nil, fmt.Errorf("failed to create ClickHouse events table: %w", err)
	}

	log.Info().Str("addr", options.Addr[0]).Msg("connected to ClickHouse")
	return &ClickHouseClient{Conn: conn}, nil
}

func (c *ClickHouseClient) Close() {
	if c.Conn != nil {
		if err := c.Conn.Close(); err != nil {
			log.Error().Err(err).Msg("error closing ClickHouse connection")
			return
		}
		log.Info().Msg("ClickHouse connection closed")
	}
}
