package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"heatpulse/api/models"
	"heatpulse/api/observability"
	"heatpulse/api/store"
	"heatpulse/api/utils"
)

// ErrMissingParam is returned when site_id or path is absent.
var ErrMissingParam = errors.New("missing required fields: site_id, path")

const DefaultTTL = 1800 * time.Second

type Config struct {
	TTL time.Duration
}

// Tracker issues server-side sessions. Expiry is passive: nothing checks a
// session on ingestion, and the sweeper removes expired records.
type Tracker struct {
	ttl     time.Duration
	store   store.SessionStore
	metrics *observability.Metrics
	now     func() time.Time
	newID   func() (string, error)
}

func NewTracker(cfg Config, sessions store.SessionStore, metrics *observability.Metrics) *Tracker {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		ttl:     ttl,
		store:   sessions,
		metrics: metrics,
		now:     time.Now,
		newID:   utils.NewSessionID,
	}
}

// Create persists a new session. Every call yields a fresh identifier; no
// identifier is returned unless the record was stored.
func (t *Tracker) Create(ctx context.Context, siteID, path string) (*models.CreateSessionResponse, error) {
	if strings.TrimSpace(siteID) == "" || strings.TrimSpace(path) == "" {
		return nil, ErrMissingParam
	}

	id, err := t.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	startedAt := t.now().UTC()
	session := models.Session{
		SessionID: id,
		SiteID:    siteID,
		Path:      path,
		StartedAt: startedAt,
		ExpiresAt: startedAt.Add(t.ttl),
	}
	if err := t.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	t.metrics.SessionCreated()
	return &models.CreateSessionResponse{
		SessionID: id,
		ExpiresIn: int64(t.ttl / time.Second),
	}, nil
}

// Sweep removes every session that expired before now.
func (t *Tracker) Sweep(ctx context.Context) (int64, error) {
	n, err := t.store.DeleteExpiredSessions(ctx, t.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	t.metrics.SessionsSwept(n)
	return n, nil
}

// RunSweeper sweeps on every tick until ctx is done.
func (t *Tracker) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := t.Sweep(ctx)
			if err != nil {
				log.Error().Err(err).Msg("session sweep failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("expired sessions swept")
			}
		}
	}
}
