package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"heatpulse/api/models"
	"heatpulse/api/observability"
	"heatpulse/api/store"
)

// Ingester validates a batch and appends it to the event store in one call.
type Ingester struct {
	validator *Validator
	store     store.EventStore
	metrics   *observability.Metrics
}

func NewIngester(validator *Validator, eventStore store.EventStore, metrics *observability.Metrics) *Ingester {
	return &Ingester{validator: validator, store: eventStore, metrics: metrics}
}

// Ingest returns the number of events stored. Validation failures match
// ErrInvalidBatch; anything else is a store failure.
func (i *Ingester) Ingest(ctx context.Context, req *models.IngestRequest) (int, error) {
	events, err := i.validator.Validate(req)
	if err != nil {
		i.metrics.BatchRejected("validation")
		return 0, err
	}

	if err := i.store.Append(ctx, events); err != nil {
		i.metrics.BatchRejected("store")
		return 0, fmt.Errorf("failed to store batch: %w", err)
	}

	i.metrics.BatchIngested(len(events))
	log.Debug().
		Str("site_id", req.SiteID).
		Str("session_id", req.SessionID).
		Int("events", len(events)).
		Msg("batch ingested")
	return len(events), nil
}

// IsValidationError reports whether err rejected the batch before storage.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidBatch)
}
