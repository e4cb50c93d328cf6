package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"heatpulse/api/ingest"
	"heatpulse/api/models"
	"heatpulse/api/session"
)

const ingestTimeout = 15 * time.Second

// TrackHandlers serve the collector: event batches and session creation.
type TrackHandlers struct {
	Ingester *ingest.Ingester
	Tracker  *session.Tracker
}

func NewTrackHandlers(ingester *ingest.Ingester, tracker *session.Tracker) *TrackHandlers {
	return &TrackHandlers{Ingester: ingester, Tracker: tracker}
}

// IngestEvents accepts a batch from the collector. Beacons may arrive without
// a JSON content type, so the body is always decoded as JSON.
func (h *TrackHandlers) IngestEvents(c *gin.Context) {
	var req models.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: site_id, session_id, and events array required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ingestTimeout)
	defer cancel()

	if _, err := h.Ingester.Ingest(ctx, &req); err != nil {
		if ingest.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Str("site_id", req.SiteID).Msg("failed to ingest events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *TrackHandlers) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "site_id and path are required"})
		return
	}

	resp, err := h.Tracker.Create(c.Request.Context(), req.SiteID, req.Path)
	if err != nil {
		if errors.Is(err, session.ErrMissingParam) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "site_id and path are required"})
			return
		}
		log.Error().Err(err).Str("site_id", req.SiteID).Msg("failed to create session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
