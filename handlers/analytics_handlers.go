package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"heatpulse/api/analytics"
	"heatpulse/api/utils"
)

const queryTimeout = 10 * time.Second

type AnalyticsHandlers struct {
	Engine *analytics.Engine
}

func NewAnalyticsHandlers(engine *analytics.Engine) *AnalyticsHandlers {
	return &AnalyticsHandlers{Engine: engine}
}

// parseRange reads the optional from/to epoch-second bounds. It writes the
// 400 response itself and returns false when either is malformed.
func parseRange(c *gin.Context) (analytics.Range, bool) {
	from, err := utils.ParseEpochSeconds("from", c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return analytics.Range{}, false
	}
	to, err := utils.ParseEpochSeconds("to", c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return analytics.Range{}, false
	}
	return analytics.Range{From: from, To: to}, true
}

// queryFailed maps an engine error to a response.
func queryFailed(c *gin.Context, err error, missing, failed string) {
	if errors.Is(err, analytics.ErrMissingParam) {
		c.JSON(http.StatusBadRequest, gin.H{"error": missing})
		return
	}
	log.Error().Err(err).Str("path", c.FullPath()).Msg("analytics query failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": failed})
}

func (h *AnalyticsHandlers) GetOverview(c *gin.Context) {
	r, ok := parseRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	overview, err := h.Engine.Overview(ctx, c.Query("site_id"), r)
	if err != nil {
		queryFailed(c, err, "site_id is required", "Failed to fetch overview analytics")
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *AnalyticsHandlers) GetPages(c *gin.Context) {
	r, ok := parseRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	pages, err := h.Engine.Pages(ctx, c.Query("site_id"), r)
	if err != nil {
		queryFailed(c, err, "site_id is required", "Failed to fetch page analytics")
		return
	}
	c.JSON(http.StatusOK, pages)
}

func (h *AnalyticsHandlers) GetClickHeatmap(c *gin.Context) {
	r, ok := parseRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	points, err := h.Engine.ClickHeatmap(ctx, c.Query("site_id"), c.Query("path"), r)
	if err != nil {
		queryFailed(c, err, "site_id and path are required", "Failed to fetch click heatmap")
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

func (h *AnalyticsHandlers) GetScrollHeatmap(c *gin.Context) {
	r, ok := parseRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	depth, err := h.Engine.ScrollDepth(ctx, c.Query("site_id"), c.Query("path"), r)
	if err != nil {
		queryFailed(c, err, "site_id and path are required", "Failed to fetch scroll heatmap")
		return
	}
	c.JSON(http.StatusOK, gin.H{"depth": depth})
}
