package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"heatpulse/api/middleware"
	"heatpulse/api/models"
	"heatpulse/api/store"
	"heatpulse/api/utils"
)

type SiteHandlers struct {
	SiteStore store.SiteStore
}

func NewSiteHandlers(siteStore store.SiteStore) *SiteHandlers {
	return &SiteHandlers{SiteStore: siteStore}
}

// CreateSite registers a tracked site for the caller and returns its id.
func (h *SiteHandlers) CreateSite(c *gin.Context) {
	var req models.CreateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and domain are required"})
		return
	}
	ownerID, _ := middleware.UserID(c)

	siteID, err := utils.NewSiteID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate site id")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create site"})
		return
	}

	site := models.Site{
		SiteID:    siteID,
		Name:      req.Name,
		Domain:    req.Domain,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.SiteStore.CreateSite(c.Request.Context(), site); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Site with this domain already exists"})
			return
		}
		log.Error().Err(err).Msg("failed to create site")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create site"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"site_id": site.SiteID})
}

func (h *SiteHandlers) ListSites(c *gin.Context) {
	ownerID, _ := middleware.UserID(c)

	sites, err := h.SiteStore.ListSitesByOwner(c.Request.Context(), ownerID)
	if err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("failed to list sites")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sites"})
		return
	}
	c.JSON(http.StatusOK, sites)
}
