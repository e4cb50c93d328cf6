package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"heatpulse/api/analytics"
	"heatpulse/api/config"
	"heatpulse/api/ingest"
	"heatpulse/api/middleware"
	"heatpulse/api/observability"
	"heatpulse/api/public"
	"heatpulse/api/session"
	"heatpulse/api/store"
	"heatpulse/api/utils"
)

// RouterDeps is everything the HTTP surface needs.
type RouterDeps struct {
	RateLimit  config.RateLimitConfig
	JWTManager *utils.JWTManager
	Ingester   *ingest.Ingester
	Tracker    *session.Tracker
	Engine     *analytics.Engine
	UserStore  store.UserStore
	SiteStore  store.SiteStore
	Metrics    *observability.Metrics
	Gatherer   prometheus.Gatherer

	// Limiters are created by NewRouter when nil; main keeps them to prune idle clients.
	EventsLimiter  *middleware.RateLimiter
	GeneralLimiter *middleware.RateLimiter
}

func NewRouter(deps *RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORSMiddleware())

	authHandlers := NewAuthHandlers(deps.UserStore, deps.JWTManager)
	trackHandlers := NewTrackHandlers(deps.Ingester, deps.Tracker)
	analyticsHandlers := NewAnalyticsHandlers(deps.Engine)
	siteHandlers := NewSiteHandlers(deps.SiteStore)

	eventsLimit, generalLimit := rateLimiters(deps)
	authRequired := middleware.AuthRequired(deps.JWTManager)

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Analytics backend running")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/tracker.js", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/javascript; charset=utf-8", public.TrackerJS)
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	{
		v1.POST("/events", append(eventsLimit, trackHandlers.IngestEvents)...)
		v1.POST("/session", append(generalLimit, trackHandlers.CreateSession)...)

		auth := v1.Group("/auth", generalLimit...)
		{
			auth.POST("/signup", authHandlers.Signup)
			auth.POST("/login", authHandlers.Login)
			auth.GET("/me", authRequired, authHandlers.Me)
		}

		sites := v1.Group("/sites", generalLimit...)
		sites.Use(authRequired)
		{
			sites.POST("", siteHandlers.CreateSite)
			sites.GET("", siteHandlers.ListSites)
		}

		stats := v1.Group("/analytics", generalLimit...)
		stats.Use(authRequired)
		{
			stats.GET("/overview", analyticsHandlers.GetOverview)
			stats.GET("/pages", analyticsHandlers.GetPages)
		}

		heatmap := v1.Group("/heatmap", generalLimit...)
		heatmap.Use(authRequired)
		{
			heatmap.GET("/clicks", analyticsHandlers.GetClickHeatmap)
			heatmap.GET("/scroll", analyticsHandlers.GetScrollHeatmap)
		}
	}

	return r
}

// rateLimiters returns the middleware chains for the events endpoint and for
// every other API group. Both are empty when rate limiting is disabled.
func rateLimiters(deps *RouterDeps) (events, general []gin.HandlerFunc) {
	cfg := deps.RateLimit
	if !cfg.Enabled {
		return nil, nil
	}
	if deps.EventsLimiter == nil {
		deps.EventsLimiter = middleware.NewRateLimiter("events", cfg.EventsRequests, cfg.EventsWindow, deps.Metrics)
	}
	if deps.GeneralLimiter == nil {
		deps.GeneralLimiter = middleware.NewRateLimiter("general", cfg.GeneralRequests, cfg.GeneralWindow, deps.Metrics)
	}
	return []gin.HandlerFunc{deps.EventsLimiter.Middleware()}, []gin.HandlerFunc{deps.GeneralLimiter.Middleware()}
}
