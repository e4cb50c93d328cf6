package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatpulse/api/analytics"
	"heatpulse/api/config"
	"heatpulse/api/ingest"
	"heatpulse/api/observability"
	"heatpulse/api/session"
	"heatpulse/api/store"
	"heatpulse/api/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	events *store.MemoryEventStore
	jwt    *utils.JWTManager
}

func newTestServer(t *testing.T, rl config.RateLimitConfig) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	events := store.NewMemoryEventStore()
	jwtManager := utils.NewJWTManager("test-secret", time.Hour)

	router := NewRouter(&RouterDeps{
		RateLimit:  rl,
		JWTManager: jwtManager,
		Ingester:   ingest.NewIngester(ingest.NewValidator(ingest.Config{MaxEvents: 1000}), events, metrics),
		Tracker:    session.NewTracker(session.Config{TTL: 30 * time.Minute}, store.NewMemorySessionStore(), metrics),
		Engine:     analytics.NewEngine(events, metrics),
		UserStore:  store.NewMemoryUserStore(),
		SiteStore:  store.NewMemorySiteStore(),
		Metrics:    metrics,
		Gatherer:   reg,
	})
	return &testServer{router: router, events: events, jwt: jwtManager}
}

func (s *testServer) do(method, path, body, token string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) token(t *testing.T, userID int64) string {
	t.Helper()
	token, err := s.jwt.Generate(userID, "owner@example.com")
	require.NoError(t, err)
	return token
}

const batch = `{
	"site_id": "site-1",
	"session_id": "sess-1",
	"events": [
		{"type": "page_view", "path": "/", "timestamp": 1000, "url": "https://a.com/"},
		{"type": "click", "path": "/", "timestamp": 1010, "x": 50, "y": 100, "viewport": {"w": 100, "h": 200}},
		{"type": "click", "path": "/", "timestamp": 1020, "x": 50, "y": 100, "viewport": {"w": 100, "h": 200}},
		{"type": "scroll", "path": "/", "timestamp": 1030, "scrollY": 600, "viewport": {"w": 100, "h": 200}},
		{"type": "page_view", "path": "/pricing", "timestamp": 1100}
	]
}`

func TestIngestEvents(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})

	w := s.do(http.MethodPost, "/api/v1/events", batch, "", "Content-Type", "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, 5, s.events.Len())
}

func TestIngestEvents_WithoutContentType(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})

	w := s.do(http.MethodPost, "/api/v1/events", batch, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/events", batch, "", "Content-Type", "text/plain;charset=UTF-8")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 10, s.events.Len())
}

func TestIngestEvents_Rejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `nope`},
		{"events not a sequence", `{"site_id":"a","session_id":"s","events":"x"}`},
		{"missing session", `{"site_id":"a","events":[{"type":"click","path":"/","timestamp":1}]}`},
		{"malformed event", `{"site_id":"a","session_id":"s","events":[{"type":"click","path":"/","timestamp":1},{"type":"click","timestamp":2}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, config.RateLimitConfig{})
			w := s.do(http.MethodPost, "/api/v1/events", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
			assert.Equal(t, 0, s.events.Len())
		})
	}
}

func TestCreateSession(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})

	w := s.do(http.MethodPost, "/api/v1/session", `{"site_id":"site-1","path":"/"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		SessionID string `json:"session_id"`
		ExpiresIn int64  `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.SessionID, 32)
	assert.Equal(t, int64(1800), resp.ExpiresIn)

	w = s.do(http.MethodPost, "/api/v1/session", `{"site_id":"site-1"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalytics_RequireAuth(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})

	for _, path := range []string{
		"/api/v1/analytics/overview?site_id=site-1",
		"/api/v1/analytics/pages?site_id=site-1",
		"/api/v1/heatmap/clicks?site_id=site-1&path=/",
		"/api/v1/heatmap/scroll?site_id=site-1&path=/",
		"/api/v1/sites",
	} {
		w := s.do(http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/events", batch, "").Code)
	token := s.token(t, 1)

	w := s.do(http.MethodGet, "/api/v1/analytics/overview?site_id=site-1", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"page_views": 2,
		"unique_sessions": 1,
		"avg_session_duration": 100,
		"first_event": 1000,
		"last_event": 1100
	}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/analytics/pages?site_id=site-1&from=1050", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"path":"/pricing","views":1,"unique_sessions":1,"first_view":1100,"last_view":1100}]`, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/heatmap/clicks?site_id=site-1&path=/", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"points":[{"x":0.5,"y":0.5,"count":2}]}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/heatmap/scroll?site_id=site-1&path=/", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"depth":[{"percent":25,"users":1},{"percent":50,"users":1},{"percent":75,"users":1}]}`, w.Body.String())
}

func TestAnalyticsEndpoints_EmptyAndErrors(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	token := s.token(t, 1)

	w := s.do(http.MethodGet, "/api/v1/analytics/overview?site_id=nobody", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"page_views":0,"unique_sessions":0,"avg_session_duration":0,"first_event":null,"last_event":null}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/analytics/pages?site_id=nobody", "", token)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/heatmap/clicks?site_id=nobody&path=/", "", token)
	assert.JSONEq(t, `{"points":[]}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/heatmap/scroll?site_id=nobody&path=/", "", token)
	assert.JSONEq(t, `{"depth":[]}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/analytics/overview", "", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"site_id is required"}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/heatmap/clicks?site_id=site-1", "", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/analytics/pages?site_id=site-1&to=tomorrow", "", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})

	w := s.do(http.MethodPost, "/api/v1/auth/signup", `{"email":"Ada@Example.com","password":"hunter22"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var signup struct {
		AccessToken string `json:"access_token"`
		UserID      string `json:"user_id"`
		Email       string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signup))
	assert.NotEmpty(t, signup.AccessToken)
	assert.Equal(t, "ada@example.com", signup.Email)

	w = s.do(http.MethodPost, "/api/v1/auth/signup", `{"email":"ada@example.com","password":"hunter22"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/signup", `{"email":"bob@example.com","password":"short"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/login", `{"email":"ada@example.com","password":"wrong-pass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/login", `{"email":"nobody@example.com","password":"hunter22"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/login", `{"email":"ADA@example.com","password":"hunter22"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = s.do(http.MethodGet, "/api/v1/auth/me", "", login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"`+signup.UserID+`","email":"ada@example.com"}`, w.Body.String())
}

func TestSites(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	owner := s.token(t, 1)
	other := s.token(t, 2)

	w := s.do(http.MethodPost, "/api/v1/sites", `{"name":"Shop","domain":"shop.example.com"}`, owner)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created struct {
		SiteID string `json:"site_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Regexp(t, "^[0-9a-f]{16}$", created.SiteID)

	w = s.do(http.MethodPost, "/api/v1/sites", `{"name":"Copy","domain":"shop.example.com"}`, other)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/sites", `{"name":"No domain"}`, owner)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/sites", "", owner)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.SiteID)
	assert.NotContains(t, w.Body.String(), "owner")

	w = s.do(http.MethodGet, "/api/v1/sites", "", other)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{
		Enabled:         true,
		EventsRequests:  2,
		EventsWindow:    time.Hour,
		GeneralRequests: 1,
		GeneralWindow:   time.Hour,
	})

	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/events", batch, "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/events", batch, "").Code)
	w := s.do(http.MethodPost, "/api/v1/events", batch, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Too many requests")

	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/session", `{"site_id":"a","path":"/"}`, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodPost, "/api/v1/session", `{"site_id":"a","path":"/"}`, "").Code)
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})

	w := s.do(http.MethodGet, "/", "", "")
	assert.Equal(t, "Analytics backend running", w.Body.String())

	w = s.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/tracker.js", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/javascript"))
	assert.Contains(t, w.Body.String(), "__TRACKER_CONFIG__")
	assert.Contains(t, w.Body.String(), "sendBeacon")

	s.do(http.MethodPost, "/api/v1/events", batch, "")
	w = s.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "heatpulse_ingest_events_total 5")
}
