package models

import "time"

// Session is a server-issued visit window. It is never mutated; expired
// sessions are swept from the store.
type Session struct {
	SessionID string    `json:"session_id"`
	SiteID    string    `json:"site_id"`
	Path      string    `json:"path"`
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CreateSessionRequest struct {
	SiteID string `json:"site_id"`
	Path   string `json:"path"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	ExpiresIn int64  `json:"expires_in"`
}
