package models

// Overview summarizes traffic for a site over a time range.
type Overview struct {
	PageViews          int64  `json:"page_views"`
	UniqueSessions     int64  `json:"unique_sessions"`
	AvgSessionDuration int64  `json:"avg_session_duration"`
	FirstEvent         *int64 `json:"first_event"` // epoch seconds
	LastEvent          *int64 `json:"last_event"`
}

type PageStats struct {
	Path           string `json:"path"`
	Views          int64  `json:"views"`
	UniqueSessions int64  `json:"unique_sessions"`
	FirstView      int64  `json:"first_view"`
	LastView       int64  `json:"last_view"`
}

// HeatmapPoint is one click bin in viewport-relative coordinates.
type HeatmapPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Count int64   `json:"count"`
}

type ScrollDepth struct {
	Percent int   `json:"percent"`
	Users   int64 `json:"users"`
}
