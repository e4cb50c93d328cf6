package models

import (
	"math"
	"time"
)

// EventType is the closed set of interactions the collector reports.
type EventType string

const (
	EventTypePageView EventType = "page_view"
	EventTypeClick    EventType = "click"
	EventTypeScroll   EventType = "scroll"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventTypePageView, EventTypeClick, EventTypeScroll:
		return true
	default:
		return false
	}
}

type Viewport struct {
	W int `json:"w"`
	H int `json:"h"`
}

// PageView is the payload of a page_view event.
type PageView struct {
	URL      string
	Referrer string
}

// Click is the payload of a click event. Any field may be absent; incomplete
// clicks are stored as-is and skipped by the heatmap.
type Click struct {
	X        *int
	Y        *int
	Viewport *Viewport
}

// Scroll is the payload of a scroll event.
type Scroll struct {
	ScrollY  *int
	Viewport *Viewport
}

// Event is one normalized, immutable interaction record. Exactly one of
// PageView, Click and Scroll is set, matching Type.
type Event struct {
	EventID    string
	SiteID     string
	SessionID  string
	Type       EventType
	Path       string
	Timestamp  time.Time
	ReceivedAt time.Time

	PageView *PageView
	Click    *Click
	Scroll   *Scroll
}

// Viewport returns the viewport carried by click and scroll events.
func (e *Event) Viewport() *Viewport {
	switch {
	case e.Click != nil:
		return e.Click.Viewport
	case e.Scroll != nil:
		return e.Scroll.Viewport
	}
	return nil
}

// RawEvent is an event as submitted by the browser collector. Every field is
// optional on the wire; the ingestion validator decides what is acceptable.
type RawEvent struct {
	Type      *string      `json:"type"`
	Path      *string      `json:"path"`
	Timestamp *float64     `json:"timestamp"` // epoch seconds
	URL       *string      `json:"url"`
	Referrer  *string      `json:"referrer"`
	X         *float64     `json:"x"`
	Y         *float64     `json:"y"`
	Viewport  *RawViewport `json:"viewport"`
	ScrollY   *float64     `json:"scrollY"`

	// Ignored: the batch-level identifiers always win.
	SiteID    *string `json:"site_id,omitempty"`
	SessionID *string `json:"session_id,omitempty"`
}

type RawViewport struct {
	W *float64 `json:"w"`
	H *float64 `json:"h"`
}

// IngestRequest is the body the collector posts to the events endpoint.
type IngestRequest struct {
	SiteID    string     `json:"site_id"`
	SessionID string     `json:"session_id"`
	Events    []RawEvent `json:"events"`
}

// EpochSecondsToTime converts client epoch seconds to a millisecond-precision
// time. TimeToEpochSeconds is its inverse for whole-second inputs. |sec| must
// stay within the JavaScript Date range (8.64e12); the ingest validator
// rejects anything larger before conversion.
func EpochSecondsToTime(sec float64) time.Time {
	return time.UnixMilli(int64(math.Round(sec * 1000))).UTC()
}

// TimeToEpochSeconds floors t to whole epoch seconds.
func TimeToEpochSeconds(t time.Time) int64 {
	ms := t.UnixMilli()
	s := ms / 1000
	if ms%1000 < 0 {
		s--
	}
	return s
}
