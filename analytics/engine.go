package analytics

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"heatpulse/api/models"
	"heatpulse/api/observability"
	"heatpulse/api/store"
)

// ErrMissingParam is returned when a required query parameter is absent.
var ErrMissingParam = errors.New("missing required query parameter")

// ScrollThresholds are the funnel steps reported by ScrollDepth.
var ScrollThresholds = []int{25, 50, 75}

// Range bounds a query in inclusive epoch seconds. A nil side is unbounded.
type Range struct {
	From *int64
	To   *int64
}

func (r Range) filter(siteID, path string, eventType models.EventType) store.EventFilter {
	f := store.EventFilter{SiteID: siteID, Path: path, Type: eventType}
	if r.From != nil {
		from := time.UnixMilli(*r.From * 1000).UTC()
		f.From = &from
	}
	if r.To != nil {
		to := time.UnixMilli(*r.To * 1000).UTC()
		f.To = &to
	}
	return f
}

// Engine computes read-side aggregates. Each query is one streaming pass over
// the matching events.
type Engine struct {
	events  store.EventReader
	metrics *observability.Metrics
}

func NewEngine(events store.EventReader, metrics *observability.Metrics) *Engine {
	return &Engine{events: events, metrics: metrics}
}

type sessionSpan struct {
	min, max time.Time
}

// Overview counts page views and sessions. Session spans cover every event
// type; first and last event cover page views only.
func (e *Engine) Overview(ctx context.Context, siteID string, r Range) (_ *models.Overview, err error) {
	if blank(siteID) {
		return nil, ErrMissingParam
	}
	start := time.Now()
	defer func() { e.metrics.ObserveQuery("overview", start, err) }()

	var (
		out         models.Overview
		first, last time.Time
		anyViews    bool
	)
	spans := make(map[string]*sessionSpan)
	err = e.events.Scan(ctx, r.filter(siteID, "", ""), func(ev models.Event) error {
		if span, ok := spans[ev.SessionID]; ok {
			if ev.Timestamp.Before(span.min) {
				span.min = ev.Timestamp
			}
			if ev.Timestamp.After(span.max) {
				span.max = ev.Timestamp
			}
		} else {
			spans[ev.SessionID] = &sessionSpan{min: ev.Timestamp, max: ev.Timestamp}
		}

		if ev.Type != models.EventTypePageView {
			return nil
		}
		out.PageViews++
		if !anyViews || ev.Timestamp.Before(first) {
			first = ev.Timestamp
		}
		if !anyViews || ev.Timestamp.After(last) {
			last = ev.Timestamp
		}
		anyViews = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.UniqueSessions = int64(len(spans))

	var totalMs, counted int64
	for _, span := range spans {
		if d := span.max.Sub(span.min).Milliseconds(); d > 0 {
			totalMs += d
			counted++
		}
	}
	if counted > 0 {
		out.AvgSessionDuration = int64(roundHalfUp(float64(totalMs) / float64(counted) / 1000))
	}

	if anyViews {
		f := models.TimeToEpochSeconds(first)
		l := models.TimeToEpochSeconds(last)
		out.FirstEvent, out.LastEvent = &f, &l
	}
	return &out, nil
}

type pageAcc struct {
	stats    models.PageStats
	sessions map[string]struct{}
	first    time.Time
	last     time.Time
}

// Pages reports page-view statistics per path, most viewed first. Paths with
// equal views keep the order in which they were first seen.
func (e *Engine) Pages(ctx context.Context, siteID string, r Range) (_ []models.PageStats, err error) {
	if blank(siteID) {
		return nil, ErrMissingParam
	}
	start := time.Now()
	defer func() { e.metrics.ObserveQuery("pages", start, err) }()

	var order []*pageAcc
	byPath := make(map[string]*pageAcc)
	err = e.events.Scan(ctx, r.filter(siteID, "", models.EventTypePageView), func(ev models.Event) error {
		acc, ok := byPath[ev.Path]
		if !ok {
			acc = &pageAcc{
				stats:    models.PageStats{Path: ev.Path},
				sessions: make(map[string]struct{}),
				first:    ev.Timestamp,
				last:     ev.Timestamp,
			}
			byPath[ev.Path] = acc
			order = append(order, acc)
		}
		acc.stats.Views++
		acc.sessions[ev.SessionID] = struct{}{}
		if ev.Timestamp.Before(acc.first) {
			acc.first = ev.Timestamp
		}
		if ev.Timestamp.After(acc.last) {
			acc.last = ev.Timestamp
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.PageStats, 0, len(order))
	for _, acc := range order {
		acc.stats.UniqueSessions = int64(len(acc.sessions))
		acc.stats.FirstView = models.TimeToEpochSeconds(acc.first)
		acc.stats.LastView = models.TimeToEpochSeconds(acc.last)
		out = append(out, acc.stats)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Views > out[j].Views
	})
	return out, nil
}

type binKey struct {
	x, y int64
}

// ClickHeatmap bins clicks on path by viewport-relative position, rounded to
// hundredths. Coordinates outside the viewport are kept unclamped. The bin is
// round-half-up of x*100/w computed in one division, so x=29, w=200 lands on
// 0.15; rounding the ratio x/w first can give 0.14 at such float edges.
func (e *Engine) ClickHeatmap(ctx context.Context, siteID, path string, r Range) (_ []models.HeatmapPoint, err error) {
	if blank(siteID) || blank(path) {
		return nil, ErrMissingParam
	}
	start := time.Now()
	defer func() { e.metrics.ObserveQuery("click_heatmap", start, err) }()

	var order []binKey
	counts := make(map[binKey]int64)
	err = e.events.Scan(ctx, r.filter(siteID, path, models.EventTypeClick), func(ev models.Event) error {
		c := ev.Click
		if c == nil || c.X == nil || c.Y == nil || c.Viewport == nil {
			return nil
		}
		if c.Viewport.W <= 0 || c.Viewport.H <= 0 {
			return nil
		}
		key := binKey{
			x: int64(roundHalfUp(float64(*c.X) * 100 / float64(c.Viewport.W))),
			y: int64(roundHalfUp(float64(*c.Y) * 100 / float64(c.Viewport.H))),
		}
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key]++
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.HeatmapPoint, 0, len(order))
	for _, key := range order {
		out = append(out, models.HeatmapPoint{
			X:     float64(key.x) / 100,
			Y:     float64(key.y) / 100,
			Count: counts[key],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out, nil
}

// ScrollDepth reports how many sessions reached each of ScrollThresholds. Page
// height is estimated as scrollY plus the viewport height. The result is empty
// only when the range holds no scroll events at all; events without a usable
// scrollY or viewport still yield every threshold, possibly at zero.
func (e *Engine) ScrollDepth(ctx context.Context, siteID, path string, r Range) (_ []models.ScrollDepth, err error) {
	if blank(siteID) || blank(path) {
		return nil, ErrMissingParam
	}
	start := time.Now()
	defer func() { e.metrics.ObserveQuery("scroll_depth", start, err) }()

	seen := false
	maxPercent := make(map[string]int)
	err = e.events.Scan(ctx, r.filter(siteID, path, models.EventTypeScroll), func(ev models.Event) error {
		seen = true
		s := ev.Scroll
		if s == nil || s.ScrollY == nil || s.Viewport == nil || s.Viewport.H == 0 {
			return nil
		}
		p := scrollPercent(*s.ScrollY, s.Viewport.H)
		if cur, ok := maxPercent[ev.SessionID]; !ok || p > cur {
			maxPercent[ev.SessionID] = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.ScrollDepth, 0, len(ScrollThresholds))
	if !seen {
		return out, nil
	}
	for _, threshold := range ScrollThresholds {
		var users int64
		for _, p := range maxPercent {
			if p >= threshold {
				users++
			}
		}
		out = append(out, models.ScrollDepth{Percent: threshold, Users: users})
	}
	return out, nil
}

func scrollPercent(scrollY, viewportH int) int {
	height := scrollY + viewportH
	if height <= 0 {
		return 0
	}
	p := int(roundHalfUp(float64(scrollY) * 100 / float64(height)))
	if p > 100 {
		return 100
	}
	return p
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
