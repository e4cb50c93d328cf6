package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"heatpulse/api/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// EventFilter scopes a read to one site. Zero-valued fields are unbounded.
// From and To are inclusive.
type EventFilter struct {
	SiteID string
	Path   string
	Type   models.EventType
	From   *time.Time
	To     *time.Time
}

// Match reports whether e falls inside the filter.
func (f EventFilter) Match(e *models.Event) bool {
	if e.SiteID != f.SiteID {
		return false
	}
	if f.Path != "" && e.Path != f.Path {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// EventReader streams the events matching a filter to fn, one at a time.
// Returning an error from fn stops the scan and is returned as-is.
type EventReader interface {
	Scan(ctx context.Context, filter EventFilter, fn func(models.Event) error) error
}

// EventStore is the append-only event log. Append writes a whole batch or
// nothing.
type EventStore interface {
	EventReader
	Append(ctx context.Context, events []models.Event) error
}

// whereClause renders the filter as a SQL predicate using ? placeholders.
// timeArg converts the range bounds into the backend's column representation.
func whereClause(f EventFilter, tsColumn string, timeArg func(time.Time) any) (string, []any) {
	conds := []string{"site_id = ?"}
	args := []any{f.SiteID}

	if f.Path != "" {
		conds = append(conds, "path = ?")
		args = append(args, f.Path)
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.From != nil {
		conds = append(conds, tsColumn+" >= ?")
		args = append(args, timeArg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, tsColumn+" <= ?")
		args = append(args, timeArg(*f.To))
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func intPtr32(v *int) *int32 {
	if v == nil {
		return nil
	}
	n := int32(*v)
	return &n
}

func int32PtrToInt(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// flatten spreads an event's variant payload into nullable columns, in the
// column order shared by the SQL backends: url, referrer, x, y, viewport_w,
// viewport_h, scroll_y.
func flatten(e *models.Event) (url, referrer *string, x, y, vw, vh, scrollY *int32) {
	if e.PageView != nil {
		url, referrer = strPtr(e.PageView.URL), strPtr(e.PageView.Referrer)
	}
	if e.Click != nil {
		x, y = intPtr32(e.Click.X), intPtr32(e.Click.Y)
	}
	if e.Scroll != nil {
		scrollY = intPtr32(e.Scroll.ScrollY)
	}
	if vp := e.Viewport(); vp != nil {
		w, h := int32(vp.W), int32(vp.H)
		vw, vh = &w, &h
	}
	return
}

// assemble is the inverse of flatten: it rebuilds the variant for e.Type.
func assemble(e *models.Event, url, referrer *string, x, y, vw, vh, scrollY *int32) {
	var vp *models.Viewport
	if vw != nil && vh != nil {
		vp = &models.Viewport{W: int(*vw), H: int(*vh)}
	}
	switch e.Type {
	case models.EventTypePageView:
		e.PageView = &models.PageView{URL: derefStr(url), Referrer: derefStr(referrer)}
	case models.EventTypeClick:
		e.Click = &models.Click{X: int32PtrToInt(x), Y: int32PtrToInt(y), Viewport: vp}
	case models.EventTypeScroll:
		e.Scroll = &models.Scroll{ScrollY: int32PtrToInt(scrollY), Viewport: vp}
	}
}
