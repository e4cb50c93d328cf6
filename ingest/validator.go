package ingest

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"heatpulse/api/models"
)

// ErrInvalidBatch is matched by every ValidationError.
var ErrInvalidBatch = errors.New("invalid batch")

// ValidationError rejects a whole batch. Index is the offending event's
// position, or -1 when the batch itself is malformed.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return e.Reason
	}
	return fmt.Sprintf("event %d: %s", e.Index, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidBatch
}

// MaxTimestamp is the largest accepted |timestamp| in epoch seconds, the range
// of a JavaScript Date.
const MaxTimestamp = 8.64e12

type Config struct {
	// MaxEvents caps the batch length. Zero disables the cap.
	MaxEvents int
}

// Validator turns raw collector batches into normalized events.
type Validator struct {
	cfg Config
	now func() time.Time
}

func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg, now: time.Now}
}

// Validate checks the whole batch before converting any of it. On success it
// returns one event per raw event, in input order.
func (v *Validator) Validate(req *models.IngestRequest) ([]models.Event, error) {
	if req == nil {
		return nil, &ValidationError{Index: -1, Reason: "missing request body"}
	}
	if strings.TrimSpace(req.SiteID) == "" || strings.TrimSpace(req.SessionID) == "" {
		return nil, &ValidationError{Index: -1, Reason: "missing required fields: site_id, session_id, events[]"}
	}
	if len(req.Events) == 0 {
		return nil, &ValidationError{Index: -1, Reason: "missing required fields: site_id, session_id, events[]"}
	}
	if v.cfg.MaxEvents > 0 && len(req.Events) > v.cfg.MaxEvents {
		return nil, &ValidationError{
			Index:  -1,
			Reason: fmt.Sprintf("batch of %d events exceeds the limit of %d", len(req.Events), v.cfg.MaxEvents),
		}
	}

	for i := range req.Events {
		if err := checkEvent(&req.Events[i]); err != nil {
			err.Index = i
			return nil, err
		}
	}

	receivedAt := v.now().UTC()
	events := make([]models.Event, len(req.Events))
	for i := range req.Events {
		events[i] = normalize(&req.Events[i], req.SiteID, req.SessionID, receivedAt)
	}
	return events, nil
}

// pixelField names a raw coordinate so range errors can point at it. Pixel
// values are stored as 32-bit integers.
type pixelField struct {
	name  string
	value *float64
}

func checkEvent(raw *models.RawEvent) *ValidationError {
	var missing []string
	if raw.Type == nil || *raw.Type == "" {
		missing = append(missing, "type")
	}
	if raw.Path == nil || *raw.Path == "" {
		missing = append(missing, "path")
	}
	if raw.Timestamp == nil || *raw.Timestamp == 0 {
		missing = append(missing, "timestamp")
	}
	if len(missing) > 0 {
		return &ValidationError{Reason: "missing required fields: " + strings.Join(missing, ", ")}
	}
	if !models.EventType(*raw.Type).Valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown event type %q", *raw.Type)}
	}
	if math.Abs(*raw.Timestamp) > MaxTimestamp {
		return &ValidationError{Reason: fmt.Sprintf("timestamp %g is out of range", *raw.Timestamp)}
	}

	pixels := []pixelField{{"x", raw.X}, {"y", raw.Y}, {"scrollY", raw.ScrollY}}
	if raw.Viewport != nil {
		pixels = append(pixels, pixelField{"viewport.w", raw.Viewport.W}, pixelField{"viewport.h", raw.Viewport.H})
	}
	for _, p := range pixels {
		if p.value == nil {
			continue
		}
		if n := math.Round(*p.value); n < math.MinInt32 || n > math.MaxInt32 {
			return &ValidationError{Reason: fmt.Sprintf("%s %g is out of range", p.name, *p.value)}
		}
	}
	return nil
}

// normalize builds the typed event. The batch identifiers override anything
// the raw event carried.
func normalize(raw *models.RawEvent, siteID, sessionID string, receivedAt time.Time) models.Event {
	e := models.Event{
		EventID:    uuid.NewString(),
		SiteID:     siteID,
		SessionID:  sessionID,
		Type:       models.EventType(*raw.Type),
		Path:       *raw.Path,
		Timestamp:  models.EpochSecondsToTime(*raw.Timestamp),
		ReceivedAt: receivedAt,
	}

	switch e.Type {
	case models.EventTypePageView:
		e.PageView = &models.PageView{URL: deref(raw.URL), Referrer: deref(raw.Referrer)}
	case models.EventTypeClick:
		e.Click = &models.Click{X: roundPtr(raw.X), Y: roundPtr(raw.Y), Viewport: viewport(raw.Viewport)}
	case models.EventTypeScroll:
		e.Scroll = &models.Scroll{ScrollY: roundPtr(raw.ScrollY), Viewport: viewport(raw.Viewport)}
	}
	return e
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func roundPtr(f *float64) *int {
	if f == nil {
		return nil
	}
	n := int(math.Round(*f))
	return &n
}

// viewport keeps a partially reported viewport; the missing side is zero and
// the aggregation treats non-positive sides as absent.
func viewport(raw *models.RawViewport) *models.Viewport {
	if raw == nil || (raw.W == nil && raw.H == nil) {
		return nil
	}
	vp := &models.Viewport{}
	if w := roundPtr(raw.W); w != nil {
		vp.W = *w
	}
	if h := roundPtr(raw.H); h != nil {
		vp.H = *h
	}
	return vp
}
