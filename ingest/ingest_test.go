package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatpulse/api/models"
	"heatpulse/api/store"
)

func decode(t *testing.T, body string) *models.IngestRequest {
	t.Helper()
	var req models.IngestRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return &req
}

func TestValidate_NormalizesBatch(t *testing.T) {
	v := NewValidator(Config{MaxEvents: 10})
	req := decode(t, `{
		"site_id": "s1",
		"session_id": "sess",
		"events": [
			{"type": "page_view", "path": "/", "timestamp": 1000.5, "url": "https://a.com/", "referrer": "", "site_id": "spoofed"},
			{"type": "click", "path": "/", "timestamp": 1001, "x": 10.6, "y": 20, "viewport": {"w": 1280, "h": 720}, "session_id": "spoofed"},
			{"type": "scroll", "path": "/", "timestamp": 1002, "scrollY": 333.4, "viewport": {"h": 800}}
		]
	}`)

	events, err := v.Validate(req)
	require.NoError(t, err)
	require.Len(t, events, 3)

	for _, e := range events {
		assert.Equal(t, "s1", e.SiteID)
		assert.Equal(t, "sess", e.SessionID)
		assert.NotEmpty(t, e.EventID)
		assert.False(t, e.ReceivedAt.IsZero())
	}
	assert.NotEqual(t, events[0].EventID, events[1].EventID)

	assert.Equal(t, int64(1000500), events[0].Timestamp.UnixMilli())
	require.NotNil(t, events[0].PageView)
	assert.Equal(t, "https://a.com/", events[0].PageView.URL)

	require.NotNil(t, events[1].Click)
	assert.Equal(t, 11, *events[1].Click.X)
	assert.Equal(t, 20, *events[1].Click.Y)
	assert.Equal(t, &models.Viewport{W: 1280, H: 720}, events[1].Click.Viewport)

	require.NotNil(t, events[2].Scroll)
	assert.Equal(t, 333, *events[2].Scroll.ScrollY)
	assert.Equal(t, &models.Viewport{W: 0, H: 800}, events[2].Scroll.Viewport)
}

func TestValidate_RejectsBatch(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		index int
	}{
		{"missing site", `{"session_id":"s","events":[{"type":"click","path":"/","timestamp":1}]}`, -1},
		{"blank session", `{"site_id":"a","session_id":"  ","events":[{"type":"click","path":"/","timestamp":1}]}`, -1},
		{"no events", `{"site_id":"a","session_id":"s","events":[]}`, -1},
		{"missing type", `{"site_id":"a","session_id":"s","events":[{"type":"click","path":"/","timestamp":1},{"path":"/","timestamp":1}]}`, 1},
		{"missing path", `{"site_id":"a","session_id":"s","events":[{"type":"click","timestamp":1}]}`, 0},
		{"zero timestamp", `{"site_id":"a","session_id":"s","events":[{"type":"click","path":"/","timestamp":0}]}`, 0},
		{"unknown type", `{"site_id":"a","session_id":"s","events":[{"type":"hover","path":"/","timestamp":1}]}`, 0},
		{"null event", `{"site_id":"a","session_id":"s","events":[null]}`, 0},
		{"timestamp too large", `{"site_id":"a","session_id":"s","events":[{"type":"click","path":"/","timestamp":1e17}]}`, 0},
		{"timestamp too small", `{"site_id":"a","session_id":"s","events":[{"type":"page_view","path":"/","timestamp":1},{"type":"page_view","path":"/","timestamp":-9e12}]}`, 1},
		{"x beyond int32", `{"site_id":"a","session_id":"s","events":[{"type":"click","path":"/","timestamp":1,"x":3e9,"y":1,"viewport":{"w":100,"h":100}}]}`, 0},
		{"viewport width beyond int32", `{"site_id":"a","session_id":"s","events":[{"type":"click","path":"/","timestamp":1,"x":1,"y":1,"viewport":{"w":3e9,"h":100}}]}`, 0},
		{"negative scrollY beyond int32", `{"site_id":"a","session_id":"s","events":[{"type":"scroll","path":"/","timestamp":1,"scrollY":-3e9,"viewport":{"w":100,"h":100}}]}`, 0},
	}

	v := NewValidator(Config{MaxEvents: 1000})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(decode(t, tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidBatch)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.index, verr.Index)
		})
	}
}

func TestValidate_AcceptsRangeLimits(t *testing.T) {
	req := decode(t, `{"site_id":"a","session_id":"s","events":[
		{"type":"click","path":"/","timestamp":8.64e12,"x":2147483647,"y":-2147483648,"viewport":{"w":2147483647,"h":1}},
		{"type":"page_view","path":"/","timestamp":-8.64e12}
	]}`)

	events, err := NewValidator(Config{}).Validate(req)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, int64(8_640_000_000_000), models.TimeToEpochSeconds(events[0].Timestamp))
	assert.Equal(t, int64(-8_640_000_000_000), models.TimeToEpochSeconds(events[1].Timestamp))
	assert.Equal(t, 2147483647, *events[0].Click.X)
	assert.Equal(t, -2147483648, *events[0].Click.Y)
}

func TestIngester_OutOfRangePixelsPersistNothing(t *testing.T) {
	events := store.NewMemoryEventStore()
	ing := NewIngester(NewValidator(Config{MaxEvents: 1000}), events, nil)

	body := `{"site_id":"a","session_id":"s","events":[
		{"type":"click","path":"/","timestamp":1,"x":10,"y":10,"viewport":{"w":100,"h":100}},
		{"type":"click","path":"/","timestamp":2,"x":3e9,"y":3e9,"viewport":{"w":100,"h":100}}
	]}`
	_, err := ing.Ingest(context.Background(), decode(t, body))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, 0, events.Len())
}

func TestValidate_MaxEvents(t *testing.T) {
	req := decode(t, `{"site_id":"a","session_id":"s","events":[
		{"type":"click","path":"/","timestamp":1},
		{"type":"click","path":"/","timestamp":2},
		{"type":"click","path":"/","timestamp":3}
	]}`)

	_, err := NewValidator(Config{MaxEvents: 2}).Validate(req)
	assert.ErrorIs(t, err, ErrInvalidBatch)

	events, err := NewValidator(Config{MaxEvents: 0}).Validate(req)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

type failingStore struct{ store.EventStore }

func (failingStore) Append(context.Context, []models.Event) error {
	return errors.New("connection refused")
}

func TestIngester_StoresEveryValidEvent(t *testing.T) {
	events := store.NewMemoryEventStore()
	ing := NewIngester(NewValidator(Config{MaxEvents: 1000}), events, nil)

	body := `{"site_id":"a","session_id":"s","events":[
		{"type":"page_view","path":"/","timestamp":1},
		{"type":"click","path":"/","timestamp":2,"x":1,"y":1,"viewport":{"w":10,"h":10}}
	]}`
	n, err := ing.Ingest(context.Background(), decode(t, body))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, events.Len())

	// A retried batch is stored again.
	_, err = ing.Ingest(context.Background(), decode(t, body))
	require.NoError(t, err)
	assert.Equal(t, 4, events.Len())
}

func TestIngester_MalformedEventPersistsNothing(t *testing.T) {
	events := store.NewMemoryEventStore()
	ing := NewIngester(NewValidator(Config{}), events, nil)

	_, err := ing.Ingest(context.Background(), decode(t, `{"site_id":"a","session_id":"s","events":[
		{"type":"page_view","path":"/","timestamp":1},
		{"type":"page_view","path":"/"}
	]}`))
	assert.True(t, IsValidationError(err))
	assert.Equal(t, 0, events.Len())
}

func TestIngester_StoreFailure(t *testing.T) {
	ing := NewIngester(NewValidator(Config{}), failingStore{}, nil)

	_, err := ing.Ingest(context.Background(), decode(t, `{"site_id":"a","session_id":"s","events":[
		{"type":"page_view","path":"/","timestamp":1}
	]}`))
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestValidate_StampsReceivedAt(t *testing.T) {
	v := NewValidator(Config{})
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	v.now = func() time.Time { return fixed }

	events, err := v.Validate(decode(t, `{"site_id":"a","session_id":"s","events":[{"type":"scroll","path":"/","timestamp":5}]}`))
	require.NoError(t, err)
	assert.Equal(t, fixed, events[0].ReceivedAt)
	assert.Nil(t, events[0].Scroll.ScrollY)
	assert.Nil(t, events[0].Scroll.Viewport)
}
