package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventTypeValid(t *testing.T) {
	for _, typ := range []EventType{EventTypePageView, EventTypeClick, EventTypeScroll} {
		assert.True(t, typ.Valid(), typ)
	}
	for _, typ := range []EventType{"", "navigate", "PAGE_VIEW"} {
		assert.False(t, typ.Valid(), typ)
	}
}

func TestEpochSecondsRoundTrip(t *testing.T) {
	ts := EpochSecondsToTime(1700000000)
	assert.Equal(t, int64(1700000000000), ts.UnixMilli())
	assert.Equal(t, int64(1700000000), TimeToEpochSeconds(ts))

	frac := EpochSecondsToTime(1700000000.25)
	assert.Equal(t, int64(1700000000250), frac.UnixMilli())
	assert.Equal(t, int64(1700000000), TimeToEpochSeconds(frac))
}

func TestTimeToEpochSecondsFloorsNegative(t *testing.T) {
	assert.Equal(t, int64(-2), TimeToEpochSeconds(time.UnixMilli(-1500)))
}

func TestEventViewport(t *testing.T) {
	vp := &Viewport{W: 100, H: 200}

	click := Event{Type: EventTypeClick, Click: &Click{Viewport: vp}}
	assert.Same(t, vp, click.Viewport())

	scroll := Event{Type: EventTypeScroll, Scroll: &Scroll{Viewport: vp}}
	assert.Same(t, vp, scroll.Viewport())

	pv := Event{Type: EventTypePageView, PageView: &PageView{URL: "https://example.com"}}
	assert.Nil(t, pv.Viewport())
}
