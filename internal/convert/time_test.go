package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/jscalical/internal/tzcache"
)

func TestISO8601DurationRoundTrip(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "PT0S"},
		{90 * time.Minute, "PT1H30M"},
		{25 * time.Hour, "P1DT1H"},
		{48 * time.Hour, "P2D"},
		{45 * time.Second, "PT45S"},
	}
	for _, c := range cases {
		got := ISO8601Duration(c.d)
		assert.Equal(t, c.want, got)

		parsed, err := ParseISO8601Duration(got)
		require.NoError(t, err)
		assert.Equal(t, c.d, parsed)
	}
}

func TestParseICalDateTimeFloating(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	dt, err := c.ParseICalDateTime("20260115T090000", "")
	require.NoError(t, err)
	assert.False(t, dt.IsUTC)
	assert.False(t, dt.IsDate)
	assert.Empty(t, dt.TZID)
	assert.Equal(t, "2026-01-15T09:00:00", dt.ToLocalDateString())
}

func TestParseICalDateTimeUTC(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	dt, err := c.ParseICalDateTime("20260115T090000Z", "")
	require.NoError(t, err)
	assert.True(t, dt.IsUTC)

	instant, err := c.ToUTC(dt)
	require.NoError(t, err)
	assert.Equal(t, 2026, instant.Year())
	assert.Equal(t, 9, instant.Hour())
}

func TestParseICalDateTimeNamedZone(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	dt, err := c.ParseICalDateTime("20260601T133000", "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", dt.TZID)

	value, tzid := FormatICalDateTime(dt)
	assert.Equal(t, "20260601T133000", value)
	assert.Equal(t, "America/New_York", tzid)
}

func TestParseICalDateTimeAllDay(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	dt, err := c.ParseICalDateTime("20260704", "")
	require.NoError(t, err)
	assert.True(t, dt.IsDate)
	assert.Equal(t, "2026-07-04T00:00:00", dt.ToLocalDateString())
}

func TestParseICalDateTimeUnknownZoneFallsBackWithoutError(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	dt, err := c.ParseICalDateTime("20260601T133000", "Nonexistent/Place")
	require.NoError(t, err)
	assert.False(t, c.HasErrors())
	assert.Empty(t, dt.TZID)
}

func TestLocalDateRoundTrip(t *testing.T) {
	local, err := ParseLocalDate("2026-03-09T08:15:30")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09T08:15:30", FormatLocalDate(local))
}
