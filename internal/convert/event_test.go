package convert

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/jscalical/internal/tzcache"
	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

func crlf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func TestEventFromICalBasicTimedEvent(t *testing.T) {
	data := crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"BEGIN:VEVENT",
		"UID:event-1@example.com",
		"DTSTAMP:20260101T000000Z",
		"DTSTART;TZID=America/New_York:20260115T090000",
		"DTEND;TZID=America/New_York:20260115T100000",
		"SUMMARY:Weekly sync",
		"STATUS:CONFIRMED",
		"TRANSP:OPAQUE",
		"PRIORITY:5",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	cal, err := ical.Decode(data)
	require.NoError(t, err)

	tz := tzcache.New()
	ev, err := ToJMAP(tz, cal, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, "event-1@example.com", ev.UID)
	assert.Equal(t, "Weekly sync", *ev.Title)
	assert.Equal(t, "2026-01-15T09:00:00", *ev.Start)
	require.NotNil(t, ev.TimeZone)
	assert.Equal(t, "America/New_York", *ev.TimeZone)
	assert.Equal(t, "PT1H", *ev.Duration)
	assert.Equal(t, "confirmed", *ev.Status)
	assert.Equal(t, "busy", *ev.FreeBusyStatus)
	assert.Equal(t, 5, *ev.Priority)
	assert.Equal(t, "-//Test//Test//EN", *ev.ProdID)
}

func TestEventToICalThenBackPreservesCoreFields(t *testing.T) {
	ev := jscal.NewEvent("round-trip-1@example.com")
	ev.Title = jscal.Str("Design review")
	ev.Start = jscal.Str("2026-02-02T14:00:00")
	ev.TimeZone = jscal.Str("Europe/London")
	ev.Duration = jscal.Str("PT45M")
	ev.Status = jscal.Str("tentative")
	ev.FreeBusyStatus = jscal.Str("free")

	tz := tzcache.New()
	cal, err := ToICal(tz, ev, "-//Test//RoundTrip//EN", "", zerolog.Nop())
	require.NoError(t, err)

	encoded, err := ical.Encode(cal)
	require.NoError(t, err)

	decoded, err := ical.Decode(encoded)
	require.NoError(t, err)

	back, err := ToJMAP(tz, decoded, nil, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, ev.UID, back.UID)
	assert.Equal(t, *ev.Title, *back.Title)
	assert.Equal(t, *ev.Start, *back.Start)
	assert.Equal(t, *ev.TimeZone, *back.TimeZone)
	assert.Equal(t, *ev.Duration, *back.Duration)
	assert.Equal(t, *ev.Status, *back.Status)
	assert.Equal(t, *ev.FreeBusyStatus, *back.FreeBusyStatus)
}

func TestEventFromICalAllDay(t *testing.T) {
	data := crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"BEGIN:VEVENT",
		"UID:allday-1@example.com",
		"DTSTAMP:20260101T000000Z",
		"DTSTART;VALUE=DATE:20260704",
		"DTEND;VALUE=DATE:20260706",
		"SUMMARY:Long weekend",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	cal, err := ical.Decode(data)
	require.NoError(t, err)

	tz := tzcache.New()
	ev, err := ToJMAP(tz, cal, nil, zerolog.Nop())
	require.NoError(t, err)

	require.NotNil(t, ev.IsAllDay)
	assert.True(t, *ev.IsAllDay)
	assert.Nil(t, ev.TimeZone)
	assert.Equal(t, "2026-07-04T00:00:00", *ev.Start)
	assert.Equal(t, "P2D", *ev.Duration)
}

func TestEventFromICalWithExceptionOverride(t *testing.T) {
	data := crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"BEGIN:VEVENT",
		"UID:recur-1@example.com",
		"DTSTAMP:20260101T000000Z",
		"DTSTART;TZID=America/New_York:20260105T090000",
		"DTEND;TZID=America/New_York:20260105T093000",
		"SUMMARY:Daily standup",
		"RRULE:FREQ=DAILY;COUNT=5",
		"EXDATE;TZID=America/New_York:20260107T090000",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:recur-1@example.com",
		"DTSTAMP:20260101T000000Z",
		"RECURRENCE-ID;TZID=America/New_York:20260106T090000",
		"DTSTART;TZID=America/New_York:20260106T093000",
		"DTEND;TZID=America/New_York:20260106T100000",
		"SUMMARY:Daily standup (shifted)",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	cal, err := ical.Decode(data)
	require.NoError(t, err)

	tz := tzcache.New()
	ev, err := ToJMAP(tz, cal, nil, zerolog.Nop())
	require.NoError(t, err)

	require.NotNil(t, ev.RecurrenceOverrides)

	excluded, ok := ev.RecurrenceOverrides["2026-01-07T09:00:00"]
	require.True(t, ok)
	assert.True(t, excluded.IsExcluded())

	shifted, ok := ev.RecurrenceOverrides["2026-01-06T09:00:00"]
	require.True(t, ok)
	assert.Equal(t, "2026-01-06T09:30:00", shifted["/start"])
	assert.Equal(t, "Daily standup (shifted)", shifted["/title"])
	_, hasUID := shifted["/uid"]
	assert.False(t, hasUID, "forbidden override keys must never appear in the patch")
}

func TestEventFromICalHonorsPropertyFilter(t *testing.T) {
	data := crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"BEGIN:VEVENT",
		"UID:filtered-1@example.com",
		"DTSTAMP:20260101T000000Z",
		"DTSTART;TZID=America/New_York:20260115T090000",
		"SUMMARY:Should be dropped",
		"DESCRIPTION:Should survive",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	cal, err := ical.Decode(data)
	require.NoError(t, err)

	tz := tzcache.New()
	ev, err := ToJMAP(tz, cal, []string{"description"}, zerolog.Nop())
	require.NoError(t, err)

	assert.Nil(t, ev.Title)
	require.NotNil(t, ev.Description)
	assert.Equal(t, "Should survive", *ev.Description)
}

func TestEventFromICalSynthesizesEndTimezoneLocation(t *testing.T) {
	data := crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"BEGIN:VEVENT",
		"UID:flight-1@example.com",
		"DTSTAMP:20260101T000000Z",
		"DTSTART;TZID=America/New_York:20260310T080000",
		"DTEND;TZID=Europe/London:20260310T200000",
		"SUMMARY:Flight to London",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	cal, err := ical.Decode(data)
	require.NoError(t, err)

	tz := tzcache.New()
	ev, err := ToJMAP(tz, cal, nil, zerolog.Nop())
	require.NoError(t, err)

	require.NotNil(t, ev.Locations)
	var endLoc *jscal.Location
	for _, loc := range ev.Locations {
		if loc.Rel != nil && *loc.Rel == "end" {
			endLoc = loc
		}
	}
	require.NotNil(t, endLoc, "an end-timezone location must be synthesized when DTEND's zone differs from DTSTART's")
	require.NotNil(t, endLoc.TimeZone)
	assert.Equal(t, "Europe/London", *endLoc.TimeZone)

	rebuiltCal, err := ToICal(tz, ev, "-//Test//Test//EN", "", zerolog.Nop())
	require.NoError(t, err)
	reEncoded, err := ical.Encode(rebuiltCal)
	require.NoError(t, err)

	redecoded, err := ical.Decode(reEncoded)
	require.NoError(t, err)
	vevent := ical.VEvents(redecoded)[0]
	dtend := vevent.Props.Get(ical.PropDateTimeEnd)
	require.NotNil(t, dtend)
	assert.Equal(t, "Europe/London", dtend.Params.Get(ical.ParamTZID))
}

func TestEventToICalRequiresUID(t *testing.T) {
	ev := &jscal.Event{Type: jscal.TypeJSEvent}
	tz := tzcache.New()
	_, err := ToICal(tz, ev, "-//Test//NoUID//EN", "", zerolog.Nop())
	assert.Error(t, err)
}

func TestEventToICalEmitsOverrideExdateAndSibling(t *testing.T) {
	ev := jscal.NewEvent("recur-out-1@example.com")
	ev.Title = jscal.Str("Daily standup")
	ev.Start = jscal.Str("2026-01-05T09:00:00")
	ev.TimeZone = jscal.Str("America/New_York")
	ev.Duration = jscal.Str("PT30M")
	ev.RecurrenceRule = &jscal.RecurrenceRule{Frequency: "daily", Count: jscal.Int(5)}
	ev.RecurrenceOverrides = map[string]jscal.PatchOrFlag{
		"2026-01-07T09:00:00": {"excluded": true},
		"2026-01-06T09:00:00": {"/title": "Daily standup (shifted)"},
	}

	tz := tzcache.New()
	cal, err := ToICal(tz, ev, "-//Test//Test//EN", "", zerolog.Nop())
	require.NoError(t, err)

	vevents := ical.VEvents(cal)
	master, overrides := ical.MasterAndOverrides(vevents)
	require.NotNil(t, master)
	require.Len(t, overrides, 1, "one patch override must become a RECURRENCE-ID sibling")

	exdate := master.Props.Get(ical.PropExceptionDates)
	require.NotNil(t, exdate, "the excluded instance must become an EXDATE on the master")

	sib := overrides[0]
	assert.Equal(t, "recur-out-1@example.com", sib.Props.Get(ical.PropUID).Value)
	summary := sib.Props.Get(ical.PropSummary)
	require.NotNil(t, summary)
	assert.Equal(t, "Daily standup (shifted)", summary.Value)
}
