package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/jscalical/internal/tzcache"
	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

func newTestVEvent(t *testing.T) *ical.Component {
	t.Helper()
	data := crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"BEGIN:VEVENT",
		"UID:alarm-1@example.com",
		"DTSTAMP:20260101T000000Z",
		"DTSTART:20260115T090000Z",
		"DTEND:20260115T100000Z",
		"BEGIN:VALARM",
		"UID:alert-1",
		"ACTION:DISPLAY",
		"TRIGGER:-PT10M",
		"DESCRIPTION:Reminder",
		"END:VALARM",
		"BEGIN:VALARM",
		"RELATED-TO;RELTYPE=SNOOZE:alert-1",
		"TRIGGER;VALUE=DATE-TIME:20260115T085500Z",
		"END:VALARM",
		"END:VEVENT",
		"END:VCALENDAR",
	)
	cal, err := ical.Decode(data)
	require.NoError(t, err)
	return ical.VEvents(cal)[0]
}

func TestAlarmsFromICalSnoozedDisplayAlert(t *testing.T) {
	comp := newTestVEvent(t)
	c := NewContext(tzcache.New(), nil)

	start := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	alerts := c.AlarmsFromICal(comp, start, end, true)

	require.NotNil(t, alerts)
	alert, ok := alerts["alert-1"]
	require.True(t, ok)
	assert.Equal(t, "display", *alert.Action)
	assert.Equal(t, "before-start", *alert.RelativeTo)
	assert.Equal(t, "PT10M", *alert.Offset)
	require.NotNil(t, alert.Snoozed)
	assert.Equal(t, "2026-01-15T08:55:00Z", *alert.Snoozed)
}

func TestAlarmsToICalEmailIncludesAttendee(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	comp := ical.NewComponent(ical.CompEvent)

	alerts := map[string]*jscal.Alert{
		"alert-1": {
			Action:     jscal.Str("email"),
			RelativeTo: jscal.Str("before-start"),
			Offset:     jscal.Str("PT15M"),
		},
	}
	c.AlarmsToICal(comp, alerts, "Standup", "Daily sync", "mailto:owner@example.com")
	assert.False(t, c.HasErrors())

	var found *ical.Component
	for _, child := range comp.Children {
		if child.Name == ical.CompAlarm {
			if ap := child.Props.Get(ical.PropAction); ap != nil && ap.Value == "EMAIL" {
				found = child
			}
		}
	}
	require.NotNil(t, found)
	attendee := found.Props.Get(ical.PropAttendee)
	require.NotNil(t, attendee)
	assert.Equal(t, "mailto:owner@example.com", attendee.Value)
	trig := found.Props.Get(ical.PropTrigger)
	require.NotNil(t, trig)
	assert.Equal(t, "-PT15M", trig.Value)
}

func TestAlarmsToICalRejectsBadOffset(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	comp := ical.NewComponent(ical.CompEvent)

	alerts := map[string]*jscal.Alert{
		"alert-1": {Offset: jscal.Str("not-a-duration")},
	}
	c.AlarmsToICal(comp, alerts, "", "", "")
	assert.True(t, c.HasErrors())
}
