package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/jscalical/internal/tzcache"
	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

func TestLocationsFromICalLocationGeoAndConference(t *testing.T) {
	data := crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"BEGIN:VEVENT",
		"UID:loc-1@example.com",
		"DTSTAMP:20260101T000000Z",
		"DTSTART:20260115T090000Z",
		"LOCATION:Main Office",
		"GEO:37.386013;-122.082932",
		"CONFERENCE;LABEL=Video call;X-JMAP-DESCRIPTION=Join early:https://meet.example.com/abc",
		"END:VEVENT",
		"END:VCALENDAR",
	)
	cal, err := ical.Decode(data)
	require.NoError(t, err)
	comp := ical.VEvents(cal)[0]

	c := NewContext(tzcache.New(), nil)
	locations, virtual := c.LocationsFromICal(comp)

	require.Len(t, locations, 1)
	var loc *jscal.Location
	for _, l := range locations {
		loc = l
	}
	require.NotNil(t, loc)
	assert.Equal(t, "Main Office", *loc.Name)
	require.NotNil(t, loc.Coordinates)
	assert.Equal(t, "geo:37.386013,-122.082932", *loc.Coordinates)

	require.Len(t, virtual, 1)
	var vl *jscal.VirtualLocation
	for _, v := range virtual {
		vl = v
	}
	require.NotNil(t, vl)
	assert.Equal(t, "https://meet.example.com/abc", vl.URI)
	assert.Equal(t, "Video call", *vl.Name)
	assert.Equal(t, "Join early", *vl.Description)
}

func TestLocationsToICalSkipsEmptyLocation(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	comp := ical.NewComponent(ical.CompEvent)

	locations := map[string]*jscal.Location{
		"empty1": {Type: "Location"},
	}
	endID := c.LocationsToICal(comp, locations, nil, nil)
	assert.Empty(t, endID)
	assert.True(t, c.HasErrors())
	assert.Nil(t, comp.Props.Get(ical.PropLocation))
}

func TestLocationsToICalRejectsUnknownLinkID(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	comp := ical.NewComponent(ical.CompEvent)

	locations := map[string]*jscal.Location{
		"room1": {
			Type:    "Location",
			Name:    jscal.Str("Room 1"),
			LinkIDs: map[string]bool{"missing-link": true},
		},
	}
	c.LocationsToICal(comp, locations, nil, map[string]bool{"other-link": true})
	assert.True(t, c.HasErrors())
}

func TestLocationsToICalIdentifiesEndTimeZoneLocation(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	comp := ical.NewComponent(ical.CompEvent)

	locations := map[string]*jscal.Location{
		"end-tz": {
			Type:     "Location",
			Rel:      jscal.Str("end"),
			TimeZone: jscal.Str("Europe/London"),
		},
	}
	endID := c.LocationsToICal(comp, locations, nil, nil)
	assert.Equal(t, "end-tz", endID)
	assert.False(t, c.HasErrors())
	assert.Nil(t, comp.Props.Get(ical.PropLocation), "end-timezone locations are not emitted as LOCATION properties")
}
