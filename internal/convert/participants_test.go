package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/jscalical/internal/tzcache"
	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
)

func TestParticipantsFromICalOrganizerIsAttendeeOmitted(t *testing.T) {
	data := crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"BEGIN:VEVENT",
		"UID:org-attendee-1@example.com",
		"DTSTAMP:20260101T000000Z",
		"DTSTART:20260115T090000Z",
		"ORGANIZER;CN=Alice:mailto:alice@example.com",
		"ATTENDEE;CN=Alice;ROLE=CHAIR:mailto:alice@example.com",
		"ATTENDEE;CN=Bob:mailto:bob@example.com",
		"END:VEVENT",
		"END:VCALENDAR",
	)
	cal, err := ical.Decode(data)
	require.NoError(t, err)
	comp := ical.VEvents(cal)[0]

	c := NewContext(tzcache.New(), nil)
	participants := c.ParticipantsFromICal(comp)
	require.Len(t, participants, 2, "organizer-as-attendee must not be duplicated as a separate participant")

	found := false
	for _, p := range participants {
		if p.Email != nil && *p.Email == "alice@example.com" {
			found = true
			assert.True(t, p.Roles["owner"], "organizer==attendee participant must carry the owner role")
			assert.True(t, p.Roles["chair"])
		}
	}
	assert.True(t, found)
}

func TestParticipantsFromICalDelegationChain(t *testing.T) {
	data := crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"BEGIN:VEVENT",
		"UID:delegation-1@example.com",
		"DTSTAMP:20260101T000000Z",
		"DTSTART:20260115T090000Z",
		"ORGANIZER:mailto:boss@example.com",
		`ATTENDEE;CN=Carol;PARTSTAT=DELEGATED;DELEGATED-TO="mailto:dave@example.com":mailto:carol@example.com`,
		`ATTENDEE;CN=Dave;DELEGATED-FROM="mailto:carol@example.com";PARTSTAT=ACCEPTED:mailto:dave@example.com`,
		"END:VEVENT",
		"END:VCALENDAR",
	)
	cal, err := ical.Decode(data)
	require.NoError(t, err)
	comp := ical.VEvents(cal)[0]

	c := NewContext(tzcache.New(), nil)
	participants := c.ParticipantsFromICal(comp)
	require.NotNil(t, participants)

	var dave, carol *string
	for id, p := range participants {
		if p.Email != nil && *p.Email == "dave@example.com" {
			idCopy := id
			dave = &idCopy
		}
		if p.Email != nil && *p.Email == "carol@example.com" {
			idCopy := id
			carol = &idCopy
		}
	}
	require.NotNil(t, dave)
	require.NotNil(t, carol)

	carolP := participants[*carol]
	assert.True(t, carolP.DelegatedTo[*dave], "carol must delegate to dave's participant id")
	daveP := participants[*dave]
	assert.True(t, daveP.DelegatedFrom[*carol], "dave must record carol as the delegator")
}
