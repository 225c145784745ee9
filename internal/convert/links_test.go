package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/jscalical/internal/tzcache"
	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

func TestLinksFromICalAttachAndBareURL(t *testing.T) {
	data := crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"BEGIN:VEVENT",
		"UID:link-1@example.com",
		"DTSTAMP:20260101T000000Z",
		"DTSTART:20260115T090000Z",
		"ATTACH;FMTTYPE=application/pdf;SIZE=1024;X-JMAP-TITLE=Agenda:https://example.com/agenda.pdf",
		"URL:https://example.com/event",
		"END:VEVENT",
		"END:VCALENDAR",
	)
	cal, err := ical.Decode(data)
	require.NoError(t, err)
	comp := ical.VEvents(cal)[0]

	c := NewContext(tzcache.New(), nil)
	links := c.LinksFromICal(comp)
	require.Len(t, links, 2)

	var attach, url *jscal.Link
	for _, l := range links {
		switch l.Href {
		case "https://example.com/agenda.pdf":
			attach = l
		case "https://example.com/event":
			url = l
		}
	}
	require.NotNil(t, attach)
	assert.Equal(t, "application/pdf", *attach.ContentType)
	assert.Equal(t, int64(1024), *attach.Size)
	assert.Equal(t, "Agenda", *attach.Title)
	assert.Equal(t, "enclosure", *attach.Rel)

	require.NotNil(t, url)
	assert.Equal(t, "describedby", *url.Rel)
}

func TestLinksToICalBareDescribedByBecomesURL(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	comp := ical.NewComponent(ical.CompEvent)

	links := map[string]*jscal.Link{
		"link1": {Href: "https://example.com/info", Rel: jscal.Str("describedby")},
	}
	c.LinksToICal(comp, links)
	assert.False(t, c.HasErrors())

	urlProp := comp.Props.Get(ical.PropURL)
	require.NotNil(t, urlProp)
	assert.Equal(t, "https://example.com/info", urlProp.Value)
	assert.Nil(t, comp.Props.Get(ical.PropAttach))
}

func TestLinksToICalWithContentTypeBecomesAttach(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	comp := ical.NewComponent(ical.CompEvent)

	links := map[string]*jscal.Link{
		"link1": {
			Href:        "https://example.com/info",
			Rel:         jscal.Str("describedby"),
			ContentType: jscal.Str("text/html"),
		},
	}
	c.LinksToICal(comp, links)
	assert.False(t, c.HasErrors())

	attachProp := comp.Props.Get(ical.PropAttach)
	require.NotNil(t, attachProp)
	assert.Equal(t, "text/html", attachProp.Params.Get(ical.ParamFmtType))
	assert.Nil(t, comp.Props.Get(ical.PropURL))
}

func TestLinksToICalRejectsMissingHref(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	comp := ical.NewComponent(ical.CompEvent)

	links := map[string]*jscal.Link{
		"link1": {Href: ""},
	}
	c.LinksToICal(comp, links)
	assert.True(t, c.HasErrors())
}
