// Package ical provides the thin tree-walking helpers the converter
// builds on top of github.com/emersion/go-ical: decode/encode a
// VCALENDAR, find the VEVENT children that matter for a conversion, and
// assemble a fresh VCALENDAR shell around a master VEVENT plus its
// RECURRENCE-ID siblings.
//
// This is the module's iCalendar tokenizer/emitter integration point;
// spec.md §1 treats the tokenizer/emitter itself as an external
// collaborator (go-ical fills that role), so everything here is glue, not
// a parser.
package ical

import (
	"bytes"
	"io"
	"time"

	goical "github.com/emersion/go-ical"
)

// Component/Prop/Params/Calendar are re-exported so callers only need to
// import this package, not go-ical directly, for the pieces the converter
// touches. This mirrors the teacher's pkg/ical, which wrapped go-ical the
// same way.
type (
	Component = goical.Component
	Prop      = goical.Prop
	Params    = goical.Params
	Calendar  = goical.Calendar
)

// Component/property names not already exposed as named constants by
// go-ical in the version the teacher pins. Kept as local string constants
// rather than guessed upstream identifiers.
const (
	CompEvent    = goical.CompEvent
	CompCalendar = goical.CompCalendar
	CompAlarm    = "VALARM"

	PropUID              = goical.PropUID
	PropDateTimeStamp    = goical.PropDateTimeStamp
	PropDateTimeStart    = goical.PropDateTimeStart
	PropDateTimeEnd      = goical.PropDateTimeEnd
	PropDuration         = goical.PropDuration
	PropSummary          = goical.PropSummary
	PropDescription      = goical.PropDescription
	PropRecurrenceRule   = goical.PropRecurrenceRule
	PropRecurrenceDates  = goical.PropRecurrenceDates
	PropExceptionDates   = goical.PropExceptionDates
	PropRecurrenceID     = goical.PropRecurrenceID
	PropOrganizer        = goical.PropOrganizer
	PropAttendee         = goical.PropAttendee
	PropSequence         = goical.PropSequence
	PropMethod           = goical.PropMethod
	PropProductID        = goical.PropProductID
	PropVersion          = goical.PropVersion

	PropGeo          = "GEO"
	PropLocation     = "LOCATION"
	PropURL          = "URL"
	PropAttach       = "ATTACH"
	PropClass        = "CLASS"
	PropStatus       = "STATUS"
	PropTransparency = "TRANSP"
	PropPriority     = "PRIORITY"
	PropColor        = "COLOR"
	PropConference   = "CONFERENCE"
	PropRelatedTo    = "RELATED-TO"
	PropTrigger      = "TRIGGER"
	PropAction       = "ACTION"
	PropAcknowledged = "ACKNOWLEDGED"
	PropRepeat       = "REPEAT"
	PropCalScale     = "CALSCALE"
	PropCreated      = "CREATED"
	PropLastModified = "LAST-MODIFIED"
	PropCategories   = "CATEGORIES"

	ParamParticipationStatus = "PARTSTAT"
	ParamRole                = "ROLE"
	ParamCUType              = "CUTYPE"
	ParamRSVP                = "RSVP"
	ParamCN                  = "CN"
	ParamEmail               = "EMAIL"
	ParamFmtType             = "FMTTYPE"
	ParamSize                = "SIZE"
	ParamDelegatedTo         = "DELEGATED-TO"
	ParamDelegatedFrom       = "DELEGATED-FROM"
	ParamMember              = "MEMBER"
	ParamLabel               = "LABEL"
	ParamRelType             = "RELTYPE"
	ParamRelated             = "RELATED"
	ParamTZID                = "TZID"
	ParamValue               = "VALUE"
	ParamLanguage            = "LANGUAGE"

	ValueDate = "DATE"

	// XJMAP* are the stable interchange vocabulary spec.md §6 names.
	XJMAPID               = "X-JMAP-ID"
	XJMAPRole             = "X-JMAP-ROLE"
	XJMAPRSVPURI          = "X-JMAP-RSVP-URI"
	XJMAPLinkID           = "X-JMAP-LINKID"
	XJMAPSequence         = "X-JMAP-SEQUENCE"
	XJMAPDTStamp          = "X-JMAP-DTSTAMP"
	XJMAPLocationID       = "X-JMAP-LOCATIONID"
	XJMAPCID              = "X-JMAP-CID"
	XJMAPTitle            = "X-JMAP-TITLE"
	XJMAPRel              = "X-JMAP-REL"
	XJMAPDisplay          = "X-JMAP-DISPLAY"
	XJMAPGeo              = "X-JMAP-GEO"
	XJMAPTZID             = "X-JMAP-TZID"
	XJMAPDescription      = "X-JMAP-DESCRIPTION"
	XJMAPUseDefaultAlerts = "X-JMAP-USEDEFAULTALERTS"
	XJMAPLocation         = "X-JMAP-LOCATION"
	XAppleStructLoc       = "X-APPLE-STRUCTURED-LOCATION"
	XTitle                = "X-TITLE"
)

// Decode parses a VCALENDAR from data.
func Decode(data []byte) (*Calendar, error) {
	return goical.NewDecoder(bytes.NewReader(data)).Decode()
}

// DecodeReader parses a VCALENDAR from a stream.
func DecodeReader(r io.Reader) (*Calendar, error) {
	return goical.NewDecoder(r).Decode()
}

// Encode serializes cal back to ICS bytes.
func Encode(cal *Calendar) ([]byte, error) {
	var buf bytes.Buffer
	if err := goical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// VEvents returns every VEVENT child of cal, in document order.
func VEvents(cal *Calendar) []*Component {
	var out []*Component
	for _, child := range cal.Children {
		if child.Name == CompEvent {
			out = append(out, child)
		}
	}
	return out
}

// MasterAndOverrides splits a UID-grouped set of VEVENTs into the master
// (no RECURRENCE-ID) and its RECURRENCE-ID siblings, in document order.
// If no VEVENT in the set lacks a RECURRENCE-ID, master is nil.
func MasterAndOverrides(events []*Component) (master *Component, overrides []*Component) {
	for _, ev := range events {
		if ev.Props.Get(PropRecurrenceID) == nil {
			if master == nil {
				master = ev
			}
			continue
		}
		overrides = append(overrides, ev)
	}
	return master, overrides
}

// GroupByUID groups VEVENTs that share a UID, preserving first-seen order
// of UIDs.
func GroupByUID(events []*Component) (order []string, groups map[string][]*Component) {
	groups = make(map[string][]*Component)
	for _, ev := range events {
		uidProp := ev.Props.Get(PropUID)
		if uidProp == nil {
			continue
		}
		uid := uidProp.Value
		if _, ok := groups[uid]; !ok {
			order = append(order, uid)
		}
		groups[uid] = append(groups[uid], ev)
	}
	return order, groups
}

// NewCalendarShell returns an empty VCALENDAR with VERSION:2.0 and
// CALSCALE:GREGORIAN set, ready to receive a master VEVENT and its
// exception siblings (spec.md §6, to_ical).
func NewCalendarShell(prodID string) *Calendar {
	cal := &Calendar{
		Component: &Component{
			Name:  CompCalendar,
			Props: goical.Props{},
		},
	}
	cal.Props.SetText(PropVersion, "2.0")
	cal.Props.SetText(PropCalScale, "GREGORIAN")
	cal.Props.SetText(PropProductID, prodID)
	return cal
}

// NewComponent returns a bare component of the given name with an
// initialized, empty property set (used for VALARM children the alarm
// codec builds, spec.md §4.9).
func NewComponent(name string) *Component {
	return &Component{Name: name, Props: goical.Props{}}
}

// NewEventComponent returns a bare VEVENT with UID and DTSTAMP set.
func NewEventComponent(uid string, now time.Time) *Component {
	comp := &Component{Name: CompEvent, Props: goical.Props{}}
	comp.Props.SetText(PropUID, uid)
	comp.Props.SetDateTime(PropDateTimeStamp, now.UTC())
	return comp
}

// NewProp returns a new property of the given name, analogous to
// goical.NewProp but exported through this package's alias.
func NewProp(name string) *Prop {
	return goical.NewProp(name)
}

// CloneComponent performs a deep copy of comp via an ICS round-trip
// through a throwaway VCALENDAR wrapper. Used by the override codec
// (§4.6) to avoid mutating a shared VEVENT when building an exception
// instance.
func CloneComponent(comp *Component) *Component {
	wrapper := &Calendar{Component: &Component{Name: CompCalendar, Props: goical.Props{}}}
	wrapper.Props.SetText(PropVersion, "2.0")
	wrapper.Children = []*Component{comp}
	data, err := Encode(wrapper)
	if err != nil {
		return comp
	}
	decoded, err := Decode(data)
	if err != nil || len(decoded.Children) == 0 {
		return comp
	}
	return decoded.Children[0]
}
