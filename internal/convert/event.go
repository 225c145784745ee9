package convert

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/jscalical/internal/tzcache"
	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

var statusToJSON = map[string]string{"CONFIRMED": "confirmed", "CANCELLED": "cancelled", "TENTATIVE": "tentative"}
var statusToICal = map[string]string{"confirmed": "CONFIRMED", "cancelled": "CANCELLED", "tentative": "TENTATIVE"}

var transpToJSON = map[string]string{"TRANSPARENT": "free", "OPAQUE": "busy"}
var transpToICal = map[string]string{"free": "TRANSPARENT", "busy": "OPAQUE"}

var classToJSON = map[string]string{"PUBLIC": "public", "PRIVATE": "private", "CONFIDENTIAL": "secret"}
var classToICal = map[string]string{"public": "PUBLIC", "private": "PRIVATE", "secret": "CONFIDENTIAL"}

// EventFromICal converts one VEVENT (plus its RECURRENCE-ID siblings, when
// not in exception mode) into a JSCalendar event object (spec.md §4.10).
// calMethod/calProdID are the enclosing VCALENDAR's METHOD/PRODID property
// values, if any.
func (c *Context) EventFromICal(master *ical.Component, siblings []*ical.Component, calMethod, calProdID string) (*jscal.Event, error) {
	needOverrides := c.Wants("recurrenceOverrides") && !c.Mode.Exception && len(siblings) > 0

	var restoreFilter func()
	if needOverrides {
		restoreFilter = c.SuppressFilter()
	}

	ev, err := c.basicEventFromICal(master, calMethod, calProdID)
	if err != nil {
		if restoreFilter != nil {
			restoreFilter()
		}
		return nil, err
	}

	if needOverrides {
		overrides, operr := c.OverridesFromICal(master, siblings, ev, func(sib *ical.Component) (*jscal.Event, error) {
			child := NewContext(c.TZ, nil)
			child.Mode.Exception = true
			child.StartTZID = c.StartTZID
			exEv, exErr := child.basicEventFromICal(sib, "", "")
			if exErr != nil {
				return nil, exErr
			}
			return exEv, nil
		})
		restoreFilter()
		if operr != nil {
			return nil, operr
		}
		ev.RecurrenceOverrides = overrides
	}

	if c.WantProps != nil {
		pruneEvent(ev, c.WantProps)
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return ev, nil
}

// basicEventFromICal converts every field except recurrenceOverrides,
// always unfiltered by wantProps (the caller applies the filter once, at
// the very end, per spec.md §4.10).
func (c *Context) basicEventFromICal(comp *ical.Component, calMethod, calProdID string) (*jscal.Event, error) {
	ev := &jscal.Event{Type: jscal.TypeJSEvent}

	if uidProp := comp.Props.Get(ical.PropUID); uidProp != nil {
		ev.UID = uidProp.Value
	}
	if calProdID != "" {
		ev.ProdID = jscal.Str(calProdID)
	}
	if p := comp.Props.Get(ical.PropCreated); p != nil {
		if dt, err := c.ParseICalDateTime(p.Value, ""); err == nil {
			ev.Created = jscal.Str(FormatUTCDate(dt.Local))
		}
	}
	if p := comp.Props.Get(ical.PropLastModified); p != nil {
		if dt, err := c.ParseICalDateTime(p.Value, ""); err == nil {
			ev.Updated = jscal.Str(FormatUTCDate(dt.Local))
		}
	}
	if p := comp.Props.Get(ical.PropSequence); p != nil {
		if n, ok := parseIntOrNil(p.Value); ok {
			ev.Sequence = jscal.Int(n)
		}
	}
	if p := comp.Props.Get(ical.PropPriority); p != nil {
		if n, ok := parseIntOrNil(p.Value); ok {
			ev.Priority = jscal.Int(n)
		}
	}
	if p := comp.Props.Get(ical.PropSummary); p != nil {
		ev.Title = jscal.Str(p.Value)
		if lang := p.Params.Get(ical.ParamLanguage); lang != "" {
			ev.Locale = jscal.Str(lang)
		}
	}
	if p := comp.Props.Get(ical.PropDescription); p != nil {
		ev.Description = jscal.Str(p.Value)
	}
	if calMethod != "" {
		ev.Method = jscal.Str(strings.ToLower(calMethod))
	}
	if p := comp.Props.Get(ical.PropColor); p != nil {
		ev.Color = jscal.Str(p.Value)
	}
	if p := comp.Props.Get(ical.PropStatus); p != nil {
		if s, ok := statusToJSON[strings.ToUpper(p.Value)]; ok {
			ev.Status = jscal.Str(s)
		}
	}
	if p := comp.Props.Get(ical.PropTransparency); p != nil {
		if s, ok := transpToJSON[strings.ToUpper(p.Value)]; ok {
			ev.FreeBusyStatus = jscal.Str(s)
		}
	}
	if p := comp.Props.Get(ical.PropClass); p != nil {
		if s, ok := classToJSON[strings.ToUpper(p.Value)]; ok {
			ev.Privacy = jscal.Str(s)
		}
	}

	locations, virtual := c.LocationsFromICal(comp)

	start, timeZone, duration, showWithoutTime, endTZID, serr := c.StartEndFromICal(comp, nil)
	if serr != nil {
		c.Logger.Error().Err(serr).Msg("malformed icalendar")
		return nil, errICal(serr)
	}
	if start != "" {
		ev.Start = jscal.Str(start)
	}
	ev.TimeZone = timeZone
	ev.Duration = duration
	ev.IsAllDay = jscal.Bool(showWithoutTime)

	if endTZID != "" {
		if dtendProp := comp.Props.Get(ical.PropDateTimeEnd); dtendProp != nil {
			endID := IDFromProp(dtendProp)
			if locations == nil {
				locations = map[string]*jscal.Location{}
			}
			locations[endID] = &jscal.Location{
				Type:     "Location",
				Rel:      jscal.Str("end"),
				TimeZone: jscal.Str(endTZID),
			}
		}
	}
	ev.Locations = locations
	ev.VirtualLocations = virtual

	if p := comp.Props.Get(ical.PropRecurrenceRule); p != nil {
		rule, rerr := c.RRuleFromICal(p.Value)
		if rerr != nil {
			c.Invalid("recurrenceRule")
		} else {
			ev.RecurrenceRule = rule
		}
	}

	if cats := comp.Props[ical.PropCategories]; len(cats) > 0 {
		keywords := map[string]bool{}
		for _, p := range cats {
			for _, k := range splitICalList(p.Value) {
				k = strings.TrimSpace(k)
				if k != "" {
					keywords[k] = true
				}
			}
		}
		if len(keywords) > 0 {
			ev.Keywords = keywords
		}
	}

	if rels := comp.Props[ical.PropRelatedTo]; len(rels) > 0 {
		relatedTo := map[string]jscal.RelationEntry{}
		for _, p := range rels {
			uid := p.Value
			if uid == "" {
				continue
			}
			entry, ok := relatedTo[uid]
			if !ok {
				entry = jscal.RelationEntry{Relation: map[string]bool{}}
			}
			reltype := p.Params.Get(ical.ParamRelType)
			if reltype == "" {
				reltype = "PARENT"
			}
			entry.Relation[strings.ToLower(reltype)] = true
			relatedTo[uid] = entry
		}
		if len(relatedTo) > 0 {
			ev.RelatedTo = relatedTo
		}
	}

	ev.Links = c.LinksFromICal(comp)
	ev.Participants = c.ParticipantsFromICal(comp)
	if ev.Participants != nil {
		replyTo := replyToFromICal(comp)
		ev.ReplyTo = replyTo
	}

	if p := comp.Props.Get(ical.XJMAPUseDefaultAlerts); p != nil {
		if b, ok := parseBool(p.Value); ok {
			ev.UseDefaultAlerts = jscal.Bool(b)
		}
	}

	var startUTC, endUTC time.Time
	hasEnd := false
	if ev.Start != nil {
		if local, perr := ParseLocalDate(*ev.Start); perr == nil {
			startDT := ICalDateTime{Local: local, IsDate: showWithoutTime}
			if !showWithoutTime && timeZone != nil {
				if *timeZone == "Etc/UTC" {
					startDT.IsUTC = true
				} else {
					startDT.TZID = *timeZone
				}
			}
			if u, uerr := c.ToUTC(startDT); uerr == nil {
				startUTC = u
				if duration != nil {
					if d, derr := ParseISO8601Duration(*duration); derr == nil {
						endUTC = startUTC.Add(d)
						hasEnd = true
					}
				}
			}
		}
	}
	ev.Alerts = c.AlarmsFromICal(comp, startUTC, endUTC, hasEnd)

	return ev, nil
}

func parseBool(s string) (bool, bool) {
	switch strings.ToUpper(s) {
	case "TRUE":
		return true, true
	case "FALSE":
		return false, true
	default:
		return false, false
	}
}

// replyToFromICal mirrors the ORGANIZER's own RSVP-URI methods as the
// event-level replyTo map (spec.md §3: "replyTo is non-null iff
// participants is non-null").
func replyToFromICal(comp *ical.Component) map[string]string {
	orga := comp.Props.Get(ical.PropOrganizer)
	if orga == nil {
		return map[string]string{}
	}
	rsvp := rsvpToFromICal(orga)
	if len(rsvp) == 0 {
		return map[string]string{}
	}
	return rsvp
}

// pruneEvent nils out every optional field not named in want (spec.md
// §4.10). uid/@type are never pruned — they are structural, not optional.
func pruneEvent(ev *jscal.Event, want map[string]struct{}) {
	has := func(name string) bool {
		_, ok := want[name]
		return ok
	}
	if !has("prodId") {
		ev.ProdID = nil
	}
	if !has("created") {
		ev.Created = nil
	}
	if !has("updated") {
		ev.Updated = nil
	}
	if !has("sequence") {
		ev.Sequence = nil
	}
	if !has("priority") {
		ev.Priority = nil
	}
	if !has("title") {
		ev.Title = nil
	}
	if !has("description") {
		ev.Description = nil
	}
	if !has("descriptionContentType") {
		ev.DescriptionContentType = nil
	}
	if !has("method") {
		ev.Method = nil
	}
	if !has("color") {
		ev.Color = nil
	}
	if !has("status") {
		ev.Status = nil
	}
	if !has("freeBusyStatus") {
		ev.FreeBusyStatus = nil
	}
	if !has("privacy") {
		ev.Privacy = nil
	}
	if !has("isAllDay") {
		ev.IsAllDay = nil
	}
	if !has("start") {
		ev.Start = nil
	}
	if !has("timeZone") {
		ev.TimeZone = nil
	}
	if !has("duration") {
		ev.Duration = nil
	}
	if !has("recurrenceRule") {
		ev.RecurrenceRule = nil
	}
	if !has("keywords") {
		ev.Keywords = nil
	}
	if !has("relatedTo") {
		ev.RelatedTo = nil
	}
	if !has("links") {
		ev.Links = nil
	}
	if !has("locations") {
		ev.Locations = nil
	}
	if !has("virtualLocations") {
		ev.VirtualLocations = nil
	}
	if !has("participants") {
		ev.Participants = nil
		ev.ReplyTo = nil
	}
	if !has("useDefaultAlerts") {
		ev.UseDefaultAlerts = nil
	}
	if !has("alerts") {
		ev.Alerts = nil
	}
	if !has("locale") {
		ev.Locale = nil
	}
}

// EventToICal converts a JSCalendar event into a master VEVENT plus its
// recurrence-override sibling VEVENTs (spec.md §4.10, §6 to_ical). to_ical
// always builds a brand-new VCALENDAR, so no existing siblings are ever
// passed in to reuse — OverridesToICal's reuse path exists purely for
// symmetry with the ICAL→JSON direction and is unused on this path.
func (c *Context) EventToICal(ev *jscal.Event) (*ical.Component, []*ical.Component, error) {
	if ev.UID == "" {
		c.Logger.Error().Msg("uid is required")
		return nil, nil, errUID()
	}

	comp := ical.NewComponent(ical.CompEvent)
	uidProp := ical.NewProp(ical.PropUID)
	uidProp.Value = ev.UID
	comp.Props.Add(uidProp)

	if err := c.eventToICalInto(comp, ev); err != nil {
		return nil, nil, err
	}

	var overrideComps []*ical.Component
	if ev.RecurrenceOverrides != nil {
		cleanMaster := ev.Clone()
		cleanMaster.RecurrenceRule = nil
		cleanMaster.RecurrenceOverrides = nil

		overrideComps = c.OverridesToICal(comp, cleanMaster, ev.RecurrenceOverrides, nil,
			func(exEv *jscal.Event, sib *ical.Component) (*ical.Component, error) {
				var target *ical.Component
				if sib != nil {
					target = ical.CloneComponent(sib)
				} else {
					target = ical.NewComponent(ical.CompEvent)
					if dtstamp := comp.Props.Get(ical.PropDateTimeStamp); dtstamp != nil {
						dtstampCopy := ical.NewProp(ical.PropDateTimeStamp)
						dtstampCopy.Value = dtstamp.Value
						target.Props.Add(dtstampCopy)
					}
				}
				child := NewContext(c.TZ, nil)
				child.Mode.Exception = true
				child.StartTZID = c.StartTZID
				if exEv.UID == "" {
					exEv.UID = ev.UID
				}
				if err := child.eventToICalInto(target, exEv); err != nil {
					return nil, err
				}
				if child.HasErrors() {
					return nil, child.Err()
				}
				return target, nil
			})
	}

	if err := c.Err(); err != nil {
		return nil, nil, err
	}
	return comp, overrideComps, nil
}

// eventToICalInto writes every non-identifier field of ev onto comp,
// clearing whatever that field's properties were before (so this function
// is safe to call on both a brand-new VEVENT and one reused from an
// existing RECURRENCE-ID sibling, spec.md §4.6 step 4 "reuse or clone").
func (c *Context) eventToICalInto(comp *ical.Component, ev *jscal.Event) error {
	clearFields(comp)

	// ProdID is carried on the enclosing VCALENDAR, not the VEVENT
	// (spec.md §3 prodId, §6 to_ical) — see EventToICal/ToICal.
	if ev.Created != nil {
		t, err := ParseUTCDate(*ev.Created)
		if err != nil {
			c.Invalid("created")
		} else {
			p := ical.NewProp(ical.PropCreated)
			p.Value = t.UTC().Format(icalDTUTCLayout)
			comp.Props.Add(p)
		}
	}
	if ev.Updated != nil {
		t, err := ParseUTCDate(*ev.Updated)
		if err != nil {
			c.Invalid("updated")
		} else {
			p := ical.NewProp(ical.PropLastModified)
			p.Value = t.UTC().Format(icalDTUTCLayout)
			comp.Props.Add(p)
			dtstamp := ical.NewProp(ical.PropDateTimeStamp)
			dtstamp.Value = t.UTC().Format(icalDTUTCLayout)
			comp.Props.Add(dtstamp)
		}
	}
	if ev.Sequence != nil {
		if *ev.Sequence < 0 {
			c.Invalid("sequence")
		} else {
			p := ical.NewProp(ical.PropSequence)
			p.Value = itoa(*ev.Sequence)
			comp.Props.Add(p)
		}
	}
	if ev.Priority != nil {
		if *ev.Priority < 0 || *ev.Priority > 9 {
			c.Invalid("priority")
		} else {
			p := ical.NewProp(ical.PropPriority)
			p.Value = itoa(*ev.Priority)
			comp.Props.Add(p)
		}
	}
	if ev.Title != nil {
		p := ical.NewProp(ical.PropSummary)
		p.Value = *ev.Title
		if ev.Locale != nil {
			p.Params.Set(ical.ParamLanguage, *ev.Locale)
		}
		comp.Props.Add(p)
	}
	if ev.Description != nil {
		if ev.DescriptionContentType != nil && *ev.DescriptionContentType != "text/plain" {
			c.Invalid("descriptionContentType")
		} else {
			p := ical.NewProp(ical.PropDescription)
			p.Value = *ev.Description
			comp.Props.Add(p)
		}
	}
	if ev.Color != nil {
		p := ical.NewProp(ical.PropColor)
		p.Value = *ev.Color
		comp.Props.Add(p)
	}
	if ev.Status != nil {
		s, ok := statusToICal[*ev.Status]
		if !ok {
			c.Invalid("status")
		} else {
			p := ical.NewProp(ical.PropStatus)
			p.Value = s
			comp.Props.Add(p)
		}
	}
	if ev.FreeBusyStatus != nil {
		s, ok := transpToICal[*ev.FreeBusyStatus]
		if !ok {
			c.Invalid("freeBusyStatus")
		} else {
			p := ical.NewProp(ical.PropTransparency)
			p.Value = s
			comp.Props.Add(p)
		}
	}
	if ev.Privacy != nil {
		s, ok := classToICal[*ev.Privacy]
		if !ok {
			c.Invalid("privacy")
		} else {
			p := ical.NewProp(ical.PropClass)
			p.Value = s
			comp.Props.Add(p)
		}
	}

	if len(ev.Keywords) > 0 {
		keys := make([]string, 0, len(ev.Keywords))
		for k := range ev.Keywords {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		p := ical.NewProp(ical.PropCategories)
		p.Value = strings.Join(keys, ",")
		comp.Props.Add(p)
	}

	if len(ev.RelatedTo) > 0 {
		uids := make([]string, 0, len(ev.RelatedTo))
		for uid := range ev.RelatedTo {
			uids = append(uids, uid)
		}
		sort.Strings(uids)
		for _, uid := range uids {
			entry := ev.RelatedTo[uid]
			if len(entry.Relation) == 0 {
				p := ical.NewProp(ical.PropRelatedTo)
				p.Value = uid
				comp.Props.Add(p)
				continue
			}
			rels := make([]string, 0, len(entry.Relation))
			for r := range entry.Relation {
				rels = append(rels, r)
			}
			sort.Strings(rels)
			for _, r := range rels {
				p := ical.NewProp(ical.PropRelatedTo)
				p.Value = uid
				p.Params.Set(ical.ParamRelType, strings.ToUpper(r))
				comp.Props.Add(p)
			}
		}
	}

	linkIDs := map[string]bool{}
	for id := range ev.Links {
		linkIDs[id] = true
	}
	endLocationID := c.LocationsToICal(comp, ev.Locations, ev.VirtualLocations, linkIDs)

	var endTimeZone *string
	if endLocationID != "" {
		if loc := ev.Locations[endLocationID]; loc != nil {
			endTimeZone = loc.TimeZone
		}
	}

	isAllDay := jscal.BoolVal(ev.IsAllDay)
	startStr := ""
	if ev.Start != nil {
		startStr = *ev.Start
	}
	if isAllDay {
		if ev.TimeZone != nil {
			c.Invalid("timeZone")
		}
		if startStr != "" && !strings.HasSuffix(startStr, "T00:00:00") {
			c.Invalid("start")
		}
	}
	c.StartTZID = ""
	if ev.TimeZone != nil {
		c.StartTZID = *ev.TimeZone
	}
	c.StartEndToICal(comp, startStr, ev.TimeZone, ev.Duration, isAllDay, endTimeZone, endLocationID)

	if ev.RecurrenceRule != nil {
		value, ok := RRuleToICal(c, ev.RecurrenceRule)
		if ok {
			p := ical.NewProp(ical.PropRecurrenceRule)
			p.Value = value
			comp.Props.Add(p)
		}
	}

	c.LinksToICal(comp, ev.Links)
	if ev.Participants != nil {
		c.ParticipantsToICal(comp, ev.Participants, ev.ReplyTo, ev.Links)
	}

	if ev.UseDefaultAlerts != nil {
		p := ical.NewProp(ical.XJMAPUseDefaultAlerts)
		if *ev.UseDefaultAlerts {
			p.Value = "TRUE"
		} else {
			p.Value = "FALSE"
		}
		comp.Props.Add(p)
	}

	summary := ""
	if ev.Title != nil {
		summary = *ev.Title
	}
	description := ""
	if ev.Description != nil {
		description = *ev.Description
	}
	emailSender := ""
	if ev.ReplyTo != nil {
		emailSender = pickReplyToURI(ev.ReplyTo)
	}
	if emailSender == "" {
		emailSender = c.DefaultCUAS
	}
	c.AlarmsToICal(comp, ev.Alerts, summary, description, emailSender)

	return nil
}

// clearFields removes every property eventToICalInto is about to
// (re)write, so calling it twice on the same component (reuse path) never
// leaves stale data from a prior revision.
func clearFields(comp *ical.Component) {
	for _, name := range []string{
		ical.PropCreated, ical.PropLastModified,
		ical.PropDateTimeStamp, ical.PropSequence, ical.PropPriority,
		ical.PropSummary, ical.PropDescription, ical.PropColor,
		ical.PropStatus, ical.PropTransparency, ical.PropClass,
		ical.PropCategories, ical.PropRelatedTo, ical.PropDateTimeStart,
		ical.PropDateTimeEnd, ical.PropDuration, ical.PropRecurrenceRule,
		ical.PropGeo, ical.PropLocation, ical.XJMAPLocation,
		ical.XAppleStructLoc, ical.PropConference, ical.PropAttach,
		ical.PropURL, ical.PropAttendee, ical.PropOrganizer,
		ical.XJMAPUseDefaultAlerts,
	} {
		delete(comp.Props, name)
	}
	comp.Children = nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ToJMAP converts the first master VEVENT found in cal (spec.md §6
// to_jmap). Returns (nil, nil) when cal has no VEVENTs at all or none of
// its VEVENTs is a master (no RECURRENCE-ID). logger receives a debug
// event per entry point and a warn event per invalid property; pass
// zerolog.Nop() when the caller doesn't care.
func ToJMAP(tz *tzcache.Resolver, cal *ical.Calendar, wantProps []string, logger zerolog.Logger) (*jscal.Event, error) {
	events := ical.VEvents(cal)
	if len(events) == 0 {
		return nil, nil
	}
	calMethod, calProdID := "", ""
	if p := cal.Props.Get(ical.PropMethod); p != nil {
		calMethod = p.Value
	}
	if p := cal.Props.Get(ical.PropProductID); p != nil {
		calProdID = p.Value
	}

	order, groups := ical.GroupByUID(events)
	for _, uid := range order {
		group := groups[uid]
		master, overrides := ical.MasterAndOverrides(group)
		if master == nil {
			continue
		}
		ctx := NewContext(tz, wantProps)
		ctx.Logger = logger
		logger.Debug().Str("uid", uid).Msg("to_jmap")
		ev, err := ctx.EventFromICal(master, overrides, calMethod, calProdID)
		if err != nil {
			return nil, err
		}
		return ev, nil
	}
	return nil, nil
}

// ToJMAPAll converts every master VEVENT in cal (spec.md §6 to_jmap_all).
// If no VEVENT qualifies as a master (every one carries a RECURRENCE-ID,
// or none has a UID at all), the first VEVENT is promoted and converted
// alone, with no sibling overrides.
func ToJMAPAll(tz *tzcache.Resolver, cal *ical.Calendar, wantProps []string, logger zerolog.Logger) ([]*jscal.Event, error) {
	events := ical.VEvents(cal)
	if len(events) == 0 {
		return nil, nil
	}
	calMethod, calProdID := "", ""
	if p := cal.Props.Get(ical.PropMethod); p != nil {
		calMethod = p.Value
	}
	if p := cal.Props.Get(ical.PropProductID); p != nil {
		calProdID = p.Value
	}

	order, groups := ical.GroupByUID(events)
	var out []*jscal.Event
	for _, uid := range order {
		group := groups[uid]
		master, overrides := ical.MasterAndOverrides(group)
		if master == nil {
			continue
		}
		ctx := NewContext(tz, wantProps)
		ctx.Logger = logger
		logger.Debug().Str("uid", uid).Msg("to_jmap_all")
		ev, err := ctx.EventFromICal(master, overrides, calMethod, calProdID)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if len(out) == 0 {
		ctx := NewContext(tz, wantProps)
		ctx.Logger = logger
		uid := ""
		if p := events[0].Props.Get(ical.PropUID); p != nil {
			uid = p.Value
		}
		logger.Debug().Str("uid", uid).Msg("to_jmap_all")
		ev, err := ctx.EventFromICal(events[0], nil, calMethod, calProdID)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// ToICal builds a fresh VCALENDAR from ev (spec.md §6 to_ical). defaultCUAS
// is the fallback calendar-user-address-set for EMAIL VALARMs when ev
// carries no replyTo (config.Config.DefaultCUAS); pass "" when the caller
// has none configured.
func ToICal(tz *tzcache.Resolver, ev *jscal.Event, prodID, defaultCUAS string, logger zerolog.Logger) (*ical.Calendar, error) {
	cal := ical.NewCalendarShell(prodID)
	ctx := NewContext(tz, nil)
	ctx.Logger = logger
	ctx.DefaultCUAS = defaultCUAS
	logger.Debug().Str("uid", ev.UID).Msg("to_ical")
	comp, overrideComps, err := ctx.EventToICal(ev)
	if err != nil {
		return nil, err
	}
	if ev.Method != nil {
		cal.Props.SetText(ical.PropMethod, strings.ToUpper(*ev.Method))
	}
	if ev.ProdID != nil {
		cal.Props.SetText(ical.PropProductID, *ev.ProdID)
	}
	cal.Children = append(cal.Children, comp)
	cal.Children = append(cal.Children, overrideComps...)
	return cal, nil
}

// AsJeventString converts cal's first master VEVENT and serializes it as
// JSON (spec.md §6 as_jevent_string). pretty selects indented output.
func AsJeventString(tz *tzcache.Resolver, cal *ical.Calendar, wantProps []string, pretty bool, logger zerolog.Logger) ([]byte, error) {
	ev, err := ToJMAP(tz, cal, wantProps, logger)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return []byte("null"), nil
	}
	if pretty {
		return ev.MarshalPretty()
	}
	return ev.MarshalCompact()
}

// FromJeventString is the inverse of AsJeventString (spec.md §6
// from_jevent_string).
func FromJeventString(tz *tzcache.Resolver, data []byte, prodID, defaultCUAS string, logger zerolog.Logger) (*ical.Calendar, error) {
	var ev jscal.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Error().Err(err).Msg("malformed icalendar")
		return nil, errICal(err)
	}
	return ToICal(tz, &ev, prodID, defaultCUAS, logger)
}
