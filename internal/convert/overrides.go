package convert

import (
	"sort"
	"time"

	"github.com/sonroyaalmerol/jscalical/internal/diff"
	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

// forbiddenOverrideKeys are silently ignored wherever they appear inside a
// recurrenceOverrides patch object (spec.md §3 Recurrence override, §7).
var forbiddenOverrideKeys = map[string]bool{
	"uid": true, "relatedTo": true, "prodId": true, "isAllDay": true,
	"recurrenceRule": true, "recurrenceOverrides": true, "replyTo": true,
	"participantId": true,
}

// OverridesFromICal builds recurrenceOverrides from RDATE/EXDATE properties
// on master and from sibling VEVENTs sharing its UID that carry a
// RECURRENCE-ID (spec.md §4.6 ICAL→JSON). convertSibling converts one
// sibling VEVENT into a complete (unfiltered) exception event, already in
// exception mode; it is supplied by the caller (event.go) so this file
// doesn't need to know the full event assembly pipeline.
func (c *Context) OverridesFromICal(master *ical.Component, siblings []*ical.Component, masterEvent *jscal.Event, convertSibling func(*ical.Component) (*jscal.Event, error)) (map[string]jscal.PatchOrFlag, error) {
	overrides := map[string]jscal.PatchOrFlag{}

	for _, p := range master.Props[ical.PropRecurrenceDates] {
		prop := p
		entries, err := rdateEntries(c, &prop)
		if err != nil {
			c.Invalid("recurrenceOverrides")
			continue
		}
		for key, val := range entries {
			overrides[key] = val
		}
	}

	for _, p := range master.Props[ical.PropExceptionDates] {
		prop := p
		tzid := prop.Params.Get(ical.ParamTZID)
		for _, raw := range splitICalList(prop.Value) {
			dt, err := c.ParseICalDateTime(raw, tzid)
			if err != nil {
				c.Invalid("recurrenceOverrides")
				continue
			}
			key, kerr := c.localDateInStartZone(dt)
			if kerr != nil {
				c.Invalid("recurrenceOverrides")
				continue
			}
			overrides[key] = jscal.PatchOrFlag{"excluded": true}
		}
	}

	for _, sib := range siblings {
		ridProp := sib.Props.Get(ical.PropRecurrenceID)
		if ridProp == nil {
			continue
		}
		tzid := ridProp.Params.Get(ical.ParamTZID)
		ridDT, err := c.ParseICalDateTime(ridProp.Value, tzid)
		if err != nil {
			c.Invalid("recurrenceOverrides")
			continue
		}
		key, kerr := c.localDateInStartZone(ridDT)
		if kerr != nil {
			c.Invalid("recurrenceOverrides")
			continue
		}

		exEvent, cerr := convertSibling(sib)
		if cerr != nil {
			c.Invalid("recurrenceOverrides")
			continue
		}
		exEvent.Created = nil
		exEvent.Updated = nil
		if exEvent.Start != nil && *exEvent.Start == key {
			exEvent.Start = nil
		}

		patch, derr := diff.Diff(masterEvent, exEvent)
		if derr != nil {
			c.Invalid("recurrenceOverrides")
			continue
		}
		flat := jscal.PatchOrFlag{}
		for k, v := range patch {
			if forbiddenOverrideKeys[topLevelKey(k)] {
				continue
			}
			flat[k] = v
		}
		overrides[key] = flat
	}

	if len(overrides) == 0 {
		return nil, nil
	}
	return overrides, nil
}

// rdateEntries decodes one RDATE property (which may carry a comma list of
// DATE, DATE-TIME, or PERIOD values) into LocalDate-keyed entries.
func rdateEntries(c *Context, prop *ical.Prop) (map[string]jscal.PatchOrFlag, error) {
	out := map[string]jscal.PatchOrFlag{}
	tzid := prop.Params.Get(ical.ParamTZID)
	isPeriod := prop.Params.Get(ical.ParamValue) == "PERIOD"

	for _, raw := range splitICalList(prop.Value) {
		if isPeriod {
			start, dur, ok := splitPeriodValue(raw)
			if !ok {
				return nil, errICal(nil)
			}
			dt, err := c.ParseICalDateTime(start, tzid)
			if err != nil {
				return nil, err
			}
			key, kerr := c.localDateInStartZone(dt)
			if kerr != nil {
				return nil, kerr
			}
			out[key] = jscal.PatchOrFlag{"duration": dur}
			continue
		}
		dt, err := c.ParseICalDateTime(raw, tzid)
		if err != nil {
			return nil, err
		}
		key, kerr := c.localDateInStartZone(dt)
		if kerr != nil {
			return nil, kerr
		}
		out[key] = jscal.PatchOrFlag{}
	}
	return out, nil
}

// splitPeriodValue splits one PERIOD value ("<start>/<end-or-duration>")
// and normalizes the second component to an ISO-8601 duration string,
// resolving an explicit end instant into start-relative duration.
func splitPeriodValue(v string) (start, duration string, ok bool) {
	idx := -1
	for i := 0; i < len(v); i++ {
		if v[i] == '/' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", "", false
	}
	start = v[:idx]
	tail := v[idx+1:]
	if len(tail) > 0 && tail[0] == 'P' {
		return start, tail, true
	}
	startDT, err := (&Context{}).ParseICalDateTime(start, "")
	if err != nil {
		return "", "", false
	}
	endDT, err := (&Context{}).ParseICalDateTime(tail, "")
	if err != nil {
		return "", "", false
	}
	gap := endDT.Local.Sub(startDT.Local)
	if gap < 0 {
		return "", "", false
	}
	return start, ISO8601Duration(gap), true
}

// localDateInStartZone renders dt as the LocalDate string in the master
// event's start-timezone (spec.md §4.6 "converted into the master's
// start-timezone when they carry a different TZID").
func (c *Context) localDateInStartZone(dt ICalDateTime) (string, error) {
	if dt.IsDate || c.StartTZID == "" {
		return dt.ToLocalDateString(), nil
	}
	if dt.TZID == c.StartTZID || (dt.IsUTC && c.StartTZID == "Etc/UTC") {
		return dt.ToLocalDateString(), nil
	}
	instant, err := c.ToUTC(dt)
	if err != nil {
		return "", err
	}
	loc, ok := c.TZ.Lookup(c.StartTZID)
	if !ok {
		return "", errUnknownZone(c.StartTZID)
	}
	local := instant.In(loc)
	return FormatLocalDate(local), nil
}

func splitICalList(v string) []string {
	var out []string
	start := 0
	for i := 0; i < len(v); i++ {
		if v[i] == ',' {
			out = append(out, v[start:i])
			start = i + 1
		}
	}
	out = append(out, v[start:])
	return out
}

// OverridesToICal purges existing EXDATE/RDATE from master, then for each
// override entry adds an EXDATE, an RDATE, or a cloned+patched VEVENT with
// RECURRENCE-ID (spec.md §4.6 JSON→ICAL). convertException converts a
// patched "clean" exception Event back into a VEVENT, in exception mode.
// It receives the sibling from existing that has the same recurrence-id,
// or nil when there is none. The caller in event.go clones that sibling
// and rewrites it with eventToICalInto, which clears its VALARM children
// and every property it writes; only UID, RECURRENCE-ID and properties
// this converter does not map carry over.
func (c *Context) OverridesToICal(master *ical.Component, cleanMaster *jscal.Event, overrides map[string]jscal.PatchOrFlag, existing []*ical.Component, convertException func(*jscal.Event, *ical.Component) (*ical.Component, error)) []*ical.Component {
	delete(master.Props, ical.PropRecurrenceDates)
	delete(master.Props, ical.PropExceptionDates)

	recurs := map[string]*ical.Component{}
	for _, sib := range existing {
		ridProp := sib.Props.Get(ical.PropRecurrenceID)
		if ridProp == nil {
			continue
		}
		tzid := ridProp.Params.Get(ical.ParamTZID)
		dt, err := c.ParseICalDateTime(ridProp.Value, tzid)
		if err != nil {
			continue
		}
		key, kerr := c.localDateInStartZone(dt)
		if kerr != nil {
			continue
		}
		recurs[key] = sib
	}

	var out []*ical.Component
	for _, key := range sortedOverrideKeys(overrides) {
		flag := overrides[key]
		restore := c.Path.BeginKey("recurrenceOverrides", key)

		local, perr := ParseLocalDate(key)
		if perr != nil {
			c.Invalid("")
			restore()
			continue
		}

		if flag.IsExcluded() {
			addExceptionDate(master, local, c.StartTZID)
			restore()
			continue
		}
		if len(flag) == 0 {
			addRecurrenceDate(master, local, c.StartTZID)
			restore()
			continue
		}

		patch := map[string]interface{}{}
		for k, v := range flag {
			topKey := topLevelKey(k)
			if forbiddenOverrideKeys[topKey] {
				continue
			}
			patch[k] = v
		}
		if _, hasStart := patch["/start"]; !hasStart {
			patch["/start"] = key
		}

		var exEvent jscal.Event
		if err := diff.Apply(cleanMaster, patch, &exEvent); err != nil {
			c.Invalid("")
			restore()
			continue
		}

		sib, ok := recurs[key]
		exComp, cerr := convertException(&exEvent, sib)
		if cerr != nil {
			c.Invalid("")
			restore()
			continue
		}
		ridProp := ical.NewProp(ical.PropRecurrenceID)
		value, tzid := FormatICalDateTime(ICalDateTime{Local: local, TZID: c.StartTZID, IsUTC: c.StartTZID == "Etc/UTC"})
		ridProp.Value = value
		if tzid != "" {
			ridProp.Params.Set(ical.ParamTZID, tzid)
		}
		exComp.Props.Set(ridProp)
		if !ok {
			uidProp := master.Props.Get(ical.PropUID)
			if uidProp != nil {
				uidCopy := ical.NewProp(ical.PropUID)
				uidCopy.Value = uidProp.Value
				exComp.Props.Set(uidCopy)
			}
		}
		out = append(out, exComp)
		restore()
	}
	return out
}

// topLevelKey returns the first JSON-Pointer segment of a patch path
// ("/participants/p1/name" -> "participants"), used to test forbidden keys
// regardless of nesting depth.
func topLevelKey(path string) string {
	if len(path) == 0 || path[0] != '/' {
		return path
	}
	rest := path[1:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i]
		}
	}
	return rest
}

// addExceptionDate appends one EXDATE property for local (in tzid, or
// floating/UTC per the master's own start zone).
func addExceptionDate(comp *ical.Component, local time.Time, tzid string) {
	dt := ICalDateTime{Local: local, TZID: tzid, IsUTC: tzid == "Etc/UTC"}
	if tzid == "Etc/UTC" {
		dt.TZID = ""
	}
	value, propTZID := FormatICalDateTime(dt)
	prop := ical.NewProp(ical.PropExceptionDates)
	prop.Value = value
	if propTZID != "" {
		prop.Params.Set(ical.ParamTZID, propTZID)
	}
	comp.Props.Add(prop)
}

// addRecurrenceDate appends one RDATE property for local, mirroring
// addExceptionDate.
func addRecurrenceDate(comp *ical.Component, local time.Time, tzid string) {
	dt := ICalDateTime{Local: local, TZID: tzid, IsUTC: tzid == "Etc/UTC"}
	if tzid == "Etc/UTC" {
		dt.TZID = ""
	}
	value, propTZID := FormatICalDateTime(dt)
	prop := ical.NewProp(ical.PropRecurrenceDates)
	prop.Value = value
	if propTZID != "" {
		prop.Params.Set(ical.ParamTZID, propTZID)
	}
	comp.Props.Add(prop)
}

func sortedOverrideKeys(m map[string]jscal.PatchOrFlag) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
