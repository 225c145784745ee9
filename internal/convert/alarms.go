package convert

import (
	"time"

	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

// AlarmsFromICal builds the alerts map from VALARM children (spec.md
// §4.9). startUTC/endUTC are the already-resolved instants for the
// enclosing VEVENT, needed to turn an absolute TRIGGER into an offset
// relative to start or end. A VALARM is a snooze when it carries a
// RELATED-TO whose value names another VALARM's UID and whose RELTYPE
// parameter is SNOOZE; primary VALARMs with ACTION=NONE are dropped.
func (c *Context) AlarmsFromICal(comp *ical.Component, startUTC time.Time, endUTC time.Time, hasEnd bool) map[string]*jscal.Alert {
	var primaries []*ical.Component
	snoozeFor := map[string]string{} // primary UID -> snooze TRIGGER value

	for _, child := range comp.Children {
		if child.Name != ical.CompAlarm {
			continue
		}
		if ap := child.Props.Get(ical.PropAction); ap != nil && ap.Value == "NONE" {
			continue
		}
		relProp := child.Props.Get(ical.PropRelatedTo)
		if relProp != nil && relProp.Value != "" && relProp.Params.Get(ical.ParamRelType) == "SNOOZE" {
			if trig := child.Props.Get(ical.PropTrigger); trig != nil {
				snoozeFor[relProp.Value] = trig.Value
			}
			continue
		}
		primaries = append(primaries, child)
	}

	if len(primaries) == 0 {
		return nil
	}

	alerts := map[string]*jscal.Alert{}
	for _, alarm := range primaries {
		id := ""
		if uidProp := alarm.Props.Get(ical.PropUID); uidProp != nil && uidProp.Value != "" {
			id = uidProp.Value
		} else if trig := alarm.Props.Get(ical.PropTrigger); trig != nil {
			id = IDFromProp(trig)
		} else {
			continue
		}
		restore := c.Path.BeginKey("alerts", id)

		related := "START"
		var offset time.Duration
		var haveOffset bool
		if trig := alarm.Props.Get(ical.PropTrigger); trig != nil {
			if r := trig.Params.Get(ical.ParamRelated); r == "START" || r == "END" {
				related = r
			}
			if trig.Params.Get(ical.ParamValue) == "DATE-TIME" {
				dt, err := c.ParseICalDateTime(trig.Value, "")
				if err == nil {
					ttrg, terr := c.ToUTC(dt)
					if terr == nil {
						ref := startUTC
						if related == "END" && hasEnd {
							ref = endUTC
						}
						offset = ttrg.Sub(ref)
						haveOffset = true
					}
				}
			} else {
				d, err := ParseISO8601Duration(trig.Value)
				if err == nil {
					offset = d
					haveOffset = true
				}
			}
		}
		if !haveOffset {
			restore()
			continue
		}

		action := "display"
		if ap := alarm.Props.Get(ical.PropAction); ap != nil && ap.Value == "EMAIL" {
			action = "email"
		}

		neg := offset < 0
		abs := offset
		if neg {
			abs = -abs
		}
		relativeTo := "before-start"
		switch {
		case neg && related == "START":
			relativeTo = "before-start"
		case !neg && related == "START":
			relativeTo = "after-start"
		case neg && related == "END":
			relativeTo = "before-end"
		case !neg && related == "END":
			relativeTo = "after-end"
		}

		alert := &jscal.Alert{
			Type:       "Alert",
			Action:     jscal.Str(action),
			RelativeTo: jscal.Str(relativeTo),
			Offset:     jscal.Str(ISO8601Duration(abs)),
		}

		if ap := alarm.Props.Get(ical.PropAcknowledged); ap != nil {
			dt, err := c.ParseICalDateTime(ap.Value, "")
			if err == nil {
				alert.Acknowledged = jscal.Str(FormatUTCDate(dt.Local))
			}
		}

		if uidProp := alarm.Props.Get(ical.PropUID); uidProp != nil {
			if snoozeTrig, ok := snoozeFor[uidProp.Value]; ok {
				dt, err := c.ParseICalDateTime(snoozeTrig, "")
				if err == nil {
					alert.Snoozed = jscal.Str(FormatUTCDate(dt.Local))
				}
			}
		}

		alerts[id] = alert
		restore()
	}

	if len(alerts) == 0 {
		return nil
	}
	return alerts
}

// AlarmsToICal replaces all VALARM children of comp with ones built from
// alerts (spec.md §4.9). eventSummary/eventDescription supply the EMAIL
// action's SUMMARY/DESCRIPTION fallback, and emailSender the ATTENDEE
// recipient address.
func (c *Context) AlarmsToICal(comp *ical.Component, alerts map[string]*jscal.Alert, eventSummary, eventDescription, emailSender string) {
	var kept []*ical.Component
	for _, child := range comp.Children {
		if child.Name != ical.CompAlarm {
			kept = append(kept, child)
		}
	}
	comp.Children = kept

	ids := sortedAlertKeys(alerts)
	for _, id := range ids {
		alert := alerts[id]
		restore := c.Path.BeginKey("alerts", id)
		if !ValidID(id) {
			c.Invalid("")
			restore()
			continue
		}
		if alert == nil || alert.Offset == nil {
			c.Invalid("offset")
			restore()
			continue
		}
		offset, err := ParseISO8601Duration(*alert.Offset)
		if err != nil {
			c.Invalid("offset")
			restore()
			continue
		}

		related := "START"
		neg := true
		if alert.RelativeTo != nil {
			switch *alert.RelativeTo {
			case "before-start":
				related, neg = "START", true
			case "after-start":
				related, neg = "START", false
			case "before-end":
				related, neg = "END", true
			case "after-end":
				related, neg = "END", false
			default:
				c.Invalid("relativeTo")
				restore()
				continue
			}
		}
		if neg {
			offset = -offset
		}

		alarm := ical.NewComponent(ical.CompAlarm)
		uidProp := ical.NewProp(ical.PropUID)
		uidProp.Value = id
		alarm.Props.Add(uidProp)

		trig := ical.NewProp(ical.PropTrigger)
		trig.Value = ISO8601Duration(offset)
		trig.Params.Set(ical.ParamRelated, related)
		alarm.Props.Add(trig)

		if alert.Snoozed != nil {
			t, serr := ParseUTCDate(*alert.Snoozed)
			if serr != nil {
				c.Invalid("snoozed")
			} else {
				snooze := ical.NewComponent(ical.CompAlarm)
				relProp := ical.NewProp(ical.PropRelatedTo)
				relProp.Value = id
				relProp.Params.Set(ical.ParamRelType, "SNOOZE")
				snooze.Props.Add(relProp)
				snoozeTrig := ical.NewProp(ical.PropTrigger)
				snoozeTrig.Value = t.UTC().Format(icalDTUTCLayout)
				snoozeTrig.Params.Set(ical.ParamValue, "DATE-TIME")
				snooze.Props.Add(snoozeTrig)
				comp.Children = append(comp.Children, snooze)
			}
		}

		if alert.Acknowledged != nil {
			t, aerr := ParseUTCDate(*alert.Acknowledged)
			if aerr != nil {
				c.Invalid("acknowledged")
			} else {
				ackProp := ical.NewProp(ical.PropAcknowledged)
				ackProp.Value = t.UTC().Format(icalDTUTCLayout)
				alarm.Props.Add(ackProp)
			}
		}

		action := "DISPLAY"
		if alert.Action != nil {
			switch *alert.Action {
			case "email":
				action = "EMAIL"
			case "display":
				action = "DISPLAY"
			default:
				c.Invalid("action")
				restore()
				continue
			}
		}
		actionProp := ical.NewProp(ical.PropAction)
		actionProp.Value = action
		alarm.Props.Add(actionProp)

		if action == "EMAIL" {
			recipient := emailSender
			if recipient == "" {
				recipient = "mailto:unknown"
			}
			attProp := ical.NewProp(ical.PropAttendee)
			attProp.Value = recipient
			alarm.Props.Add(attProp)

			summary := eventSummary
			if summary == "" {
				summary = "Your event alert"
			}
			summaryProp := ical.NewProp(ical.PropSummary)
			summaryProp.Value = summary
			alarm.Props.Add(summaryProp)
		}

		descProp := ical.NewProp(ical.PropDescription)
		descProp.Value = eventDescription
		alarm.Props.Add(descProp)

		comp.Children = append(comp.Children, alarm)
		restore()
	}
}

func sortedAlertKeys(m map[string]*jscal.Alert) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	insertionSortStrings(keys)
	return keys
}
