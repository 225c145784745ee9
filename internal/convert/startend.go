package convert

import (
	"fmt"
	"time"

	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

func errUnknownZone(tzid string) error {
	return fmt.Errorf("unknown timezone %q", tzid)
}

// StartEndFromICal resolves start/timeZone/duration/showWithoutTime from
// DTSTART/DTEND/DURATION (spec.md §4.3). endZone, when non-nil, is the
// zone DTEND's wall-clock value is read in to compute the duration, in
// place of DTEND's own TZID. endTZID is DTEND's own zone when it differs
// from DTSTART's, returned so the caller can synthesize the rel="end"
// location entry; this function surfaces it as no JSON field itself.
func (c *Context) StartEndFromICal(comp *ical.Component, endZone *time.Location) (start string, timeZone *string, duration *string, showWithoutTime bool, endTZID string, err error) {
	dtstartProp := comp.Props.Get(ical.PropDateTimeStart)
	if dtstartProp == nil {
		c.Invalid("start")
		return "", nil, nil, false, "", nil
	}
	tzid := dtstartProp.Params.Get(ical.ParamTZID)
	dtstart, perr := c.ParseICalDateTime(dtstartProp.Value, tzid)
	if perr != nil {
		c.Invalid("start")
		return "", nil, nil, false, "", nil
	}

	start = dtstart.ToLocalDateString()
	showWithoutTime = dtstart.IsDate

	switch {
	case dtstart.IsDate:
		timeZone = nil
	case dtstart.IsUTC:
		timeZone = jscal.Str("Etc/UTC")
	case dtstart.TZID != "":
		timeZone = jscal.Str(dtstart.TZID)
	default:
		timeZone = nil
	}
	c.StartTZID = dtstart.TZID
	if dtstart.IsUTC {
		c.StartTZID = "Etc/UTC"
	}

	startUTC, uerr := c.ToUTC(dtstart)
	if uerr != nil {
		c.Invalid("start")
		return start, timeZone, nil, showWithoutTime, "", nil
	}

	if dp := comp.Props.Get(ical.PropDuration); dp != nil {
		d, derr := ParseISO8601Duration(dp.Value)
		if derr != nil {
			c.Invalid("duration")
			return start, timeZone, nil, showWithoutTime, "", nil
		}
		duration = jscal.Str(ISO8601Duration(d))
		return start, timeZone, duration, showWithoutTime, "", nil
	}

	dtendProp := comp.Props.Get(ical.PropDateTimeEnd)
	if dtendProp == nil {
		return start, timeZone, nil, showWithoutTime, "", nil
	}
	dtendTZIDParam := dtendProp.Params.Get(ical.ParamTZID)
	dtend, derr := c.ParseICalDateTime(dtendProp.Value, dtendTZIDParam)
	if derr != nil {
		c.Invalid("duration")
		return start, timeZone, nil, showWithoutTime, "", nil
	}

	// Surface DTEND's own zone as endTZID only when it differs from
	// DTSTART's, so the caller can record it as an end-location (spec.md
	// §4.7 "an end-timezone location... through DTEND's TZID").
	dtendZoneName := ""
	switch {
	case dtend.IsDate:
	case dtend.IsUTC:
		dtendZoneName = "Etc/UTC"
	case dtend.TZID != "":
		dtendZoneName = dtend.TZID
	}
	startZoneName := ""
	if timeZone != nil {
		startZoneName = *timeZone
	}
	if dtendZoneName != "" && dtendZoneName != startZoneName {
		endTZID = dtendZoneName
	}

	// When an endZone was supplied, that zone is authoritative for
	// computing the wall-clock gap; otherwise DTEND is interpreted in its
	// own declared zone directly.
	var endUTC time.Time
	var uerr2 error
	if endZone != nil {
		local := time.Date(dtend.Local.Year(), dtend.Local.Month(), dtend.Local.Day(),
			dtend.Local.Hour(), dtend.Local.Minute(), dtend.Local.Second(), 0, endZone)
		endUTC = local.UTC()
	} else {
		endUTC, uerr2 = c.ToUTC(dtend)
	}
	if uerr2 != nil {
		c.Invalid("duration")
		return start, timeZone, nil, showWithoutTime, endTZID, nil
	}

	gap := endUTC.Sub(startUTC)
	if gap < 0 {
		c.Invalid("duration")
		return start, timeZone, nil, showWithoutTime, endTZID, nil
	}
	duration = jscal.Str(ISO8601Duration(gap))
	return start, timeZone, duration, showWithoutTime, endTZID, nil
}

// StartEndToICal emits DTSTART and, when duration is set and non-zero (or
// the event is an all-day multi-day span), DTEND on comp (spec.md §4.3).
// endTimeZone/endLocationID, when endTimeZone is non-nil, render DTEND in
// that explicit zone (tagged with X-JMAP-ID=endLocationID) rather than in
// start's own zone, carrying forward a "rel":"end" location's timeZone
// (spec.md §4.7).
func (c *Context) StartEndToICal(comp *ical.Component, start string, timeZone *string, duration *string, showWithoutTime bool, endTimeZone *string, endLocationID string) {
	if start == "" {
		c.Invalid("start")
		return
	}
	local, perr := ParseLocalDate(start)
	if perr != nil {
		c.Invalid("start")
		return
	}

	dt := ICalDateTime{Local: local, IsDate: showWithoutTime}
	if !showWithoutTime {
		switch {
		case timeZone == nil:
			// floating
		case *timeZone == "Etc/UTC" || *timeZone == "UTC":
			dt.IsUTC = true
		default:
			if _, ok := c.TZ.Lookup(*timeZone); !ok {
				c.Invalid("timeZone")
				return
			}
			dt.TZID = *timeZone
		}
	}

	value, tzid := FormatICalDateTime(dt)
	prop := ical.NewProp(ical.PropDateTimeStart)
	prop.Value = value
	if dt.IsDate {
		prop.Params.Set(ical.ParamValue, "DATE")
	}
	if tzid != "" {
		prop.Params.Set(ical.ParamTZID, tzid)
	}
	comp.Props.Set(prop)

	if duration == nil {
		return
	}
	d, derr := ParseISO8601Duration(*duration)
	if derr != nil {
		c.Invalid("duration")
		return
	}
	if d == 0 {
		return
	}

	startUTC, uerr := c.ToUTC(dt)
	if uerr != nil {
		c.Invalid("duration")
		return
	}

	var endDT ICalDateTime
	if endTimeZone != nil {
		loc, ok := c.TZ.Lookup(*endTimeZone)
		if !ok {
			c.Invalid("timeZone")
			return
		}
		instant := startUTC.Add(d)
		local := instant.In(loc)
		endDT = ICalDateTime{
			Local: time.Date(local.Year(), local.Month(), local.Day(),
				local.Hour(), local.Minute(), local.Second(), 0, time.UTC),
			TZID: *endTimeZone,
		}
	} else {
		var everr error
		endDT, everr = c.dtFromUTC(startUTC.Add(d), dt)
		if everr != nil {
			c.Invalid("duration")
			return
		}
	}

	endValue, endTZID := FormatICalDateTime(endDT)
	endProp := ical.NewProp(ical.PropDateTimeEnd)
	endProp.Value = endValue
	if endDT.IsDate {
		endProp.Params.Set(ical.ParamValue, "DATE")
	}
	if endTZID != "" {
		endProp.Params.Set(ical.ParamTZID, endTZID)
	}
	if endTimeZone != nil && endLocationID != "" {
		SetIDParam(endProp, endLocationID)
	}
	comp.Props.Set(endProp)
}

// dtFromUTC reinterprets instant back into like's zone/date-ness, used to
// build DTEND from start+duration.
func (c *Context) dtFromUTC(instant time.Time, like ICalDateTime) (ICalDateTime, error) {
	if like.IsDate {
		return ICalDateTime{Local: instant.UTC(), IsDate: true}, nil
	}
	if like.IsUTC {
		return ICalDateTime{Local: instant.UTC(), IsUTC: true}, nil
	}
	if like.TZID != "" {
		loc, ok := c.TZ.Lookup(like.TZID)
		if !ok {
			return ICalDateTime{}, errUnknownZone(like.TZID)
		}
		local := instant.In(loc)
		wall := time.Date(local.Year(), local.Month(), local.Day(),
			local.Hour(), local.Minute(), local.Second(), 0, time.UTC)
		return ICalDateTime{Local: wall, TZID: like.TZID}, nil
	}
	return ICalDateTime{Local: instant.UTC()}, nil
}
