// Package jscal defines the Go shape of a JSCalendar "jsevent" object
// (RFC 8984-ish, as scoped by spec.md §3) and its nested entities.
//
// Field optionality follows spec.md §3 literally: everything but uid and
// @type is optional, so most fields are pointers or nil-able maps/slices
// rather than zero-valued. The participant codec's organizer-equality
// check (participantEquals in internal/convert, §4.4) treats a nil pointer
// and an explicit default value as equivalent.
package jscal

// Event is a JSCalendar event object, master or (in exception-build mode)
// a bare instance patched from a master.
type Event struct {
	Type string `json:"@type"`
	UID  string `json:"uid,omitempty"`

	ProdID   *string `json:"prodId,omitempty"`
	Created  *string `json:"created,omitempty"`
	Updated  *string `json:"updated,omitempty"`
	Sequence *int    `json:"sequence,omitempty"`
	Priority *int    `json:"priority,omitempty"`

	Title                  *string `json:"title,omitempty"`
	Description            *string `json:"description,omitempty"`
	DescriptionContentType *string `json:"descriptionContentType,omitempty"`
	Method                 *string `json:"method,omitempty"`
	Color                  *string `json:"color,omitempty"`

	Status         *string `json:"status,omitempty"`
	FreeBusyStatus *string `json:"freeBusyStatus,omitempty"`
	Privacy        *string `json:"privacy,omitempty"`

	IsAllDay *bool   `json:"isAllDay,omitempty"`
	Start    *string `json:"start,omitempty"`
	TimeZone *string `json:"timeZone"` // present-but-null is meaningful (floating); see §4.2
	Duration *string `json:"duration,omitempty"`

	RecurrenceRule      *RecurrenceRule        `json:"recurrenceRule,omitempty"`
	RecurrenceOverrides map[string]PatchOrFlag `json:"recurrenceOverrides,omitempty"`

	Keywords  map[string]bool          `json:"keywords,omitempty"`
	RelatedTo map[string]RelationEntry `json:"relatedTo,omitempty"`

	Links            map[string]*Link            `json:"links,omitempty"`
	Locations        map[string]*Location        `json:"locations,omitempty"`
	VirtualLocations map[string]*VirtualLocation `json:"virtualLocations,omitempty"`

	Participants map[string]*Participant `json:"participants,omitempty"`
	ReplyTo      map[string]string       `json:"replyTo,omitempty"`

	UseDefaultAlerts *bool             `json:"useDefaultAlerts,omitempty"`
	Alerts           map[string]*Alert `json:"alerts,omitempty"`

	Locale *string `json:"locale,omitempty"`
}

// PatchOrFlag is one value of a recurrenceOverrides map: either
// {"excluded": true}, {} (an RDATE), or a patch object keyed by
// JSON-Pointer paths relative to the master (§3 Recurrence override).
type PatchOrFlag map[string]interface{}

func (p PatchOrFlag) IsExcluded() bool {
	v, ok := p["excluded"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// RelationEntry is the value type of Event.RelatedTo: a set of relation
// strings (e.g. "first", "parent", "child", "next").
type RelationEntry struct {
	Relation map[string]bool `json:"relation,omitempty"`
}

// RecurrenceRule mirrors spec.md §4.5.
type RecurrenceRule struct {
	Type            string   `json:"@type,omitempty"`
	Frequency       string   `json:"frequency"`
	Interval        *int     `json:"interval,omitempty"`
	RScale          *string  `json:"rscale,omitempty"`
	Skip            *string  `json:"skip,omitempty"`
	FirstDayOfWeek  *string  `json:"firstDayOfWeek,omitempty"`
	ByDay           []NDay   `json:"byDay,omitempty"`
	ByMonth         []string `json:"byMonth,omitempty"`
	ByDate          []int    `json:"byDate,omitempty"`
	ByYearDay       []int    `json:"byYearDay,omitempty"`
	ByWeekNo        []int    `json:"byWeekNo,omitempty"`
	ByHour          []int    `json:"byHour,omitempty"`
	ByMinute        []int    `json:"byMinute,omitempty"`
	BySecond        []int    `json:"bySecond,omitempty"`
	BySetPosition   []int    `json:"bySetPosition,omitempty"`
	Count           *int     `json:"count,omitempty"`
	Until           *string  `json:"until,omitempty"`
}

// NDay is one element of RecurrenceRule.ByDay.
type NDay struct {
	Day          string `json:"day"`
	NthOfPeriod  *int   `json:"nthOfPeriod,omitempty"`
}

// Participant mirrors spec.md §4.4.
type Participant struct {
	Type                string            `json:"@type,omitempty"`
	Name                *string           `json:"name,omitempty"`
	Email                *string          `json:"email,omitempty"`
	Kind                *string           `json:"kind,omitempty"`
	Roles               map[string]bool   `json:"roles,omitempty"`
	LocationID          *string           `json:"locationId,omitempty"`
	Language            *string           `json:"language,omitempty"`
	ParticipationStatus *string           `json:"participationStatus,omitempty"`
	ParticipationComment *string          `json:"participationComment,omitempty"`
	ExpectReply         *bool             `json:"expectReply,omitempty"`
	ScheduleAgent       *string           `json:"scheduleAgent,omitempty"`
	ScheduleSequence    *int              `json:"scheduleSequence,omitempty"`
	ScheduleUpdated     *string           `json:"scheduleUpdated,omitempty"`
	SendTo              map[string]string `json:"sendTo,omitempty"`
	Attendance          *string           `json:"attendance,omitempty"`
	DelegatedTo         map[string]bool   `json:"delegatedTo,omitempty"`
	DelegatedFrom       map[string]bool   `json:"delegatedFrom,omitempty"`
	MemberOf            map[string]bool   `json:"memberOf,omitempty"`
	LinkIDs             map[string]bool   `json:"linkIds,omitempty"`
	Invitedby           *string           `json:"invitedBy,omitempty"`
}

// Location mirrors spec.md §4.7.
type Location struct {
	Type        string          `json:"@type,omitempty"`
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	LocationTypes map[string]bool `json:"locationTypes,omitempty"`
	RelativeTo  *string         `json:"relativeTo,omitempty"`
	TimeZone    *string         `json:"timeZone,omitempty"`
	Coordinates *string         `json:"coordinates,omitempty"`
	LinkIDs     map[string]bool `json:"linkIds,omitempty"`
	Rel         *string         `json:"rel,omitempty"`
}

// VirtualLocation mirrors spec.md §4.7 (CONFERENCE ↔ virtualLocations).
type VirtualLocation struct {
	Type        string  `json:"@type,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	URI         string  `json:"uri"`
}

// Link mirrors spec.md §4.8.
type Link struct {
	Type    string  `json:"@type,omitempty"`
	Href    string  `json:"href"`
	ContentType *string `json:"contentType,omitempty"`
	Size    *int64  `json:"size,omitempty"`
	Rel     *string `json:"rel,omitempty"`
	Display *string `json:"display,omitempty"`
	Title   *string `json:"title,omitempty"`
	Cid     *string `json:"cid,omitempty"`
}

// Alert mirrors spec.md §4.9: relativeTo is one of "before-start",
// "after-start", "before-end", "after-end"; offset is an unsigned
// ISO-8601 duration measured from the named edge.
type Alert struct {
	Type         string  `json:"@type,omitempty"`
	Action       *string `json:"action,omitempty"`
	RelativeTo   *string `json:"relativeTo,omitempty"`
	Offset       *string `json:"offset,omitempty"`
	Acknowledged *string `json:"acknowledged,omitempty"`
	Snoozed      *string `json:"snoozed,omitempty"`
}
