package convert

import (
	"strconv"
	"strings"

	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

// normalizedURI lowercases only the scheme prefix of a CALADDRESS value,
// up to and including the first colon, leaving the rest unchanged
// (spec.md §4.4; grounded on jmap_ical.c normalized_uri).
func normalizedURI(uri string) string {
	i := strings.IndexByte(uri, ':')
	if i < 0 {
		return uri
	}
	return strings.ToLower(uri[:i+1]) + uri[i+1:]
}

// matchURI reports whether two CALADDRESS values are equal once their
// scheme prefixes are compared case-insensitively (jmap_ical.c match_uri).
func matchURI(a, b string) bool {
	ia := strings.IndexByte(a, ':')
	ib := strings.IndexByte(b, ':')
	if ia < 0 && ib < 0 {
		return a == b
	}
	if ia < 0 || ib < 0 {
		return false
	}
	return strings.EqualFold(a[:ia], b[:ib]) && a[ia+1:] == b[ib+1:]
}

// rsvpToFromICal parses the sendTo map from an ATTENDEE/ORGANIZER
// property's X-JMAP-RSVP-URI x-parameters plus its own CALADDRESS value
// (spec.md §4.4; grounded on jmap_ical.c rsvpto_from_ical).
func rsvpToFromICal(prop *ical.Prop) map[string]string {
	sendTo := map[string]string{}
	for _, v := range prop.Params[ical.XJMAPRSVPURI] {
		col1 := strings.IndexByte(v, ':')
		var col2 int = -1
		if col1 >= 0 {
			if j := strings.IndexByte(v[col1+1:], ':'); j >= 0 {
				col2 = col1 + 1 + j
			}
		}
		if col2 < 0 {
			sendTo["web"] = v
			continue
		}
		sendTo[v[:col1]] = v[col1+1:]
	}

	caladdress := prop.Value
	defined := false
	for _, uri := range sendTo {
		if matchURI(caladdress, uri) {
			defined = true
			break
		}
	}
	if !defined {
		if strings.HasPrefix(strings.ToLower(caladdress), "mailto:") {
			sendTo["imip"] = caladdress
		} else {
			sendTo["other"] = caladdress
		}
	}
	if len(sendTo) == 0 {
		return nil
	}
	return sendTo
}

func mailaddrFromURI(uri string) string {
	if i := strings.IndexByte(uri, ':'); i >= 0 && strings.EqualFold(uri[:i], "mailto") {
		return uri[i+1:]
	}
	return ""
}

// ParticipantsFromICal converts the ORGANIZER/ATTENDEE properties of comp
// into the participants map (spec.md §4.4; grounded on jmap_ical.c
// participants_from_ical/participant_from_ical/participant_from_icalorganizer).
func (c *Context) ParticipantsFromICal(comp *ical.Component) map[string]*jscal.Participant {
	attendees := comp.Props[ical.PropAttendee]
	if len(attendees) == 0 {
		orga := comp.Props.Get(ical.PropOrganizer)
		if orga == nil {
			return nil
		}
		id := IDFromProp(orga)
		return map[string]*jscal.Participant{id: participantFromICalOrganizer(orga)}
	}

	attendeeByURI := make(map[string]*ical.Prop, len(attendees))
	idByURI := make(map[string]string, len(attendees))
	for i := range attendees {
		prop := &attendees[i]
		uri := normalizedURI(prop.Value)
		attendeeByURI[uri] = prop
		id := prop.Params.Get(ical.XJMAPID)
		if id == "" {
			id = deriveID(prop)
		}
		idByURI[uri] = id
	}

	orga := comp.Props.Get(ical.PropOrganizer)

	participants := map[string]*jscal.Participant{}
	for i := range attendees {
		prop := &attendees[i]
		uri := normalizedURI(prop.Value)
		id := idByURI[uri]
		participants[id] = participantFromICal(c, prop, attendeeByURI, idByURI, orga)
	}

	if orga != nil {
		uri := normalizedURI(orga.Value)
		if _, ok := attendeeByURI[uri]; !ok {
			id := orga.Params.Get(ical.XJMAPID)
			if id == "" {
				id = deriveID(orga)
			}
			participants[id] = participantFromICalOrganizer(orga)
		}
	}

	if len(participants) == 0 {
		return nil
	}
	return participants
}

func participantFromICalOrganizer(orga *ical.Prop) *jscal.Participant {
	p := &jscal.Participant{
		Type:  "Participant",
		Name:  jscal.Str(orga.Params.Get(ical.ParamCN)),
		Roles: map[string]bool{"owner": true},
	}
	caladdress := orga.Value
	if strings.HasPrefix(strings.ToLower(caladdress), "mailto:") {
		p.SendTo = map[string]string{"imip": caladdress}
		p.Email = jscal.Str(mailaddrFromURI(caladdress))
	} else {
		p.SendTo = map[string]string{"other": caladdress}
	}
	return p
}

func participantFromICal(c *Context, prop *ical.Prop, attendeeByURI map[string]*ical.Prop, idByURI map[string]string, orga *ical.Prop) *jscal.Participant {
	p := &jscal.Participant{Type: "Participant"}

	sendTo := rsvpToFromICal(prop)
	p.SendTo = sendTo

	if email := prop.Params.Get(ical.ParamEmail); email != "" {
		p.Email = jscal.Str(email)
	} else if imip, ok := sendTo["imip"]; ok {
		p.Email = jscal.Str(mailaddrFromURI(imip))
	}

	p.Name = jscal.Str(prop.Params.Get(ical.ParamCN))

	if cutype := prop.Params.Get(ical.ParamCUType); cutype != "" {
		switch strings.ToUpper(cutype) {
		case "INDIVIDUAL":
			p.Kind = jscal.Str("individual")
		case "GROUP":
			p.Kind = jscal.Str("group")
		case "RESOURCE":
			p.Kind = jscal.Str("resource")
		case "ROOM":
			p.Kind = jscal.Str("location")
		default:
			p.Kind = jscal.Str("unknown")
		}
	}

	role := strings.ToUpper(prop.Params.Get(ical.ParamRole))
	switch role {
	case "REQ-PARTICIPANT", "":
		if role != "" {
			p.Attendance = jscal.Str("required")
		}
	case "OPT-PARTICIPANT":
		p.Attendance = jscal.Str("optional")
	case "NON-PARTICIPANT":
		p.Attendance = jscal.Str("none")
	case "CHAIR":
		p.Attendance = jscal.Str("required")
	default:
		p.Attendance = jscal.Str("required")
	}

	roles := map[string]bool{}
	for _, v := range prop.Params[ical.XJMAPRole] {
		roles[strings.ToLower(v)] = true
	}
	if !roles["owner"] && orga != nil && matchURI(orga.Value, prop.Value) {
		roles["owner"] = true
		roles["attendee"] = true
	}
	if role == "CHAIR" {
		roles["chair"] = true
	}
	if len(roles) == 0 {
		roles["attendee"] = true
	}
	p.Roles = roles

	if locid := prop.Params.Get(ical.XJMAPLocationID); locid != "" {
		p.LocationID = jscal.Str(locid)
	}

	partstat := participationStatusFromICal(prop, attendeeByURI, 0)
	if partstat != "" && partstat != "none" {
		p.ParticipationStatus = jscal.Str(partstat)
	}

	if rsvp := prop.Params.Get(ical.ParamRSVP); rsvp != "" {
		p.ExpectReply = jscal.Bool(strings.EqualFold(rsvp, "TRUE"))
	}

	if delTo := idSetFromURIs(prop.Params[ical.ParamDelegatedTo], idByURI); delTo != nil {
		p.DelegatedTo = delTo
	}
	if delFrom := idSetFromURIs(prop.Params[ical.ParamDelegatedFrom], idByURI); delFrom != nil {
		p.DelegatedFrom = delFrom
	}

	if members := prop.Params[ical.ParamMember]; len(members) > 0 {
		memberOf := map[string]bool{}
		for _, m := range members {
			uri := normalizedURI(m)
			id, ok := idByURI[uri]
			if !ok {
				id = sha1Key(uri)
			}
			memberOf[id] = true
		}
		p.MemberOf = memberOf
	}

	if linkIDs := toSet(prop.Params[ical.XJMAPLinkID]); linkIDs != nil {
		p.LinkIDs = linkIDs
	}

	if seq := prop.Params.Get(ical.XJMAPSequence); seq != "" {
		if n, err := strconv.ParseUint(seq, 10, 63); err == nil {
			p.ScheduleSequence = jscal.Int(int(n))
		}
	}

	if ts := prop.Params.Get(ical.XJMAPDTStamp); ts != "" {
		dt, err := c.ParseICalDateTime(ts, "")
		if err == nil && dt.IsUTC {
			p.ScheduleUpdated = jscal.Str(FormatUTCDate(dt.Local))
		}
	}

	return p
}

// participationStatusFromICal walks the PARTSTAT=DELEGATED chain via
// DELEGATED-TO, bounded at depth 64 (spec.md §4.4).
func participationStatusFromICal(prop *ical.Prop, attendeeByURI map[string]*ical.Prop, depth int) string {
	if depth > 64 {
		return "none"
	}
	partstat := strings.ToUpper(prop.Params.Get(ical.ParamParticipationStatus))
	switch partstat {
	case "ACCEPTED":
		return "accepted"
	case "DECLINED":
		return "declined"
	case "TENTATIVE":
		return "tentative"
	case "NEEDS-ACTION", "":
		return "needs-action"
	case "DELEGATED":
		delegates := prop.Params[ical.ParamDelegatedTo]
		if len(delegates) == 0 {
			return "none"
		}
		uri := normalizedURI(delegates[0])
		next, ok := attendeeByURI[uri]
		if !ok {
			return "none"
		}
		return participationStatusFromICal(next, attendeeByURI, depth+1)
	default:
		return "none"
	}
}

func idSetFromURIs(uris []string, idByURI map[string]string) map[string]bool {
	if len(uris) == 0 {
		return nil
	}
	out := map[string]bool{}
	for _, u := range uris {
		uri := normalizedURI(u)
		if id, ok := idByURI[uri]; ok {
			out[id] = true
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ParticipantsToICal validates and emits ORGANIZER/ATTENDEE properties
// from participants/replyTo (spec.md §4.4; grounded on jmap_ical.c
// participants_to_ical/participant_to_ical/participant_roles_to_ical).
// links is the event's links map, consulted only to know which link ids
// are valid for a participant's linkIds.
func (c *Context) ParticipantsToICal(comp *ical.Component, participants map[string]*jscal.Participant, replyTo map[string]string, links map[string]*jscal.Link) {
	delete(comp.Props, ical.PropAttendee)
	delete(comp.Props, ical.PropOrganizer)

	hasReplyTo := replyTo != nil
	hasParticipants := participants != nil
	if hasReplyTo && len(replyTo) == 0 {
		c.Invalid("replyTo")
	}
	if hasParticipants && len(participants) == 0 {
		c.Invalid("participants")
	}
	if hasReplyTo != hasParticipants {
		c.Invalid("replyTo")
		c.Invalid("participants")
		return
	}
	if !hasReplyTo {
		return
	}

	caladdrByID := map[string]string{}
	ids := sortedParticipantKeys(participants)
	for _, id := range ids {
		p := participants[id]
		caladdrByID[id] = pickCalAddress(p)
	}

	orgaURI := pickReplyToURI(replyTo)
	orga := ical.NewProp(ical.PropOrganizer)
	orga.Value = orgaURI
	if len(replyTo) > 1 || (replyToMethod(replyTo) != "imip" && replyToMethod(replyTo) != "other") {
		for method, uri := range replyTo {
			orga.Params.Add(ical.XJMAPRSVPURI, method+":"+uri)
		}
	}
	comp.Props.Add(orga)

	for _, id := range ids {
		restore := c.Path.BeginKey("participants", id)
		p := participants[id]
		caladdress := caladdrByID[id]
		if caladdress == "" {
			c.Invalid("sendTo")
			c.Invalid("email")
			restore()
			continue
		}
		participantToICal(c, comp, orga, id, p, participants, links, orgaURI, caladdrByID)
		restore()
	}
}

func replyToMethod(replyTo map[string]string) string {
	if _, ok := replyTo["imip"]; ok {
		return "imip"
	}
	if _, ok := replyTo["other"]; ok {
		return "other"
	}
	for k := range replyTo {
		return k
	}
	return ""
}

func pickReplyToURI(replyTo map[string]string) string {
	return replyTo[replyToMethod(replyTo)]
}

// pickCalAddress picks, in order: sendTo.imip, sendTo.other, any other
// sendTo method, or "mailto:"+email (spec.md §4.4).
func pickCalAddress(p *jscal.Participant) string {
	if p == nil {
		return ""
	}
	if v, ok := p.SendTo["imip"]; ok {
		return v
	}
	if v, ok := p.SendTo["other"]; ok {
		return v
	}
	for _, v := range p.SendTo {
		return v
	}
	if p.Email != nil && *p.Email != "" {
		return "mailto:" + *p.Email
	}
	return ""
}

func participantToICal(c *Context, comp *ical.Component, orga *ical.Prop, id string, jpart *jscal.Participant, participants map[string]*jscal.Participant, links map[string]*jscal.Link, orgaURI string, caladdrByID map[string]string) {
	caladdress := caladdrByID[id]
	prop := ical.NewProp(ical.PropAttendee)
	prop.Value = caladdress
	prop.Params.Set(ical.XJMAPID, id)

	isOrga := matchURI(caladdress, orgaURI)
	if isOrga {
		orga.Params.Set(ical.XJMAPID, id)
	}

	if jpart.Name != nil {
		prop.Params.Set(ical.ParamCN, *jpart.Name)
		if isOrga {
			orga.Params.Set(ical.ParamCN, *jpart.Name)
		}
	}

	if len(jpart.SendTo) > 0 {
		setRSVPURIs := len(jpart.SendTo) > 1
		if !setRSVPURIs {
			method := ""
			for m := range jpart.SendTo {
				method = m
			}
			setRSVPURIs = method != "imip" && method != "other"
		}
		if setRSVPURIs {
			for method, uri := range jpart.SendTo {
				prop.Params.Add(ical.XJMAPRSVPURI, method+":"+uri)
			}
		}
	}

	if jpart.Email != nil {
		if !matchURI(caladdress, *jpart.Email) {
			prop.Params.Set(ical.ParamEmail, *jpart.Email)
			if isOrga {
				orga.Params.Set(ical.ParamEmail, *jpart.Email)
			}
		}
	}

	if jpart.Kind != nil {
		switch strings.ToLower(*jpart.Kind) {
		case "location":
			prop.Params.Set(ical.ParamCUType, "ROOM")
		case "individual", "group", "resource":
			prop.Params.Set(ical.ParamCUType, strings.ToUpper(*jpart.Kind))
		default:
			// unknown/unmapped kinds are dropped rather than emitted as a
			// nonstandard CUTYPE value.
		}
	}

	icalRole := "REQ-PARTICIPANT"
	if jpart.Attendance != nil {
		switch strings.ToLower(*jpart.Attendance) {
		case "required":
			icalRole = "REQ-PARTICIPANT"
		case "optional":
			icalRole = "OPT-PARTICIPANT"
		case "none":
			icalRole = "NON-PARTICIPANT"
		}
		if icalRole != "REQ-PARTICIPANT" {
			prop.Params.Set(ical.ParamRole, icalRole)
		}
	}

	if len(jpart.Roles) > 0 {
		participantRolesToICal(c, prop, jpart.Roles, icalRole, isOrga)
	} else if jpart.Roles != nil {
		c.Invalid("roles")
	}

	if jpart.LocationID != nil {
		prop.Params.Set(ical.XJMAPLocationID, *jpart.LocationID)
	}

	ps := ""
	if jpart.ParticipationStatus != nil {
		switch strings.ToLower(*jpart.ParticipationStatus) {
		case "needs-action":
			ps = "NEEDS-ACTION"
		case "accepted":
			ps = "ACCEPTED"
		case "declined":
			ps = "DECLINED"
		case "tentative":
			ps = "TENTATIVE"
		default:
			c.Invalid("participationStatus")
		}
	}
	if ps != "" {
		prop.Params.Set(ical.ParamParticipationStatus, ps)
	}

	if jpart.ExpectReply != nil {
		if *jpart.ExpectReply {
			prop.Params.Set(ical.ParamRSVP, "TRUE")
			if ps == "" {
				prop.Params.Set(ical.ParamParticipationStatus, "NEEDS-ACTION")
			}
		} else {
			prop.Params.Set(ical.ParamRSVP, "FALSE")
		}
	}

	for did := range jpart.DelegatedTo {
		restore := c.Path.BeginKey("delegatedTo", did)
		if _, ok := participants[did]; ValidID(did) && ok {
			if uri, ok := caladdrByID[did]; ok && uri != "" {
				prop.Params.Add(ical.ParamDelegatedTo, uri)
			}
		} else {
			c.Invalid("")
		}
		restore()
	}

	for did := range jpart.DelegatedFrom {
		restore := c.Path.BeginKey("delegatedFrom", did)
		if _, ok := participants[did]; ValidID(did) && ok {
			if uri, ok := caladdrByID[did]; ok && uri != "" {
				prop.Params.Add(ical.ParamDelegatedFrom, uri)
			}
		} else {
			c.Invalid("")
		}
		restore()
	}

	for mid := range jpart.MemberOf {
		restore := c.Path.BeginKey("memberOf", mid)
		if _, ok := participants[mid]; ValidID(mid) && ok {
			if uri, ok := caladdrByID[mid]; ok && uri != "" {
				prop.Params.Add(ical.ParamMember, uri)
			}
		} else {
			c.Invalid("")
		}
		restore()
	}

	for lid := range jpart.LinkIDs {
		restore := c.Path.BeginKey("linkIds", lid)
		if ValidID(lid) && links != nil && links[lid] != nil {
			prop.Params.Add(ical.XJMAPLinkID, lid)
		} else {
			c.Invalid("")
		}
		restore()
	}

	if jpart.ScheduleSequence != nil && *jpart.ScheduleSequence >= 0 {
		prop.Params.Set(ical.XJMAPSequence, strconv.Itoa(*jpart.ScheduleSequence))
	} else if jpart.ScheduleSequence != nil {
		c.Invalid("scheduleSequence")
	}

	if jpart.ScheduleUpdated != nil {
		t, err := ParseUTCDate(*jpart.ScheduleUpdated)
		if err != nil {
			c.Invalid("scheduleUpdated")
		} else {
			prop.Params.Set(ical.XJMAPDTStamp, t.UTC().Format(icalDTUTCLayout))
		}
	}

	if isOrga {
		jorga := participantFromICalOrganizerJSON(orga)
		if participantEquals(jorga, jpart) {
			return
		}
	}

	comp.Props.Add(prop)
}

func participantRolesToICal(c *Context, prop *ical.Prop, roles map[string]bool, icalRole string, isReplyTo bool) {
	hasOwner := roles["owner"]
	hasChair := roles["chair"]
	hasAttendee := roles["attendee"]
	xrolesCount := len(roles)

	if hasChair && icalRole == "REQ-PARTICIPANT" {
		xrolesCount--
	}
	if hasOwner && isReplyTo {
		xrolesCount--
	}
	if hasAttendee {
		xrolesCount--
	}

	if xrolesCount <= 0 {
		if hasChair {
			prop.Params.Set(ical.ParamRole, "CHAIR")
		}
		return
	}

	for key := range roles {
		if strings.EqualFold(key, "chair") && icalRole == "REQ-PARTICIPANT" {
			prop.Params.Set(ical.ParamRole, "CHAIR")
		} else {
			prop.Params.Add(ical.XJMAPRole, key)
		}
	}
}

// participantFromICalOrganizerJSON mirrors participantFromICalOrganizer
// but operates on the ORGANIZER prop being built up in ParticipantsToICal,
// used only for the organizer-equality redundancy check below.
func participantFromICalOrganizerJSON(orga *ical.Prop) *jscal.Participant {
	return participantFromICalOrganizer(orga)
}

// participantEquals compares a synthesized organizer-only participant
// against the input participant modulo documented defaults (spec.md
// §4.4; grounded on jmap_ical.c participant_equals).
func participantEquals(a, b *jscal.Participant) bool {
	aSendTo := a.SendTo
	if len(aSendTo) == 0 && a.Email != nil {
		aSendTo = map[string]string{"imip": "mailto:" + *a.Email}
	}
	bSendTo := b.SendTo
	if len(bSendTo) == 0 && b.Email != nil {
		bSendTo = map[string]string{"imip": "mailto:" + *b.Email}
	}
	if len(aSendTo) != len(bSendTo) {
		return false
	}
	for method, uriA := range aSendTo {
		uriB, ok := bSendTo[method]
		if !ok || !matchURI(uriA, uriB) {
			return false
		}
	}

	nameA, nameB := "", ""
	if a.Name != nil {
		nameA = *a.Name
	}
	if b.Name != nil {
		nameB = *b.Name
	}
	if nameA != nameB {
		return false
	}

	emailA, emailB := "", ""
	if a.Email != nil {
		emailA = *a.Email
	}
	if b.Email != nil {
		emailB = *b.Email
	}
	if emailA != emailB {
		return false
	}

	if !strMapEqual(defaultedRoles(a.Roles), defaultedRoles(b.Roles)) {
		return false
	}

	psA, psB := "needs-action", "needs-action"
	if a.ParticipationStatus != nil {
		psA = *a.ParticipationStatus
	}
	if b.ParticipationStatus != nil {
		psB = *b.ParticipationStatus
	}
	if psA != psB {
		return false
	}

	attA, attB := "required", "required"
	if a.Attendance != nil {
		attA = *a.Attendance
	}
	if b.Attendance != nil {
		attB = *b.Attendance
	}
	if attA != attB {
		return false
	}

	erA, erB := false, false
	if a.ExpectReply != nil {
		erA = *a.ExpectReply
	}
	if b.ExpectReply != nil {
		erB = *b.ExpectReply
	}
	if erA != erB {
		return false
	}

	seqA, seqB := 0, 0
	if a.ScheduleSequence != nil {
		seqA = *a.ScheduleSequence
	}
	if b.ScheduleSequence != nil {
		seqB = *b.ScheduleSequence
	}
	if seqA != seqB {
		return false
	}

	if a.Kind != nil || b.Kind != nil {
		kA, kB := "", ""
		if a.Kind != nil {
			kA = *a.Kind
		}
		if b.Kind != nil {
			kB = *b.Kind
		}
		if kA != kB {
			return false
		}
	}
	if a.LocationID != nil || b.LocationID != nil {
		lA, lB := "", ""
		if a.LocationID != nil {
			lA = *a.LocationID
		}
		if b.LocationID != nil {
			lB = *b.LocationID
		}
		if lA != lB {
			return false
		}
	}
	if len(a.DelegatedTo) != 0 || len(b.DelegatedTo) != 0 {
		return false
	}
	if len(a.DelegatedFrom) != 0 || len(b.DelegatedFrom) != 0 {
		return false
	}
	if len(a.MemberOf) != 0 || len(b.MemberOf) != 0 {
		return false
	}
	if len(a.LinkIDs) != 0 || len(b.LinkIDs) != 0 {
		return false
	}

	return true
}

func defaultedRoles(roles map[string]bool) map[string]bool {
	if len(roles) == 0 {
		return map[string]bool{"attendee": true}
	}
	return roles
}

func strMapEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func sortedParticipantKeys(m map[string]*jscal.Participant) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	insertionSortStrings(keys)
	return keys
}
