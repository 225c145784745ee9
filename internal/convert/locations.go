package convert

import (
	"fmt"
	"strings"

	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

// LocationsFromICal builds locations/virtualLocations from LOCATION, GEO,
// X-APPLE-STRUCTURED-LOCATION, X-JMAP-LOCATION, and CONFERENCE properties
// (spec.md §4.7). The end-timezone location described in §4.3 step 2 is
// synthesized separately by basicEventFromICal from the end TZID that
// StartEndFromICal returns, not here.
func (c *Context) LocationsFromICal(comp *ical.Component) (map[string]*jscal.Location, map[string]*jscal.VirtualLocation) {
	locations := map[string]*jscal.Location{}
	virtual := map[string]*jscal.VirtualLocation{}

	var primary []*ical.Prop
	if p := comp.Props.Get(ical.PropLocation); p != nil {
		primary = append(primary, p)
	}
	for _, p := range comp.Props[ical.XJMAPLocation] {
		pcopy := p
		primary = append(primary, &pcopy)
	}
	for _, p := range primary {
		id := IDFromProp(p)
		loc := &jscal.Location{Type: "Location", Name: jscal.Str(p.Value)}
		if ids := p.Params[parseLinkIDParam]; len(ids) > 0 {
			loc.LinkIDs = toSet(ids)
		}
		locations[id] = loc
	}

	if p := comp.Props.Get(ical.PropGeo); p != nil {
		id := IDFromProp(p)
		if p.Params.Get(ical.XJMAPID) == "" {
			if lp := comp.Props.Get(ical.PropLocation); lp != nil {
				id = IDFromProp(lp)
			}
		}
		loc, ok := locations[id]
		if !ok {
			loc = &jscal.Location{Type: "Location"}
			locations[id] = loc
		}
		// GEO's value is "<lat>;<lon>" (RFC 5545), not a geo: URI.
		if latlon := strings.SplitN(p.Value, ";", 2); len(latlon) == 2 {
			loc.Coordinates = jscal.Str(fmt.Sprintf("geo:%s,%s", latlon[0], latlon[1]))
		}
	}

	if p := comp.Props.Get(ical.XAppleStructLoc); p != nil {
		id := IDFromProp(p)
		loc, ok := locations[id]
		if !ok {
			loc = &jscal.Location{Type: "Location"}
			locations[id] = loc
		}
		if strings.HasPrefix(p.Value, "geo:") {
			loc.Coordinates = jscal.Str(p.Value)
		}
		if title := p.Params.Get(ical.XTitle); title != "" {
			loc.Name = jscal.Str(title)
		}
	}

	for _, p := range comp.Props[ical.PropConference] {
		prop := p
		id := IDFromProp(&prop)
		vl := &jscal.VirtualLocation{Type: "VirtualLocation", URI: prop.Value}
		if label := prop.Params.Get(ical.ParamLabel); label != "" {
			vl.Name = jscal.Str(label)
		}
		if desc := prop.Params.Get(ical.XJMAPDescription); desc != "" {
			vl.Description = jscal.Str(desc)
		}
		virtual[id] = vl
	}

	if len(locations) == 0 {
		locations = nil
	}
	if len(virtual) == 0 {
		virtual = nil
	}
	return locations, virtual
}

// parseLinkIDParam is a placeholder key used only to keep
// Params.Values-style calls readable; go-ical's Params is a flat
// map[string][]string, so this codec reads X-JMAP-LINKID directly.
const parseLinkIDParam = "X-JMAP-LINKID"

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

func splitGeoValue(v string) (lat, lon string, ok bool) {
	v = strings.TrimPrefix(v, "geo:")
	parts := strings.SplitN(v, ";", 2)
	latlon := strings.SplitN(parts[0], ",", 2)
	if len(latlon) != 2 {
		return "", "", false
	}
	return latlon[0], latlon[1], true
}

// LocationsToICal validates and emits LOCATION/X-JMAP-LOCATION/GEO/
// CONFERENCE properties for comp from the JSON locations/virtualLocations
// maps (spec.md §4.7 validation rules). It returns the id of the first
// location with rel="end" and a non-nil timeZone, if any, for the
// start/end resolver to consume (spec.md §4.3 step 2).
func (c *Context) LocationsToICal(comp *ical.Component, locations map[string]*jscal.Location, virtual map[string]*jscal.VirtualLocation, linkIDs map[string]bool) (endLocationID string) {
	// Deterministic order: ids sorted, matching the convention used
	// throughout this codebase for map iteration in emitted output.
	ids := sortedKeys(locations)

	first := true
	for _, id := range ids {
		loc := locations[id]
		restore := c.Path.BeginKey("locations", id)
		if isEmptyLocation(loc) {
			c.Invalid("")
			restore()
			continue
		}
		if loc.TimeZone != nil {
			if _, ok := c.TZ.Lookup(*loc.TimeZone); !ok {
				c.Invalid("timeZone")
				restore()
				continue
			}
		}
		for lid := range loc.LinkIDs {
			if linkIDs != nil && !linkIDs[lid] {
				c.Invalid("linkIds")
			}
		}

		rel := ""
		if loc.Rel != nil {
			rel = *loc.Rel
		}
		if rel == "end" && loc.TimeZone != nil {
			if endLocationID == "" {
				endLocationID = id
			}
			restore()
			continue
		}

		if loc.Coordinates != nil && strings.HasPrefix(*loc.Coordinates, "geo:") {
			lat, lon, ok := splitGeoValue(*loc.Coordinates)
			if ok {
				geoProp := ical.NewProp(ical.PropGeo)
				geoProp.Value = fmt.Sprintf("%s;%s", lat, lon)
				SetIDParam(geoProp, id)
				comp.Props.Add(geoProp)
			}
		}

		name := ""
		if loc.Name != nil {
			name = *loc.Name
		}
		prop := ical.NewProp(ical.PropLocation)
		if !first {
			prop = ical.NewProp(ical.XJMAPLocation)
		}
		prop.Value = name
		SetIDParam(prop, id)
		comp.Props.Add(prop)
		first = false
		restore()
	}

	vids := sortedVKeys(virtual)
	for _, id := range vids {
		vl := virtual[id]
		prop := ical.NewProp(ical.PropConference)
		prop.Value = vl.URI
		SetIDParam(prop, id)
		if vl.Name != nil {
			prop.Params.Set(ical.ParamLabel, *vl.Name)
		}
		if vl.Description != nil {
			prop.Params.Set(ical.XJMAPDescription, *vl.Description)
		}
		comp.Props.Add(prop)
	}

	return endLocationID
}

func isEmptyLocation(loc *jscal.Location) bool {
	if loc == nil {
		return true
	}
	if loc.Name != nil || loc.Description != nil || loc.Coordinates != nil ||
		loc.TimeZone != nil || len(loc.LocationTypes) > 0 || len(loc.LinkIDs) > 0 {
		return false
	}
	return true
}

func sortedKeys(m map[string]*jscal.Location) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	insertionSortStrings(keys)
	return keys
}

func sortedVKeys(m map[string]*jscal.VirtualLocation) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	insertionSortStrings(keys)
	return keys
}

func insertionSortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
