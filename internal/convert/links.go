package convert

import (
	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

// LinksFromICal builds the links map from ATTACH and URL properties
// (spec.md §4.8). A bare URL property becomes a link with rel="describedby"
// when X-JMAP-REL is absent, matching the convention the rest of this
// codec uses for "no explicit rel recorded" properties.
func (c *Context) LinksFromICal(comp *ical.Component) map[string]*jscal.Link {
	links := map[string]*jscal.Link{}

	for _, p := range comp.Props[ical.PropAttach] {
		prop := p
		id := IDFromProp(&prop)
		link := &jscal.Link{Type: "Link", Href: prop.Value}
		if fmt := prop.Params.Get(ical.ParamFmtType); fmt != "" {
			link.ContentType = jscal.Str(fmt)
		}
		if size := prop.Params.Get(ical.ParamSize); size != "" {
			if n, ok := parseIntOrNil(size); ok {
				link.Size = jscal.Int64(int64(n))
			}
		}
		if title := prop.Params.Get(ical.XJMAPTitle); title != "" {
			link.Title = jscal.Str(title)
		}
		if cid := prop.Params.Get(ical.XJMAPCID); cid != "" {
			link.Cid = jscal.Str(cid)
		}
		rel := "enclosure"
		if r := prop.Params.Get(ical.XJMAPRel); r != "" {
			rel = r
		}
		link.Rel = jscal.Str(rel)
		if display := prop.Params.Get(ical.XJMAPDisplay); display != "" {
			link.Display = jscal.Str(display)
		}
		links[id] = link
	}

	if p := comp.Props.Get(ical.PropURL); p != nil {
		id := IDFromProp(p)
		link := &jscal.Link{Type: "Link", Href: p.Value}
		rel := "describedby"
		if r := p.Params.Get(ical.XJMAPRel); r != "" {
			rel = r
		}
		link.Rel = jscal.Str(rel)
		links[id] = link
	}

	if len(links) == 0 {
		return nil
	}
	return links
}

func parseIntOrNil(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if s == "" {
		return 0, false
	}
	return n, true
}

// LinksToICal emits ATTACH/URL properties for links (spec.md §4.8). A
// link with rel="describedby" and no other field set beyond href+rel is
// emitted as a bare URL property; every other link becomes ATTACH.
func (c *Context) LinksToICal(comp *ical.Component, links map[string]*jscal.Link) {
	ids := sortedLinkKeys(links)
	for _, id := range ids {
		link := links[id]
		restore := c.Path.BeginKey("links", id)
		if link == nil || link.Href == "" {
			c.Invalid("href")
			restore()
			continue
		}

		rel := ""
		if link.Rel != nil {
			rel = *link.Rel
		}
		bareDescribedBy := rel == "describedby" && link.ContentType == nil &&
			link.Size == nil && link.Title == nil && link.Display == nil && link.Cid == nil
		if bareDescribedBy {
			prop := ical.NewProp(ical.PropURL)
			prop.Value = link.Href
			SetIDParam(prop, id)
			comp.Props.Add(prop)
			restore()
			continue
		}

		prop := ical.NewProp(ical.PropAttach)
		prop.Value = link.Href
		SetIDParam(prop, id)
		if link.ContentType != nil {
			prop.Params.Set(ical.ParamFmtType, *link.ContentType)
		}
		if link.Size != nil {
			prop.Params.Set(ical.ParamSize, itoa64(*link.Size))
		}
		if link.Title != nil {
			prop.Params.Set(ical.XJMAPTitle, *link.Title)
		}
		if link.Cid != nil {
			prop.Params.Set(ical.XJMAPCID, *link.Cid)
		}
		if rel != "" && rel != "enclosure" {
			prop.Params.Set(ical.XJMAPRel, rel)
		}
		if link.Display != nil {
			prop.Params.Set(ical.XJMAPDisplay, *link.Display)
		}
		comp.Props.Add(prop)
		restore()
	}
}

func itoa64(n int64) string {
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

func sortedLinkKeys(m map[string]*jscal.Link) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	insertionSortStrings(keys)
	return keys
}
