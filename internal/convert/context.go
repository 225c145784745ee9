package convert

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/jscalical/internal/tzcache"
)

// pathSegment is one frame of the property-path tracker (spec.md §4.1).
type pathSegment struct {
	name string
}

// PathTracker is a stack of JSON-Pointer segments used solely to build
// precise error keys. Begin/BeginKey/BeginIdx each return a restore func
// that pops exactly what was pushed; callers invoke it on every exit path,
// including each early continue, so the stack stays balanced.
type PathTracker struct {
	stack []pathSegment
}

func encodeSegment(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	s = strings.ReplaceAll(s, "/", "~1")
	return s
}

// Begin pushes a bare named segment (e.g. "participants").
func (p *PathTracker) Begin(name string) func() {
	p.stack = append(p.stack, pathSegment{name: encodeSegment(name)})
	return p.End
}

// BeginKey pushes name/key, e.g. BeginKey("participants", "abc123").
func (p *PathTracker) BeginKey(name, key string) func() {
	p.stack = append(p.stack, pathSegment{name: encodeSegment(name)})
	p.stack = append(p.stack, pathSegment{name: encodeSegment(key)})
	return func() {
		p.stack = p.stack[:len(p.stack)-2]
	}
}

// BeginIdx pushes name/i, e.g. BeginIdx("byDate", 0).
func (p *PathTracker) BeginIdx(name string, i int) func() {
	p.stack = append(p.stack, pathSegment{name: encodeSegment(name)})
	p.stack = append(p.stack, pathSegment{name: strconv.Itoa(i)})
	return func() {
		p.stack = p.stack[:len(p.stack)-2]
	}
}

// End pops the single most recent segment pushed by Begin.
func (p *PathTracker) End() {
	if len(p.stack) > 0 {
		p.stack = p.stack[:len(p.stack)-1]
	}
}

// Encode joins the stack into a JSON-Pointer string.
func (p *PathTracker) Encode() string {
	if len(p.stack) == 0 {
		return ""
	}
	parts := make([]string, len(p.stack))
	for i, seg := range p.stack {
		parts[i] = seg.name
	}
	return "/" + strings.Join(parts, "/")
}

// WithSuffix returns Encode() with an extra trailing segment, without
// mutating the stack — used by Invalid(name) to report a field nested one
// level below the current path without a full begin/end pair.
func (p *PathTracker) WithSuffix(name string) string {
	if name == "" {
		return p.Encode()
	}
	base := p.Encode()
	return base + "/" + encodeSegment(name)
}

// Mode flags threaded through a single top-level conversion call.
type Mode struct {
	// Exception indicates the current to_jmap/to_ical call is building or
	// reading a recurrence-override instance rather than a master event.
	// EventFromICal does not synthesize recurrenceOverrides in this mode.
	// The field converters do not consult it: uid, @type and the other
	// fields are converted exactly as for a master, and the override codec
	// drops the forbidden keys from the resulting patch instead.
	Exception bool
}

// Context is the conversion context shared by both pipelines (spec.md §2).
// Its lifetime is strictly nested within one top-level conversion call.
type Context struct {
	Path    PathTracker
	invalid map[string]struct{}

	// WantProps, when non-nil, restricts ICAL→JSON field emission to this
	// set (spec.md §4.10). A nil set means "emit everything".
	WantProps map[string]struct{}
	// wantPropsSuppressed temporarily disables WantProps filtering while
	// recurrenceOverrides diffs against a complete master (spec.md §4.10).
	wantPropsSuppressed bool

	Mode Mode

	TZ *tzcache.Resolver

	// StartTZID tracks the active start timezone for the current master
	// event, consulted by the override codec when converting LocalDate
	// recurrence-ids (spec.md §4.3-§4.6). There is no end-timezone field;
	// the end zone travels as a rel="end" location instead.
	StartTZID string
	StartLoc  *time.Location

	// DefaultCUAS is the calendar-user-address-set the alarm codec falls
	// back to for an EMAIL VALARM's ATTENDEE when the event carries no
	// replyTo of its own (spec.md §4.9; config.Config.DefaultCUAS).
	DefaultCUAS string

	// Logger receives per-property warn events from Invalid/InvalidPath and
	// the entry/error logging done by the top-level ToJMAP/ToICal family.
	// Defaults to a no-op logger so callers that don't care about
	// conversion telemetry never need to wire one in.
	Logger zerolog.Logger
}

func NewContext(tz *tzcache.Resolver, wantProps []string) *Context {
	ctx := &Context{TZ: tz, Logger: zerolog.Nop()}
	if wantProps != nil {
		ctx.WantProps = make(map[string]struct{}, len(wantProps))
		for _, p := range wantProps {
			ctx.WantProps[p] = struct{}{}
		}
	}
	ctx.invalid = make(map[string]struct{})
	return ctx
}

// Wants reports whether field should be emitted given the caller's
// property filter (spec.md §4.10).
func (c *Context) Wants(field string) bool {
	if c.WantProps == nil || c.wantPropsSuppressed {
		return true
	}
	_, ok := c.WantProps[field]
	return ok
}

// SuppressFilter temporarily disables the WantProps filter; returns a
// restore func. Used while synthesizing recurrenceOverrides, which needs
// a complete master object to diff against (spec.md §4.10).
func (c *Context) SuppressFilter() func() {
	prev := c.wantPropsSuppressed
	c.wantPropsSuppressed = true
	return func() { c.wantPropsSuppressed = prev }
}

// Invalid records the current path (optionally with a trailing name) into
// the invalid-props accumulator. An error is reported only once per
// distinct path (spec.md §4.1, §7).
func (c *Context) Invalid(name string) {
	path := c.Path.WithSuffix(name)
	c.logInvalid(path, name)
	c.invalid[path] = struct{}{}
}

// InvalidPath records an explicit, fully-formed path rather than one
// relative to the current stack (used when validating byX array indices,
// §4.5, which need "<field>/<index>" regardless of current nesting).
func (c *Context) InvalidPath(path string) {
	c.logInvalid(path, path)
	c.invalid[path] = struct{}{}
}

// logInvalid emits the warn event for a newly-seen invalid path; a path
// already recorded does not log again.
func (c *Context) logInvalid(path, field string) {
	if _, seen := c.invalid[path]; seen {
		return
	}
	c.Logger.Warn().Str("path", path).Str("field", field).Msg("invalid property")
}

// HasErrors reports whether any invalid property was recorded.
func (c *Context) HasErrors() bool {
	return len(c.invalid) > 0
}

// Err returns a *ConvertError{Kind: Props} if any invalid property was
// recorded, else nil.
func (c *Context) Err() error {
	if !c.HasErrors() {
		return nil
	}
	return errProps(c.invalid)
}
