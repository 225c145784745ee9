package convert

import (
	"crypto/sha1" //nolint:gosec // RFC-mandated id-derivation digest, not used for security.
	"encoding/hex"
	"regexp"

	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
)

// idPattern is the JMAP id grammar (spec.md §3, §8): non-empty,
// [A-Za-z0-9_-]{1,256}.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// ValidID reports whether id satisfies the JMAP id grammar.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// deriveID hashes a property's canonical serialized form with SHA-1,
// lowercase hex, 40 characters (spec.md §3, §9). The "canonical
// serialization" is simply Name + Value + sorted param=value pairs,
// joined with ASCII unit separators so distinct properties never
// collide by concatenation accident.
func deriveID(prop *ical.Prop) string {
	h := sha1.New() //nolint:gosec
	h.Write([]byte(prop.Name))
	h.Write([]byte{0x1f})
	h.Write([]byte(prop.Value))
	for _, name := range sortedParamNames(prop.Params) {
		for _, v := range prop.Params[name] {
			h.Write([]byte{0x1f})
			h.Write([]byte(name))
			h.Write([]byte{0x1e})
			h.Write([]byte(v))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// sha1Key hashes a raw string (e.g. a normalized URI with no matching
// attendee) into a stable id when no X-JMAP-ID/participant is available
// to name it (spec.md §4.4 memberOf, grounded on jmap_ical.c sha1key).
func sha1Key(s string) string {
	h := sha1.New() //nolint:gosec
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

func sortedParamNames(params ical.Params) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	// simple insertion sort; param counts per property are tiny
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

// IDFromProp reads a stable id from the X-JMAP-ID parameter if present,
// else derives one via SHA-1 (spec.md §3 Identifiers).
func IDFromProp(prop *ical.Prop) string {
	if v := prop.Params.Get(ical.XJMAPID); v != "" {
		return v
	}
	return deriveID(prop)
}

// SetIDParam stores id as X-JMAP-ID on prop (JSON→ICAL direction).
func SetIDParam(prop *ical.Prop, id string) {
	if prop.Params == nil {
		prop.Params = ical.Params{}
	}
	prop.Params.Set(ical.XJMAPID, id)
}
