// Package diff computes and applies the flat, JSON-Pointer-keyed patch
// objects spec.md §4.6 uses for recurrenceOverrides: not an RFC 6902
// operation list, but a map of pointer → replacement value (or JSON null
// to mean "delete"), applied relative to a master object.
package diff

import (
	"encoding/json"
	"sort"
	"strings"
)

// pathEscape encodes one JSON-Pointer segment per RFC 6901.
func pathEscape(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	s = strings.ReplaceAll(s, "/", "~1")
	return s
}

// toGeneric round-trips v through JSON into the plain
// map[string]interface{}/[]interface{}/scalar shape Diff/Apply operate
// on, so struct field tags (omitempty, custom names) are respected.
func toGeneric(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Diff computes the minimal flat patch that turns master into instance:
// for every leaf that differs, a pointer → instance-value entry; for
// every key present in master but absent in instance, a pointer → nil
// entry (spec.md §4.6, §8 "override patches are minimal").
func Diff(master, instance interface{}) (map[string]interface{}, error) {
	mg, err := toGeneric(master)
	if err != nil {
		return nil, err
	}
	ig, err := toGeneric(instance)
	if err != nil {
		return nil, err
	}
	patch := map[string]interface{}{}
	walk("", mg, ig, patch)
	return patch, nil
}

func walk(prefix string, m, i interface{}, patch map[string]interface{}) {
	mMap, mIsMap := m.(map[string]interface{})
	iMap, iIsMap := i.(map[string]interface{})

	if mIsMap && iIsMap {
		keys := map[string]struct{}{}
		for k := range mMap {
			keys[k] = struct{}{}
		}
		for k := range iMap {
			keys[k] = struct{}{}
		}
		sorted := make([]string, 0, len(keys))
		for k := range keys {
			sorted = append(sorted, k)
		}
		sort.Strings(sorted)
		for _, k := range sorted {
			mv, mok := mMap[k]
			iv, iok := iMap[k]
			ptr := prefix + "/" + pathEscape(k)
			switch {
			case mok && !iok:
				patch[ptr] = nil
			case !mok && iok:
				patch[ptr] = iv
			default:
				walk(ptr, mv, iv, patch)
			}
		}
		return
	}

	if !deepEqual(m, i) {
		path := prefix
		if path == "" {
			path = "/"
		}
		patch[path] = i
	}
}

func deepEqual(a, b interface{}) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}
