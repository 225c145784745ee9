package diff

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Apply applies a flat pointer→value patch (as produced by Diff, or a
// recurrenceOverrides entry once forbidden keys have been stripped) to
// master, returning the patched value unmarshaled into out. A pointer
// mapped to nil removes that member; every other pointer sets/replaces
// it. Because Diff only ever emits a pointer once its parent container
// is already known to exist on at least one side, every patch entry's
// parent exists in master by construction — so "add" vs "replace" is
// decided purely by whether master already has the exact key.
func Apply(master interface{}, patch map[string]interface{}, out interface{}) error {
	baseline, err := json.Marshal(master)
	if err != nil {
		return fmt.Errorf("marshal master: %w", err)
	}

	ops, err := buildOps(baseline, patch)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return json.Unmarshal(baseline, out)
	}

	opsJSON, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("marshal patch ops: %w", err)
	}
	decoded, err := jsonpatch.DecodePatch(opsJSON)
	if err != nil {
		return fmt.Errorf("decode patch: %w", err)
	}
	patched, err := decoded.Apply(baseline)
	if err != nil {
		return fmt.Errorf("apply patch: %w", err)
	}
	return json.Unmarshal(patched, out)
}

type patchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
}

// buildOps translates the flat pointer map into an RFC 6902 operation
// list, ordering removes last-to-first within a container so earlier
// removes never shift the index of a later one (relevant only for array
// elements; object member removal is order-independent).
func buildOps(baseline []byte, patch map[string]interface{}) ([]patchOp, error) {
	var doc interface{}
	if err := json.Unmarshal(baseline, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal master: %w", err)
	}

	paths := make([]string, 0, len(patch))
	for p := range patch {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	ops := make([]patchOp, 0, len(patch))
	for _, p := range paths {
		v := patch[p]
		exists := pointerExists(doc, p)
		switch {
		case v == nil:
			if exists {
				ops = append(ops, patchOp{Op: "remove", Path: p})
			}
		case exists:
			ops = append(ops, patchOp{Op: "replace", Path: p, Value: v})
		default:
			ops = append(ops, patchOp{Op: "add", Path: p, Value: v})
		}
	}
	return ops, nil
}

// pointerExists reports whether the RFC 6901 pointer path resolves to a
// present member of doc.
func pointerExists(doc interface{}, path string) bool {
	if path == "" || path == "/" {
		return true
	}
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	cur := doc
	for _, seg := range segments {
		seg = strings.ReplaceAll(seg, "~1", "/")
		seg = strings.ReplaceAll(seg, "~0", "~")
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return false
			}
			cur = v
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return false
			}
			cur = node[idx]
		default:
			return false
		}
	}
	return true
}
