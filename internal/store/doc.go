package store

import (
	"bytes"
	"encoding/json"
)

// ExtractPath walks a JSON document along path and returns the raw value
// found there.
func ExtractPath(doc json.RawMessage, path []string) (json.RawMessage, bool) {
	current := doc
	for _, field := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(current, &obj); err != nil {
			return nil, false
		}
		next, ok := obj[field]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// JSONEqual compares two raw JSON values after compaction.
func JSONEqual(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if err := json.Compact(&ca, a); err != nil {
		return false
	}
	if err := json.Compact(&cb, b); err != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
