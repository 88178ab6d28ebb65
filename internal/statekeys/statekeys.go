// Package statekeys pulls storage keys out of a `near view-state` dump and
// encodes them as the argument of a contract's clean method.
package statekeys

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// keyPattern matches the CLI's rendering of one state entry, e.g.
//
//	{ key: 'U1RBVEU=', value: '...' }
var keyPattern = regexp.MustCompile(`key: '([^']+)'`)

// Extract returns every key in dump in order of appearance. Duplicates are
// kept: N occurrences yield N values. No keys yields an empty, non-nil slice.
func Extract(dump string) []string {
	matches := keyPattern.FindAllStringSubmatch(dump, -1)
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, m[1])
	}
	return keys
}

// CleanArgs is the JSON argument of the clean method.
type CleanArgs struct {
	Keys []string `json:"keys"`
}

// Encode builds {"keys":[...]}. A nil set encodes as [] rather than null.
func Encode(keys []string) ([]byte, error) {
	if keys == nil {
		keys = []string{}
	}
	// Invalid UTF-8 would become U+FFFD; near prints keys as base64.
	data, err := json.Marshal(CleanArgs{Keys: keys})
	if err != nil {
		return nil, fmt.Errorf("encode clean args: %w", err)
	}
	return data, nil
}

// ArrayLiteral renders keys as a JSON array, for display.
func ArrayLiteral(keys []string) string {
	if keys == nil {
		keys = []string{}
	}
	data, err := json.Marshal(keys)
	if err != nil {
		// []string always marshals
		return "[]"
	}
	return string(data)
}
