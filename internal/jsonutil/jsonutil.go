// Package jsonutil provides helper functions for decoding loosely typed
// JSON values returned by the feed backend.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StringFromRaw decodes a JSON string or number into its string form.
// null and empty input yield "".
func StringFromRaw(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("expected string or number, got %s", string(raw))
		}
		return n.String(), nil
	}
}
