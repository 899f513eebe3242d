package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/eventroom/internal/backend"
)

// resolveFields replaces server timestamp sentinels with stamp and copies
// the map so callers may reuse theirs.
func resolveFields(fields map[string]any, stamp func() time.Time) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v == backend.ServerTimestamp {
			v = stamp().Format(backend.TimestampLayout)
		}
		out[k] = v
	}
	return out
}

// marshalFields converts a field map to JSON TEXT for storage.
// HTML escaping is disabled so stored text reads as written.
func marshalFields(fields map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields); err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalFields parses stored JSON TEXT. Numbers decode as json.Number
// so large integers keep their precision.
func unmarshalFields(data string) (map[string]any, error) {
	fields := map[string]any{}
	if data == "" {
		return fields, nil
	}
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return fields, nil
}
