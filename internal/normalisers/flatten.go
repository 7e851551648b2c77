package normalisers

import (
	"encoding/json"
	"time"
)

// flattenFields reduces vendor fields to the metadata shape the store
// accepts: scalars and flat string lists. Nested values are
// JSON-stringified rather than dropped so no information is lost, and
// the choice is the same for every source.
func flattenFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+4)
	for key, value := range fields {
		if flat, ok := flattenValue(value); ok {
			out[key] = flat
		}
	}
	return out
}

func flattenValue(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, true
	case time.Time:
		return v.UTC().Format(time.RFC3339), true
	case []string:
		return v, true
	case []any:
		if allScalars(v) {
			return v, true
		}
		return stringify(v)
	default:
		return stringify(v)
	}
}

func allScalars(values []any) bool {
	for _, v := range values {
		switch v.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return false
		}
	}
	return true
}

// stringify JSON-encodes a nested value. Unencodable values are dropped.
func stringify(value any) (any, bool) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	return string(encoded), true
}
