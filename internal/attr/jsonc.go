package attr

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
)

// ParseOverlay reads a JSON-with-comments attribute overlay:
//
//	{
//	  // enable JSON on Point
//	  "Point": {"json": true},
//	  "Point.x": {"json.key": "X"},
//	}
//
// Numbers decode as int64 when integral, matching what the CUE compiler
// produces for attribute literals.
func ParseOverlay(data []byte) (*Table, error) {
	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("parsing attribute overlay: %w", err)
	}

	t := NewTable()
	for path, attrs := range raw {
		for name, msg := range attrs {
			v, err := decodeScalar(msg)
			if err != nil {
				return nil, fmt.Errorf("attribute %s %s: %w", path, name, err)
			}
			t.Set(path, name, v)
		}
	}
	return t, nil
}

func decodeScalar(msg json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case bool, string:
		return x, nil
	case float64:
		if x == float64(int64(x)) {
			return int64(x), nil
		}
		return nil, fmt.Errorf("non-integral number %v", x)
	default:
		return nil, fmt.Errorf("unsupported attribute value %T", v)
	}
}
