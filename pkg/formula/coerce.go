package formula

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/iwvelando/loan-formulas/pkg/calcerr"
	"github.com/iwvelando/loan-formulas/pkg/mathutil"
)

// isEmpty reports whether a caller value counts as absent.
func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}

// toNumber converts common numeric representations to float64. Booleans are
// not numbers here.
func toNumber(v interface{}) (float64, bool) {
	var n float64
	switch val := v.(type) {
	case float64:
		n = val
	case float32:
		n = float64(val)
	case int:
		n = float64(val)
	case int32:
		n = float64(val)
	case int64:
		n = float64(val)
	case uint:
		n = float64(val)
	case uint32:
		n = float64(val)
	case uint64:
		n = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	return n, mathutil.IsFinite(n)
}

func toBool(v interface{}) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return false, false
		}
		return parsed, true
	}
	if n, ok := toNumber(v); ok {
		return n != 0, true
	}
	return false, false
}

// coerce converts a raw value to the representation of the declared kind.
func coerce(kind VariableKind, name string, raw interface{}) (interface{}, error) {
	switch kind {
	case KindBoolean:
		if b, ok := toBool(raw); ok {
			return b, nil
		}
		return nil, calcerr.Newf(calcerr.KindInvalidInput, name, "expected a boolean, got %v", raw)
	case KindText:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return fmt.Sprint(raw), nil
	default:
		if n, ok := toNumber(raw); ok {
			return n, nil
		}
		return nil, calcerr.Newf(calcerr.KindInvalidInput, name, "expected a number, got %v", raw)
	}
}
