package analyses

import (
	"encoding/json"
	"strconv"
	"strings"
)

// NormalizeFinding coerces one decoded model element into a Finding.
// It never fails: anything that is not an object yields all defaults.
func NormalizeFinding(v any) Finding {
	f := Finding{Test: defaultTestName, Status: StatusUnknown}
	obj, ok := v.(map[string]any)
	if !ok {
		return f
	}

	if test := stringField(obj["test"]); strings.TrimSpace(test) != "" {
		f.Test = test
	}
	f.Value = stringField(obj["value"])
	f.Unit = stringField(obj["unit"])
	f.ReferenceRange = stringField(obj["referenceRange"])
	f.Comment = stringField(obj["comment"])
	if status, ok := obj["status"].(string); ok && IsValidStatus(status) {
		f.Status = status
	}
	return f
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
