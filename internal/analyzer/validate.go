package analyzer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sozercan/code-analyzer/apimodels"
)

// MissingFieldMessage is substituted for a field the model left out.
func MissingFieldMessage(field string) string {
	return fmt.Sprintf("Missing %s in AI response", field)
}

// ValidateCandidate turns a candidate record into a complete result. Absent
// fields get MissingFieldMessage, present ones are coerced to text, and any
// other keys are dropped.
func ValidateCandidate(candidate map[string]any) apimodels.AnalysisResult {
	field := func(name string) string {
		v, ok := candidate[name]
		if !ok {
			return MissingFieldMessage(name)
		}
		return toText(v)
	}

	return apimodels.AnalysisResult{
		Errors:  field(FieldErrors),
		Code:    field(FieldCode),
		Details: field(FieldDetails),
	}
}

// toText renders a decoded JSON value as text:
//
//	string              unchanged
//	number              its literal digits
//	bool                "true" / "false"
//	null                "null"
//	array, object       compact JSON
func toText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return "null"
	case []any, map[string]any:
		return encodeJSON(x)
	default:
		return fmt.Sprint(x)
	}
}

func encodeJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
