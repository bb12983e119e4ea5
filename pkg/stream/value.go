package stream

import "strconv"

// ScalarString renders a swag value (bool, int, int64, string, nil or
// []byte) as its wire-token string, the small conversion helper set
// SPEC_FULL.md §13 calls for instead of a hand-rolled tagged union. Any
// other type, including an []any sequence, renders as "".
func ScalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []byte:
		return string(t)
	default:
		return ""
	}
}

// BytesValue extracts a []byte payload from a swag value, accepting both
// []byte and string so elements that produce either still interoperate.
func BytesValue(v any) ([]byte, bool) {
	switch t := v.(type) {
	case []byte:
		return t, true
	case string:
		return []byte(t), true
	default:
		return nil, false
	}
}

// SequenceValue extracts a []any sequence from a swag value.
func SequenceValue(v any) ([]any, bool) {
	seq, ok := v.([]any)
	return seq, ok
}

// IntValue extracts an int from a swag value, parsing strings as a
// convenience for values that arrived over the wire as command tokens.
func IntValue(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
