package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidParams indicates a tool parameter object could not be coerced to a mapping.
var ErrInvalidParams = errors.New("tools: invalid parameters")

// Params is a tool parameter object after coercion at the dispatch boundary.
type Params struct {
	raw map[string]any
}

// NewParams wraps an already-decoded mapping.
func NewParams(m map[string]any) Params {
	if m == nil {
		m = map[string]any{}
	}
	return Params{raw: m}
}

// ParseParams coerces a raw parameter value into Params.
// It accepts a map, a JSON object encoded as string or bytes, or nil.
func ParseParams(raw any) (Params, error) {
	switch v := raw.(type) {
	case nil:
		return NewParams(nil), nil
	case Params:
		return v, nil
	case map[string]any:
		return NewParams(v), nil
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		return NewParams(m), nil
	case string:
		return parseJSONParams([]byte(v))
	case []byte:
		return parseJSONParams(v)
	case json.RawMessage:
		return parseJSONParams(v)
	default:
		return Params{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidParams, raw)
	}
}

func parseJSONParams(data []byte) (Params, error) {
	if strings.TrimSpace(string(data)) == "" {
		return NewParams(nil), nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return NewParams(m), nil
}

// Raw returns the underlying mapping.
func (p Params) Raw() map[string]any {
	return p.raw
}

// String returns the named field coerced to a trimmed string.
// Missing and null fields yield "".
func (p Params) String(key string) string {
	v, ok := p.raw[key]
	if !ok || v == nil {
		return ""
	}

	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		// JSON numbers: 1234 must read back as "1234", not "1234e+00".
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// OrderID returns the order_id field as a trimmed string.
func (p Params) OrderID() string {
	return p.String("order_id")
}
