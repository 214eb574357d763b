package design

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Num is a lens-data number that also accepts "INF", numeric strings and
// blanks in JSON. Infinities are written back as "INF".
type Num float64

// Inf is the positive infinite Num.
var Inf = Num(math.Inf(1))

// Float returns the value as float64.
func (n Num) Float() float64 { return float64(n) }

// MarshalJSON writes infinities as "INF"/"-INF".
func (n Num) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"INF"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-INF"`), nil
	case math.IsNaN(f):
		return []byte(`null`), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON accepts numbers, numeric strings, INF spellings and blanks.
func (n *Num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, ok := ParseNumber(s)
		if !ok {
			if strings.TrimSpace(s) == "" {
				*n = 0
				return nil
			}
			return fmt.Errorf("not a number: %q", s)
		}
		*n = Num(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Num(f)
	return nil
}

// ParseNumber parses decimal numbers and INF/Infinity spellings.
func ParseNumber(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	switch strings.ToUpper(t) {
	case "INF", "+INF", "INFINITY", "+INFINITY", "∞":
		return math.Inf(1), true
	case "-INF", "-INFINITY", "-∞":
		return math.Inf(-1), true
	case "":
		return 0, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Coerce turns numeric-looking strings into float64 and leaves everything
// else untouched. JSON numbers already decode to float64.
func Coerce(v interface{}) interface{} {
	switch x := v.(type) {
	case string:
		if f, ok := ParseNumber(x); ok {
			return f
		}
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	}
	return v
}

// Params holds block parameters: float64 numbers or strings.
type Params map[string]interface{}

// Number returns the numeric value of key. ok is false when key is absent;
// err is set when the value is present but not numeric.
func (p Params) Number(key string) (f float64, ok bool, err error) {
	v, present := p[key]
	if !present || v == nil {
		return 0, false, nil
	}
	switch x := Coerce(v).(type) {
	case float64:
		return x, true, nil
	case bool:
		return 0, true, fmt.Errorf("parameter %s: boolean is not a number", key)
	default:
		return 0, true, fmt.Errorf("parameter %s: %v is not a number", key, v)
	}
}

// String returns key as text; numbers are formatted.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	}
	return fmt.Sprint(v), true
}

// Clone returns a shallow copy; values are immutable scalars.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// marshalParam writes infinities as "INF" so parameters stay valid JSON.
func marshalParam(v interface{}) interface{} {
	if f, ok := v.(float64); ok {
		if math.IsInf(f, 1) {
			return "INF"
		}
		if math.IsInf(f, -1) {
			return "-INF"
		}
	}
	return v
}

// MarshalJSON encodes the params with infinities spelled "INF".
func (p Params) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	m := make(map[string]interface{}, len(p))
	for k, v := range p {
		m[k] = marshalParam(v)
	}
	return json.Marshal(m)
}
