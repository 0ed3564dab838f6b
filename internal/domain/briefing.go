package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Briefing is a submitted client requirements questionnaire: question key to
// answer. It is read by detection and materialization and never mutated.
// Nested sections are addressed with dotted keys ("site.area_m2").
type Briefing map[string]any

// Value looks up a possibly dotted key. The second result reports presence.
func (b Briefing) Value(key string) (any, bool) {
	if b == nil || key == "" {
		return nil, false
	}
	if v, ok := b[key]; ok {
		return v, true
	}

	var cur any = map[string]any(b)
	for _, part := range strings.Split(key, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the answer for key rendered as a string.
func (b Briefing) String(key string) string {
	v, ok := b.Value(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Number returns the answer for key as a float64 when it is numeric or a
// numeric string.
func (b Briefing) Number(key string) (float64, bool) {
	v, ok := b.Value(key)
	if !ok {
		return 0, false
	}
	return ToNumber(v)
}

// Bool returns the answer for key as a bool. "yes"/"sim" style strings count.
func (b Briefing) Bool(key string) bool {
	v, ok := b.Value(key)
	if !ok {
		return false
	}
	return Truthy(v)
}

// Truthy interprets a briefing answer as a yes/no value. Questionnaires
// answer in free text, so "yes", "sim" and "1" are all true.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "sim", "s", "1":
			return true
		}
		return false
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	if n, ok := ToNumber(v); ok {
		return n != 0
	}
	return false
}

// Date returns the answer for key parsed as a calendar date (YYYY-MM-DD).
func (b Briefing) Date(key string) (*time.Time, error) {
	v, ok := b.Value(key)
	if !ok || v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case time.Time:
		d := DateOnly(x)
		return &d, nil
	case string:
		t, err := time.Parse(DateLayout, strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("briefing %s: %w", key, err)
		}
		return &t, nil
	}
	return nil, fmt.Errorf("briefing %s: expected a date, got %T", key, v)
}

// Clone returns a deep copy so callers can hold a briefing beyond the
// lifetime of whoever produced it.
func (b Briefing) Clone() Briefing {
	if b == nil {
		return nil
	}
	out := make(Briefing, len(b))
	for k, v := range b {
		out[k] = cloneValue(v)
	}
	return out
}

// ToNumber converts the numeric kinds that JSON, YAML and TOML decoders
// produce into a float64.
func ToNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Briefing:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = cloneValue(val)
		}
		return out
	}
	return v
}
