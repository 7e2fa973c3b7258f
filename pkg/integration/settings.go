package integration

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Settings is an integration's flat key-value settings map.
type Settings map[string]any

// Merge returns a new map holding base overlaid with over. Values in over win;
// keys missing from over keep their base value.
func Merge(base, over map[string]any) Settings {
	out := make(Settings, len(base)+len(over))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, v := range over {
		out[k] = cloneValue(v)
	}
	return out
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	return Merge(nil, s)
}

// Has reports whether key is present.
func (s Settings) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// String returns the value for key as a string.
func (s Settings) String(key string) string {
	switch v := s[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns the value for key as a bool. Strings such as "1", "yes" and
// "on" count as true.
func (s Settings) Bool(key string) bool {
	switch v := s[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			return true
		}
		return false
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}

// Int returns the value for key as an int, or 0 when it is not numeric.
func (s Settings) Int(key string) int {
	return int(s.Int64(key))
}

// Int64 returns the value for key as an int64, or 0 when it is not numeric.
func (s Settings) Int64(key string) int64 {
	switch v := s[key].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if ferr != nil {
				return 0
			}
			return int64(f)
		}
		return n
	default:
		return 0
	}
}

// StringSlice returns the value for key as a list of non-empty trimmed strings.
// A single string is split on newlines and commas.
func (s Settings) StringSlice(key string) []string {
	var raw []string
	switch v := s[key].(type) {
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if item == nil {
				continue
			}
			raw = append(raw, fmt.Sprint(item))
		}
	case string:
		raw = strings.FieldsFunc(v, func(r rune) bool { return r == '\n' || r == ',' })
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case Settings:
		return t.Clone()
	default:
		return v
	}
}
