package normalization

import (
  "fmt"
  "strconv"
  "strings"
)

// Stringify renders any decoded JSON value the way a renderer would expect:
// strings pass through, whole-number floats drop the trailing ".0".
func Stringify(v any) string {
  switch t := v.(type) {
  case nil:
    return ""
  case string:
    return t
  case float64:
    if t == float64(int64(t)) {
      return strconv.FormatInt(int64(t), 10)
    }
    return strconv.FormatFloat(t, 'f', -1, 64)
  case bool:
    return strconv.FormatBool(t)
  default:
    return fmt.Sprint(t)
  }
}

// StringList coerces a value into a list of trimmed, non-empty strings.
// Scalars become a single-element list; nil becomes nil.
func StringList(v any) []string {
  if v == nil {
    return nil
  }
  if list, ok := v.([]any); ok {
    out := make([]string, 0, len(list))
    for _, item := range list {
      s := strings.TrimSpace(Stringify(item))
      if s != "" {
        out = append(out, s)
      }
    }
    if len(out) == 0 {
      return nil
    }
    return out
  }
  s := strings.TrimSpace(Stringify(v))
  if s == "" {
    return nil
  }
  return []string{s}
}

// IntOrNil parses a value as an integer, returning nil on any failure.
func IntOrNil(v any) *int {
  switch t := v.(type) {
  case nil:
    return nil
  case float64:
    n := int(t)
    return &n
  case int:
    n := t
    return &n
  case string:
    n, err := strconv.Atoi(strings.TrimSpace(t))
    if err != nil {
      return nil
    }
    return &n
  default:
    return nil
  }
}

func asMap(v any) (map[string]any, bool) {
  m, ok := v.(map[string]any)
  return m, ok
}

func asList(v any) []any {
  if v == nil {
    return nil
  }
  if list, ok := v.([]any); ok {
    return list
  }
  return []any{v}
}

// firstOf returns the first non-nil, non-empty value under any of the keys.
func firstOf(m map[string]any, keys ...string) any {
  for _, key := range keys {
    v, ok := m[key]
    if !ok || v == nil {
      continue
    }
    if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
      continue
    }
    return v
  }
  return nil
}
