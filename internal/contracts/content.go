package contracts

import "time"

// Defensive readers for CollectedBlob content maps. Collected JSON is
// analyser-specific and version-tolerant: a missing or mistyped field
// reads as the zero value so analysers degrade to neutral scores.

// ContentString reads a string field from a blob content map
func ContentString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// ContentFloat reads a numeric field, tolerating int/float encodings
func ContentFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// ContentInt reads an integer field
func ContentInt(m map[string]any, key string) int64 {
	return int64(ContentFloat(m, key))
}

// ContentBool reads a boolean field
func ContentBool(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

// ContentTime reads an RFC3339 or date-only timestamp field
func ContentTime(m map[string]any, key string) time.Time {
	s := ContentString(m, key)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}

// ContentList reads a list of content maps (e.g. news items)
func ContentList(m map[string]any, key string) []map[string]any {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	items := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		if item, ok := e.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items
}
