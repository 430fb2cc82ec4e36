package http

import "fmt"

// normalizeResults flattens an engine result into memory records.
//
// Engines reply in one of two shapes: a mapping with a "results" key
// holding a sequence of records, or a bare sequence of records. Any
// other shape degrades to an empty list rather than an error; the
// result boundary is the one place loose upstream typing is allowed
// to leak, and it stops here.
//
// withScore controls whether a score is attached to each record:
// search results carry one, list results do not.
func normalizeResults(raw any, withScore bool) []MemoryRecord {
	items := resultItems(raw)

	records := make([]MemoryRecord, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, normalizeRecord(fields, withScore))
	}
	return records
}

// resultItems extracts the record sequence from either accepted
// engine reply shape.
func resultItems(raw any) []any {
	switch v := raw.(type) {
	case map[string]any:
		return asSlice(v["results"])
	case []any, []map[string]any:
		return asSlice(v)
	default:
		return nil
	}
}

func asSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []map[string]any:
		items := make([]any, len(s))
		for i, m := range s {
			items[i] = m
		}
		return items
	default:
		return nil
	}
}

// normalizeRecord coerces a single raw record into the response
// shape. Every field is optional upstream and defaulted here: id and
// memory to empty strings, score to 0.0, metadata to an empty map.
func normalizeRecord(fields map[string]any, withScore bool) MemoryRecord {
	rec := MemoryRecord{
		ID:       coerceString(fields["id"]),
		Memory:   coerceString(fields["memory"]),
		Metadata: coerceMap(fields["metadata"]),
	}
	if withScore {
		score := coerceFloat(fields["score"])
		rec.Score = &score
	}
	return rec
}

func coerceString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

func coerceFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0.0
	}
}

func coerceMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}
