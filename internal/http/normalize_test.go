package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeResults(t *testing.T) {
	t.Run("wrapped and bare shapes produce identical records", func(t *testing.T) {
		records := []any{
			map[string]any{"id": "a", "memory": "one", "score": 0.5},
			map[string]any{"id": "b", "memory": "two", "score": 0.25},
		}

		wrapped := normalizeResults(map[string]any{"results": records}, true)
		bare := normalizeResults(records, true)

		assert.Equal(t, wrapped, bare)
		require.Len(t, wrapped, 2)
		assert.Equal(t, "a", wrapped[0].ID)
		assert.Equal(t, "two", wrapped[1].Memory)
	})

	t.Run("typed map slice is accepted", func(t *testing.T) {
		records := []map[string]any{
			{"id": "a", "memory": "one"},
		}

		out := normalizeResults(records, false)
		require.Len(t, out, 1)
		assert.Equal(t, "a", out[0].ID)
	})

	t.Run("unrecognized shapes degrade to empty", func(t *testing.T) {
		for _, raw := range []any{nil, "text", 42, map[string]any{"memories": []any{}}, map[string]any{"results": "not a list"}} {
			out := normalizeResults(raw, true)
			assert.NotNil(t, out)
			assert.Empty(t, out)
		}
	})

	t.Run("non-mapping elements are skipped", func(t *testing.T) {
		out := normalizeResults([]any{
			"junk",
			map[string]any{"id": "a", "memory": "kept"},
			7,
		}, false)

		require.Len(t, out, 1)
		assert.Equal(t, "kept", out[0].Memory)
	})

	t.Run("score attached only when requested", func(t *testing.T) {
		records := []any{map[string]any{"id": "a", "memory": "m", "score": 0.7}}

		withScore := normalizeResults(records, true)
		require.NotNil(t, withScore[0].Score)
		assert.InDelta(t, 0.7, *withScore[0].Score, 1e-9)

		withoutScore := normalizeResults(records, false)
		assert.Nil(t, withoutScore[0].Score)
	})
}

func TestNormalizeRecord(t *testing.T) {
	t.Run("missing fields default", func(t *testing.T) {
		rec := normalizeRecord(map[string]any{}, true)

		assert.Equal(t, "", rec.ID)
		assert.Equal(t, "", rec.Memory)
		require.NotNil(t, rec.Score)
		assert.Zero(t, *rec.Score)
		assert.NotNil(t, rec.Metadata)
		assert.Empty(t, rec.Metadata)
	})

	t.Run("non-string ids are stringified", func(t *testing.T) {
		rec := normalizeRecord(map[string]any{"id": 42, "memory": "m"}, false)
		assert.Equal(t, "42", rec.ID)
	})

	t.Run("integer scores coerce to float", func(t *testing.T) {
		rec := normalizeRecord(map[string]any{"score": 1}, true)
		require.NotNil(t, rec.Score)
		assert.Equal(t, 1.0, *rec.Score)
	})

	t.Run("null metadata becomes empty map", func(t *testing.T) {
		rec := normalizeRecord(map[string]any{"metadata": nil}, false)
		assert.NotNil(t, rec.Metadata)
		assert.Empty(t, rec.Metadata)
	})

	t.Run("metadata passes through untouched", func(t *testing.T) {
		meta := map[string]any{"source": "chat", "turn": 3}
		rec := normalizeRecord(map[string]any{"metadata": meta}, false)
		assert.Equal(t, meta, rec.Metadata)
	})
}
