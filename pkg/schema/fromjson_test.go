package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromJSONObject(t *testing.T) {
	node := map[string]any{
		"type":        "object",
		"description": "a search query",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "minLength": float64(1)},
			"limit": map[string]any{"type": "integer", "minimum": float64(1), "maximum": float64(100)},
			"tags":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"query"},
	}

	s, err := FromJSON(node, "search")
	require.NoError(t, err)
	require.Equal(t, KindObject, s.Kind)
	require.Equal(t, "search", s.Name)
	require.Len(t, s.Properties, 3)

	byName := map[string]Property{}
	for _, p := range s.Properties {
		byName[p.Name] = p
	}
	require.False(t, byName["query"].Optional)
	require.True(t, byName["limit"].Optional)
	require.True(t, byName["tags"].Optional)
	require.Len(t, byName["query"].Schema.Constraints, 1)
	require.Len(t, byName["limit"].Schema.Constraints, 1)
	require.Equal(t, KindString, byName["tags"].Schema.Items.Kind)
}

func TestFromJSONEnumAndPattern(t *testing.T) {
	node := map[string]any{
		"type":    "string",
		"enum":    []any{"asc", "desc"},
		"pattern": "^[a-z]+$",
	}
	s, err := FromJSON(node, "order")
	require.NoError(t, err)
	require.Equal(t, KindString, s.Kind)
	require.Len(t, s.Constraints, 2)
}

func TestFromJSONAnyOf(t *testing.T) {
	node := map[string]any{
		"anyOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "integer"},
		},
	}
	s, err := FromJSON(node, "id")
	require.NoError(t, err)
	require.Equal(t, KindAnyOf, s.Kind)
	require.Len(t, s.Alternatives, 2)
}

func TestFromJSONUnsupportedType(t *testing.T) {
	_, err := FromJSON(map[string]any{"type": "null"}, "x")
	require.Error(t, err)
}

func TestFromJSONArrayBounds(t *testing.T) {
	node := map[string]any{
		"type":     "array",
		"items":    map[string]any{"type": "number"},
		"minItems": float64(1),
		"maxItems": float64(5),
	}
	s, err := FromJSON(node, "scores")
	require.NoError(t, err)
	require.Equal(t, KindArray, s.Kind)
	require.Equal(t, KindNumber, s.Items.Kind)
	require.Len(t, s.Constraints, 1)
}
