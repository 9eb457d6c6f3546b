package atree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventFromMapResolvesDottedPaths(t *testing.T) {
	e, err := NewEngine[string](seedSchema())
	require.NoError(t, err)

	data := map[string]any{
		"user": map[string]any{
			"id":   int64(10),
			"tier": "gold",
		},
	}

	event, err := e.EventFromMap(context.Background(), data, FieldPath{
		"Attr0": "user.id",
	})
	require.NoError(t, err)
	require.Equal(t, int64(10), event.Get(0).Int)
}

func TestEventFromMapLeavesUnmatchedPathUndefined(t *testing.T) {
	e, err := NewEngine[string](seedSchema())
	require.NoError(t, err)

	event, err := e.EventFromMap(context.Background(), map[string]any{}, FieldPath{
		"Attr0": "missing.path",
	})
	require.NoError(t, err)
	require.Equal(t, KindUndefined, event.Get(0).Kind)
}

func TestEventFromMapRejectsUnknownAttribute(t *testing.T) {
	e, err := NewEngine[string](seedSchema())
	require.NoError(t, err)

	_, err = e.EventFromMap(context.Background(), map[string]any{}, FieldPath{
		"NotInSchema": "a.b",
	})
	require.Error(t, err)
	var unknown *UnknownAttribute
	require.ErrorAs(t, err, &unknown)
}
