package atree

import (
	"context"
	"fmt"
	"sync"

	"github.com/ohler55/ojg/jp"
	"golang.org/x/sync/errgroup"
)

// FieldPath maps one attribute name to a dotted/JSONPath expression that
// locates its value inside a decoded payload (e.g. "user.flags.beta" or
// "$.user.flags[0]"). EventFromMap resolves every entry concurrently,
// mirroring the teacher's stringLookup.Match field-resolution pattern in
// engine_stringmap.go (ojg/jp path parsing + errgroup fan-out).
type FieldPath map[string]string

// EventFromMap builds an Event from a decoded payload (e.g. JSON), using
// paths to pick each attribute's value out of data. An attribute named in
// the schema but absent from paths is left Undefined. Supplemented beyond
// spec.md's EventBuilder (see SPEC_FULL.md) — a convenience for ingesting
// events that already arrive as map[string]any rather than being built
// field-by-field.
func (e *Engine[T]) EventFromMap(ctx context.Context, data map[string]any, paths FieldPath) (*Event, error) {
	b := e.MakeEvent()

	type resolved struct {
		name string
		kind AttributeKind
		val  any
	}

	results := make([]resolved, 0, len(paths))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for name, path := range paths {
		name, path := name, path
		_, kind, ok := e.attrs.GetByName(name)
		if !ok {
			return nil, &UnknownAttribute{Name: name}
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			expr, err := jp.ParseString(path)
			if err != nil {
				return fmt.Errorf("atree: parsing path %q for attribute %q: %w", path, name, err)
			}
			vals := expr.Get(data)
			if len(vals) == 0 {
				return nil // left Undefined
			}
			mu.Lock()
			results = append(results, resolved{name: name, kind: kind, val: vals[0]})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if err := applyResolvedValue(b, r.name, r.kind, r.val); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

func applyResolvedValue(b *EventBuilder, name string, kind AttributeKind, val any) error {
	switch kind {
	case KindBool:
		v, ok := val.(bool)
		if !ok {
			return &AttributeKindMismatch{Attribute: name, Expected: kind, Actual: KindUndefined}
		}
		b.WithBool(name, v)
	case KindInt:
		v, err := toInt64(val)
		if err != nil {
			return &AttributeKindMismatch{Attribute: name, Expected: kind, Actual: KindUndefined}
		}
		b.WithInt(name, v)
	case KindFloat:
		v, err := toFloat64(val)
		if err != nil {
			return &AttributeKindMismatch{Attribute: name, Expected: kind, Actual: KindUndefined}
		}
		b.WithFloat(name, v)
	case KindString:
		v, ok := val.(string)
		if !ok {
			return &AttributeKindMismatch{Attribute: name, Expected: kind, Actual: KindUndefined}
		}
		b.WithString(name, v)
	case KindStringList:
		items, ok := val.([]any)
		if !ok {
			return &AttributeKindMismatch{Attribute: name, Expected: kind, Actual: KindUndefined}
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			s, ok := it.(string)
			if !ok {
				return &AttributeKindMismatch{Attribute: name, Expected: kind, Actual: KindUndefined}
			}
			out = append(out, s)
		}
		b.WithStringList(name, out)
	case KindIntList:
		items, ok := val.([]any)
		if !ok {
			return &AttributeKindMismatch{Attribute: name, Expected: kind, Actual: KindUndefined}
		}
		out := make([]int64, 0, len(items))
		for _, it := range items {
			v, err := toInt64(it)
			if err != nil {
				return &AttributeKindMismatch{Attribute: name, Expected: kind, Actual: KindUndefined}
			}
			out = append(out, v)
		}
		b.WithIntList(name, out)
	case KindFloatList:
		items, ok := val.([]any)
		if !ok {
			return &AttributeKindMismatch{Attribute: name, Expected: kind, Actual: KindUndefined}
		}
		out := make([]float64, 0, len(items))
		for _, it := range items {
			v, err := toFloat64(it)
			if err != nil {
				return &AttributeKindMismatch{Attribute: name, Expected: kind, Actual: KindUndefined}
			}
			out = append(out, v)
		}
		b.WithFloatList(name, out)
	case KindBoolList:
		items, ok := val.([]any)
		if !ok {
			return &AttributeKindMismatch{Attribute: name, Expected: kind, Actual: KindUndefined}
		}
		out := make([]bool, 0, len(items))
		for _, it := range items {
			v, ok := it.(bool)
			if !ok {
				return &AttributeKindMismatch{Attribute: name, Expected: kind, Actual: KindUndefined}
			}
			out = append(out, v)
		}
		b.WithBoolList(name, out)
	}
	return nil
}

func toInt64(val any) (int64, error) {
	switch v := val.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("atree: %v is not numeric", val)
	}
}

func toFloat64(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("atree: %v is not numeric", val)
	}
}
