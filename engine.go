package atree

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v2"
	"github.com/cespare/xxhash/v2"
	"github.com/sourcegraph/conc/pool"
)

// Engine is the top-level A-Tree matching engine described in spec §6.
// T is the subscription id type: any comparable value the caller wants
// returned from Match.
type Engine[T comparable] struct {
	attrs   *AttributeTable
	strings *StringTable
	dag     *dagStore[T]

	statePool sync.Pool

	// results caches Match(event) by event fingerprint, so a burst of
	// identical events (common in replayed/fanned-out pub-sub traffic)
	// skips the sweep entirely. See SPEC_FULL.md's DOMAIN STACK.
	results *ccache.Cache
}

// NewEngine builds an Engine over the given schema. Duplicate attribute
// names fail the whole construction (spec §6).
func NewEngine[T comparable](defs []AttributeDef) (*Engine[T], error) {
	attrs, err := NewAttributeTable(defs)
	if err != nil {
		return nil, err
	}
	e := &Engine[T]{
		attrs:   attrs,
		strings: NewStringTable(),
		dag:     newDAGStore[T](),
		results: ccache.New(ccache.Configure().MaxSize(4096)),
	}
	e.statePool.New = func() any { return newMatchState[T]() }
	return e, nil
}

// MakeEvent returns a fresh EventBuilder against this engine's schema.
func (e *Engine[T]) MakeEvent() *EventBuilder {
	return newEventBuilder(e.attrs, e.strings)
}

// Attributes exposes the schema collaborator (spec §6).
func (e *Engine[T]) Attributes() *AttributeTable { return e.attrs }

// Strings exposes the string table collaborator (spec §6).
func (e *Engine[T]) Strings() *StringTable { return e.strings }

// AddRule registers expression under subscriptionID. ctx is checked once,
// before rewriting starts; rewriting and DAG insertion do no I/O and never
// block (spec §5), so ctx is not consulted after that, mirroring the
// teacher's AggregateEvaluator.Add(ctx, ...) shape.
func (e *Engine[T]) AddRule(ctx context.Context, subscriptionID T, expression *ExprTree) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if expression == nil {
		return &InvalidExpression{Reason: "nil expression"}
	}
	opt, err := optimize(expression)
	if err != nil {
		return err
	}
	e.dag.insertRoot(subscriptionID, opt)
	e.results.Clear()
	return nil
}

// RemoveRule detaches subscriptionID. Removing an id that was never added
// is a no-op (spec §4.5).
func (e *Engine[T]) RemoveRule(subscriptionID T) {
	e.dag.removeRule(subscriptionID)
	e.results.Clear()
}

// Match evaluates event against every registered rule and returns the
// subscription ids whose expression evaluates true.
func (e *Engine[T]) Match(event *Event) []T {
	key := fingerprint(event)
	if item := e.results.Get(key); item != nil {
		cached := item.Value().([]T)
		out := make([]T, len(cached))
		copy(out, cached)
		return out
	}

	st := e.statePool.Get().(*matchState[T])
	defer e.statePool.Put(st)
	matches := match(e.dag, st, event)

	cached := make([]T, len(matches))
	copy(cached, matches)
	e.results.Set(key, cached, 5*time.Minute)
	return matches
}

// MatchMany fans event out across shards concurrently (spec §5: "concurrent
// match(event) calls on disjoint engine instances are safe") and returns
// the concatenation of every shard's matches.
func (e *Engine[T]) MatchMany(ctx context.Context, shards []*Engine[T], event *Event) ([]T, error) {
	p := pool.NewWithResults[[]T]().WithContext(ctx).WithMaxGoroutines(len(shards))
	for _, shard := range shards {
		shard := shard
		p.Go(func(ctx context.Context) ([]T, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return shard.Match(event), nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}
	var out []T
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// fingerprint hashes an event's values deterministically for the match
// result cache key.
func fingerprint(event *Event) string {
	h := xxhash.New()
	for _, v := range event.values {
		var tag [1]byte
		tag[0] = byte(v.Kind)
		_, _ = h.Write(tag[:])
		writeValueBytes(h, v)
	}
	return strconv.FormatUint(h.Sum64(), 36)
}

func writeValueBytes(h *xxhash.Digest, v AttributeValue) {
	var b [8]byte
	switch v.Kind {
	case KindBool:
		if v.Bool {
			b[0] = 1
		}
		_, _ = h.Write(b[:1])
	case KindInt:
		binary.LittleEndian.PutUint64(b[:], uint64(v.Int))
		_, _ = h.Write(b[:])
	case KindFloat:
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.Float))
		_, _ = h.Write(b[:])
	case KindString:
		binary.LittleEndian.PutUint64(b[:], uint64(v.Str))
		_, _ = h.Write(b[:])
	case KindBoolList:
		for _, x := range v.BoolList {
			if x {
				_, _ = h.Write([]byte{1})
			} else {
				_, _ = h.Write([]byte{0})
			}
		}
	case KindIntList:
		for _, x := range v.IntList {
			binary.LittleEndian.PutUint64(b[:], uint64(x))
			_, _ = h.Write(b[:])
		}
	case KindFloatList:
		for _, x := range v.FloatList {
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(x))
			_, _ = h.Write(b[:])
		}
	case KindStringList:
		for _, x := range v.StringList {
			binary.LittleEndian.PutUint64(b[:], uint64(x))
			_, _ = h.Write(b[:])
		}
	}
}

// CheckInvariants checks part of the structural invariants from spec §3/§8
// against the live DAG: every expressionIndex entry points at a live node,
// no expression id maps to two nodes, each binary node's children are in
// ascending-cost order, and node levels follow the level rule. Use counts,
// parent links and reachability from roots are not checked. Grounded in the
// original source's own
// #[cfg(test)] structural assertions (atree.rs), promoted to a callable
// diagnostic rather than a test-only helper (see SPEC_FULL.md).
func (e *Engine[T]) CheckInvariants() error {
	d := e.dag
	seen := map[uint64]int{}
	var walkErr error
	d.exprIndex.Scan(func(exprID uint64, idx int) bool {
		if !d.pool[idx].live {
			walkErr = fmt.Errorf("expressionIndex points at tombstoned entry %d", idx)
			return false
		}
		if other, exists := seen[exprID]; exists {
			walkErr = fmt.Errorf("expression id %d maps to both %d and %d", exprID, other, idx)
			return false
		}
		seen[exprID] = idx
		e := &d.pool[idx]
		if e.kind != nodeLeaf {
			l, r := e.children[0], e.children[1]
			if d.pool[l].cost > d.pool[r].cost {
				walkErr = fmt.Errorf("entry %d children not ordered by ascending cost", idx)
				return false
			}
			wantLevel := 1 + maxInt(d.pool[l].level, d.pool[r].level)
			if e.level != wantLevel {
				walkErr = fmt.Errorf("entry %d level %d, want %d", idx, e.level, wantLevel)
				return false
			}
		} else if e.level != 1 {
			walkErr = fmt.Errorf("leaf entry %d has level %d, want 1", idx, e.level)
			return false
		}
		return true
	})
	return walkErr
}
