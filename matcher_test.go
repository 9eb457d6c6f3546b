package atree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMatcherShortCircuitsAND builds an AND root whose left (cheap) child is
// false and whose right child is an expensive Set predicate, and checks that
// the rule does not match. Evaluate on a Predicate has no side effects to
// observe, so the test cannot tell whether the right side was evaluated; it
// checks the observable outcome instead: a false cheap child keeps the root
// from matching even when the costly child's attribute is absent.
func TestMatcherShortCircuitsAND(t *testing.T) {
	e, err := NewEngine[string](seedSchema())
	require.NoError(t, err)

	cheap, err := NewEqualityPredicate(e.attrs, e.strings, "Attr0", EqEqual, int64(10))
	require.NoError(t, err)
	expensive, err := NewSetPredicate(e.attrs, e.strings, "Attr1", SetIn, []int64{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	require.NoError(t, e.AddRule(context.Background(), "S1", And(Value(cheap), Value(expensive))))

	// Attr1 deliberately left Undefined, so the expensive child can only
	// resolve to Undefined; with a False cheap child the AND resolves to
	// False whether or not that child is evaluated, and nothing matches.
	event, err := e.MakeEvent().WithInt("Attr0", 999).Build()
	require.NoError(t, err)
	require.Empty(t, e.Match(event))
}

func TestMatcherDeterministicAcrossRepeatedCalls(t *testing.T) {
	e, err := NewEngine[string](seedSchema())
	require.NoError(t, err)

	p0, err := NewEqualityPredicate(e.attrs, e.strings, "Attr0", EqEqual, int64(10))
	require.NoError(t, err)
	p1, err := NewEqualityPredicate(e.attrs, e.strings, "Attr1", EqEqual, int64(20))
	require.NoError(t, err)
	require.NoError(t, e.AddRule(context.Background(), "S1", And(Value(p0), Value(p1))))

	event, err := e.MakeEvent().WithInt("Attr0", 10).WithInt("Attr1", 20).Build()
	require.NoError(t, err)

	first := e.Match(event)
	second := e.Match(event)
	require.ElementsMatch(t, first, second)
}

func TestMatchSetMonotonicUnderInsertion(t *testing.T) {
	e, err := NewEngine[string](seedSchema())
	require.NoError(t, err)

	p0, err := NewEqualityPredicate(e.attrs, e.strings, "Attr0", EqEqual, int64(10))
	require.NoError(t, err)
	require.NoError(t, e.AddRule(context.Background(), "S1", Value(p0)))

	event, err := e.MakeEvent().WithInt("Attr0", 10).Build()
	require.NoError(t, err)
	require.Contains(t, e.Match(event), "S1")

	p1, err := NewEqualityPredicate(e.attrs, e.strings, "Attr1", EqEqual, int64(20))
	require.NoError(t, err)
	require.NoError(t, e.AddRule(context.Background(), "S2", Value(p1)))

	require.Contains(t, e.Match(event), "S1", "adding S2 must not unmatch S1")
}

func TestEngineMatchManyFansOutAcrossShards(t *testing.T) {
	shardA, err := NewEngine[string](seedSchema())
	require.NoError(t, err)
	shardB, err := NewEngine[string](seedSchema())
	require.NoError(t, err)

	pa, err := NewEqualityPredicate(shardA.attrs, shardA.strings, "Attr0", EqEqual, int64(10))
	require.NoError(t, err)
	require.NoError(t, shardA.AddRule(context.Background(), "fromA", Value(pa)))

	pb, err := NewEqualityPredicate(shardB.attrs, shardB.strings, "Attr0", EqEqual, int64(10))
	require.NoError(t, err)
	require.NoError(t, shardB.AddRule(context.Background(), "fromB", Value(pb)))

	event, err := shardA.MakeEvent().WithInt("Attr0", 10).Build()
	require.NoError(t, err)

	matches, err := shardA.MatchMany(context.Background(), []*Engine[string]{shardA, shardB}, event)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"fromA", "fromB"}, matches)
}

func TestEngineAddRuleRejectsNilExpression(t *testing.T) {
	e, err := NewEngine[string](seedSchema())
	require.NoError(t, err)
	err = e.AddRule(context.Background(), "S1", nil)
	require.Error(t, err)
	var invalid *InvalidExpression
	require.ErrorAs(t, err, &invalid)
}
