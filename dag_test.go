package atree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func seedSchema() []AttributeDef {
	defs := make([]AttributeDef, 0, 10)
	for i := 0; i < 9; i++ {
		defs = append(defs, IntAttr(attrName(i)))
	}
	defs = append(defs, StringAttr("StringAttr"))
	return defs
}

func attrName(i int) string {
	return [...]string{"Attr0", "Attr1", "Attr2", "Attr3", "Attr4", "Attr5", "Attr6", "Attr7", "Attr8"}[i]
}

func TestDAGSimpleAND(t *testing.T) {
	e, err := NewEngine[string](seedSchema())
	require.NoError(t, err)

	p0, err := NewEqualityPredicate(e.attrs, e.strings, "Attr0", EqEqual, int64(10))
	require.NoError(t, err)
	p1, err := NewEqualityPredicate(e.attrs, e.strings, "Attr1", EqEqual, int64(20))
	require.NoError(t, err)
	s1 := And(Value(p0), Value(p1))

	require.NoError(t, e.AddRule(context.Background(), "S1", s1))

	matchEvent, err := e.MakeEvent().WithInt("Attr0", 10).WithInt("Attr1", 20).Build()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"S1"}, e.Match(matchEvent))

	partialEvent, err := e.MakeEvent().WithInt("Attr0", 10).Build()
	require.NoError(t, err)
	require.Empty(t, e.Match(partialEvent))
}

func TestDAGSharing(t *testing.T) {
	e, err := NewEngine[string](seedSchema())
	require.NoError(t, err)

	p0, err := NewEqualityPredicate(e.attrs, e.strings, "Attr0", EqEqual, int64(10))
	require.NoError(t, err)
	p1, err := NewEqualityPredicate(e.attrs, e.strings, "Attr1", EqEqual, int64(20))
	require.NoError(t, err)
	p2, err := NewEqualityPredicate(e.attrs, e.strings, "Attr2", EqEqual, int64(30))
	require.NoError(t, err)

	require.NoError(t, e.AddRule(context.Background(), "S1", And(Value(p0), Value(p1))))
	require.NoError(t, e.AddRule(context.Background(), "S2", And(Value(p0), Value(p2))))

	leaves := 0
	for _, entry := range e.dag.pool {
		if entry.live && entry.kind == nodeLeaf {
			leaves++
		}
	}
	require.Equal(t, 3, leaves, "Attr0=10 must be a single shared leaf")

	event, err := e.MakeEvent().WithInt("Attr0", 10).WithInt("Attr1", 20).WithInt("Attr2", 30).Build()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"S1", "S2"}, e.Match(event))
}

func TestDAGOr(t *testing.T) {
	e, err := NewEngine[string](seedSchema())
	require.NoError(t, err)

	p3, err := NewEqualityPredicate(e.attrs, e.strings, "Attr3", EqEqual, int64(40))
	require.NoError(t, err)
	p4, err := NewEqualityPredicate(e.attrs, e.strings, "Attr4", EqEqual, int64(50))
	require.NoError(t, err)
	require.NoError(t, e.AddRule(context.Background(), "S3", Or(Value(p3), Value(p4))))

	onlyP4, err := e.MakeEvent().WithInt("Attr4", 50).Build()
	require.NoError(t, err)
	require.Equal(t, []string{"S3"}, e.Match(onlyP4))

	both, err := e.MakeEvent().WithInt("Attr3", 40).WithInt("Attr4", 50).Build()
	require.NoError(t, err)
	require.Equal(t, []string{"S3"}, e.Match(both), "no duplicate match for the same subscription")
}

func TestDAGNested(t *testing.T) {
	e, err := NewEngine[string](seedSchema())
	require.NoError(t, err)

	p5, err := NewEqualityPredicate(e.attrs, e.strings, "Attr5", EqEqual, int64(60))
	require.NoError(t, err)
	p6, err := NewEqualityPredicate(e.attrs, e.strings, "Attr6", EqEqual, int64(70))
	require.NoError(t, err)
	p7, err := NewEqualityPredicate(e.attrs, e.strings, "Attr7", EqEqual, int64(80))
	require.NoError(t, err)
	s4 := And(Value(p5), Or(Value(p6), Value(p7)))
	require.NoError(t, e.AddRule(context.Background(), "S4", s4))

	hit, err := e.MakeEvent().WithInt("Attr5", 60).WithInt("Attr7", 80).Build()
	require.NoError(t, err)
	require.Equal(t, []string{"S4"}, e.Match(hit))

	miss, err := e.MakeEvent().WithInt("Attr5", 60).Build()
	require.NoError(t, err)
	require.Empty(t, e.Match(miss))
}

func TestDAGSet(t *testing.T) {
	e, err := NewEngine[string](seedSchema())
	require.NoError(t, err)

	set0, err := NewSetPredicate(e.attrs, e.strings, "Attr0", SetIn, []int64{100, 110, 120})
	require.NoError(t, err)
	set1, err := NewSetPredicate(e.attrs, e.strings, "Attr1", SetIn, []int64{200, 210, 220})
	require.NoError(t, err)
	require.NoError(t, e.AddRule(context.Background(), "S6", And(Value(set0), Value(set1))))

	hit, err := e.MakeEvent().WithInt("Attr0", 110).WithInt("Attr1", 220).Build()
	require.NoError(t, err)
	require.Equal(t, []string{"S6"}, e.Match(hit))

	miss, err := e.MakeEvent().WithInt("Attr0", 100).WithInt("Attr1", 999).Build()
	require.NoError(t, err)
	require.Empty(t, e.Match(miss))
}

func TestDAGRemovalIdempotence(t *testing.T) {
	e, err := NewEngine[string](seedSchema())
	require.NoError(t, err)

	p0, err := NewEqualityPredicate(e.attrs, e.strings, "Attr0", EqEqual, int64(10))
	require.NoError(t, err)
	p1, err := NewEqualityPredicate(e.attrs, e.strings, "Attr1", EqEqual, int64(20))
	require.NoError(t, err)
	p2, err := NewEqualityPredicate(e.attrs, e.strings, "Attr2", EqEqual, int64(30))
	require.NoError(t, err)

	require.NoError(t, e.AddRule(context.Background(), "S1", And(Value(p0), Value(p1))))
	require.NoError(t, e.AddRule(context.Background(), "S2", And(Value(p0), Value(p2))))
	e.RemoveRule("S1")

	live := 0
	for _, entry := range e.dag.pool {
		if entry.live {
			live++
		}
	}
	require.Equal(t, 3, live, "only S2's AND node plus its two leaves should remain")

	event, err := e.MakeEvent().WithInt("Attr0", 10).WithInt("Attr1", 20).Build()
	require.NoError(t, err)
	require.Empty(t, e.Match(event))

	// Removing an unknown subscription is a no-op.
	e.RemoveRule("never-added")
}

func TestDAGInvariantsHoldAfterChurn(t *testing.T) {
	e, err := NewEngine[string](seedSchema())
	require.NoError(t, err)

	p0, err := NewEqualityPredicate(e.attrs, e.strings, "Attr0", EqEqual, int64(10))
	require.NoError(t, err)
	p1, err := NewEqualityPredicate(e.attrs, e.strings, "Attr1", EqEqual, int64(20))
	require.NoError(t, err)

	require.NoError(t, e.AddRule(context.Background(), "S1", And(Value(p0), Value(p1))))
	require.NoError(t, e.AddRule(context.Background(), "S2", Or(Value(p0), Value(p1))))
	e.RemoveRule("S1")
	require.NoError(t, e.AddRule(context.Background(), "S3", And(Value(p1), Value(p0))))

	require.NoError(t, e.CheckInvariants())
}
