package atree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustPredicate(t *testing.T, attrs *AttributeTable, strings *StringTable, name string, v int64) *Predicate {
	p, err := NewEqualityPredicate(attrs, strings, name, EqEqual, v)
	require.NoError(t, err)
	return p
}

func TestOptimizeDoubleNegationElimination(t *testing.T) {
	attrs, strings := testSchema(t)
	x := Value(mustPredicate(t, attrs, strings, "attr0", 1))
	y := Value(mustPredicate(t, attrs, strings, "attr1", 2))
	e := And(x, y)

	plain, err := optimize(e)
	require.NoError(t, err)
	doubled, err := optimize(Not(Not(e)))
	require.NoError(t, err)
	require.Equal(t, plain.id, doubled.id)
}

func TestOptimizeDeMorgan(t *testing.T) {
	attrs, strings := testSchema(t)
	x := Value(mustPredicate(t, attrs, strings, "attr0", 1))
	y := Value(mustPredicate(t, attrs, strings, "attr1", 2))

	left, err := optimize(Not(And(x, y)))
	require.NoError(t, err)
	right, err := optimize(Or(Not(x), Not(y)))
	require.NoError(t, err)
	require.Equal(t, left.id, right.id, "De Morgan forms must collapse to the same id")
}

func TestOptimizeCommutativeIDs(t *testing.T) {
	attrs, strings := testSchema(t)
	x := Value(mustPredicate(t, attrs, strings, "attr0", 1))
	y := Value(mustPredicate(t, attrs, strings, "attr1", 2))

	ab, err := optimize(And(x, y))
	require.NoError(t, err)
	ba, err := optimize(And(y, x))
	require.NoError(t, err)
	require.Equal(t, ab.id, ba.id)

	orAB, err := optimize(Or(x, y))
	require.NoError(t, err)
	orBA, err := optimize(Or(y, x))
	require.NoError(t, err)
	require.Equal(t, orAB.id, orBA.id)
}

func TestOptimizeChildrenOrderedByCost(t *testing.T) {
	attrs, strings := testSchema(t)
	cheap := Value(mustPredicate(t, attrs, strings, "attr0", 1))
	setPred, err := NewSetPredicate(attrs, strings, "attr1", SetIn, []int64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	expensive := Value(setPred)

	opt, err := optimize(And(expensive, cheap))
	require.NoError(t, err)
	require.LessOrEqual(t, opt.left.cost, opt.right.cost)
}

func TestOptimizeRejectsNilSubtree(t *testing.T) {
	_, err := optimize(And(nil, nil))
	require.Error(t, err)
}
