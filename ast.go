package atree

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Operator is the binary boolean operator carried by And/Or nodes, both in
// the raw ExprTree and in the canonicalized OptimizedNode form.
type Operator uint8

const (
	OpAnd Operator = iota
	OpOr
)

// Salts distinguishing And/Or when combining child ids into a node id.
// Arbitrary but fixed 64-bit constants — spec §4.2 requires only that they
// be distinct and stable across runs, never process-randomized.
const (
	andSalt uint64 = 0x9E3779B97F4A7C15
	orSalt  uint64 = 0xC2B2AE3D27D4EB4F
)

// ExprTree is the raw, caller-supplied expression tree handed to AddRule
// (spec §6): And/Or/Not/Value nodes, Not still present. It is a closed
// variant set; kind selects which fields are meaningful: a and b for
// And/Or, not for Not, pred for Value.
type ExprTree struct {
	kind treeKind
	a, b *ExprTree
	not  *ExprTree
	pred *Predicate
}

type treeKind uint8

const (
	treeAnd treeKind = iota
	treeOr
	treeNot
	treeValue
)

// And, Or, Not and Value build ExprTree nodes.
func And(a, b *ExprTree) *ExprTree   { return &ExprTree{kind: treeAnd, a: a, b: b} }
func Or(a, b *ExprTree) *ExprTree    { return &ExprTree{kind: treeOr, a: a, b: b} }
func Not(x *ExprTree) *ExprTree      { return &ExprTree{kind: treeNot, not: x} }
func Value(p *Predicate) *ExprTree   { return &ExprTree{kind: treeValue, pred: p} }

// optimizedNode is the rewriter's output: a NOT-free, canonically-ordered
// expression tree with a stable content-hash id and a static cost,
// described in spec §3/§4.2.
type optimizedNode struct {
	kind  treeKind // treeAnd, treeOr or treeValue
	left  *optimizedNode
	right *optimizedNode
	pred  *Predicate

	id   uint64
	cost uint64
}

// optimize runs the zero-suppression filter (spec §4.2): it threads a
// negate flag downward, pushing Not to the leaves via De Morgan's laws and
// eliminating double negation, then canonicalizes each binary node's
// children by (cost, id).
func optimize(t *ExprTree) (*optimizedNode, error) {
	return rewrite(t, false)
}

func rewrite(t *ExprTree, negate bool) (*optimizedNode, error) {
	if t == nil {
		return nil, &InvalidExpression{Reason: "nil subtree"}
	}
	switch t.kind {
	case treeNot:
		return rewrite(t.not, !negate)
	case treeAnd:
		left, err := rewrite(t.a, negate)
		if err != nil {
			return nil, err
		}
		right, err := rewrite(t.b, negate)
		if err != nil {
			return nil, err
		}
		if negate {
			return makeBinary(treeOr, left, right), nil
		}
		return makeBinary(treeAnd, left, right), nil
	case treeOr:
		left, err := rewrite(t.a, negate)
		if err != nil {
			return nil, err
		}
		right, err := rewrite(t.b, negate)
		if err != nil {
			return nil, err
		}
		if negate {
			return makeBinary(treeAnd, left, right), nil
		}
		return makeBinary(treeOr, left, right), nil
	case treeValue:
		if t.pred == nil {
			return nil, &InvalidExpression{Reason: "nil predicate"}
		}
		p := t.pred
		if negate {
			p = p.Negate()
		}
		return &optimizedNode{kind: treeValue, pred: p, id: p.ID(), cost: p.Cost()}, nil
	default:
		return nil, &InvalidExpression{Reason: "unknown node kind"}
	}
}

// makeBinary builds a canonically-ordered And/Or node: children are
// ordered by ascending cost, then by ascending id as a deterministic
// tie-break, so that two structurally equivalent expressions (up to
// commutativity) always produce the same node (spec §4.2).
func makeBinary(kind treeKind, a, b *optimizedNode) *optimizedNode {
	if lessChild(b, a) {
		a, b = b, a
	}
	salt := andSalt
	if kind == treeOr {
		salt = orSalt
	}
	return &optimizedNode{
		kind:  kind,
		left:  a,
		right: b,
		id:    combineIDs(a.id, b.id, salt),
		cost:  a.cost + b.cost + binaryOverhead(kind),
	}
}

func binaryOverhead(kind treeKind) uint64 {
	if kind == treeAnd {
		return 50
	}
	return 60
}

func lessChild(x, y *optimizedNode) bool {
	if x.cost != y.cost {
		return x.cost < y.cost
	}
	return x.id < y.id
}

// combineIDs hashes two already-ordered child ids together with an
// operator salt. The function itself is not commutative; makeBinary always
// passes the children in canonical (cost, id) order, which is what makes
// id(And(a,b)) == id(And(b,a)) (spec §8).
func combineIDs(a, b, salt uint64) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], a)
	binary.LittleEndian.PutUint64(buf[8:16], b)
	binary.LittleEndian.PutUint64(buf[16:24], salt)
	return xxhash.Sum64(buf[:])
}
