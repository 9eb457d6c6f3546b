package atree

import (
	"fmt"
	"sort"
	gostrings "strings"
)

// ToGraphviz renders the live DAG as a Graphviz "dot" source string, for
// visual debugging of structural sharing (spec §6: "engine.to_graphviz() ->
// string"). Node labels carry enough of the predicate to be legible without
// needing to cross-reference the schema: attribute name, variant operator,
// and (for scalar variants) the literal operand.
func (e *Engine[T]) ToGraphviz() string {
	return toGraphviz(e.dag, e.strings)
}

func toGraphviz[T comparable](d *dagStore[T], st *StringTable) string {
	var b gostrings.Builder
	b.WriteString("digraph atree {\n")
	b.WriteString("  rankdir=BT;\n  node [shape=box, fontname=\"monospace\"];\n")

	idxs := make([]int, 0, len(d.pool))
	for idx := range d.pool {
		if d.pool[idx].live {
			idxs = append(idxs, idx)
		}
	}
	sort.Ints(idxs)

	for _, idx := range idxs {
		entry := &d.pool[idx]
		label, shape := nodeLabel(entry, st)
		extra := ""
		if entry.isRoot {
			extra = fmt.Sprintf(", peripheries=2, xlabel=\"subs=%d\"", len(entry.subs))
		}
		fmt.Fprintf(&b, "  n%d [label=%q, shape=%s%s];\n", idx, label, shape, extra)
	}
	for _, idx := range idxs {
		entry := &d.pool[idx]
		if entry.kind == nodeLeaf {
			continue
		}
		fmt.Fprintf(&b, "  n%d -> n%d;\n", entry.children[0], idx)
		fmt.Fprintf(&b, "  n%d -> n%d;\n", entry.children[1], idx)
	}
	b.WriteString("}\n")
	return b.String()
}

func nodeLabel[T comparable](e *dagEntry[T], st *StringTable) (string, string) {
	if e.kind == nodeLeaf {
		return predicateLabel(e.pred, st), "ellipse"
	}
	op := "AND"
	if e.op == OpOr {
		op = "OR"
	}
	return fmt.Sprintf("%s\\ncost=%d level=%d", op, e.cost, e.level), "box"
}

// predicateLabel renders a short human-readable form of p for diagnostics.
// It is intentionally lossy (no guarantee of round-tripping) — its only job
// is to make a graphviz dump legible.
func predicateLabel(p *Predicate, st *StringTable) string {
	switch p.variant {
	case pVariable:
		return p.attributeName
	case pNegatedVariable:
		return "!" + p.attributeName
	case pEquality:
		op := "=="
		if p.eqOp == EqNotEqual {
			op = "!="
		}
		return fmt.Sprintf("%s %s %s", p.attributeName, op, scalarLiteralLabel(p.eqLit, st))
	case pComparison:
		op := map[ComparisonOp]string{CmpLT: "<", CmpLTE: "<=", CmpGT: ">", CmpGTE: ">="}[p.cmpOp]
		return fmt.Sprintf("%s %s %s", p.attributeName, op, scalarLiteralLabel(p.cmpLit, st))
	case pSet:
		op := "in"
		if p.setOp == SetNotIn {
			op = "not in"
		}
		return fmt.Sprintf("%s %s {...}", p.attributeName, op)
	case pList:
		names := map[ListOp]string{ListOneOf: "one_of", ListNoneOf: "none_of", ListAllOf: "all_of", ListNotAllOf: "not_all_of"}
		return fmt.Sprintf("%s %s([...])", p.attributeName, names[p.listOp])
	case pNull:
		names := map[NullOp]string{NullIsNull: "is_null", NullIsNotNull: "is_not_null", NullIsEmpty: "is_empty", NullIsNotEmpty: "is_not_empty"}
		return fmt.Sprintf("%s.%s()", p.attributeName, names[p.nullOp])
	default:
		return p.attributeName
	}
}

func scalarLiteralLabel(lit scalarLiteral, st *StringTable) string {
	switch lit.kind {
	case KindBool:
		return fmt.Sprintf("%v", lit.bool_)
	case KindInt:
		return fmt.Sprintf("%d", lit.int_)
	case KindFloat:
		return fmt.Sprintf("%g", lit.float_)
	case KindString:
		if s, ok := st.Lookup(lit.str); ok {
			return fmt.Sprintf("%q", s)
		}
		return "<interned>"
	default:
		return "?"
	}
}
