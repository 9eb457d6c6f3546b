package atree

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// TriBool is the tri-state result of evaluating a predicate against an
// event: an attribute the event omits yields Undefined rather than failing,
// so that And/Or combinators can propagate "don't know" instead of
// guessing (spec §4.1/§4.4).
type TriBool uint8

const (
	Undefined TriBool = iota
	False
	True
)

// Not flips True/False and leaves Undefined as-is. It is not the same
// operation as Predicate.Negate, which rewrites the predicate itself;
// predicate evaluation and the rewriter do not call it.
func (t TriBool) Not() TriBool {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Undefined
	}
}

func triFromBool(b bool) TriBool {
	if b {
		return True
	}
	return False
}

type predicateVariant uint8

const (
	pVariable predicateVariant = iota
	pNegatedVariable
	pEquality
	pComparison
	pSet
	pList
	pNull
)

type EqualityOp uint8

const (
	EqEqual EqualityOp = iota
	EqNotEqual
)

type ComparisonOp uint8

const (
	CmpLT ComparisonOp = iota
	CmpLTE
	CmpGT
	CmpGTE
)

type SetOp uint8

const (
	SetIn SetOp = iota
	SetNotIn
)

type ListOp uint8

const (
	ListOneOf ListOp = iota
	ListNoneOf
	ListAllOf
	ListNotAllOf
)

type NullOp uint8

const (
	NullIsNull NullOp = iota
	NullIsNotNull
	NullIsEmpty
	NullIsNotEmpty
)

// scalarLiteral carries an Equality/Comparison operand: Bool, Int, Float or
// an interned String.
type scalarLiteral struct {
	kind  AttributeKind
	bool_ bool
	int_  int64
	float_ float64
	str   StringRef
}

// Predicate is the closed leaf test described in spec §3: one attribute,
// one PredicateKind variant, a lazily computed content-hash id and cost.
// Construction validates the (variant, AttributeKind) pairing from §3's
// table and fails with SchemaMismatch otherwise.
type Predicate struct {
	attribute     AttributeId
	attributeName string
	attributeKind AttributeKind
	variant       predicateVariant

	eqOp  EqualityOp
	eqLit scalarLiteral

	cmpOp  ComparisonOp
	cmpLit scalarLiteral

	setOp SetOp
	setHaystackInts []int64    // sorted, deduped
	setHaystackStrs []StringRef // sorted, deduped

	listOp           ListOp
	listProbeBools   []bool
	listProbeInts    []int64
	listProbeFloats  []float64
	listProbeStrs    []StringRef

	nullOp NullOp

	idCached   uint64
	idIsCached bool
	costCached uint64
}

func lookupAttr(attrs *AttributeTable, name string) (AttributeId, AttributeKind, error) {
	id, kind, ok := attrs.GetByName(name)
	if !ok {
		return 0, KindUndefined, &UnknownAttribute{Name: name}
	}
	return id, kind, nil
}

func schemaMismatch(name string, actual AttributeKind, expected ...AttributeKind) error {
	return &SchemaMismatch{Attribute: name, ExpectedKinds: expected, Actual: actual}
}

// NewVariablePredicate builds a Variable predicate: true iff the Bool
// attribute's value is true.
func NewVariablePredicate(attrs *AttributeTable, name string) (*Predicate, error) {
	id, kind, err := lookupAttr(attrs, name)
	if err != nil {
		return nil, err
	}
	if kind != KindBool {
		return nil, schemaMismatch(name, kind, KindBool)
	}
	return &Predicate{attribute: id, attributeName: name, attributeKind: kind, variant: pVariable}, nil
}

// NewNegatedVariablePredicate builds a NegatedVariable predicate: true iff
// the Bool attribute's value is false.
func NewNegatedVariablePredicate(attrs *AttributeTable, name string) (*Predicate, error) {
	id, kind, err := lookupAttr(attrs, name)
	if err != nil {
		return nil, err
	}
	if kind != KindBool {
		return nil, schemaMismatch(name, kind, KindBool)
	}
	return &Predicate{attribute: id, attributeName: name, attributeKind: kind, variant: pNegatedVariable}, nil
}

func scalarLiteralFromAny(kind AttributeKind, value any, strings *StringTable) scalarLiteral {
	switch kind {
	case KindBool:
		return scalarLiteral{kind: kind, bool_: value.(bool)}
	case KindInt:
		return scalarLiteral{kind: kind, int_: value.(int64)}
	case KindFloat:
		return scalarLiteral{kind: kind, float_: value.(float64)}
	case KindString:
		return scalarLiteral{kind: kind, str: strings.Intern(value.(string))}
	default:
		return scalarLiteral{kind: kind}
	}
}

// NewEqualityPredicate builds an Equality predicate over a Bool, Int,
// Float, or String attribute. value must be bool, int64, float64 or string
// matching the attribute's kind.
func NewEqualityPredicate(attrs *AttributeTable, strings *StringTable, name string, op EqualityOp, value any) (*Predicate, error) {
	id, kind, err := lookupAttr(attrs, name)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindBool, KindInt, KindFloat, KindString:
	default:
		return nil, schemaMismatch(name, kind, KindBool, KindInt, KindFloat, KindString)
	}
	return &Predicate{
		attribute: id, attributeName: name, attributeKind: kind,
		variant: pEquality, eqOp: op, eqLit: scalarLiteralFromAny(kind, value, strings),
	}, nil
}

// NewComparisonPredicate builds a Comparison predicate over an Int or Float
// attribute.
func NewComparisonPredicate(attrs *AttributeTable, name string, op ComparisonOp, value any) (*Predicate, error) {
	id, kind, err := lookupAttr(attrs, name)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindInt, KindFloat:
	default:
		return nil, schemaMismatch(name, kind, KindInt, KindFloat)
	}
	return &Predicate{
		attribute: id, attributeName: name, attributeKind: kind,
		variant: pComparison, cmpOp: op, cmpLit: scalarLiteralFromAny(kind, value, nil),
	}, nil
}

// NewSetPredicate builds a Set predicate: the Int or String attribute's
// scalar value is looked up (by binary search) in a sorted, deduplicated
// literal haystack.
func NewSetPredicate(attrs *AttributeTable, strings *StringTable, name string, op SetOp, haystack any) (*Predicate, error) {
	id, kind, err := lookupAttr(attrs, name)
	if err != nil {
		return nil, err
	}
	p := &Predicate{attribute: id, attributeName: name, attributeKind: kind, variant: pSet, setOp: op}
	switch kind {
	case KindInt:
		ints, ok := haystack.([]int64)
		if !ok {
			return nil, schemaMismatch(name, kind, KindInt)
		}
		p.setHaystackInts = sortedUniqueInt64(ints)
	case KindString:
		strs, ok := haystack.([]string)
		if !ok {
			return nil, schemaMismatch(name, kind, KindString)
		}
		refs := make([]StringRef, len(strs))
		for i, s := range strs {
			refs[i] = strings.Intern(s)
		}
		p.setHaystackStrs = sortedUniqueStringRef(refs)
	default:
		return nil, schemaMismatch(name, kind, KindInt, KindString)
	}
	return p, nil
}

// NewListPredicate builds a List predicate: a probe list compared against
// a list-kind attribute's event value (OneOf/NoneOf/AllOf/NotAllOf).
// Supplemented beyond the original source to cover all four list kinds
// (spec §3 lists BoolList/FloatList alongside IntList/StringList — see
// SPEC_FULL.md).
func NewListPredicate(attrs *AttributeTable, strings *StringTable, name string, op ListOp, probe any) (*Predicate, error) {
	id, kind, err := lookupAttr(attrs, name)
	if err != nil {
		return nil, err
	}
	p := &Predicate{attribute: id, attributeName: name, attributeKind: kind, variant: pList, listOp: op}
	switch kind {
	case KindBoolList:
		bs, ok := probe.([]bool)
		if !ok {
			return nil, schemaMismatch(name, kind, KindBoolList)
		}
		p.listProbeBools = append([]bool(nil), bs...)
	case KindIntList:
		is, ok := probe.([]int64)
		if !ok {
			return nil, schemaMismatch(name, kind, KindIntList)
		}
		p.listProbeInts = sortedUniqueInt64(is)
	case KindFloatList:
		fs, ok := probe.([]float64)
		if !ok {
			return nil, schemaMismatch(name, kind, KindFloatList)
		}
		p.listProbeFloats = append([]float64(nil), fs...)
	case KindStringList:
		ss, ok := probe.([]string)
		if !ok {
			return nil, schemaMismatch(name, kind, KindStringList)
		}
		refs := make([]StringRef, len(ss))
		for i, s := range ss {
			refs[i] = strings.Intern(s)
		}
		p.listProbeStrs = sortedUniqueStringRef(refs)
	default:
		return nil, schemaMismatch(name, kind, KindBoolList, KindIntList, KindFloatList, KindStringList)
	}
	return p, nil
}

// NewNullPredicate builds a Null predicate. IsNull/IsNotNull are valid for
// any attribute kind; IsEmpty/IsNotEmpty require a list kind.
func NewNullPredicate(attrs *AttributeTable, name string, op NullOp) (*Predicate, error) {
	id, kind, err := lookupAttr(attrs, name)
	if err != nil {
		return nil, err
	}
	if (op == NullIsEmpty || op == NullIsNotEmpty) && !kind.IsList() {
		return nil, schemaMismatch(name, kind, KindBoolList, KindIntList, KindFloatList, KindStringList)
	}
	return &Predicate{attribute: id, attributeName: name, attributeKind: kind, variant: pNull, nullOp: op}, nil
}

// AttributeID returns the predicate's attribute.
func (p *Predicate) AttributeID() AttributeId { return p.attribute }

// Evaluate computes the predicate's tri-state result against event.
func (p *Predicate) Evaluate(event *Event) TriBool {
	v := event.Get(p.attribute)

	// Null predicates inspect the raw value even when it is Undefined
	// (spec §4.1): that is the whole point of the variant.
	if p.variant == pNull {
		switch p.nullOp {
		case NullIsNull:
			return triFromBool(v.Kind == KindUndefined)
		case NullIsNotNull:
			return triFromBool(v.Kind != KindUndefined)
		case NullIsEmpty:
			return triFromBool(v.Kind != KindUndefined && v.Len() == 0)
		case NullIsNotEmpty:
			return triFromBool(v.Kind == KindUndefined || v.Len() != 0)
		}
	}

	if v.Kind == KindUndefined {
		return Undefined
	}

	switch p.variant {
	case pVariable:
		return triFromBool(v.Bool)
	case pNegatedVariable:
		return triFromBool(!v.Bool)
	case pEquality:
		eq := scalarEqual(v, p.eqLit)
		if p.eqOp == EqNotEqual {
			eq = !eq
		}
		return triFromBool(eq)
	case pComparison:
		return triFromBool(scalarCompare(v, p.cmpLit, p.cmpOp))
	case pSet:
		return triFromBool(p.evaluateSet(v))
	case pList:
		return triFromBool(p.evaluateList(v))
	default:
		return Undefined
	}
}

func scalarEqual(v AttributeValue, lit scalarLiteral) bool {
	switch v.Kind {
	case KindBool:
		return v.Bool == lit.bool_
	case KindInt:
		return v.Int == lit.int_
	case KindFloat:
		return v.Float == lit.float_
	case KindString:
		return v.Str == lit.str
	default:
		return false
	}
}

func scalarCompare(v AttributeValue, lit scalarLiteral, op ComparisonOp) bool {
	var cmp int
	switch v.Kind {
	case KindInt:
		switch {
		case v.Int < lit.int_:
			cmp = -1
		case v.Int > lit.int_:
			cmp = 1
		}
	case KindFloat:
		switch {
		case v.Float < lit.float_:
			cmp = -1
		case v.Float > lit.float_:
			cmp = 1
		}
	default:
		return false
	}
	switch op {
	case CmpLT:
		return cmp < 0
	case CmpLTE:
		return cmp <= 0
	case CmpGT:
		return cmp > 0
	case CmpGTE:
		return cmp >= 0
	default:
		return false
	}
}

func (p *Predicate) evaluateSet(v AttributeValue) bool {
	var found bool
	switch v.Kind {
	case KindInt:
		found = binarySearchInt64(p.setHaystackInts, v.Int)
	case KindString:
		found = binarySearchStringRef(p.setHaystackStrs, v.Str)
	default:
		return false
	}
	if p.setOp == SetNotIn {
		return !found
	}
	return found
}

func (p *Predicate) evaluateList(v AttributeValue) bool {
	switch p.listOp {
	case ListOneOf:
		return listIntersects(p, v)
	case ListNoneOf:
		return !listIntersects(p, v)
	case ListAllOf:
		return listSubsetOf(p, v)
	case ListNotAllOf:
		return !listSubsetOf(p, v)
	default:
		return false
	}
}

// Negate returns the involutive negation of p: negate(negate(p)) == p, and
// evaluate(negate(p), e) == !evaluate(p, e) whenever evaluate(p, e) is
// defined (spec §4.1/§8).
func (p *Predicate) Negate() *Predicate {
	n := *p
	n.idIsCached = false
	n.costCached = 0
	switch p.variant {
	case pVariable:
		n.variant = pNegatedVariable
	case pNegatedVariable:
		n.variant = pVariable
	case pEquality:
		n.eqOp = flipEquality(p.eqOp)
	case pComparison:
		n.cmpOp = flipComparison(p.cmpOp)
	case pSet:
		n.setOp = flipSet(p.setOp)
	case pList:
		n.listOp = flipList(p.listOp)
	case pNull:
		n.nullOp = flipNull(p.nullOp)
	}
	return &n
}

func flipEquality(op EqualityOp) EqualityOp {
	if op == EqEqual {
		return EqNotEqual
	}
	return EqEqual
}

func flipComparison(op ComparisonOp) ComparisonOp {
	switch op {
	case CmpLT:
		return CmpGTE
	case CmpGTE:
		return CmpLT
	case CmpLTE:
		return CmpGT
	case CmpGT:
		return CmpLTE
	default:
		return op
	}
}

func flipSet(op SetOp) SetOp {
	if op == SetIn {
		return SetNotIn
	}
	return SetIn
}

func flipList(op ListOp) ListOp {
	switch op {
	case ListOneOf:
		return ListNoneOf
	case ListNoneOf:
		return ListOneOf
	case ListAllOf:
		return ListNotAllOf
	case ListNotAllOf:
		return ListAllOf
	default:
		return op
	}
}

func flipNull(op NullOp) NullOp {
	switch op {
	case NullIsNull:
		return NullIsNotNull
	case NullIsNotNull:
		return NullIsNull
	case NullIsEmpty:
		return NullIsNotEmpty
	case NullIsNotEmpty:
		return NullIsEmpty
	default:
		return op
	}
}

// Cost is the static cost estimate from spec §3: 0 for Variable, Equality,
// Comparison and Null; |haystack| for Set; 2*|probe| for List.
func (p *Predicate) Cost() uint64 {
	switch p.variant {
	case pSet:
		return uint64(len(p.setHaystackInts) + len(p.setHaystackStrs))
	case pList:
		return 2 * uint64(len(p.listProbeBools)+len(p.listProbeInts)+len(p.listProbeFloats)+len(p.listProbeStrs))
	default:
		return 0
	}
}

// ID is the stable content-hash identity of p: two predicates with
// structurally equal (attribute, variant, operator, literal) fields always
// produce the same id, computed from canonicalized payload bytes only (no
// pointer addresses, no process-randomized state) per spec §4.2/§9.
func (p *Predicate) ID() uint64 {
	if p.idIsCached {
		return p.idCached
	}
	h := xxhash.New()
	var hdr [10]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(p.attribute))
	hdr[8] = byte(p.variant)
	_, _ = h.Write(hdr[:9])

	switch p.variant {
	case pEquality:
		_, _ = h.Write([]byte{byte(p.eqOp)})
		writeScalarLiteral(h, p.eqLit)
	case pComparison:
		_, _ = h.Write([]byte{byte(p.cmpOp)})
		writeScalarLiteral(h, p.cmpLit)
	case pSet:
		var opb [1]byte
		opb[0] = byte(p.setOp)
		_, _ = h.Write(opb[:])
		for _, v := range p.setHaystackInts {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v))
			_, _ = h.Write(b[:])
		}
		for _, v := range p.setHaystackStrs {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v))
			_, _ = h.Write(b[:])
		}
	case pList:
		var opb [1]byte
		opb[0] = byte(p.listOp)
		_, _ = h.Write(opb[:])
		for _, v := range p.listProbeBools {
			if v {
				_, _ = h.Write([]byte{1})
			} else {
				_, _ = h.Write([]byte{0})
			}
		}
		for _, v := range p.listProbeInts {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v))
			_, _ = h.Write(b[:])
		}
		for _, v := range p.listProbeFloats {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
			_, _ = h.Write(b[:])
		}
		for _, v := range p.listProbeStrs {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v))
			_, _ = h.Write(b[:])
		}
	case pNull:
		_, _ = h.Write([]byte{byte(p.nullOp)})
	}

	p.idCached = h.Sum64()
	p.idIsCached = true
	return p.idCached
}

func writeScalarLiteral(h *xxhash.Digest, lit scalarLiteral) {
	var payload uint64
	switch lit.kind {
	case KindBool:
		if lit.bool_ {
			payload = 1
		}
	case KindInt:
		payload = uint64(lit.int_)
	case KindFloat:
		payload = math.Float64bits(lit.float_)
	case KindString:
		payload = uint64(lit.str)
	}
	var b [9]byte
	b[0] = byte(lit.kind)
	binary.LittleEndian.PutUint64(b[1:9], payload)
	_, _ = h.Write(b[:])
}
