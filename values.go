package atree

import "sort"

// AttributeValue is a tagged union over the kinds in AttributeKind. The
// zero value is the Undefined value returned for an attribute an event
// omits (spec §3).
type AttributeValue struct {
	Kind AttributeKind

	Bool  bool
	Int   int64
	Float float64
	Str   StringRef

	BoolList   []bool
	IntList    []int64
	FloatList  []float64
	StringList []StringRef
}

// Len returns the list's length, or 0 for a non-list or Undefined value.
func (v AttributeValue) Len() int {
	switch v.Kind {
	case KindBoolList:
		return len(v.BoolList)
	case KindIntList:
		return len(v.IntList)
	case KindFloatList:
		return len(v.FloatList)
	case KindStringList:
		return len(v.StringList)
	default:
		return 0
	}
}

// UndefinedValue is the canonical Undefined AttributeValue.
var UndefinedValue = AttributeValue{Kind: KindUndefined}

// Event is an immutable array of AttributeValue indexed by AttributeId;
// missing entries read back as Undefined.
type Event struct {
	values []AttributeValue
}

// Get returns the value stored for id, or Undefined if id is out of range
// for this event (an event built against a smaller or different schema).
func (e *Event) Get(id AttributeId) AttributeValue {
	if int(id) < 0 || int(id) >= len(e.values) {
		return UndefinedValue
	}
	return e.values[id]
}

// EventBuilder accumulates attribute values against a frozen schema. Kind
// mismatches and unknown names are recorded and surfaced by Build, so that
// With<Kind> calls can be chained the way spec §6 describes
// ("with_<kind>(name, value) setters returning the builder for chaining").
type EventBuilder struct {
	attrs   *AttributeTable
	strings *StringTable
	values  []AttributeValue
	err     error
}

func newEventBuilder(attrs *AttributeTable, strings *StringTable) *EventBuilder {
	values := make([]AttributeValue, attrs.Count())
	for i := range values {
		values[i] = UndefinedValue
	}
	return &EventBuilder{attrs: attrs, strings: strings, values: values}
}

func (b *EventBuilder) set(name string, kind AttributeKind, v AttributeValue) *EventBuilder {
	if b.err != nil {
		return b
	}
	id, actual, ok := b.attrs.GetByName(name)
	if !ok {
		b.err = &UnknownAttribute{Name: name}
		return b
	}
	if actual != kind {
		b.err = &AttributeKindMismatch{Attribute: name, Expected: actual, Actual: kind}
		return b
	}
	b.values[id] = v
	return b
}

func (b *EventBuilder) WithBool(name string, value bool) *EventBuilder {
	return b.set(name, KindBool, AttributeValue{Kind: KindBool, Bool: value})
}

func (b *EventBuilder) WithInt(name string, value int64) *EventBuilder {
	return b.set(name, KindInt, AttributeValue{Kind: KindInt, Int: value})
}

func (b *EventBuilder) WithFloat(name string, value float64) *EventBuilder {
	return b.set(name, KindFloat, AttributeValue{Kind: KindFloat, Float: value})
}

func (b *EventBuilder) WithString(name string, value string) *EventBuilder {
	ref := b.strings.Intern(value)
	return b.set(name, KindString, AttributeValue{Kind: KindString, Str: ref})
}

func (b *EventBuilder) WithBoolList(name string, values []bool) *EventBuilder {
	cp := append([]bool(nil), values...)
	return b.set(name, KindBoolList, AttributeValue{Kind: KindBoolList, BoolList: cp})
}

func (b *EventBuilder) WithIntList(name string, values []int64) *EventBuilder {
	cp := append([]int64(nil), values...)
	return b.set(name, KindIntList, AttributeValue{Kind: KindIntList, IntList: cp})
}

func (b *EventBuilder) WithFloatList(name string, values []float64) *EventBuilder {
	cp := append([]float64(nil), values...)
	return b.set(name, KindFloatList, AttributeValue{Kind: KindFloatList, FloatList: cp})
}

func (b *EventBuilder) WithStringList(name string, values []string) *EventBuilder {
	refs := make([]StringRef, len(values))
	for i, s := range values {
		refs[i] = b.strings.Intern(s)
	}
	return b.set(name, KindStringList, AttributeValue{Kind: KindStringList, StringList: refs})
}

// Build produces the immutable Event, or the first error recorded by a
// With<Kind> call.
func (b *EventBuilder) Build() (*Event, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &Event{values: b.values}, nil
}

// sortedUniqueInt64 returns a sorted, duplicate-free copy of vs.
func sortedUniqueInt64(vs []int64) []int64 {
	cp := append([]int64(nil), vs...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	return dedupSortedInt64(cp)
}

func dedupSortedInt64(vs []int64) []int64 {
	if len(vs) == 0 {
		return vs
	}
	out := vs[:1]
	for _, v := range vs[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// sortedUniqueStringRef returns a sorted, duplicate-free copy of vs.
func sortedUniqueStringRef(vs []StringRef) []StringRef {
	cp := append([]StringRef(nil), vs...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	return dedupSortedStringRef(cp)
}

func dedupSortedStringRef(vs []StringRef) []StringRef {
	if len(vs) == 0 {
		return vs
	}
	out := vs[:1]
	for _, v := range vs[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
