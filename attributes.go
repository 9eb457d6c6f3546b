package atree

// AttributeId is a dense integer assigned in schema-registration order. It
// is stable for the life of an Engine.
type AttributeId int

// AttributeKind is the closed set of value shapes an attribute can carry.
// Undefined is never a valid kind for a schema registration; it is only
// ever the kind of a value read back for an attribute an event omits.
type AttributeKind uint8

const (
	KindUndefined AttributeKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBoolList
	KindIntList
	KindFloatList
	KindStringList
)

func (k AttributeKind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindBoolList:
		return "BoolList"
	case KindIntList:
		return "IntList"
	case KindFloatList:
		return "FloatList"
	case KindStringList:
		return "StringList"
	default:
		return "Undefined"
	}
}

// IsList reports whether values of this kind carry a list.
func (k AttributeKind) IsList() bool {
	switch k {
	case KindBoolList, KindIntList, KindFloatList, KindStringList:
		return true
	default:
		return false
	}
}

// AttributeDef names one schema slot.
type AttributeDef struct {
	Name string
	Kind AttributeKind
}

// Constructors mirroring the original's AttributeDefinition factory
// functions (events.rs), kept as the ergonomic way to build a schema.

func BoolAttr(name string) AttributeDef       { return AttributeDef{Name: name, Kind: KindBool} }
func IntAttr(name string) AttributeDef        { return AttributeDef{Name: name, Kind: KindInt} }
func FloatAttr(name string) AttributeDef      { return AttributeDef{Name: name, Kind: KindFloat} }
func StringAttr(name string) AttributeDef     { return AttributeDef{Name: name, Kind: KindString} }
func BoolListAttr(name string) AttributeDef   { return AttributeDef{Name: name, Kind: KindBoolList} }
func IntListAttr(name string) AttributeDef    { return AttributeDef{Name: name, Kind: KindIntList} }
func FloatListAttr(name string) AttributeDef  { return AttributeDef{Name: name, Kind: KindFloatList} }
func StringListAttr(name string) AttributeDef { return AttributeDef{Name: name, Kind: KindStringList} }

// AttributeTable is the frozen (name -> id, kind) registry. It is built once
// at NewEngine time and never mutated afterwards (spec §5: "constructed once
// and frozen; no synchronization after construction").
type AttributeTable struct {
	byName map[string]AttributeId
	byID   []AttributeDef
}

// NewAttributeTable registers every definition in order, assigning dense
// ids starting at 0. Duplicate names fail the whole construction.
func NewAttributeTable(defs []AttributeDef) (*AttributeTable, error) {
	t := &AttributeTable{
		byName: make(map[string]AttributeId, len(defs)),
		byID:   make([]AttributeDef, 0, len(defs)),
	}
	for _, d := range defs {
		if _, exists := t.byName[d.Name]; exists {
			return nil, &DuplicateAttribute{Name: d.Name}
		}
		t.byName[d.Name] = AttributeId(len(t.byID))
		t.byID = append(t.byID, d)
	}
	return t, nil
}

// GetByName returns the id and kind registered under name, or false.
func (t *AttributeTable) GetByName(name string) (AttributeId, AttributeKind, bool) {
	id, ok := t.byName[name]
	if !ok {
		return 0, KindUndefined, false
	}
	return id, t.byID[id].Kind, true
}

// GetByID returns the definition registered at id. Panics on out-of-range
// id, matching the original's indexing behavior — an out-of-range
// AttributeId can only come from a bug in this package, not from caller
// input (callers only ever obtain ids through GetByName).
func (t *AttributeTable) GetByID(id AttributeId) AttributeDef {
	return t.byID[id]
}

// Count returns the number of registered attributes.
func (t *AttributeTable) Count() int {
	return len(t.byID)
}
