package atree

import "fmt"

// DuplicateAttribute is returned by NewEngine when two AttributeDefs share a
// name.
type DuplicateAttribute struct {
	Name string
}

func (e *DuplicateAttribute) Error() string {
	return fmt.Sprintf("atree: duplicate attribute %q", e.Name)
}

// UnknownAttribute is returned when a predicate or event value names an
// attribute that was never registered with the schema.
type UnknownAttribute struct {
	Name string
}

func (e *UnknownAttribute) Error() string {
	return fmt.Sprintf("atree: unknown attribute %q", e.Name)
}

// SchemaMismatch is returned when a PredicateKind is constructed against an
// attribute whose AttributeKind does not appear in its validity table (see
// spec §3).
type SchemaMismatch struct {
	Attribute     string
	ExpectedKinds []AttributeKind
	Actual        AttributeKind
}

func (e *SchemaMismatch) Error() string {
	return fmt.Sprintf("atree: attribute %q has kind %s, predicate requires one of %v", e.Attribute, e.Actual, e.ExpectedKinds)
}

// InvalidExpression is returned by AddRule when the supplied ExprTree is nil
// or otherwise structurally degenerate.
type InvalidExpression struct {
	Reason string
}

func (e *InvalidExpression) Error() string {
	return fmt.Sprintf("atree: invalid expression: %s", e.Reason)
}

// AttributeKindMismatch is returned by EventBuilder setters when the value
// supplied does not match the attribute's declared kind. Not part of
// spec.md's §7 taxonomy verbatim, but the same shape as the original
// implementation's EventError::WrongType (see DESIGN.md).
type AttributeKindMismatch struct {
	Attribute string
	Expected  AttributeKind
	Actual    AttributeKind
}

func (e *AttributeKindMismatch) Error() string {
	return fmt.Sprintf("atree: attribute %q expects %s, got %s", e.Attribute, e.Expected, e.Actual)
}
