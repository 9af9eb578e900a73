// Package aggregation provides the pipeline compilation core of the talos
// ODM. This file defines the field and field-reference value types used by
// the stage contexts.
package aggregation

// Field is a symbolic field inside a pipeline stage: a name as written by
// the user and the target key it maps to on the wire. A plain field has
// identical name and target; an aliased field keeps both so alias identity
// survives resolution.
type Field struct {
	name   string
	target string
}

// NewField creates a field whose name and target coincide.
func NewField(name string) Field {
	return Field{name: name, target: name}
}

// NewAliasedField creates a field referenced as name but backed by target.
func NewAliasedField(name, target string) Field {
	return Field{name: name, target: target}
}

// Name returns the symbolic name of the field.
func (f Field) Name() string { return f.name }

// Target returns the wire key the field maps to.
func (f Field) Target() string { return f.target }

// ExposedField is a field made visible by a pipeline stage. Synthetic fields
// are stage-local computations (aliases, accumulator results); non-synthetic
// fields are backed by a persisted property.
type ExposedField struct {
	Field
	Synthetic bool
}

// ExposedFields is the immutable ordered set of fields a stage exposes.
type ExposedFields struct {
	fields []ExposedField
}

// NewExposedFields creates an exposed-field set preserving declaration order.
func NewExposedFields(fields ...ExposedField) ExposedFields {
	owned := make([]ExposedField, len(fields))
	copy(owned, fields)
	return ExposedFields{fields: owned}
}

// Get looks up an exposed field by its symbolic name.
func (ef ExposedFields) Get(name string) (ExposedField, bool) {
	for _, field := range ef.fields {
		if field.Name() == name {
			return field, true
		}
	}
	return ExposedField{}, false
}

// IsEmpty reports whether the set exposes no fields.
func (ef ExposedFields) IsEmpty() bool { return len(ef.fields) == 0 }

// Names returns the symbolic names in declaration order.
func (ef ExposedFields) Names() []string {
	names := make([]string, len(ef.fields))
	for i, field := range ef.fields {
		names[i] = field.Name()
	}
	return names
}

// FieldReference is the result of resolving a symbolic name against a stage
// context. Raw is the wire key; Ref renders the key with the leading "$"
// sigil that marks a field path (as opposed to a literal string) in
// expression position.
type FieldReference struct {
	field ExposedField
}

// NewFieldReference creates a reference to the given exposed field.
func NewFieldReference(field ExposedField) FieldReference {
	return FieldReference{field: field}
}

// Raw returns the resolved wire key without a sigil, as used in stage keys
// ($match filters, $sort rules, projection keys).
func (r FieldReference) Raw() string { return r.field.Target() }

// Ref returns the resolved wire key with the "$" sigil, as used in
// expression position.
func (r FieldReference) Ref() string { return "$" + r.field.Target() }

// IsSynthetic reports whether the reference points at a stage-local field.
func (r FieldReference) IsSynthetic() bool { return r.field.Synthetic }
