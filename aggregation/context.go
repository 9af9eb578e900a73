// Package aggregation provides the pipeline compilation core of the talos
// ODM. This file defines the stage contexts that track which symbolic names
// are visible while a pipeline stage is being compiled.
package aggregation

import (
	"strings"

	"github.com/leandroluk/talos/core"
)

// LookupPolicy controls what happens when a field reference cannot be
// resolved: strict lookup fails with an UnresolvedFieldError, lenient lookup
// falls back to a direct pass-through reference built from the name as given.
type LookupPolicy int

const (
	// StrictLookup makes unresolved references a hard error.
	StrictLookup LookupPolicy = iota
	// LenientLookup passes unresolved references through unchanged.
	LenientLookup
)

// Context resolves symbolic field names during one pipeline-compilation
// pass.
//
// Contexts are immutable value objects arranged in a strictly layered
// delegation chain: the root context resolves against raw schema metadata,
// and every stage wraps the current context with the fields it exposes.
// Expose, InheritAndExpose, and ContinueOnMissingFieldReference always
// return a new context and never mutate the receiver, so a context may be
// shared freely across goroutines.
type Context interface {
	// Resolve maps a symbolic (possibly dotted) name to a field reference.
	Resolve(name string) (FieldReference, error)

	// Expose returns a context that makes exactly the given fields visible.
	// Unresolved lookups do NOT fall through to this context; the new stage
	// fully replaces the document shape (projection semantics).
	Expose(fields ExposedFields) Context

	// InheritAndExpose returns a context that adds the given fields on top
	// of this context AND forwards unresolved lookups to it (field-addition
	// semantics).
	InheritAndExpose(fields ExposedFields) Context

	// ContinueOnMissingFieldReference returns a lenient-policy variant of
	// the same structural context.
	ContinueOnMissingFieldReference() Context
}

// NewRootContext creates the context seeding a pipeline: no upstream stage,
// resolution against the schema's raw field mapping only. A nil schema
// yields an untyped root where every name passes through as given.
func NewRootContext(schema *core.SchemaCore, policy LookupPolicy) Context {
	return &rootContext{schema: schema, policy: policy}
}

// rootContext resolves directly against schema metadata. The path resolver
// never fails (unmapped segments pass through verbatim), so the lookup
// policy only matters for contexts layered on top.
type rootContext struct {
	schema *core.SchemaCore
	policy LookupPolicy
}

func (c *rootContext) Resolve(name string) (FieldReference, error) {
	target := core.ResolvePath(c.schema, name)
	return NewFieldReference(ExposedField{Field: NewAliasedField(name, target)}), nil
}

func (c *rootContext) Expose(fields ExposedFields) Context {
	return &exposedFieldsContext{fields: fields, parent: c, inherit: false, policy: c.policy}
}

func (c *rootContext) InheritAndExpose(fields ExposedFields) Context {
	return &exposedFieldsContext{fields: fields, parent: c, inherit: true, policy: c.policy}
}

func (c *rootContext) ContinueOnMissingFieldReference() Context {
	return &rootContext{schema: c.schema, policy: LenientLookup}
}

// exposedFieldsContext layers a fixed set of exposed fields over a parent
// context. The inherit flag decides whether unresolved lookups are forwarded
// to the parent (field-addition stage) or not (projection stage).
type exposedFieldsContext struct {
	fields  ExposedFields
	parent  Context
	inherit bool
	policy  LookupPolicy
}

func (c *exposedFieldsContext) Resolve(name string) (FieldReference, error) {
	// 1. Local exposure wins.
	if field, ok := c.fields.Get(name); ok {
		return NewFieldReference(field), nil
	}

	// 2. Dotted access into a locally exposed top-level field: resolve the
	// whole path as a synthetic direct reference rooted at the exposure.
	if idx := strings.Index(name, "."); idx > 0 {
		if root, ok := c.fields.Get(name[:idx]); ok {
			target := root.Target() + name[idx:]
			return NewFieldReference(ExposedField{
				Field:     NewAliasedField(name, target),
				Synthetic: true,
			}), nil
		}
	}

	// 3. Field-addition stages keep the upstream shape visible.
	if c.inherit {
		if ref, err := c.parent.Resolve(name); err == nil {
			return ref, nil
		}
	}

	// 4. Unresolved: hard error under strict policy, pass-through under
	// lenient policy.
	if c.policy == StrictLookup {
		return FieldReference{}, &UnresolvedFieldError{Name: name}
	}
	return NewFieldReference(ExposedField{Field: NewField(name), Synthetic: true}), nil
}

func (c *exposedFieldsContext) Expose(fields ExposedFields) Context {
	return &exposedFieldsContext{fields: fields, parent: c, inherit: false, policy: c.policy}
}

func (c *exposedFieldsContext) InheritAndExpose(fields ExposedFields) Context {
	return &exposedFieldsContext{fields: fields, parent: c, inherit: true, policy: c.policy}
}

func (c *exposedFieldsContext) ContinueOnMissingFieldReference() Context {
	return &exposedFieldsContext{fields: c.fields, parent: c.parent, inherit: c.inherit, policy: LenientLookup}
}
