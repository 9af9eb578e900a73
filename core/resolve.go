// Package core provides the fundamental building blocks of the talos ODM.
// This file defines the field path resolver, which turns symbolic (possibly
// dotted) field paths into the canonical document keys used on the wire.
package core

import "strings"

// ResolvePath resolves a symbolic, possibly dotted field path against schema
// metadata and returns the canonical document path.
//
// Each segment is mapped through the schema: a segment naming a Go struct
// field or a document field is replaced by its document name, the identifier
// field is always replaced by IdentifierKey, and resolution descends into
// embedded document metadata for the following segments. Segments that cannot
// be mapped — positional array indexes, keys of loosely-typed nested
// documents, or anything past the first unmapped segment — are preserved
// verbatim, so dynamic document shapes keep working.
//
// ResolvePath is a pure function of (schema, path) and never fails: when in
// doubt it passes the input through unchanged.
//
// Example:
//
//	// Order.CustomerID is tagged `bson:"customerId"`, Order.ID is the identifier
//	core.ResolvePath(schema, "CustomerID") // "customerId"
//	core.ResolvePath(schema, "ID")         // "_id"
//	core.ResolvePath(schema, "meta.tags")  // "meta.tags" (untyped nested document)
func ResolvePath(schema *SchemaCore, path string) string {
	if path == "" || schema == nil {
		return path
	}
	if !strings.Contains(path, ".") {
		return resolveSegment(schema, path)
	}

	segments := strings.Split(path, ".")
	resolved := make([]string, 0, len(segments))
	current := schema

	for _, segment := range segments {
		if current == nil || isIndexSegment(segment) {
			// Past the mapped part of the path, or a positional index:
			// keep the segment as given. An index does not change the
			// element metadata, so resolution continues afterwards.
			resolved = append(resolved, segment)
			continue
		}
		field := current.FieldByName(segment)
		if field == nil {
			resolved = append(resolved, segment)
			current = nil
			continue
		}
		resolved = append(resolved, resolveFieldName(field))
		current = field.Embedded
	}
	return strings.Join(resolved, ".")
}

// resolveSegment maps a single path segment against the schema.
func resolveSegment(schema *SchemaCore, segment string) string {
	if field := schema.FieldByName(segment); field != nil {
		return resolveFieldName(field)
	}
	return segment
}

// resolveFieldName returns the canonical document key of a field, honoring
// the identifier special case.
func resolveFieldName(field *Field) string {
	if field.IsIdentifier {
		return IdentifierKey
	}
	return field.DocumentFieldName
}

// EmbeddedSchemaAt returns the metadata of the nested document type reached
// by following the given path, or nil when the path leaves the mapped part
// of the schema. It is used by the mappers to pick the resolution context
// for values nested under a field key.
func EmbeddedSchemaAt(schema *SchemaCore, path string) *SchemaCore {
	current := schema
	for _, segment := range strings.Split(path, ".") {
		if current == nil {
			return nil
		}
		if isIndexSegment(segment) {
			continue
		}
		field := current.FieldByName(segment)
		if field == nil {
			return nil
		}
		current = field.Embedded
	}
	return current
}

// isIndexSegment reports whether a path segment is a positional array index
// (all decimal digits) or the positional operator "$".
func isIndexSegment(segment string) bool {
	if segment == "$" {
		return true
	}
	if segment == "" {
		return false
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
