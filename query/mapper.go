// Package query provides the filter and update surface of the talos ODM.
// This file defines the query and update document mappers, which walk
// rendered filter/update trees, canonicalize field names against schema
// metadata, and route leaf values through the type conversion service.
package query

import (
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/leandroluk/talos/core"
)

// QueryMapper translates rendered filter documents into their wire form.
//
// Field-name keys are resolved to canonical document keys using the declared
// domain type's schema; logical combinator keys ("$and", "$or", "$nor") are
// recursed element-wise instead of being treated as field names; leaf values
// go through the Converter.
//
// Mapping always builds a fresh output tree and never rewrites its input, so
// mapping an already-mapped document a second time produces a structurally
// identical result.
type QueryMapper struct {
	converter core.Converter
}

// NewQueryMapper creates a mapper using the given converter, falling back to
// core.DefaultConverter when nil.
func NewQueryMapper(converter core.Converter) *QueryMapper {
	if converter == nil {
		converter = core.DefaultConverter{}
	}
	return &QueryMapper{converter: converter}
}

// MapCriteria renders and maps a criteria tree in one step.
func (m *QueryMapper) MapCriteria(criteria *Criteria, schema *core.SchemaCore) bson.D {
	if criteria == nil {
		return bson.D{}
	}
	return m.MapDocument(criteria.Document(), schema)
}

// MapDocument maps a rendered filter document against the schema.
func (m *QueryMapper) MapDocument(doc bson.D, schema *core.SchemaCore) bson.D {
	mapped := make(bson.D, 0, len(doc))
	for _, entry := range doc {
		mapped = append(mapped, m.mapEntry(entry, schema))
	}
	return mapped
}

// mapEntry maps a single key/value pair.
func (m *QueryMapper) mapEntry(entry bson.E, schema *core.SchemaCore) bson.E {
	if strings.HasPrefix(entry.Key, "$") {
		switch entry.Key {
		case "$and", "$or", "$nor":
			return bson.E{Key: entry.Key, Value: m.mapDocumentList(entry.Value, schema)}
		default:
			// Operator clause ("$gt", "$in", "$not", "$elemMatch", ...):
			// the key stays, the value is mapped in the same field context.
			return bson.E{Key: entry.Key, Value: m.mapValue(entry.Value, schema)}
		}
	}

	resolved := core.ResolvePath(schema, entry.Key)
	nested := core.EmbeddedSchemaAt(schema, entry.Key)
	return bson.E{Key: resolved, Value: m.mapValue(entry.Value, nested)}
}

// mapDocumentList maps each element of a combinator's clause list.
func (m *QueryMapper) mapDocumentList(value any, schema *core.SchemaCore) bson.A {
	elements := toSlice(value)
	mapped := make(bson.A, 0, len(elements))
	for _, element := range elements {
		switch doc := element.(type) {
		case bson.D:
			mapped = append(mapped, m.MapDocument(doc, schema))
		case bson.M:
			mapped = append(mapped, m.MapDocument(mToD(doc), schema))
		default:
			mapped = append(mapped, m.mapValue(element, schema))
		}
	}
	return mapped
}

// mapValue maps a filter value. Documents recurse structurally (operator
// keys keep the surrounding field context, field keys resolve against the
// embedded schema), arrays recurse element-wise, and everything else is a
// leaf handed to the converter.
func (m *QueryMapper) mapValue(value any, schema *core.SchemaCore) any {
	switch v := value.(type) {
	case bson.D:
		return m.MapDocument(v, schema)
	case bson.M:
		return m.MapDocument(mToD(v), schema)
	case bson.A:
		mapped := make(bson.A, 0, len(v))
		for _, element := range v {
			mapped = append(mapped, m.mapValue(element, schema))
		}
		return mapped
	case nil:
		return nil
	}

	rv := reflect.ValueOf(value)
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type() != reflect.TypeOf([]byte(nil)) {
		mapped := make(bson.A, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			mapped = append(mapped, m.mapValue(rv.Index(i).Interface(), schema))
		}
		return mapped
	}
	return m.converter.ConvertValue(value)
}

// UpdateMapper translates rendered update documents into their wire form.
//
// The top-level keys of an update document are native update operators; the
// field names live one level down. "$rename" is special-cased because its
// values are field names rather than stored values.
type UpdateMapper struct {
	*QueryMapper
}

// NewUpdateMapper creates an update mapper sharing the query mapper's
// conversion behavior.
func NewUpdateMapper(converter core.Converter) *UpdateMapper {
	return &UpdateMapper{QueryMapper: NewQueryMapper(converter)}
}

// MapUpdate maps a rendered update document against the schema.
func (m *UpdateMapper) MapUpdate(update bson.D, schema *core.SchemaCore) bson.D {
	mapped := make(bson.D, 0, len(update))
	for _, section := range update {
		clauses, ok := section.Value.(bson.D)
		if !ok {
			mapped = append(mapped, bson.E{Key: section.Key, Value: m.mapValue(section.Value, schema)})
			continue
		}

		mappedClauses := make(bson.D, 0, len(clauses))
		for _, clause := range clauses {
			resolved := core.ResolvePath(schema, clause.Key)
			if section.Key == "$rename" {
				newName, _ := clause.Value.(string)
				mappedClauses = append(mappedClauses, bson.E{Key: resolved, Value: core.ResolvePath(schema, newName)})
				continue
			}
			nested := core.EmbeddedSchemaAt(schema, clause.Key)
			mappedClauses = append(mappedClauses, bson.E{Key: resolved, Value: m.mapValue(clause.Value, nested)})
		}
		mapped = append(mapped, bson.E{Key: section.Key, Value: mappedClauses})
	}
	return mapped
}

// toSlice normalizes the clause list representations produced by the
// criteria builder and by user-supplied raw documents.
func toSlice(value any) []any {
	switch v := value.(type) {
	case bson.A:
		return v
	case []any:
		return v
	case []bson.D:
		elements := make([]any, len(v))
		for i, doc := range v {
			elements[i] = doc
		}
		return elements
	default:
		return []any{value}
	}
}

// mToD converts an unordered document into an ordered one. Key order of
// bson.M is unspecified; the mapper only relies on it for recursion, not for
// output stability of user-visible combinators.
func mToD(m bson.M) bson.D {
	doc := make(bson.D, 0, len(m))
	for key, value := range m {
		doc = append(doc, bson.E{Key: key, Value: value})
	}
	return doc
}
