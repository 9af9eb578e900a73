// Package core provides the fundamental building blocks of the talos ODM.
// This file defines the schema system, which maps Go structs to database
// collections, describes document fields, and supports schema building.
package core

import (
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IdentifierKey is the reserved document key used by the database for the
// entity identifier. The identifier property of a schema always maps to this
// key regardless of its declared field name or tag.
const IdentifierKey = "_id"

// Field represents a struct field mapped to a document field.
//
// It contains metadata such as the Go field name, the document field name,
// type information, the identifier marker, special markers for timestamp
// fields (createdAt, updatedAt), and — for fields whose type is itself a
// mapped struct — the metadata of the embedded document.
type Field struct {
	StructFieldName   string       // Name of the field in the Go struct
	DocumentFieldName string       // Name of the field in the stored document
	Type              reflect.Type // Go type of the field
	IsIdentifier      bool         // Whether this field is the entity identifier
	IsCreatedAt       bool         // Whether this field receives the creation timestamp
	IsUpdatedAt       bool         // Whether this field receives the update timestamp
	Embedded          *SchemaCore  // Metadata of the nested document type, if any
}

// FieldOption customizes a Field during schema construction.
type FieldOption func(*Field)

// Identifier marks a field as the entity identifier. The field will resolve
// to IdentifierKey in every translated document.
func Identifier() FieldOption {
	return func(f *Field) { f.IsIdentifier = true }
}

// Named overrides the document field name derived from the struct tag.
func Named(name string) FieldOption {
	return func(f *Field) { f.DocumentFieldName = name }
}

// CreatedAt marks a field to be set with the current time on insert.
func CreatedAt() FieldOption {
	return func(f *Field) { f.IsCreatedAt = true }
}

// UpdatedAt marks a field to be set with the current time on insert and update.
func UpdatedAt() FieldOption {
	return func(f *Field) { f.IsUpdatedAt = true }
}

// SchemaCore holds the type-independent part of a schema: the collection it
// maps to and the field metadata used for path resolution.
//
// A SchemaCore is built once and never mutated afterwards, so it is safe for
// concurrent reads from multiple goroutines.
type SchemaCore struct {
	Database   string   // Database name (optional, falls back to the executor default)
	Collection string   // Collection name
	Fields     []*Field // Field metadata in struct declaration order

	fieldsByStructName   map[string]*Field
	fieldsByDocumentName map[string]*Field
	identifierField      *Field
}

// FieldByName looks up a field by its Go struct name or its document name.
// Returns nil when the schema has no such field.
func (s *SchemaCore) FieldByName(name string) *Field {
	if s == nil {
		return nil
	}
	if field, ok := s.fieldsByStructName[name]; ok {
		return field
	}
	if field, ok := s.fieldsByDocumentName[name]; ok {
		return field
	}
	return nil
}

// IdentifierField returns the field marked as the entity identifier, or nil
// when the schema has none.
func (s *SchemaCore) IdentifierField() *Field {
	if s == nil {
		return nil
	}
	return s.identifierField
}

// SchemaMeta couples a SchemaCore with the typed extras of an entity:
// lifecycle hooks and the cached timestamp fields.
type SchemaMeta[T any] struct {
	SchemaCore
	PreHookList  map[PreHook][]func(*T) error
	PostHookList map[PostHook][]func(*T) error

	createdAtField *Field
	updatedAtField *Field
}

// RegisterPreHook adds a function executed before the given operation.
func (s *SchemaMeta[T]) RegisterPreHook(hook PreHook, fn func(*T) error) {
	s.PreHookList[hook] = append(s.PreHookList[hook], fn)
}

// RegisterPostHook adds a function executed after the given operation.
func (s *SchemaMeta[T]) RegisterPostHook(hook PostHook, fn func(*T) error) {
	s.PostHookList[hook] = append(s.PostHookList[hook], fn)
}

// Core returns the type-independent part of the schema, as consumed by the
// mappers and the pipeline compiler.
func (s *SchemaMeta[T]) Core() *SchemaCore { return &s.SchemaCore }

// CreatedAtField returns the field marked with CreatedAt, or nil.
func (s *SchemaMeta[T]) CreatedAtField() *Field { return s.createdAtField }

// UpdatedAtField returns the field marked with UpdatedAt, or nil.
func (s *SchemaMeta[T]) UpdatedAtField() *Field { return s.updatedAtField }

// SchemaBuilder accumulates options while a schema is being constructed.
type SchemaBuilder[T any] struct {
	database     string
	collection   string
	tagKey       string
	fieldOptions map[string][]FieldOption
}

// SchemaOption customizes a SchemaBuilder.
type SchemaOption[T any] func(*SchemaBuilder[T])

// Database sets the database name used by this schema.
func Database[T any](name string) SchemaOption[T] {
	return func(schemaBuilder *SchemaBuilder[T]) { schemaBuilder.database = name }
}

// Collection sets the collection name used by this schema.
func Collection[T any](name string) SchemaOption[T] {
	return func(schemaBuilder *SchemaBuilder[T]) { schemaBuilder.collection = name }
}

// TagKey overrides the struct tag key used to derive document field names.
// The default is "bson".
func TagKey[T any](key string) SchemaOption[T] {
	return func(schemaBuilder *SchemaBuilder[T]) { schemaBuilder.tagKey = key }
}

// OverrideField applies field options to the struct field with the given Go
// name. It panics when the field does not exist, since that is a programming
// error in the schema declaration.
func OverrideField[T any](structFieldName string, opts ...FieldOption) SchemaOption[T] {
	return func(schemaBuilder *SchemaBuilder[T]) {
		schemaBuilder.fieldOptions[structFieldName] = append(schemaBuilder.fieldOptions[structFieldName], opts...)
	}
}

// Schema builds the mapping metadata for the entity type T.
//
// Document field names are derived from the "bson" struct tag (or the tag
// configured via TagKey), falling back to the lower-cased struct field name,
// which matches the driver's default marshalling behavior. A field tagged
// "_id" (or with Go name "ID") is detected as the entity identifier.
//
// Example:
//
//	type Order struct {
//	    ID         string          `bson:"_id"`
//	    CustomerID string          `bson:"customerId"`
//	    Price      decimal.Decimal `bson:"price"`
//	}
//
//	orderSchema := core.Schema[Order](
//	    core.Collection[Order]("orders"),
//	)
func Schema[T any](options ...SchemaOption[T]) *SchemaMeta[T] {
	var zero T
	structType := reflect.TypeOf(zero)
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}

	builder := &SchemaBuilder[T]{
		tagKey:       "bson",
		fieldOptions: make(map[string][]FieldOption),
	}
	for _, option := range options {
		option(builder)
	}

	seen := make(map[reflect.Type]*SchemaCore)
	schemaCore := buildSchemaCore(structType, builder.tagKey, seen)
	schemaCore.Database = builder.database
	schemaCore.Collection = builder.collection

	for structFieldName, opts := range builder.fieldOptions {
		field, ok := schemaCore.fieldsByStructName[structFieldName]
		if !ok {
			panic("core: OverrideField — field " + structFieldName + " not found in " + structType.Name())
		}
		for _, opt := range opts {
			opt(field)
		}
	}
	indexSchemaCore(schemaCore)

	meta := &SchemaMeta[T]{
		SchemaCore:   *schemaCore,
		PreHookList:  make(map[PreHook][]func(*T) error),
		PostHookList: make(map[PostHook][]func(*T) error),
	}
	for _, field := range meta.Fields {
		if field.IsCreatedAt {
			meta.createdAtField = field
		}
		if field.IsUpdatedAt {
			meta.updatedAtField = field
		}
	}
	return meta
}

// buildSchemaCore walks the struct type and produces field metadata,
// descending into nested struct types. The seen map breaks cycles in
// self-referential types.
func buildSchemaCore(structType reflect.Type, tagKey string, seen map[reflect.Type]*SchemaCore) *SchemaCore {
	if existing, ok := seen[structType]; ok {
		return existing
	}

	schemaCore := &SchemaCore{
		fieldsByStructName:   make(map[string]*Field),
		fieldsByDocumentName: make(map[string]*Field),
	}
	seen[structType] = schemaCore

	for _, sf := range reflect.VisibleFields(structType) {
		if sf.PkgPath != "" {
			continue // unexported
		}
		tag := sf.Tag.Get(tagKey)
		documentName := strings.Split(tag, ",")[0]
		if documentName == "-" {
			continue
		}
		if documentName == "" {
			documentName = strings.ToLower(sf.Name)
		}

		field := &Field{
			StructFieldName:   sf.Name,
			DocumentFieldName: documentName,
			Type:              sf.Type,
		}
		if documentName == IdentifierKey || sf.Name == "ID" {
			field.IsIdentifier = true
		}
		if embeddedType := embeddableStructType(sf.Type); embeddedType != nil {
			field.Embedded = buildSchemaCore(embeddedType, tagKey, seen)
		}

		schemaCore.Fields = append(schemaCore.Fields, field)
	}
	indexSchemaCore(schemaCore)
	return schemaCore
}

// indexSchemaCore rebuilds the lookup maps and identifier cache. It runs
// after field construction and again after OverrideField options, so the
// indexes always reflect the final field metadata.
func indexSchemaCore(schemaCore *SchemaCore) {
	schemaCore.identifierField = nil
	for _, field := range schemaCore.Fields {
		schemaCore.fieldsByStructName[field.StructFieldName] = field
		schemaCore.fieldsByDocumentName[field.DocumentFieldName] = field
		if field.IsIdentifier && schemaCore.identifierField == nil {
			schemaCore.identifierField = field
		}
	}
}

// embeddableStructType returns the struct type a field descends into during
// path resolution, or nil for scalar-like fields. Pointers and slices are
// unwrapped so "items.price" resolves through []OrderItem.
func embeddableStructType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	switch t {
	case reflect.TypeOf(time.Time{}), reflect.TypeOf(decimal.Decimal{}), reflect.TypeOf(uuid.UUID{}):
		return nil
	}
	return t
}
