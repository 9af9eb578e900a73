// Package aggregation provides the pipeline compilation core of the talos
// ODM. This file defines the document-reshaping stages $project and
// $addFields.
package aggregation

import (
	"go.mongodb.org/mongo-driver/bson"
)

// projectionItem is one entry of a projection: an included field, a computed
// expression, or an exclusion.
type projectionItem struct {
	name     string
	alias    string
	value    Expression // nil for plain inclusions and exclusions
	excluded bool
}

// exposedName returns the name the item makes visible downstream.
func (i projectionItem) exposedName() string {
	if i.alias != "" {
		return i.alias
	}
	return i.name
}

// Project starts a $project stage including the given fields. Computed
// fields chain with And, AndExpression, or AndOperation, optionally renamed
// with As. The stage replaces the document shape: downstream stages see only
// the projected names.
//
// Example:
//
//	aggregation.Project("customerId").
//	    AndExpression("price * quantity").As("total")
func Project(fieldNames ...string) *ProjectionStage {
	stage := &ProjectionStage{}
	for _, fieldName := range fieldNames {
		stage.items = append(stage.items, projectionItem{name: fieldName})
	}
	return stage
}

// ProjectionStage implements the $project stage.
type ProjectionStage struct {
	items []projectionItem
}

// And includes another field. Follow with As to expose it under an alias.
func (s *ProjectionStage) And(fieldName string) *ProjectionStage {
	s.items = append(s.items, projectionItem{name: fieldName})
	return s
}

// AndExpression includes a computed field backed by a textual expression.
// The computed item has no name of its own until As is called.
func (s *ProjectionStage) AndExpression(text string) *ProjectionStage {
	s.items = append(s.items, projectionItem{value: Expr(text)})
	return s
}

// AndOperation includes a computed field backed by a composed expression.
func (s *ProjectionStage) AndOperation(e Expression) *ProjectionStage {
	s.items = append(s.items, projectionItem{value: e})
	return s
}

// As renames the most recently added item. Calling As on an empty projection
// is a builder misuse and panics.
func (s *ProjectionStage) As(alias string) *ProjectionStage {
	if len(s.items) == 0 {
		panic("aggregation: As called on an empty projection")
	}
	s.items[len(s.items)-1].alias = alias
	return s
}

// AndExclude excludes fields from the projection. Inside an inclusion
// projection the wire format only permits excluding the identifier key, so
// any other name fails at render time.
func (s *ProjectionStage) AndExclude(fieldNames ...string) *ProjectionStage {
	for _, fieldName := range fieldNames {
		s.items = append(s.items, projectionItem{name: fieldName, excluded: true})
	}
	return s
}

func (s *ProjectionStage) Render(ctx Context) (bson.D, error) {
	hasInclusion := false
	for _, item := range s.items {
		if !item.excluded {
			hasInclusion = true
			break
		}
	}

	body := make(bson.D, 0, len(s.items))
	for _, item := range s.items {
		switch {
		case item.excluded:
			ref, err := ctx.Resolve(item.name)
			if err != nil {
				return nil, err
			}
			if hasInclusion && ref.Raw() != "_id" {
				return nil, &InvalidArgumentError{
					Reason: "cannot exclude field " + item.name + " from an inclusion projection",
				}
			}
			body = append(body, bson.E{Key: ref.Raw(), Value: 0})

		case item.value != nil:
			if item.alias == "" {
				return nil, &InvalidArgumentError{
					Reason: "computed projection field needs an alias; call As after the expression",
				}
			}
			value, err := item.value.Render(ctx)
			if err != nil {
				return nil, err
			}
			body = append(body, bson.E{Key: item.alias, Value: value})

		default:
			ref, err := ctx.Resolve(item.name)
			if err != nil {
				return nil, err
			}
			switch {
			case item.alias != "":
				body = append(body, bson.E{Key: item.alias, Value: ref.Ref()})
			case ref.Raw() != item.name:
				// The written name differs from the canonical key. Project it
				// as a reference so the output key matches the name exposed to
				// downstream stages.
				body = append(body, bson.E{Key: item.name, Value: ref.Ref()})
			default:
				body = append(body, bson.E{Key: ref.Raw(), Value: 1})
			}
		}
	}
	return bson.D{{Key: "$project", Value: body}}, nil
}

// exposedFields lists what the projection makes visible: included fields
// under their (possibly aliased) names, computed fields under their aliases.
// Aliased and computed items are synthetic; plain inclusions keep their
// backing property.
func (s *ProjectionStage) exposedFields() ExposedFields {
	exposed := make([]ExposedField, 0, len(s.items))
	for _, item := range s.items {
		if item.excluded {
			continue
		}
		exposed = append(exposed, ExposedField{
			Field:     NewField(item.exposedName()),
			Synthetic: item.alias != "" || item.value != nil,
		})
	}
	return NewExposedFields(exposed...)
}

func (s *ProjectionStage) inheritsFields() bool { return false }

// AddFields starts a $addFields stage. Unlike a projection it keeps the
// upstream document shape and only adds (or overwrites) the set fields.
//
// Example:
//
//	aggregation.AddFields().
//	    SetExpression("discounted", "price * 0.9")
func AddFields() *AddFieldsStage {
	return &AddFieldsStage{}
}

// AddFieldsStage implements the $addFields stage.
type AddFieldsStage struct {
	items []projectionItem
}

// Set adds a field holding a literal value.
func (s *AddFieldsStage) Set(name string, value any) *AddFieldsStage {
	s.items = append(s.items, projectionItem{name: name, value: Literal(value)})
	return s
}

// SetExpression adds a field computed from a textual expression.
func (s *AddFieldsStage) SetExpression(name, text string) *AddFieldsStage {
	s.items = append(s.items, projectionItem{name: name, value: Expr(text)})
	return s
}

// SetOperation adds a field computed from a composed expression.
func (s *AddFieldsStage) SetOperation(name string, e Expression) *AddFieldsStage {
	s.items = append(s.items, projectionItem{name: name, value: e})
	return s
}

func (s *AddFieldsStage) Render(ctx Context) (bson.D, error) {
	body := make(bson.D, 0, len(s.items))
	for _, item := range s.items {
		value, err := item.value.Render(ctx)
		if err != nil {
			return nil, err
		}
		body = append(body, bson.E{Key: item.name, Value: value})
	}
	return bson.D{{Key: "$addFields", Value: body}}, nil
}

func (s *AddFieldsStage) exposedFields() ExposedFields {
	exposed := make([]ExposedField, 0, len(s.items))
	for _, item := range s.items {
		exposed = append(exposed, ExposedField{Field: NewField(item.name), Synthetic: true})
	}
	return NewExposedFields(exposed...)
}

func (s *AddFieldsStage) inheritsFields() bool { return true }
