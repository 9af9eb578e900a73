// Package aggregation provides the pipeline compilation core of the talos
// ODM. This file defines the Stage contract and the stages that do not
// reshape the document: $match, $sort, $skip, $limit, $unwind, $unset,
// $count, $lookup, and $replaceRoot.
package aggregation

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/leandroluk/talos/core"
	"github.com/leandroluk/talos/query"
)

// Stage is one step of an aggregation pipeline. Render compiles the stage
// into its single-key native document given the context produced by the
// upstream stages.
type Stage interface {
	Render(ctx Context) (bson.D, error)
}

// fieldsExposer is implemented by stages that change which symbolic names
// are visible downstream. Exposing stages replace the document shape;
// inheriting stages only add to it.
type fieldsExposer interface {
	exposedFields() ExposedFields
	inheritsFields() bool
}

// Match filters documents with a criteria tree. Field names in the criteria
// are resolved against the current stage context, so a match after a
// projection sees the projected shape, not the collection schema.
func Match(criteria *query.Criteria) Stage {
	return &matchStage{criteria: criteria, converter: core.DefaultConverter{}}
}

type matchStage struct {
	criteria  *query.Criteria
	converter core.Converter
}

func (s *matchStage) Render(ctx Context) (bson.D, error) {
	filter, err := s.mapFilter(s.criteria.Document(), ctx)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "$match", Value: filter}}, nil
}

// mapFilter canonicalizes the keys of a rendered filter document against
// the stage context. Combinator keys recurse element-wise; operator clauses
// keep their key and recurse into document values; leaves go through the
// converter.
func (s *matchStage) mapFilter(doc bson.D, ctx Context) (bson.D, error) {
	mapped := make(bson.D, 0, len(doc))
	for _, entry := range doc {
		if strings.HasPrefix(entry.Key, "$") {
			value, err := s.mapFilterValue(entry.Value, ctx)
			if err != nil {
				return nil, err
			}
			mapped = append(mapped, bson.E{Key: entry.Key, Value: value})
			continue
		}
		ref, err := ctx.Resolve(entry.Key)
		if err != nil {
			return nil, err
		}
		value, err := s.mapFilterValue(entry.Value, ctx)
		if err != nil {
			return nil, err
		}
		mapped = append(mapped, bson.E{Key: ref.Raw(), Value: value})
	}
	return mapped, nil
}

func (s *matchStage) mapFilterValue(value any, ctx Context) (any, error) {
	switch v := value.(type) {
	case bson.D:
		return s.mapFilter(v, ctx)
	case bson.A:
		mapped := make(bson.A, 0, len(v))
		for _, element := range v {
			mappedElement, err := s.mapFilterValue(element, ctx)
			if err != nil {
				return nil, err
			}
			mapped = append(mapped, mappedElement)
		}
		return mapped, nil
	case nil:
		return nil, nil
	}
	return s.converter.ConvertValue(value), nil
}

// Sort orders documents by the given field. Additional rules chain with And.
//
// Example:
//
//	aggregation.Sort("total", -1).And("customerId", 1)
func Sort(fieldName string, order int) *SortStage {
	return &SortStage{rules: []core.Sort{{FieldName: fieldName, Order: order}}}
}

// SortStage implements the $sort stage.
type SortStage struct {
	rules []core.Sort
}

// And appends another ordering rule.
func (s *SortStage) And(fieldName string, order int) *SortStage {
	s.rules = append(s.rules, core.Sort{FieldName: fieldName, Order: order})
	return s
}

func (s *SortStage) Render(ctx Context) (bson.D, error) {
	body := make(bson.D, 0, len(s.rules))
	for _, rule := range s.rules {
		ref, err := ctx.Resolve(rule.FieldName)
		if err != nil {
			return nil, err
		}
		direction := 1
		if rule.Order < 0 {
			direction = -1
		}
		body = append(body, bson.E{Key: ref.Raw(), Value: direction})
	}
	return bson.D{{Key: "$sort", Value: body}}, nil
}

// Skip discards the first n documents.
func Skip(n int64) Stage {
	return stageFunc(func(Context) (bson.D, error) {
		return bson.D{{Key: "$skip", Value: n}}, nil
	})
}

// Limit caps the number of documents passed downstream.
func Limit(n int64) Stage {
	return stageFunc(func(Context) (bson.D, error) {
		return bson.D{{Key: "$limit", Value: n}}, nil
	})
}

// stageFunc adapts a function to the Stage interface.
type stageFunc func(ctx Context) (bson.D, error)

func (f stageFunc) Render(ctx Context) (bson.D, error) { return f(ctx) }

// Count replaces the stream with a single document holding the document
// count under the given field name. Downstream stages see only that field.
func Count(fieldName string) Stage {
	return &countStage{fieldName: fieldName}
}

type countStage struct {
	fieldName string
}

func (s *countStage) Render(Context) (bson.D, error) {
	return bson.D{{Key: "$count", Value: s.fieldName}}, nil
}

func (s *countStage) exposedFields() ExposedFields {
	return NewExposedFields(ExposedField{Field: NewField(s.fieldName), Synthetic: true})
}

func (s *countStage) inheritsFields() bool { return false }

// Unwind deconstructs an array field, emitting one document per element.
// The document shape is otherwise unchanged, so the context passes through.
func Unwind(fieldName string) Stage {
	return stageFunc(func(ctx Context) (bson.D, error) {
		ref, err := ctx.Resolve(fieldName)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$unwind", Value: ref.Ref()}}, nil
	})
}

// Unset removes the given fields from every document.
func Unset(fieldNames ...string) Stage {
	return stageFunc(func(ctx Context) (bson.D, error) {
		resolved := make(bson.A, 0, len(fieldNames))
		for _, fieldName := range fieldNames {
			ref, err := ctx.Resolve(fieldName)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, ref.Raw())
		}
		return bson.D{{Key: "$unset", Value: resolved}}, nil
	})
}

// Lookup joins documents from another collection. localField resolves
// against the current context; foreignField belongs to the foreign
// collection and is taken as given. The joined array becomes visible
// downstream under as, alongside the existing fields.
func Lookup(from, localField, foreignField, as string) Stage {
	return &lookupStage{from: from, localField: localField, foreignField: foreignField, as: as}
}

type lookupStage struct {
	from         string
	localField   string
	foreignField string
	as           string
}

func (s *lookupStage) Render(ctx Context) (bson.D, error) {
	localRef, err := ctx.Resolve(s.localField)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: s.from},
		{Key: "localField", Value: localRef.Raw()},
		{Key: "foreignField", Value: s.foreignField},
		{Key: "as", Value: s.as},
	}}}, nil
}

func (s *lookupStage) exposedFields() ExposedFields {
	return NewExposedFields(ExposedField{Field: NewField(s.as), Synthetic: true})
}

func (s *lookupStage) inheritsFields() bool { return true }

// ReplaceRoot promotes the result of an expression to the document root.
// The resulting shape is not statically known, so downstream references are
// resolved leniently from here on.
func ReplaceRoot(newRoot Expression) Stage {
	return &replaceRootStage{newRoot: newRoot}
}

type replaceRootStage struct {
	newRoot Expression
}

func (s *replaceRootStage) Render(ctx Context) (bson.D, error) {
	value, err := s.newRoot.Render(ctx)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: value}}}}, nil
}
