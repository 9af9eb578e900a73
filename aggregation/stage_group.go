// Package aggregation provides the pipeline compilation core of the talos
// ODM. This file defines the $group stage and its accumulator builder.
package aggregation

import (
	"go.mongodb.org/mongo-driver/bson"
)

// GroupBy starts a $group stage keyed by the given fields. No fields groups
// the whole stream into a single bucket (a null grouping key); one field
// groups by that field's value; several fields group by a composite key
// document. Accumulators chain off the returned stage and are named with As.
//
// Example:
//
//	aggregation.GroupBy("customerId").
//	    Sum("total").As("orderTotal").
//	    Count().As("orders")
func GroupBy(fieldNames ...string) *GroupStage {
	return &GroupStage{keys: fieldNames}
}

// GroupStage implements the $group stage.
type GroupStage struct {
	keys         []string
	accumulators []groupAccumulator
}

// groupAccumulator is one pending accumulated field. operand is nil for
// operand-less accumulators (Count).
type groupAccumulator struct {
	operator string
	operand  Expression
	alias    string
}

func (s *GroupStage) accumulate(operator string, operand Expression) *GroupStage {
	s.accumulators = append(s.accumulators, groupAccumulator{operator: operator, operand: operand})
	return s
}

// Sum accumulates the sum of a field across the bucket.
func (s *GroupStage) Sum(fieldName string) *GroupStage {
	return s.accumulate("$sum", Ref(fieldName))
}

// SumExpression accumulates the sum of an expression across the bucket.
func (s *GroupStage) SumExpression(text string) *GroupStage {
	return s.accumulate("$sum", Expr(text))
}

// Avg accumulates the average of a field across the bucket.
func (s *GroupStage) Avg(fieldName string) *GroupStage {
	return s.accumulate("$avg", Ref(fieldName))
}

// Min accumulates the minimum of a field across the bucket.
func (s *GroupStage) Min(fieldName string) *GroupStage {
	return s.accumulate("$min", Ref(fieldName))
}

// Max accumulates the maximum of a field across the bucket.
func (s *GroupStage) Max(fieldName string) *GroupStage {
	return s.accumulate("$max", Ref(fieldName))
}

// First takes the field value from the first document of the bucket.
func (s *GroupStage) First(fieldName string) *GroupStage {
	return s.accumulate("$first", Ref(fieldName))
}

// Last takes the field value from the last document of the bucket.
func (s *GroupStage) Last(fieldName string) *GroupStage {
	return s.accumulate("$last", Ref(fieldName))
}

// Push collects every field value of the bucket into an array.
func (s *GroupStage) Push(fieldName string) *GroupStage {
	return s.accumulate("$push", Ref(fieldName))
}

// AddToSet collects the distinct field values of the bucket into an array.
func (s *GroupStage) AddToSet(fieldName string) *GroupStage {
	return s.accumulate("$addToSet", Ref(fieldName))
}

// StdDevPop accumulates the population standard deviation of a field.
func (s *GroupStage) StdDevPop(fieldName string) *GroupStage {
	return s.accumulate("$stdDevPop", Ref(fieldName))
}

// StdDevSamp accumulates the sample standard deviation of a field.
func (s *GroupStage) StdDevSamp(fieldName string) *GroupStage {
	return s.accumulate("$stdDevSamp", Ref(fieldName))
}

// Count counts the documents of the bucket, rendered as a sum of ones.
func (s *GroupStage) Count() *GroupStage {
	return s.accumulate("$sum", Literal(int64(1)))
}

// As names the most recently added accumulator. Calling As with no pending
// accumulator is a builder misuse and panics.
func (s *GroupStage) As(alias string) *GroupStage {
	if len(s.accumulators) == 0 {
		panic("aggregation: As called on a group stage with no accumulator")
	}
	s.accumulators[len(s.accumulators)-1].alias = alias
	return s
}

func (s *GroupStage) Render(ctx Context) (bson.D, error) {
	id, err := s.renderID(ctx)
	if err != nil {
		return nil, err
	}
	body := bson.D{{Key: "_id", Value: id}}
	for _, acc := range s.accumulators {
		if acc.alias == "" {
			return nil, &InvalidArgumentError{
				Reason: "group accumulator " + acc.operator + " needs an alias; call As after it",
			}
		}
		operand, err := acc.operand.Render(ctx)
		if err != nil {
			return nil, err
		}
		body = append(body, bson.E{Key: acc.alias, Value: bson.D{{Key: acc.operator, Value: operand}}})
	}
	return bson.D{{Key: "$group", Value: body}}, nil
}

// renderID builds the grouping key: null for a whole-stream bucket, a single
// sigil reference for one key, a composite document for several.
func (s *GroupStage) renderID(ctx Context) (any, error) {
	switch len(s.keys) {
	case 0:
		return nil, nil
	case 1:
		ref, err := ctx.Resolve(s.keys[0])
		if err != nil {
			return nil, err
		}
		return ref.Ref(), nil
	}
	id := make(bson.D, 0, len(s.keys))
	for _, key := range s.keys {
		ref, err := ctx.Resolve(key)
		if err != nil {
			return nil, err
		}
		id = append(id, bson.E{Key: ref.Raw(), Value: ref.Ref()})
	}
	return id, nil
}

// exposedFields lists the bucket shape: the grouping key under "_id" plus
// every accumulator alias. All of them are synthetic; the upstream shape is
// gone after grouping.
func (s *GroupStage) exposedFields() ExposedFields {
	exposed := make([]ExposedField, 0, len(s.accumulators)+1)
	exposed = append(exposed, ExposedField{Field: NewField("_id"), Synthetic: true})
	for _, acc := range s.accumulators {
		if acc.alias == "" {
			continue
		}
		exposed = append(exposed, ExposedField{Field: NewField(acc.alias), Synthetic: true})
	}
	return NewExposedFields(exposed...)
}

func (s *GroupStage) inheritsFields() bool { return false }
