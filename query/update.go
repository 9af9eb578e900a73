// Package query provides the filter and update surface of the talos ODM.
// This file defines the fluent update builder, which composes modification
// clauses and renders them into native update documents.
package query

import "go.mongodb.org/mongo-driver/bson"

// Update represents an incremental set of modification clauses.
//
// Clauses are grouped per native update operator ("$set", "$inc", ...) and
// preserved in call order. Building never translates anything; Document
// renders a fresh update document on demand.
//
// Example:
//
//	upd := query.NewUpdate().
//		Set("status", "shipped").
//		Inc("version", 1).
//		Push("events", "shipped")
type Update struct {
	operators []string          // native operator keys in first-use order
	sections  map[string]bson.D // clauses per operator, in call order
}

// NewUpdate creates an empty update builder.
func NewUpdate() *Update {
	return &Update{sections: make(map[string]bson.D)}
}

// Set assigns a value to a field.
func (u *Update) Set(fieldName string, value any) *Update {
	return u.clause("$set", fieldName, value)
}

// SetOnInsert assigns a value to a field only when an upsert inserts.
func (u *Update) SetOnInsert(fieldName string, value any) *Update {
	return u.clause("$setOnInsert", fieldName, value)
}

// Unset removes the given fields.
func (u *Update) Unset(fieldNames ...string) *Update {
	for _, fieldName := range fieldNames {
		u.clause("$unset", fieldName, 1)
	}
	return u
}

// Inc increments a numeric field by the given delta.
func (u *Update) Inc(fieldName string, delta any) *Update {
	return u.clause("$inc", fieldName, delta)
}

// Mul multiplies a numeric field by the given factor.
func (u *Update) Mul(fieldName string, factor any) *Update {
	return u.clause("$mul", fieldName, factor)
}

// Min updates the field when the given value is smaller than the stored one.
func (u *Update) Min(fieldName string, value any) *Update {
	return u.clause("$min", fieldName, value)
}

// Max updates the field when the given value is larger than the stored one.
func (u *Update) Max(fieldName string, value any) *Update {
	return u.clause("$max", fieldName, value)
}

// Rename renames a field. Both names are resolved to their canonical keys
// by the UpdateMapper.
func (u *Update) Rename(fieldName, newName string) *Update {
	return u.clause("$rename", fieldName, newName)
}

// CurrentDate sets the field to the server's current date.
func (u *Update) CurrentDate(fieldName string) *Update {
	return u.clause("$currentDate", fieldName, true)
}

// Push appends a value to an array field.
func (u *Update) Push(fieldName string, value any) *Update {
	return u.clause("$push", fieldName, value)
}

// PushEach appends multiple values to an array field.
func (u *Update) PushEach(fieldName string, values ...any) *Update {
	return u.clause("$push", fieldName, bson.D{{Key: "$each", Value: bson.A(values)}})
}

// Pop removes the first (-1) or last (1) element of an array field.
func (u *Update) Pop(fieldName string, direction int) *Update {
	return u.clause("$pop", fieldName, direction)
}

// Pull removes array elements equal to the value or matching the criteria
// document.
func (u *Update) Pull(fieldName string, value any) *Update {
	return u.clause("$pull", fieldName, value)
}

// PullAll removes all array elements contained in the given list.
func (u *Update) PullAll(fieldName string, values ...any) *Update {
	return u.clause("$pullAll", fieldName, bson.A(values))
}

// AddToSet appends a value to an array field unless it is already present.
func (u *Update) AddToSet(fieldName string, value any) *Update {
	return u.clause("$addToSet", fieldName, value)
}

// clause records a modification under the given native operator, replacing a
// previous clause for the same field.
func (u *Update) clause(operator, fieldName string, value any) *Update {
	section, ok := u.sections[operator]
	if !ok {
		u.operators = append(u.operators, operator)
	}
	for i, existing := range section {
		if existing.Key == fieldName {
			section[i].Value = value
			u.sections[operator] = section
			return u
		}
	}
	u.sections[operator] = append(section, bson.E{Key: fieldName, Value: value})
	return u
}

// IsEmpty reports whether the update carries no clauses.
func (u *Update) IsEmpty() bool {
	return u == nil || len(u.operators) == 0
}

// Document renders the update into a native update document.
//
// Rendering builds a fresh tree on every call and never mutates the builder.
func (u *Update) Document() bson.D {
	if u.IsEmpty() {
		return bson.D{}
	}
	doc := make(bson.D, 0, len(u.operators))
	for _, operator := range u.operators {
		section := u.sections[operator]
		clauses := make(bson.D, len(section))
		copy(clauses, section)
		doc = append(doc, bson.E{Key: operator, Value: clauses})
	}
	return doc
}
