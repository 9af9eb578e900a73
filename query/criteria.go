// Package query provides the filter and update surface of the talos ODM.
// This file defines the fluent criteria builder, which composes typed filter
// clauses and renders them into native filter documents.
package query

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Criteria represents a filter clause tree.
//
// A criteria either targets a single field with one or more operator clauses
// (Eq, Gt, In, etc.) or combines child criteria with a logical combinator
// (And, Or, Nor, Not). Building is incremental and cheap; nothing is
// translated until Document is called.
//
// Example:
//
//	crit := query.Where("age").Gt(18).
//		And(query.Where("status").Eq("active"))
//
// The above is equivalent to the native filter:
//
//	{ "$and": [ { "age": { "$gt": 18 } }, { "status": "active" } ] }
type Criteria struct {
	fieldName  string
	clauses    bson.D // operator clauses for this field, in call order
	value      any    // direct equality value
	hasValue   bool
	combinator string // "$and", "$or", "$nor" or "$not" for combinator nodes
	children   []*Criteria
}

// Where starts a new criteria targeting the given field. The name may be a
// Go struct field name, a document field name, or a dotted path; it is
// resolved to its canonical form by the QueryMapper.
func Where(fieldName string) *Criteria {
	return &Criteria{fieldName: fieldName}
}

// And combines this criteria with others under the "$and" combinator.
func (c *Criteria) And(criteria ...*Criteria) *Criteria {
	return &Criteria{combinator: "$and", children: append([]*Criteria{c}, criteria...)}
}

// Or combines this criteria with others under the "$or" combinator.
func (c *Criteria) Or(criteria ...*Criteria) *Criteria {
	return &Criteria{combinator: "$or", children: append([]*Criteria{c}, criteria...)}
}

// Nor combines this criteria with others under the "$nor" combinator.
func (c *Criteria) Nor(criteria ...*Criteria) *Criteria {
	return &Criteria{combinator: "$nor", children: append([]*Criteria{c}, criteria...)}
}

// Not negates this criteria. For a field criteria the operator clauses are
// wrapped under "$not"; combinator criteria are wrapped under "$nor".
func (c *Criteria) Not() *Criteria {
	return &Criteria{combinator: "$not", children: []*Criteria{c}}
}

// Eq adds an equality clause.
func (c *Criteria) Eq(value any) *Criteria {
	c.value = value
	c.hasValue = true
	return c
}

// Ne adds a "not equal" clause.
func (c *Criteria) Ne(value any) *Criteria { return c.clause("$ne", value) }

// Gt adds a "greater than" clause.
func (c *Criteria) Gt(value any) *Criteria { return c.clause("$gt", value) }

// Gte adds a "greater than or equal" clause.
func (c *Criteria) Gte(value any) *Criteria { return c.clause("$gte", value) }

// Lt adds a "less than" clause.
func (c *Criteria) Lt(value any) *Criteria { return c.clause("$lt", value) }

// Lte adds a "less than or equal" clause.
func (c *Criteria) Lte(value any) *Criteria { return c.clause("$lte", value) }

// In restricts the field value to the provided list.
func (c *Criteria) In(values ...any) *Criteria { return c.clause("$in", bson.A(values)) }

// Nin excludes the provided list of values.
func (c *Criteria) Nin(values ...any) *Criteria { return c.clause("$nin", bson.A(values)) }

// Exists checks for presence (or absence) of the field.
func (c *Criteria) Exists(exists bool) *Criteria { return c.clause("$exists", exists) }

// Type restricts the field to the given wire type alias (e.g. "string").
func (c *Criteria) Type(alias string) *Criteria { return c.clause("$type", alias) }

// Size restricts an array field to the given length.
func (c *Criteria) Size(size int) *Criteria { return c.clause("$size", size) }

// Nil checks the field for an explicit null value.
func (c *Criteria) Nil() *Criteria { return c.clause("$eq", nil) }

// Regex adds a regular expression clause with the given options.
func (c *Criteria) Regex(pattern, options string) *Criteria {
	return c.clause("$regex", primitive.Regex{Pattern: pattern, Options: options})
}

// Like adds a case-insensitive pattern clause using SQL-style wildcards:
// % matches any run of characters and _ matches a single character.
//
// Example:
//
//	query.Where("name").Like("%smith_")
func (c *Criteria) Like(pattern string) *Criteria {
	return c.clause("$regex", primitive.Regex{Pattern: toWirePattern(pattern), Options: "i"})
}

// ElemMatch restricts an array field to elements matching the given criteria.
func (c *Criteria) ElemMatch(criteria *Criteria) *Criteria {
	return c.clause("$elemMatch", criteria.Document())
}

// clause appends an operator clause, replacing a previous clause with the
// same operator so repeated calls stay deterministic.
func (c *Criteria) clause(operator string, value any) *Criteria {
	for i, existing := range c.clauses {
		if existing.Key == operator {
			c.clauses[i].Value = value
			return c
		}
	}
	c.clauses = append(c.clauses, bson.E{Key: operator, Value: value})
	return c
}

// Document renders the criteria tree into a native filter document.
//
// Rendering builds a fresh tree on every call and never mutates the
// criteria, so repeated calls produce structurally identical documents.
func (c *Criteria) Document() bson.D {
	if c == nil {
		return bson.D{}
	}
	switch c.combinator {
	case "$and", "$or", "$nor":
		childDocs := make(bson.A, 0, len(c.children))
		for _, child := range c.children {
			childDocs = append(childDocs, child.Document())
		}
		return bson.D{{Key: c.combinator, Value: childDocs}}
	case "$not":
		return c.renderNot()
	}
	return c.renderField()
}

// renderField renders a single-field criteria.
func (c *Criteria) renderField() bson.D {
	if c.hasValue && len(c.clauses) == 0 {
		return bson.D{{Key: c.fieldName, Value: c.value}}
	}
	return bson.D{{Key: c.fieldName, Value: c.operatorClauses()}}
}

// operatorClauses renders the field's clauses as an operator document. A
// direct equality becomes an explicit "$eq" clause, since a bare value is
// not valid in operator position.
func (c *Criteria) operatorClauses() bson.D {
	clauses := make(bson.D, 0, len(c.clauses)+1)
	if c.hasValue {
		clauses = append(clauses, bson.E{Key: "$eq", Value: c.value})
	}
	clauses = append(clauses, c.clauses...)
	return clauses
}

// renderNot renders a negation. Field criteria keep their field key with the
// operator clauses wrapped under "$not"; anything else falls back to "$nor".
func (c *Criteria) renderNot() bson.D {
	child := c.children[0]
	if child.combinator == "" && child.fieldName != "" {
		return bson.D{{Key: child.fieldName, Value: bson.D{{Key: "$not", Value: child.operatorClauses()}}}}
	}
	return bson.D{{Key: "$nor", Value: bson.A{child.Document()}}}
}

// toWirePattern converts a SQL-like pattern into a native regex pattern.
//
// It replaces % with .* (wildcard for multiple characters) and
// _ with . (wildcard for a single character), escaping everything else.
func toWirePattern(input string) string {
	const percent = "__PERCENT__"
	const underscore = "__UNDERSCORE__"
	safe := strings.ReplaceAll(input, "%", percent)
	safe = strings.ReplaceAll(safe, "_", underscore)
	safe = regexp.QuoteMeta(safe)
	safe = strings.ReplaceAll(safe, percent, ".*")
	safe = strings.ReplaceAll(safe, underscore, ".")
	return safe
}
