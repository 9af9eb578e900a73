// Package query provides the filter and update surface of the talos ODM.
// This file defines the fluent query builder, which couples a criteria tree
// with ordering, pagination, and projection options.
package query

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/leandroluk/talos/core"
)

// Query represents a complete read request: a filter plus the options that
// accompany it.
//
// Example:
//
//	q := query.NewQuery(query.Where("status").Eq("active")).
//		Sort("createdAt", -1).
//		Limit(20).
//		Select("name", "email")
type Query struct {
	criteria   *Criteria
	sort       []core.Sort
	limit      int64
	skip       int64
	includes   []string
	excludes   []string
}

// NewQuery creates a query with the given root criteria. A nil criteria
// matches every document.
func NewQuery(criteria *Criteria) *Query {
	return &Query{criteria: criteria}
}

// Criteria returns the root criteria of the query (possibly nil).
func (q *Query) Criteria() *Criteria { return q.criteria }

// Sort appends an ordering rule. Order 1 is ascending, -1 descending.
func (q *Query) Sort(fieldName string, order int) *Query {
	q.sort = append(q.sort, core.Sort{FieldName: fieldName, Order: order})
	return q
}

// Limit caps the number of returned documents.
func (q *Query) Limit(limit int64) *Query {
	q.limit = limit
	return q
}

// Skip discards the first n matching documents.
func (q *Query) Skip(skip int64) *Query {
	q.skip = skip
	return q
}

// Select restricts the result documents to the given fields.
func (q *Query) Select(fieldNames ...string) *Query {
	q.includes = append(q.includes, fieldNames...)
	return q
}

// Omit removes the given fields from the result documents.
func (q *Query) Omit(fieldNames ...string) *Query {
	q.excludes = append(q.excludes, fieldNames...)
	return q
}

// FilterDocument renders the query's criteria into a filter document. The
// field names are as declared; canonicalization happens in the QueryMapper.
func (q *Query) FilterDocument() bson.D {
	if q.criteria == nil {
		return bson.D{}
	}
	return q.criteria.Document()
}

// Options compiles the non-filter parts of the query into executor options,
// resolving field names against the schema.
func (q *Query) Options(schema *core.SchemaCore) *core.FindOptions {
	options := &core.FindOptions{Limit: q.limit, Skip: q.skip}
	for _, sortRule := range q.sort {
		direction := 1
		if sortRule.Order < 0 {
			direction = -1
		}
		options.Sort = append(options.Sort, bson.E{
			Key:   core.ResolvePath(schema, sortRule.FieldName),
			Value: direction,
		})
	}
	for _, fieldName := range q.includes {
		options.Projection = append(options.Projection, bson.E{
			Key:   core.ResolvePath(schema, fieldName),
			Value: 1,
		})
	}
	for _, fieldName := range q.excludes {
		options.Projection = append(options.Projection, bson.E{
			Key:   core.ResolvePath(schema, fieldName),
			Value: 0,
		})
	}
	return options
}
