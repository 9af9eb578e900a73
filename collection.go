// Package talos is a document ODM built around explicit translation. This
// file defines the Collection[T], which represents the entry point for
// working with a specific schema (entity). A Collection handles persistence,
// queries, pipeline runs, hooks, and event emission.
package talos

import (
	"context"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/leandroluk/talos/aggregation"
	"github.com/leandroluk/talos/core"
	"github.com/leandroluk/talos/query"
)

// Collection represents a repository-like abstraction for a schema T.
//
// It wraps a SchemaMeta[T] and an Executor, exposing high-level operations
// such as Insert, FindOne, Find, Update, Delete, Count, and Aggregate. Every
// filter, update, and pipeline document is compiled through the query and
// aggregation packages before reaching the executor, so field names are
// canonical and values are wire-native by the time they leave this type.
type Collection[T any] struct {
	schema       *core.SchemaMeta[T]
	executor     core.Executor
	queryMapper  *query.QueryMapper
	updateMapper *query.UpdateMapper
}

// NewCollection creates a new Collection instance bound to a schema and
// executor.
//
// Example:
//
//	orders := talos.NewCollection(orderSchema, executor)
func NewCollection[T any](schema *core.SchemaMeta[T], executor core.Executor) *Collection[T] {
	converter := core.DefaultConverter{}
	return &Collection[T]{
		schema:       schema,
		executor:     executor,
		queryMapper:  query.NewQueryMapper(converter),
		updateMapper: query.NewUpdateMapper(converter),
	}
}

// Schema returns the schema metadata the collection is bound to.
func (c *Collection[T]) Schema() *core.SchemaMeta[T] { return c.schema }

// runPre executes all registered pre-hooks for the given phase.
func (c *Collection[T]) runPre(hook core.PreHook, doc *T) error {
	for _, fn := range c.schema.PreHookList[hook] {
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

// runPost executes all registered post-hooks for the given phase.
func (c *Collection[T]) runPost(hook core.PostHook, doc *T) error {
	for _, fn := range c.schema.PostHookList[hook] {
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

// setTimeField writes now into a time.Time or *time.Time struct field.
func setTimeField(field reflect.Value, now time.Time) {
	if !field.IsValid() || !field.CanSet() {
		return
	}
	switch field.Type() {
	case reflect.TypeOf(time.Time{}):
		field.Set(reflect.ValueOf(now))
	case reflect.TypeOf(&time.Time{}):
		field.Set(reflect.ValueOf(&now))
	}
}

// stampTimestamps sets the createdAt/updatedAt fields cached on the schema.
func (c *Collection[T]) stampTimestamps(doc *T, now time.Time, insert bool) {
	val := reflect.ValueOf(doc).Elem()
	if insert {
		if f := c.schema.CreatedAtField(); f != nil {
			setTimeField(val.FieldByName(f.StructFieldName), now)
		}
	}
	if f := c.schema.UpdatedAtField(); f != nil {
		setTimeField(val.FieldByName(f.StructFieldName), now)
	}
}

// Insert persists the given documents.
//
// It sets createdAt and updatedAt fields (if defined in the schema), executes
// PreInsert hooks, performs the insert via the executor, executes PostInsert
// hooks, and emits an EventInsert.
func (c *Collection[T]) Insert(ctx context.Context, docs ...*T) error {
	if len(docs) == 0 {
		return nil
	}
	return dispatchOperation(ctx, OperationInsert, docs, func() error {
		now := time.Now()
		raw := make([]any, 0, len(docs))
		for _, doc := range docs {
			c.stampTimestamps(doc, now, true)
			if err := c.runPre(core.PreInsert, doc); err != nil {
				return err
			}
			raw = append(raw, doc)
		}
		if err := c.executor.Insert(ctx, c.schema.Core(), raw...); err != nil {
			return err
		}
		for _, doc := range docs {
			if err := c.runPost(core.PostInsert, doc); err != nil {
				return err
			}
		}
		Emit(EventInsert, InsertPayload[T]{Schema: c.schema.Core(), Docs: docs})
		return nil
	})
}

// compileQuery translates a query into the canonical filter document and
// find options. A nil query compiles to an empty filter.
func (c *Collection[T]) compileQuery(q *query.Query) (bson.D, *core.FindOptions) {
	if q == nil {
		return bson.D{}, nil
	}
	filter := c.queryMapper.MapDocument(q.FilterDocument(), c.schema.Core())
	return filter, q.Options(c.schema.Core())
}

// FindOne retrieves the first document matching the query.
//
// It executes PreFind hooks, compiles and runs the query, executes PostFind
// hooks, and emits an EventFind. A miss returns the executor's no-documents
// error unchanged.
func (c *Collection[T]) FindOne(ctx context.Context, q *query.Query) (*T, error) {
	var zero T
	_ = c.runPre(core.PreFind, &zero)

	filter, options := c.compileQuery(q)
	var result *T
	err := dispatchOperation(ctx, OperationFind, filter, func() error {
		value := new(T)
		if err := c.executor.FindOne(ctx, c.schema.Core(), filter, options, value); err != nil {
			return err
		}
		if err := c.runPost(core.PostFind, value); err != nil {
			return err
		}
		Emit(EventFind, FindPayload{Schema: c.schema.Core(), Filter: filter})
		result = value
		return nil
	})
	return result, err
}

// Find retrieves all documents matching the query.
//
// It executes PreFind hooks, compiles and runs the query, executes PostFind
// hooks per document, and emits an EventFind.
func (c *Collection[T]) Find(ctx context.Context, q *query.Query) ([]T, error) {
	var zero T
	_ = c.runPre(core.PreFind, &zero)

	filter, options := c.compileQuery(q)
	var results []T
	err := dispatchOperation(ctx, OperationFind, filter, func() error {
		if err := c.executor.Find(ctx, c.schema.Core(), filter, options, &results); err != nil {
			return err
		}
		for i := range results {
			if err := c.runPost(core.PostFind, &results[i]); err != nil {
				return err
			}
		}
		Emit(EventFind, FindPayload{Schema: c.schema.Core(), Filter: filter})
		return nil
	})
	return results, err
}

// Update applies an update to all documents matching the criteria.
//
// It stamps the updatedAt field (if defined in the schema), compiles both
// documents through the mappers, performs the update via the executor, and
// emits an EventUpdate.
func (c *Collection[T]) Update(ctx context.Context, criteria *query.Criteria, update *query.Update) error {
	if update == nil || update.IsEmpty() {
		return nil
	}
	if f := c.schema.UpdatedAtField(); f != nil {
		update.CurrentDate(f.StructFieldName)
	}
	filter := c.queryMapper.MapCriteria(criteria, c.schema.Core())
	compiled := c.updateMapper.MapUpdate(update.Document(), c.schema.Core())
	return dispatchOperation(ctx, OperationUpdate, compiled, func() error {
		if err := c.executor.Update(ctx, c.schema.Core(), filter, compiled); err != nil {
			return err
		}
		Emit(EventUpdate, UpdatePayload{Schema: c.schema.Core(), Filter: filter, Update: compiled})
		return nil
	})
}

// Delete removes all documents matching the criteria.
func (c *Collection[T]) Delete(ctx context.Context, criteria *query.Criteria) error {
	filter := c.queryMapper.MapCriteria(criteria, c.schema.Core())
	return dispatchOperation(ctx, OperationDelete, filter, func() error {
		if err := c.executor.Delete(ctx, c.schema.Core(), filter); err != nil {
			return err
		}
		Emit(EventDelete, DeletePayload{Schema: c.schema.Core(), Filter: filter})
		return nil
	})
}

// Count returns the number of documents matching the criteria.
func (c *Collection[T]) Count(ctx context.Context, criteria *query.Criteria) (int64, error) {
	filter := c.queryMapper.MapCriteria(criteria, c.schema.Core())
	var count int64
	err := dispatchOperation(ctx, OperationFind, filter, func() error {
		var err error
		count, err = c.executor.Count(ctx, c.schema.Core(), filter)
		return err
	})
	return count, err
}

// Aggregate compiles a pipeline against the collection schema, runs it via
// the executor, and decodes the resulting documents into results, which must
// be a pointer to a slice. An EventAggregate is emitted with the compiled
// stage documents.
//
// Example:
//
//	var rows []OrderTotal
//	err := orders.Aggregate(ctx, aggregation.NewPipeline(
//	    aggregation.Project("customerId").
//	        AndExpression("price * quantity").As("total"),
//	    aggregation.Match(query.Where("total").Gt(100)),
//	), &rows)
func (c *Collection[T]) Aggregate(ctx context.Context, pipeline *aggregation.Pipeline, results any) error {
	compiled, err := pipeline.RenderFor(c.schema.Core())
	if err != nil {
		return err
	}
	return dispatchOperation(ctx, OperationAggregate, compiled, func() error {
		if err := c.executor.Aggregate(ctx, c.schema.Core(), compiled, results); err != nil {
			return err
		}
		Emit(EventAggregate, AggregatePayload{Schema: c.schema.Core(), Pipeline: compiled})
		return nil
	})
}
