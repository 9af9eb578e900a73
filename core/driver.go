// Package core provides the fundamental building blocks of the talos ODM.
// This file defines the executor port: the narrow contract through which
// compiled filter, update, and pipeline documents reach the backing database.
package core

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Sort represents an ordering rule used in queries.
//
// FieldName specifies the document field to sort by (already resolved to its
// canonical key). Order determines the direction: 1 for ascending, -1 for
// descending.
type Sort struct {
	FieldName string
	Order     int // 1 = ASC, -1 = DESC
}

// FindOptions carries the non-filter parts of a compiled query: ordering,
// pagination, and the projection document.
type FindOptions struct {
	Sort       bson.D
	Limit      int64
	Skip       int64
	Projection bson.D
}

// Transaction defines the contract for database transaction management.
//
// Implementations must provide atomic commit and rollback semantics.
type Transaction interface {
	// Commit finalizes the transaction and makes all changes permanent.
	Commit(ctx context.Context) error
	// Rollback reverts the transaction, discarding all changes.
	Rollback(ctx context.Context) error
}

// Executor defines the contract for the component that sends compiled
// documents to the backing database and returns results.
//
// Every document an Executor receives is already fully translated: field
// names are canonical and values are wire-native. The translation core never
// performs network I/O itself; all driver-level concerns (connections,
// sessions, server errors) live behind this interface.
type Executor interface {
	// Connect establishes a new connection or validates connectivity.
	Connect(ctx context.Context) error
	// Ping checks if the underlying database is reachable.
	Ping(ctx context.Context) error
	// Close terminates the connection and releases resources.
	Close(ctx context.Context) error

	// Transaction starts a new database transaction.
	Transaction(ctx context.Context) (Transaction, error)

	// Insert persists one or more documents.
	Insert(ctx context.Context, schema *SchemaCore, documents ...any) error
	// FindOne retrieves a single document matching the filter and decodes it
	// into result. A miss leaves result untouched and returns ErrNoDocuments
	// from the underlying driver.
	FindOne(ctx context.Context, schema *SchemaCore, filter bson.D, options *FindOptions, result any) error
	// Find retrieves all documents matching the filter and decodes them into
	// results, which must be a pointer to a slice.
	Find(ctx context.Context, schema *SchemaCore, filter bson.D, options *FindOptions, results any) error
	// Update applies a compiled update document to all documents matching the filter.
	Update(ctx context.Context, schema *SchemaCore, filter bson.D, update bson.D) error
	// Delete removes all documents matching the filter.
	Delete(ctx context.Context, schema *SchemaCore, filter bson.D) error
	// Count returns the number of documents matching the filter.
	Count(ctx context.Context, schema *SchemaCore, filter bson.D) (int64, error)
	// Aggregate runs a compiled pipeline and decodes the resulting documents
	// into results, which must be a pointer to a slice.
	Aggregate(ctx context.Context, schema *SchemaCore, pipeline []bson.D, results any) error
}
