// Package driver provides the MongoDB executor implementation of the talos
// ODM. This file defines the MongoExecutor, which sends compiled filter,
// update, and pipeline documents to a MongoDB deployment.
package driver

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/leandroluk/talos/core"
)

// MongoExecutor implements core.Executor on top of the official MongoDB
// driver.
//
// Every document it receives is already fully translated by the query and
// aggregation packages: field names are canonical and values are wire-native.
// The executor only handles connections, sessions, and cursor plumbing.
type MongoExecutor struct {
	client          *mongo.Client
	defaultDatabase string
	logger          *zap.Logger
}

var _ core.Executor = (*MongoExecutor)(nil)

// MongoOption customizes a MongoExecutor during construction.
type MongoOption func(*MongoExecutor)

// WithLogger attaches a logger used for debug-level operation tracing. The
// default is a no-op logger.
func WithLogger(logger *zap.Logger) MongoOption {
	return func(executor *MongoExecutor) { executor.logger = logger }
}

// NewMongoExecutor connects to the deployment at uri and verifies
// connectivity with a ping before returning.
//
// Example:
//
//	executor, err := driver.NewMongoExecutor(ctx, "mongodb://localhost:27017", "shop")
func NewMongoExecutor(ctx context.Context, uri string, defaultDB string, options ...MongoOption) (*MongoExecutor, error) {
	opts := mopt.Client().ApplyURI(uri)
	opts.SetConnectTimeout(10 * time.Second).SetServerSelectionTimeout(10 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "mongo: connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "mongo: ping")
	}
	executor := &MongoExecutor{client: client, defaultDatabase: defaultDB, logger: zap.NewNop()}
	for _, option := range options {
		option(executor)
	}
	return executor, nil
}

func (executor *MongoExecutor) dbFor(schema *core.SchemaCore) *mongo.Database {
	dbName := executor.defaultDatabase
	if schema.Database != "" {
		dbName = schema.Database
	}
	if dbName == "" {
		panic("mongo: database name is empty (set it on the schema or on NewMongoExecutor)")
	}
	return executor.client.Database(dbName)
}

func (executor *MongoExecutor) coll(schema *core.SchemaCore) *mongo.Collection {
	if schema.Collection == "" {
		panic("mongo: schema has no collection name")
	}
	return executor.dbFor(schema).Collection(schema.Collection)
}

// withSession rebinds the context to the session of an active transaction,
// if the context carries one.
func (executor *MongoExecutor) withSession(ctx context.Context) context.Context {
	if tx := core.TransactionFrom(ctx); tx != nil {
		if mt, ok := tx.(*mongoTransaction); ok {
			return mongo.NewSessionContext(ctx, mt.session)
		}
	}
	return ctx
}

// Connect validates connectivity. The underlying client pool is established
// at construction, so Connect and Ping are equivalent.
func (executor *MongoExecutor) Connect(ctx context.Context) error {
	return executor.client.Ping(ctx, nil)
}

// Ping checks if the deployment is reachable.
func (executor *MongoExecutor) Ping(ctx context.Context) error {
	return executor.client.Ping(ctx, nil)
}

// Close disconnects the client and releases its resources.
func (executor *MongoExecutor) Close(ctx context.Context) error {
	return executor.client.Disconnect(ctx)
}

// Transaction starts a session-backed transaction. Bind it into a context
// with core.WithTransaction so subsequent operations join it.
func (executor *MongoExecutor) Transaction(ctx context.Context) (core.Transaction, error) {
	session, err := executor.client.StartSession()
	if err != nil {
		return nil, errors.Wrap(err, "mongo: start session")
	}
	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return nil, errors.Wrap(err, "mongo: start transaction")
	}
	return &mongoTransaction{session: session}, nil
}

// Insert persists the given documents with a single InsertMany.
func (executor *MongoExecutor) Insert(ctx context.Context, schema *core.SchemaCore, documents ...any) error {
	if len(documents) == 0 {
		return nil
	}
	ctx = executor.withSession(ctx)
	executor.logger.Debug("mongo insert",
		zap.String("collection", schema.Collection), zap.Int("count", len(documents)))
	_, err := executor.coll(schema).InsertMany(ctx, documents)
	return errors.Wrap(err, "mongo: insert")
}

func findOptionsFor(options *core.FindOptions) *mopt.FindOptions {
	findOpts := mopt.Find()
	if options != nil {
		if len(options.Sort) > 0 {
			findOpts.SetSort(options.Sort)
		}
		if len(options.Projection) > 0 {
			findOpts.SetProjection(options.Projection)
		}
		if options.Skip > 0 {
			findOpts.SetSkip(options.Skip)
		}
		if options.Limit > 0 {
			findOpts.SetLimit(options.Limit)
		}
	}
	return findOpts
}

// FindOne retrieves a single document matching the filter and decodes it into
// result. A miss returns mongo.ErrNoDocuments.
func (executor *MongoExecutor) FindOne(ctx context.Context, schema *core.SchemaCore, filter bson.D, options *core.FindOptions, result any) error {
	ctx = executor.withSession(ctx)
	executor.logger.Debug("mongo findOne",
		zap.String("collection", schema.Collection), zap.Any("filter", filter))

	findOneOpts := mopt.FindOne()
	if options != nil {
		if len(options.Sort) > 0 {
			findOneOpts.SetSort(options.Sort)
		}
		if len(options.Projection) > 0 {
			findOneOpts.SetProjection(options.Projection)
		}
		if options.Skip > 0 {
			findOneOpts.SetSkip(options.Skip)
		}
	}
	err := executor.coll(schema).FindOne(ctx, filter, findOneOpts).Decode(result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	return errors.Wrap(err, "mongo: findOne")
}

// Find retrieves all documents matching the filter and decodes them into
// results, which must be a pointer to a slice.
func (executor *MongoExecutor) Find(ctx context.Context, schema *core.SchemaCore, filter bson.D, options *core.FindOptions, results any) error {
	ctx = executor.withSession(ctx)
	executor.logger.Debug("mongo find",
		zap.String("collection", schema.Collection), zap.Any("filter", filter))

	cursor, err := executor.coll(schema).Find(ctx, filter, findOptionsFor(options))
	if err != nil {
		return errors.Wrap(err, "mongo: find")
	}
	defer cursor.Close(ctx)
	return errors.Wrap(cursor.All(ctx, results), "mongo: decode results")
}

// Update applies a compiled update document to all documents matching the filter.
func (executor *MongoExecutor) Update(ctx context.Context, schema *core.SchemaCore, filter bson.D, update bson.D) error {
	ctx = executor.withSession(ctx)
	executor.logger.Debug("mongo update",
		zap.String("collection", schema.Collection), zap.Any("filter", filter))
	_, err := executor.coll(schema).UpdateMany(ctx, filter, update)
	return errors.Wrap(err, "mongo: update")
}

// Delete removes all documents matching the filter.
func (executor *MongoExecutor) Delete(ctx context.Context, schema *core.SchemaCore, filter bson.D) error {
	ctx = executor.withSession(ctx)
	executor.logger.Debug("mongo delete",
		zap.String("collection", schema.Collection), zap.Any("filter", filter))
	_, err := executor.coll(schema).DeleteMany(ctx, filter)
	return errors.Wrap(err, "mongo: delete")
}

// Count returns the number of documents matching the filter.
func (executor *MongoExecutor) Count(ctx context.Context, schema *core.SchemaCore, filter bson.D) (int64, error) {
	ctx = executor.withSession(ctx)
	count, err := executor.coll(schema).CountDocuments(ctx, filter)
	return count, errors.Wrap(err, "mongo: count")
}

// Aggregate runs a compiled pipeline and decodes the resulting documents into
// results, which must be a pointer to a slice.
func (executor *MongoExecutor) Aggregate(ctx context.Context, schema *core.SchemaCore, pipeline []bson.D, results any) error {
	ctx = executor.withSession(ctx)
	executor.logger.Debug("mongo aggregate",
		zap.String("collection", schema.Collection), zap.Int("stages", len(pipeline)))

	stages := make(mongo.Pipeline, len(pipeline))
	copy(stages, pipeline)
	cursor, err := executor.coll(schema).Aggregate(ctx, stages)
	if err != nil {
		return errors.Wrap(err, "mongo: aggregate")
	}
	defer cursor.Close(ctx)
	return errors.Wrap(cursor.All(ctx, results), "mongo: decode results")
}
