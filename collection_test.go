package talos

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/leandroluk/talos/aggregation"
	"github.com/leandroluk/talos/core"
	"github.com/leandroluk/talos/query"
)

type order struct {
	ID         string          `bson:"_id"`
	CustomerID string          `bson:"customerId"`
	Total      decimal.Decimal `bson:"total"`
	Status     string          `bson:"status"`
	CreatedAt  time.Time       `bson:"createdAt"`
	UpdatedAt  time.Time       `bson:"updatedAt"`
}

func newOrderSchema() *core.SchemaMeta[order] {
	return core.Schema[order](
		core.Collection[order]("orders"),
		core.OverrideField[order]("CreatedAt", core.CreatedAt()),
		core.OverrideField[order]("UpdatedAt", core.UpdatedAt()),
	)
}

// stubExecutor records the compiled documents handed to it.
type stubExecutor struct {
	inserted     []any
	lastFilter   bson.D
	lastOptions  *core.FindOptions
	lastUpdate   bson.D
	lastPipeline []bson.D
	count        int64
}

var _ core.Executor = (*stubExecutor)(nil)

func (s *stubExecutor) Connect(context.Context) error { return nil }
func (s *stubExecutor) Ping(context.Context) error    { return nil }
func (s *stubExecutor) Close(context.Context) error   { return nil }

func (s *stubExecutor) Transaction(context.Context) (core.Transaction, error) {
	return nil, nil
}

func (s *stubExecutor) Insert(_ context.Context, _ *core.SchemaCore, documents ...any) error {
	s.inserted = append(s.inserted, documents...)
	return nil
}

func (s *stubExecutor) FindOne(_ context.Context, _ *core.SchemaCore, filter bson.D, options *core.FindOptions, _ any) error {
	s.lastFilter = filter
	s.lastOptions = options
	return nil
}

func (s *stubExecutor) Find(_ context.Context, _ *core.SchemaCore, filter bson.D, options *core.FindOptions, _ any) error {
	s.lastFilter = filter
	s.lastOptions = options
	return nil
}

func (s *stubExecutor) Update(_ context.Context, _ *core.SchemaCore, filter bson.D, update bson.D) error {
	s.lastFilter = filter
	s.lastUpdate = update
	return nil
}

func (s *stubExecutor) Delete(_ context.Context, _ *core.SchemaCore, filter bson.D) error {
	s.lastFilter = filter
	return nil
}

func (s *stubExecutor) Count(_ context.Context, _ *core.SchemaCore, filter bson.D) (int64, error) {
	s.lastFilter = filter
	return s.count, nil
}

func (s *stubExecutor) Aggregate(_ context.Context, _ *core.SchemaCore, pipeline []bson.D, _ any) error {
	s.lastPipeline = pipeline
	return nil
}

func TestCollectionInsertStampsAndHooks(t *testing.T) {
	schema := newOrderSchema()
	executor := &stubExecutor{}
	orders := NewCollection(schema, executor)

	preCalled, postCalled := false, false
	schema.RegisterPreHook(core.PreInsert, func(o *order) error {
		preCalled = true
		assert.False(t, o.CreatedAt.IsZero(), "timestamps are stamped before pre-hooks run")
		return nil
	})
	schema.RegisterPostHook(core.PostInsert, func(*order) error {
		postCalled = true
		return nil
	})

	doc := &order{ID: "o-1", CustomerID: "c-1"}
	require.NoError(t, orders.Insert(context.Background(), doc))

	assert.True(t, preCalled)
	assert.True(t, postCalled)
	assert.False(t, doc.CreatedAt.IsZero())
	assert.False(t, doc.UpdatedAt.IsZero())
	require.Len(t, executor.inserted, 1)
	assert.Same(t, doc, executor.inserted[0])
}

func TestCollectionInsertNothing(t *testing.T) {
	executor := &stubExecutor{}
	orders := NewCollection(newOrderSchema(), executor)

	require.NoError(t, orders.Insert(context.Background()))
	assert.Empty(t, executor.inserted)
}

func TestCollectionFindCompilesQuery(t *testing.T) {
	executor := &stubExecutor{}
	orders := NewCollection(newOrderSchema(), executor)

	q := query.NewQuery(query.Where("CustomerID").Eq("c-1")).
		Sort("CreatedAt", -1).
		Limit(5)
	_, err := orders.Find(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "customerId", Value: "c-1"}}, executor.lastFilter)
	require.NotNil(t, executor.lastOptions)
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}}, executor.lastOptions.Sort)
	assert.Equal(t, int64(5), executor.lastOptions.Limit)
}

func TestCollectionFindNilQuery(t *testing.T) {
	executor := &stubExecutor{}
	orders := NewCollection(newOrderSchema(), executor)

	_, err := orders.Find(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, bson.D{}, executor.lastFilter)
}

func TestCollectionUpdateCompilesAndStamps(t *testing.T) {
	executor := &stubExecutor{}
	orders := NewCollection(newOrderSchema(), executor)

	err := orders.Update(context.Background(),
		query.Where("ID").Eq("o-1"),
		query.NewUpdate().Set("Status", "shipped"))
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "_id", Value: "o-1"}}, executor.lastFilter)
	assert.Equal(t, bson.D{
		{Key: "$set", Value: bson.D{{Key: "status", Value: "shipped"}}},
		{Key: "$currentDate", Value: bson.D{{Key: "updatedAt", Value: true}}},
	}, executor.lastUpdate)
}

func TestCollectionUpdateEmptyIsNoop(t *testing.T) {
	executor := &stubExecutor{}
	orders := NewCollection(newOrderSchema(), executor)

	require.NoError(t, orders.Update(context.Background(), query.Where("ID").Eq("o-1"), nil))
	require.NoError(t, orders.Update(context.Background(), query.Where("ID").Eq("o-1"), query.NewUpdate()))
	assert.Nil(t, executor.lastUpdate)
}

func TestCollectionDeleteAndCount(t *testing.T) {
	executor := &stubExecutor{count: 7}
	orders := NewCollection(newOrderSchema(), executor)

	require.NoError(t, orders.Delete(context.Background(), query.Where("Status").Eq("draft")))
	assert.Equal(t, bson.D{{Key: "status", Value: "draft"}}, executor.lastFilter)

	count, err := orders.Count(context.Background(), query.Where("Status").Eq("draft"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestCollectionCountConvertsValues(t *testing.T) {
	executor := &stubExecutor{}
	orders := NewCollection(newOrderSchema(), executor)

	_, err := orders.Count(context.Background(),
		query.Where("Total").Gt(decimal.RequireFromString("10")))
	require.NoError(t, err)

	clauses, ok := executor.lastFilter[0].Value.(bson.D)
	require.True(t, ok)
	_, ok = clauses[0].Value.(primitive.Decimal128)
	assert.True(t, ok, "decimal should reach the executor as Decimal128, got %T", clauses[0].Value)
}

func TestCollectionAggregateCompilesPipeline(t *testing.T) {
	executor := &stubExecutor{}
	orders := NewCollection(newOrderSchema(), executor)

	var rows []bson.M
	err := orders.Aggregate(context.Background(), aggregation.NewPipeline(
		aggregation.GroupBy("CustomerID").Count().As("orders"),
	), &rows)
	require.NoError(t, err)

	require.Len(t, executor.lastPipeline, 1)
	assert.Equal(t, bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: "$customerId"},
		{Key: "orders", Value: bson.D{{Key: "$sum", Value: int64(1)}}},
	}}}, executor.lastPipeline[0])
}

func TestCollectionAggregateCompileErrorSkipsExecutor(t *testing.T) {
	executor := &stubExecutor{}
	orders := NewCollection(newOrderSchema(), executor)

	var rows []bson.M
	err := orders.Aggregate(context.Background(), aggregation.NewPipeline(
		aggregation.Project("customerId"),
		aggregation.Sort("price", 1),
	), &rows)
	require.Error(t, err)
	assert.Nil(t, executor.lastPipeline)
}
