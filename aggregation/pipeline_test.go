package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/leandroluk/talos/query"
)

func TestPipelineProjectThenMatch(t *testing.T) {
	pipeline := NewPipeline(
		Project("customerId").
			AndExpression("price * quantity").As("total"),
		Match(query.Where("total").Gt(100)),
	)

	docs, err := pipeline.RenderFor(orderSchema())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, bson.D{{Key: "$project", Value: bson.D{
		{Key: "customerId", Value: 1},
		{Key: "total", Value: bson.D{{Key: "$multiply", Value: bson.A{"$price", "$quantity"}}}},
	}}}, docs[0])

	// The match resolves against the projected shape, not the schema.
	assert.Equal(t, bson.D{{Key: "$match", Value: bson.D{
		{Key: "total", Value: bson.D{{Key: "$gt", Value: 100}}},
	}}}, docs[1])
}

func TestPipelineStageIsolation(t *testing.T) {
	pipeline := NewPipeline(
		Project("customerId").
			AndExpression("price * quantity").As("total"),
		Match(query.Where("price").Gt(10)),
	)

	_, err := pipeline.RenderFor(orderSchema())
	require.Error(t, err)
	var unresolved *UnresolvedFieldError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "price", unresolved.Name)
	assert.Contains(t, err.Error(), "stage 1")
}

func TestPipelineGroupAfterProject(t *testing.T) {
	pipeline := NewPipeline(
		Project("customerId").
			AndExpression("price * quantity").As("total"),
		GroupBy("customerId").
			Sum("total").As("orderTotal").
			Count().As("orders"),
		Sort("orderTotal", -1),
	)

	docs, err := pipeline.RenderFor(orderSchema())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: "$customerId"},
		{Key: "orderTotal", Value: bson.D{{Key: "$sum", Value: "$total"}}},
		{Key: "orders", Value: bson.D{{Key: "$sum", Value: int64(1)}}},
	}}}, docs[1])

	// The sort sees the bucket shape exposed by the group.
	assert.Equal(t, bson.D{{Key: "$sort", Value: bson.D{
		{Key: "orderTotal", Value: -1},
	}}}, docs[2])
}

func TestPipelineGroupByNothing(t *testing.T) {
	docs, err := NewPipeline(
		GroupBy().Sum("price").As("revenue"),
	).RenderFor(orderSchema())
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: nil},
		{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$price"}}},
	}}}, docs[0])
}

func TestPipelineGroupByCompositeKey(t *testing.T) {
	docs, err := NewPipeline(
		GroupBy("customerId", "quantity").Count().As("n"),
	).RenderFor(orderSchema())
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: bson.D{
			{Key: "customerId", Value: "$customerId"},
			{Key: "quantity", Value: "$quantity"},
		}},
		{Key: "n", Value: bson.D{{Key: "$sum", Value: int64(1)}}},
	}}}, docs[0])
}

func TestPipelineGroupAccumulatorNeedsAlias(t *testing.T) {
	_, err := NewPipeline(
		GroupBy("customerId").Sum("price"),
	).RenderFor(orderSchema())
	var invalid *InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
}

func TestPipelineAddFieldsInherits(t *testing.T) {
	pipeline := NewPipeline(
		AddFields().SetExpression("discounted", "price * 0.9"),
		Match(query.Where("discounted").Lt(50).And(query.Where("CustomerID").Eq("c-1"))),
	)

	docs, err := pipeline.RenderFor(orderSchema())
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "$addFields", Value: bson.D{
		{Key: "discounted", Value: bson.D{{Key: "$multiply", Value: bson.A{"$price", 0.9}}}},
	}}}, docs[0])

	// Both the added field and the inherited schema fields resolve.
	assert.Equal(t, bson.D{{Key: "$match", Value: bson.D{
		{Key: "$and", Value: bson.A{
			bson.D{{Key: "discounted", Value: bson.D{{Key: "$lt", Value: 50}}}},
			bson.D{{Key: "customerId", Value: "c-1"}},
		}},
	}}}, docs[1])
}

func TestPipelineSortSkipLimit(t *testing.T) {
	docs, err := NewPipeline(
		Sort("Price", -1).And("ID", 1),
		Skip(20),
		Limit(10),
	).RenderFor(orderSchema())
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "$sort", Value: bson.D{
		{Key: "price", Value: -1},
		{Key: "_id", Value: 1},
	}}}, docs[0])
	assert.Equal(t, bson.D{{Key: "$skip", Value: int64(20)}}, docs[1])
	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(10)}}, docs[2])
}

func TestPipelineUnwindAndLookup(t *testing.T) {
	pipeline := NewPipeline(
		Unwind("Items"),
		Lookup("customers", "CustomerID", "_id", "customer"),
		Match(query.Where("customer.name").Eq("Ada")),
	)

	docs, err := pipeline.RenderFor(orderSchema())
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "$unwind", Value: "$items"}}, docs[0])
	assert.Equal(t, bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: "customers"},
		{Key: "localField", Value: "customerId"},
		{Key: "foreignField", Value: "_id"},
		{Key: "as", Value: "customer"},
	}}}, docs[1])
	// The joined field is visible downstream, including dotted access.
	assert.Equal(t, bson.D{{Key: "$match", Value: bson.D{
		{Key: "customer.name", Value: "Ada"},
	}}}, docs[2])
}

func TestPipelineCountExposesOnlyItsField(t *testing.T) {
	docs, err := NewPipeline(
		Count("matches"),
		Sort("matches", -1),
	).RenderFor(orderSchema())
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$count", Value: "matches"}}, docs[0])
	assert.Equal(t, bson.D{{Key: "$sort", Value: bson.D{{Key: "matches", Value: -1}}}}, docs[1])

	_, err = NewPipeline(
		Count("matches"),
		Sort("price", 1),
	).RenderFor(orderSchema())
	var unresolved *UnresolvedFieldError
	require.ErrorAs(t, err, &unresolved)
}

func TestPipelineUnset(t *testing.T) {
	docs, err := NewPipeline(
		Unset("CustomerID", "Items"),
	).RenderFor(orderSchema())
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$unset", Value: bson.A{"customerId", "items"}}}, docs[0])
}

func TestPipelineReplaceRootTurnsLenient(t *testing.T) {
	pipeline := NewPipeline(
		Project("customerId").AndExpression("price * quantity").As("total"),
		ReplaceRoot(Apply("mergeObjects", Ref("total"), Literal(bson.D{{Key: "kind", Value: "order"}}))),
		Match(query.Where("anything").Eq(1)),
	)

	docs, err := pipeline.RenderFor(orderSchema())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, bson.D{{Key: "$replaceRoot", Value: bson.D{
		{Key: "newRoot", Value: bson.D{{Key: "$mergeObjects", Value: bson.A{
			"$total",
			bson.D{{Key: "kind", Value: "order"}},
		}}}},
	}}}, docs[1])

	// After the root was replaced the shape is unknown; lookups pass through.
	assert.Equal(t, bson.D{{Key: "$match", Value: bson.D{
		{Key: "anything", Value: 1},
	}}}, docs[2])
}

func TestPipelineProjectExclusionRules(t *testing.T) {
	docs, err := NewPipeline(
		Project("customerId").AndExclude("ID"),
	).RenderFor(orderSchema())
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$project", Value: bson.D{
		{Key: "customerId", Value: 1},
		{Key: "_id", Value: 0},
	}}}, docs[0])

	_, err = NewPipeline(
		Project("customerId").AndExclude("price"),
	).RenderFor(orderSchema())
	var invalid *InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
}

func TestPipelineProjectAlias(t *testing.T) {
	docs, err := NewPipeline(
		Project().And("CustomerID").As("buyer"),
		Sort("buyer", 1),
	).RenderFor(orderSchema())
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "$project", Value: bson.D{
		{Key: "buyer", Value: "$customerId"},
	}}}, docs[0])
	assert.Equal(t, bson.D{{Key: "$sort", Value: bson.D{{Key: "buyer", Value: 1}}}}, docs[1])
}

func TestPipelineProjectStructFieldName(t *testing.T) {
	docs, err := NewPipeline(
		Project("CustomerID"),
		Sort("CustomerID", 1),
	).RenderFor(orderSchema())
	require.NoError(t, err)

	// The projected key carries the written name so downstream references
	// resolve against the document the stage actually produced.
	assert.Equal(t, bson.D{{Key: "$project", Value: bson.D{
		{Key: "CustomerID", Value: "$customerId"},
	}}}, docs[0])
	assert.Equal(t, bson.D{{Key: "$sort", Value: bson.D{{Key: "CustomerID", Value: 1}}}}, docs[1])
}

func TestPipelineComputedProjectionNeedsAlias(t *testing.T) {
	_, err := NewPipeline(
		Project("customerId").AndExpression("price * 2"),
	).RenderFor(orderSchema())
	var invalid *InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
}

func TestPipelineRenderRepeatable(t *testing.T) {
	pipeline := NewPipeline(
		Project("customerId").AndExpression("price * quantity").As("total"),
		Match(query.Where("total").Gt(100)),
	)

	first, err := pipeline.RenderFor(orderSchema())
	require.NoError(t, err)
	second, err := pipeline.RenderFor(orderSchema())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPipelineAppendAndStages(t *testing.T) {
	pipeline := NewPipeline(Skip(1)).Append(Limit(2))
	assert.Len(t, pipeline.Stages(), 2)
}
