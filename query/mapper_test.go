package query

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/leandroluk/talos/core"
)

type orderItem struct {
	SKU      string          `bson:"sku"`
	Price    decimal.Decimal `bson:"price"`
	Quantity int             `bson:"quantity"`
}

type order struct {
	ID         string          `bson:"_id"`
	CustomerID string          `bson:"customerId"`
	Total      decimal.Decimal `bson:"total"`
	Status     string          `bson:"status"`
	Items      []orderItem     `bson:"items"`
	UpdatedAt  time.Time       `bson:"updatedAt"`
}

func orderSchema() *core.SchemaCore {
	return core.Schema[order](core.Collection[order]("orders")).Core()
}

func TestMapCriteriaResolvesFieldNames(t *testing.T) {
	mapper := NewQueryMapper(nil)

	mapped := mapper.MapCriteria(Where("CustomerID").Eq("c-1"), orderSchema())
	assert.Equal(t, bson.D{{Key: "customerId", Value: "c-1"}}, mapped)
}

func TestMapCriteriaIdentifier(t *testing.T) {
	mapper := NewQueryMapper(nil)

	mapped := mapper.MapCriteria(Where("ID").Eq("o-1"), orderSchema())
	assert.Equal(t, bson.D{{Key: "_id", Value: "o-1"}}, mapped)
}

func TestMapCriteriaCombinatorRecursion(t *testing.T) {
	mapper := NewQueryMapper(nil)

	crit := Where("CustomerID").Eq("c-1").
		And(Where("Status").In("new", "active").
			Or(Where("Items.Price").Gt(10)))
	mapped := mapper.MapCriteria(crit, orderSchema())

	assert.Equal(t, bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "customerId", Value: "c-1"}},
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{"new", "active"}}}}},
			bson.D{{Key: "items.price", Value: bson.D{{Key: "$gt", Value: 10}}}},
		}}},
	}}}, mapped)
}

func TestMapCriteriaConvertsValues(t *testing.T) {
	mapper := NewQueryMapper(nil)

	mapped := mapper.MapCriteria(Where("Total").Gt(decimal.RequireFromString("99.90")), orderSchema())

	require.Len(t, mapped, 1)
	clauses, ok := mapped[0].Value.(bson.D)
	require.True(t, ok)
	d128, ok := clauses[0].Value.(primitive.Decimal128)
	require.True(t, ok, "decimal leaf should convert, got %T", clauses[0].Value)
	// Decimal stringification drops trailing zeros; compare numerically.
	assert.True(t, decimal.RequireFromString("99.90").Equal(decimal.RequireFromString(d128.String())))
}

func TestMapCriteriaElemMatchUsesEmbeddedSchema(t *testing.T) {
	mapper := NewQueryMapper(nil)

	crit := Where("Items").ElemMatch(Where("Price").Gt(100))
	mapped := mapper.MapCriteria(crit, orderSchema())

	assert.Equal(t, bson.D{{Key: "items", Value: bson.D{
		{Key: "$elemMatch", Value: bson.D{
			{Key: "price", Value: bson.D{{Key: "$gt", Value: 100}}},
		}},
	}}}, mapped)
}

func TestMapCriteriaUnmappedFieldPassThrough(t *testing.T) {
	mapper := NewQueryMapper(nil)

	mapped := mapper.MapCriteria(Where("meta.tags").Eq("vip"), orderSchema())
	assert.Equal(t, bson.D{{Key: "meta.tags", Value: "vip"}}, mapped)
}

func TestMapDocumentIdempotent(t *testing.T) {
	mapper := NewQueryMapper(nil)
	schema := orderSchema()

	crit := Where("CustomerID").Eq("c-1").
		And(Where("Total").Gt(decimal.RequireFromString("5")))
	once := mapper.MapCriteria(crit, schema)
	twice := mapper.MapDocument(once, schema)
	assert.Equal(t, once, twice)
}

func TestMapCriteriaNil(t *testing.T) {
	mapper := NewQueryMapper(nil)
	assert.Equal(t, bson.D{}, mapper.MapCriteria(nil, orderSchema()))
}

func TestMapUpdateResolvesFieldNames(t *testing.T) {
	mapper := NewUpdateMapper(nil)

	upd := NewUpdate().
		Set("Status", "shipped").
		Inc("Items.0.Quantity", 1)
	mapped := mapper.MapUpdate(upd.Document(), orderSchema())

	assert.Equal(t, bson.D{
		{Key: "$set", Value: bson.D{{Key: "status", Value: "shipped"}}},
		{Key: "$inc", Value: bson.D{{Key: "items.0.quantity", Value: 1}}},
	}, mapped)
}

func TestMapUpdateRenameResolvesBothSides(t *testing.T) {
	mapper := NewUpdateMapper(nil)

	mapped := mapper.MapUpdate(NewUpdate().Rename("CustomerID", "Status").Document(), orderSchema())
	assert.Equal(t, bson.D{{Key: "$rename", Value: bson.D{
		{Key: "customerId", Value: "status"},
	}}}, mapped)
}

func TestMapUpdateConvertsValues(t *testing.T) {
	mapper := NewUpdateMapper(nil)

	mapped := mapper.MapUpdate(NewUpdate().Set("Total", decimal.RequireFromString("12.50")).Document(), orderSchema())

	clauses, ok := mapped[0].Value.(bson.D)
	require.True(t, ok)
	_, ok = clauses[0].Value.(primitive.Decimal128)
	assert.True(t, ok, "decimal should convert, got %T", clauses[0].Value)
}

func TestQueryOptions(t *testing.T) {
	q := NewQuery(Where("Status").Eq("active")).
		Sort("UpdatedAt", -1).
		Sort("ID", 1).
		Limit(10).
		Skip(20).
		Select("CustomerID", "Total")

	options := q.Options(orderSchema())

	assert.Equal(t, int64(10), options.Limit)
	assert.Equal(t, int64(20), options.Skip)
	assert.Equal(t, bson.D{
		{Key: "updatedAt", Value: -1},
		{Key: "_id", Value: 1},
	}, options.Sort)
	assert.Equal(t, bson.D{
		{Key: "customerId", Value: 1},
		{Key: "total", Value: 1},
	}, options.Projection)
}
