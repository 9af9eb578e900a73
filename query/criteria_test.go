package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCriteriaEq(t *testing.T) {
	doc := Where("status").Eq("active").Document()
	assert.Equal(t, bson.D{{Key: "status", Value: "active"}}, doc)
}

func TestCriteriaOperatorClauses(t *testing.T) {
	doc := Where("age").Gt(18).Lte(65).Document()
	assert.Equal(t, bson.D{{Key: "age", Value: bson.D{
		{Key: "$gt", Value: 18},
		{Key: "$lte", Value: 65},
	}}}, doc)
}

func TestCriteriaRepeatedOperatorReplaces(t *testing.T) {
	doc := Where("age").Gt(18).Gt(21).Document()
	assert.Equal(t, bson.D{{Key: "age", Value: bson.D{
		{Key: "$gt", Value: 21},
	}}}, doc)
}

func TestCriteriaAnd(t *testing.T) {
	doc := Where("age").Gt(18).
		And(Where("status").Eq("active")).
		Document()

	assert.Equal(t, bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: 18}}}},
		bson.D{{Key: "status", Value: "active"}},
	}}}, doc)
}

func TestCriteriaNestedCombinators(t *testing.T) {
	doc := Where("a").Eq(1).
		Or(Where("b").Eq(2)).
		And(Where("c").Eq(3)).
		Document()

	assert.Equal(t, bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "a", Value: 1}},
			bson.D{{Key: "b", Value: 2}},
		}}},
		bson.D{{Key: "c", Value: 3}},
	}}}, doc)
}

func TestCriteriaNotField(t *testing.T) {
	doc := Where("age").Gt(18).Not().Document()
	assert.Equal(t, bson.D{{Key: "age", Value: bson.D{
		{Key: "$not", Value: bson.D{{Key: "$gt", Value: 18}}},
	}}}, doc)
}

func TestCriteriaNotEquality(t *testing.T) {
	doc := Where("status").Eq("active").Not().Document()
	assert.Equal(t, bson.D{{Key: "status", Value: bson.D{
		{Key: "$not", Value: bson.D{{Key: "$eq", Value: "active"}}},
	}}}, doc)
}

func TestCriteriaNotCombinator(t *testing.T) {
	doc := Where("a").Eq(1).Or(Where("b").Eq(2)).Not().Document()
	assert.Equal(t, bson.D{{Key: "$nor", Value: bson.A{
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "a", Value: 1}},
			bson.D{{Key: "b", Value: 2}},
		}}},
	}}}, doc)
}

func TestCriteriaIn(t *testing.T) {
	doc := Where("status").In("new", "active").Document()
	assert.Equal(t, bson.D{{Key: "status", Value: bson.D{
		{Key: "$in", Value: bson.A{"new", "active"}},
	}}}, doc)
}

func TestCriteriaNil(t *testing.T) {
	doc := Where("deletedAt").Nil().Document()
	assert.Equal(t, bson.D{{Key: "deletedAt", Value: bson.D{
		{Key: "$eq", Value: nil},
	}}}, doc)
}

func TestCriteriaLike(t *testing.T) {
	doc := Where("name").Like("%smith_").Document()
	assert.Equal(t, bson.D{{Key: "name", Value: bson.D{
		{Key: "$regex", Value: primitive.Regex{Pattern: ".*smith.", Options: "i"}},
	}}}, doc)
}

func TestCriteriaLikeEscapesRegexMeta(t *testing.T) {
	doc := Where("path").Like("a.b%").Document()
	assert.Equal(t, bson.D{{Key: "path", Value: bson.D{
		{Key: "$regex", Value: primitive.Regex{Pattern: `a\.b.*`, Options: "i"}},
	}}}, doc)
}

func TestCriteriaElemMatch(t *testing.T) {
	doc := Where("items").ElemMatch(Where("price").Gt(100)).Document()
	assert.Equal(t, bson.D{{Key: "items", Value: bson.D{
		{Key: "$elemMatch", Value: bson.D{
			{Key: "price", Value: bson.D{{Key: "$gt", Value: 100}}},
		}},
	}}}, doc)
}

func TestCriteriaDocumentIdempotent(t *testing.T) {
	crit := Where("age").Gt(18).And(Where("status").Eq("active"))
	assert.Equal(t, crit.Document(), crit.Document())
}

func TestCriteriaNilReceiver(t *testing.T) {
	var crit *Criteria
	assert.Equal(t, bson.D{}, crit.Document())
}
