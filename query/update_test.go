package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestUpdateSet(t *testing.T) {
	doc := NewUpdate().Set("status", "shipped").Document()
	assert.Equal(t, bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: "shipped"},
	}}}, doc)
}

func TestUpdateOperatorOrder(t *testing.T) {
	doc := NewUpdate().
		Set("status", "shipped").
		Inc("version", 1).
		Set("carrier", "dhl").
		Document()

	// Operators keep first-use order; clauses group under their operator.
	assert.Equal(t, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "status", Value: "shipped"},
			{Key: "carrier", Value: "dhl"},
		}},
		{Key: "$inc", Value: bson.D{
			{Key: "version", Value: 1},
		}},
	}, doc)
}

func TestUpdateRepeatedFieldReplaces(t *testing.T) {
	doc := NewUpdate().Set("status", "a").Set("status", "b").Document()
	assert.Equal(t, bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: "b"},
	}}}, doc)
}

func TestUpdateUnset(t *testing.T) {
	doc := NewUpdate().Unset("legacy", "draft").Document()
	assert.Equal(t, bson.D{{Key: "$unset", Value: bson.D{
		{Key: "legacy", Value: 1},
		{Key: "draft", Value: 1},
	}}}, doc)
}

func TestUpdatePushEach(t *testing.T) {
	doc := NewUpdate().PushEach("tags", "a", "b").Document()
	assert.Equal(t, bson.D{{Key: "$push", Value: bson.D{
		{Key: "tags", Value: bson.D{{Key: "$each", Value: bson.A{"a", "b"}}}},
	}}}, doc)
}

func TestUpdateRename(t *testing.T) {
	doc := NewUpdate().Rename("oldName", "newName").Document()
	assert.Equal(t, bson.D{{Key: "$rename", Value: bson.D{
		{Key: "oldName", Value: "newName"},
	}}}, doc)
}

func TestUpdateIsEmpty(t *testing.T) {
	assert.True(t, NewUpdate().IsEmpty())
	assert.True(t, (*Update)(nil).IsEmpty())
	assert.False(t, NewUpdate().Set("a", 1).IsEmpty())
	assert.Equal(t, bson.D{}, NewUpdate().Document())
}

func TestUpdateDocumentIdempotent(t *testing.T) {
	upd := NewUpdate().Set("status", "shipped").Inc("version", 1)
	assert.Equal(t, upd.Document(), upd.Document())
}
