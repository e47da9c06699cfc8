package docstore

import (
	"errors"
	"testing"
	"time"

	"github.com/256dpi/lungo/bsonkit"
	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIDKey_NumbersShareAKey(t *testing.T) {
	want := IDKey(5)
	for _, id := range []any{int32(5), int64(5), uint8(5), 5.0, float32(5)} {
		assert.Equal(t, want, IDKey(id), "%T", id)
	}
	assert.NotEqual(t, want, IDKey(5.5))
	assert.NotEqual(t, want, IDKey("5"))
	assert.NotEqual(t, IDKey("n:5"), want)
}

func TestIDKey_SurvivesRoundTrip(t *testing.T) {
	when := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	oid := primitive.NewObjectID()
	for _, id := range []any{7, int64(1) << 40, 2.5, "w1", when, oid, true} {
		doc, err := Encode(docquery.Document{"_id": id})
		require.NoError(t, err)
		assert.Equal(t, IDKey(id), IDKey(bsonkit.Get(doc, "_id")), "%T", id)
	}
}

func TestKeyable(t *testing.T) {
	assert.True(t, Keyable("a"))
	assert.True(t, Keyable(3))
	assert.True(t, Keyable(primitive.NewObjectID()))
	assert.False(t, Keyable(nil))
	assert.False(t, Keyable(map[string]any{"$in": []any{1}}))
	assert.False(t, Keyable(bson.D{{Key: "a", Value: 1}}))
}

func TestEncodeDecode(t *testing.T) {
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := docquery.Document{"_id": "a", "n": 3, "at": when, "meta": docquery.Document{"k": "v"}, "tags": []any{"x"}}

	doc, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, int32(3), bsonkit.Get(doc, "n"))
	assert.Equal(t, "v", bsonkit.Get(doc, "meta.k"))

	out, err := Decode(doc)
	require.NoError(t, err)
	assert.True(t, docquery.SameDocument(in, out))

	empty, err := Encode(nil)
	require.NoError(t, err)
	assert.Empty(t, *empty)
}

func TestCollection_SortAndUniqueIndex(t *testing.T) {
	coll, err := NewCollection([]domainCollection.IndexSpec{
		{Collection: "wallets", Fields: []string{"user_id"}, Unique: true},
	})
	require.NoError(t, err)

	for _, d := range []docquery.Document{
		{"_id": "a", "user_id": "a", "balance": 10},
		{"_id": "b", "user_id": "b", "balance": int64(30)},
		{"_id": "c", "user_id": "c"},
		{"_id": "d", "user_id": "d", "balance": 20.5},
	} {
		doc, err := Encode(d)
		require.NoError(t, err)
		_, err = coll.Insert(doc)
		require.NoError(t, err)
	}

	res, err := coll.Find(&bson.D{}, SortDoc([]docquery.SortField{{Field: "balance", Desc: true}}), 0, 0)
	require.NoError(t, err)
	docs, err := DecodeList(res.Matched)
	require.NoError(t, err)
	var users []string
	for _, d := range docs {
		users = append(users, d["user_id"].(string))
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, users)

	dup, err := Encode(docquery.Document{"_id": "e", "user_id": "a"})
	require.NoError(t, err)
	_, err = coll.Insert(dup)
	assert.ErrorIs(t, Translate(err), ErrDuplicateKey)
}

func TestUpsert_SeedsFromQuery(t *testing.T) {
	coll, err := NewCollection(nil)
	require.NoError(t, err)
	query, err := Encode(docquery.Query{"guild_id": "g1", "n": docquery.Document{"$gt": 1}})
	require.NoError(t, err)
	update, err := Encode(docquery.Update{"$set": docquery.Document{"prefix": "?"}})
	require.NoError(t, err)

	doc, err := Upsert(coll, query, update)
	require.NoError(t, err)
	out, err := Decode(doc)
	require.NoError(t, err)
	assert.Equal(t, "g1", out["guild_id"])
	assert.Equal(t, "?", out["prefix"])
	assert.NotContains(t, out, "n")
	assert.IsType(t, "", out["_id"])
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, Translate(nil))
	other := errors.New("boom")
	assert.Equal(t, other, Translate(other))
}
