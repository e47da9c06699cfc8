// Package storetest checks that a document store behaves like the document
// server the collection facade was built against.
package storetest

import (
	"context"
	"testing"
	"time"

	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises store with a fresh collection per subtest. prefix keeps
// runs against a shared server apart.
func Run(t *testing.T, store domainCollection.IDocumentStore, prefix string) {
	ctx := context.Background()
	name := func(t *testing.T) string { return prefix + "_" + sanitize(t.Name()) }

	t.Run("InsertAndFindOne", func(t *testing.T) {
		c := store.Collection(name(t))
		id, err := c.InsertOne(ctx, docquery.Document{"user_id": "u1", "balance": int64(10)})
		require.NoError(t, err)
		require.NotNil(t, id)

		got, ok, err := c.FindOne(ctx, docquery.Query{"user_id": "u1"})
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, docquery.Equal(id, got["_id"]))
		assert.True(t, docquery.Equal(10, got["balance"]))

		_, ok, err = c.FindOne(ctx, docquery.Query{"user_id": "nobody"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("KeepsTypes", func(t *testing.T) {
		c := store.Collection(name(t))
		when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		_, err := c.InsertOne(ctx, docquery.Document{
			"_id": "k1", "at": when, "tags": []any{"a", "b"}, "meta": map[string]any{"n": int32(2)}, "nothing": nil,
		})
		require.NoError(t, err)

		got, ok, err := c.FindOne(ctx, docquery.Query{"_id": "k1"})
		require.NoError(t, err)
		require.True(t, ok)
		at, isTime := got["at"].(time.Time)
		require.True(t, isTime, "dates come back as time.Time, got %T", got["at"])
		assert.True(t, when.Equal(at))
		assert.True(t, docquery.Equal([]any{"a", "b"}, got["tags"]))
		assert.True(t, docquery.Equal(map[string]any{"n": 2}, got["meta"]))
		v, present := got["nothing"]
		assert.True(t, present)
		assert.Nil(t, v)
	})

	t.Run("FindSortSkipLimit", func(t *testing.T) {
		c := store.Collection(name(t))
		for i, user := range []string{"a", "b", "c", "d"} {
			_, err := c.InsertOne(ctx, docquery.Document{"guild_id": "g", "user_id": user, "balance": int64(i * 10)})
			require.NoError(t, err)
		}
		_, err := c.InsertOne(ctx, docquery.Document{"guild_id": "other", "user_id": "z", "balance": int64(1000)})
		require.NoError(t, err)

		docs, err := c.Find(ctx, docquery.Query{"guild_id": "g"}, domainCollection.FindOptions{
			Sort:  []docquery.SortField{{Field: "balance", Desc: true}},
			Skip:  1,
			Limit: 2,
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "c", docs[0]["user_id"])
		assert.Equal(t, "b", docs[1]["user_id"])

		n, err := c.CountDocuments(ctx, docquery.Query{"guild_id": "g"})
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		all, err := c.Find(ctx, docquery.Query{}, domainCollection.FindOptions{})
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})

	t.Run("UpdateOne", func(t *testing.T) {
		c := store.Collection(name(t))
		_, err := c.InsertOne(ctx, docquery.Document{"_id": "w1", "balance": int64(5), "bank": int64(0)})
		require.NoError(t, err)

		res, err := c.UpdateOne(ctx, docquery.Query{"_id": "w1"},
			docquery.Update{"$set": map[string]any{"bank": int64(5)}, "$inc": map[string]any{"balance": int64(-5)}},
			domainCollection.UpdateOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Matched)
		assert.Equal(t, int64(1), res.Modified)

		got, _, err := c.FindOne(ctx, docquery.Query{"_id": "w1"})
		require.NoError(t, err)
		assert.True(t, docquery.Equal(0, got["balance"]))
		assert.True(t, docquery.Equal(5, got["bank"]))

		res, err = c.UpdateOne(ctx, docquery.Query{"_id": "missing"},
			docquery.Update{"$set": map[string]any{"bank": int64(1)}}, domainCollection.UpdateOptions{})
		require.NoError(t, err)
		assert.Zero(t, res.Matched)
	})

	t.Run("Upsert", func(t *testing.T) {
		c := store.Collection(name(t))
		res, err := c.UpdateOne(ctx, docquery.Query{"guild_id": "g1"},
			docquery.Update{"$set": map[string]any{"prefix": "?"}}, domainCollection.UpdateOptions{Upsert: true})
		require.NoError(t, err)
		assert.NotNil(t, res.UpsertedID)

		got, ok, err := c.FindOne(ctx, docquery.Query{"guild_id": "g1"})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "?", got["prefix"])
	})

	t.Run("NumericID", func(t *testing.T) {
		c := store.Collection(name(t))
		_, err := c.InsertOne(ctx, docquery.Document{"_id": 5, "n": "x"})
		require.NoError(t, err)

		stored, ok, err := c.FindOne(ctx, docquery.Query{"n": "x"})
		require.NoError(t, err)
		require.True(t, ok)

		for _, id := range []any{stored["_id"], 5, int64(5), 5.0} {
			got, ok, err := c.FindOne(ctx, docquery.Query{"_id": id})
			require.NoError(t, err)
			if assert.True(t, ok, "find by %T", id) {
				assert.Equal(t, "x", got["n"])
			}
			n, err := c.CountDocuments(ctx, docquery.Query{"_id": id})
			require.NoError(t, err)
			assert.Equal(t, int64(1), n, "count by %T", id)
		}

		res, err := c.UpdateOne(ctx, docquery.Query{"_id": int64(5)},
			docquery.Update{"$set": map[string]any{"n": "y"}}, domainCollection.UpdateOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Matched)
		assert.Equal(t, int64(1), res.Modified)

		_, err = c.InsertOne(ctx, docquery.Document{"_id": int64(5)})
		assert.Error(t, err, "same number under another kind is the same _id")

		n, err := c.DeleteOne(ctx, docquery.Query{"_id": stored["_id"]})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		left, err := c.CountDocuments(ctx, docquery.Query{})
		require.NoError(t, err)
		assert.Zero(t, left)
	})

	t.Run("OperatorQueries", func(t *testing.T) {
		c := store.Collection(name(t))
		for i, user := range []string{"a", "b", "c"} {
			_, err := c.InsertOne(ctx, docquery.Document{
				"guild_id": "g", "user_id": user, "balance": int64(i * 10), "tags": []any{user},
			})
			require.NoError(t, err)
		}

		docs, err := c.Find(ctx, docquery.Query{"balance": map[string]any{"$gte": 10}}, domainCollection.FindOptions{
			Sort: []docquery.SortField{{Field: "balance"}},
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "b", docs[0]["user_id"])
		assert.Equal(t, "c", docs[1]["user_id"])

		n, err := c.CountDocuments(ctx, docquery.Query{"$or": []any{
			map[string]any{"user_id": "a"}, map[string]any{"user_id": "c"},
		}})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		res, err := c.UpdateOne(ctx, docquery.Query{"user_id": map[string]any{"$in": []any{"b"}}},
			docquery.Update{"$push": map[string]any{"tags": "vip"}, "$unset": map[string]any{"balance": ""}},
			domainCollection.UpdateOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Matched)

		got, ok, err := c.FindOne(ctx, docquery.Query{"tags": "vip"})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "b", got["user_id"])
		assert.True(t, docquery.Equal([]any{"b", "vip"}, got["tags"]))
		_, has := got["balance"]
		assert.False(t, has)

		deleted, err := c.DeleteOne(ctx, docquery.Query{"balance": map[string]any{"$exists": false}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})

	t.Run("DeleteOne", func(t *testing.T) {
		c := store.Collection(name(t))
		for _, id := range []string{"c1", "c2"} {
			_, err := c.InsertOne(ctx, docquery.Document{"_id": id, "guild_id": "g"})
			require.NoError(t, err)
		}
		n, err := c.DeleteOne(ctx, docquery.Query{"guild_id": "g"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = c.DeleteOne(ctx, docquery.Query{"_id": "nope"})
		require.NoError(t, err)
		assert.Zero(t, n)

		left, err := c.CountDocuments(ctx, docquery.Query{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), left)
	})

	t.Run("UniqueIndex", func(t *testing.T) {
		coll := name(t)
		require.NoError(t, store.EnsureIndexes(ctx, []domainCollection.IndexSpec{
			{Collection: coll, Fields: []string{"guild_id", "user_id"}, Unique: true},
		}))
		c := store.Collection(coll)
		_, err := c.InsertOne(ctx, docquery.Document{"guild_id": "g", "user_id": "u"})
		require.NoError(t, err)
		_, err = c.InsertOne(ctx, docquery.Document{"guild_id": "g", "user_id": "u"})
		assert.Error(t, err)
		_, err = c.InsertOne(ctx, docquery.Document{"guild_id": "g", "user_id": "v"})
		assert.NoError(t, err)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
		assert.NotEmpty(t, store.Kind())
	})
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
