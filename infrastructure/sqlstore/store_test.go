package sqlstore

import (
	"context"
	"testing"

	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	"github.com/AzielCF/az-guard/infrastructure/docstore"
	"github.com/AzielCF/az-guard/infrastructure/docstore/storetest"
	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s := New(db)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestStore(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, "sql:sqlite", s.Kind())
	storetest.Run(t, s, "sql")
}

func TestStore_InsertionOrderSurvivesUpdates(t *testing.T) {
	ctx := context.Background()
	c := newTestStore(t).Collection("mod_cases")
	for _, id := range []string{"c1", "c2", "c3"} {
		_, err := c.InsertOne(ctx, docquery.Document{"_id": id, "guild_id": "g", "active": true})
		require.NoError(t, err)
	}
	_, err := c.UpdateOne(ctx, docquery.Query{"_id": "c1"},
		docquery.Update{"$set": map[string]any{"active": false}}, domainCollection.UpdateOptions{})
	require.NoError(t, err)

	docs, err := c.Find(ctx, docquery.Query{"guild_id": "g"}, domainCollection.FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "c1", docs[0]["_id"])
	assert.Equal(t, false, docs[0]["active"])
}

func TestStore_UnchangedUpdateIsNotModified(t *testing.T) {
	ctx := context.Background()
	c := newTestStore(t).Collection("guild_settings")
	_, err := c.InsertOne(ctx, docquery.Document{"_id": "g1", "prefix": "!"})
	require.NoError(t, err)

	res, err := c.UpdateOne(ctx, docquery.Query{"_id": "g1"},
		docquery.Update{"$set": map[string]any{"prefix": "!"}}, domainCollection.UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Matched)
	assert.Zero(t, res.Modified)
}

func TestStore_NumericIDKeysMatchStoredRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := s.Collection("mod_cases")
	_, err := c.InsertOne(ctx, docquery.Document{"_id": 7, "guild_id": "g"})
	require.NoError(t, err)

	var row documentRow
	require.NoError(t, s.db.Where("collection = ?", "mod_cases").First(&row).Error)
	assert.Equal(t, docstore.IDKey(int32(7)), row.DocID)
	assert.Equal(t, docstore.IDKey(int64(7)), row.DocID)

	n, err := c.DeleteOne(ctx, docquery.Query{"_id": 7.0})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_OperatorIDQueryScansRows(t *testing.T) {
	ctx := context.Background()
	c := newTestStore(t).Collection("mod_cases")
	for _, id := range []string{"c1", "c2", "c3"} {
		_, err := c.InsertOne(ctx, docquery.Document{"_id": id})
		require.NoError(t, err)
	}
	n, err := c.CountDocuments(ctx, docquery.Query{"_id": map[string]any{"$in": []any{"c1", "c3"}}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	c := newTestStore(t).Collection("wallets")
	_, err := c.InsertOne(ctx, docquery.Document{"_id": "w"})
	require.NoError(t, err)
	_, err = c.InsertOne(ctx, docquery.Document{"_id": "w"})
	assert.ErrorIs(t, err, docstore.ErrDuplicateKey)
}
