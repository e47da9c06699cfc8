package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/AzielCF/az-guard/core/config"
	"github.com/AzielCF/az-guard/pkg/docquery"
	pkgError "github.com/AzielCF/az-guard/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheService_StatsAndClear(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	wallets := m.Collection("wallets")
	_, err := wallets.InsertOne(ctx, docquery.Document{"_id": "w1", "balance": 1})
	require.NoError(t, err)
	_, err = m.Collection("mod_cases").InsertOne(ctx, docquery.Document{"_id": "c1"})
	require.NoError(t, err)
	m.Wait()
	_, _, err = wallets.FindOne(ctx, docquery.Query{"_id": "w1"})
	require.NoError(t, err)

	svc := NewCacheService(m, config.CacheConfig{Enabled: true, TTL: time.Minute, CleanupInterval: time.Minute, MaxSize: 1 << 20})

	global, err := svc.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, global.Entries)
	assert.Len(t, global.Collections, 2)
	assert.Equal(t, int64(1), global.Hits)
	assert.NotEmpty(t, global.HumanSize)

	st, err := svc.GetCollectionStats(ctx, "wallets")
	require.NoError(t, err)
	assert.Equal(t, "wallets", st.Collection)
	assert.Equal(t, 1, st.Entries)
	assert.Positive(t, st.TotalSize)

	_, err = svc.GetCollectionStats(ctx, "nope")
	assert.IsType(t, pkgError.NotFoundError(""), err)

	require.NoError(t, svc.ClearCollectionCache(ctx, "wallets"))
	st, _ = svc.GetCollectionStats(ctx, "wallets")
	assert.Zero(t, st.Entries)

	require.NoError(t, svc.ClearGlobalCache(ctx))
	global, _ = svc.GetGlobalStats(ctx)
	assert.Zero(t, global.Entries)
	assert.IsType(t, pkgError.NotFoundError(""), svc.ClearCollectionCache(ctx, "nope"))
}

func TestCacheService_Settings(t *testing.T) {
	svc := NewCacheService(newTestManager(t), config.CacheConfig{Enabled: true, TTL: 5 * time.Minute, CleanupInterval: time.Minute, MaxSize: 1 << 30})
	s, err := svc.GetSettings(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Enabled)
	assert.Equal(t, "5m0s", s.TTL)
	assert.Equal(t, int64(1<<30), s.MaxSizeBytes)
	assert.Equal(t, "1.0 GiB", s.HumanMaxSize)
}
