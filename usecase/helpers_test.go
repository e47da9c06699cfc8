package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/AzielCF/az-guard/core/config"
	"github.com/AzielCF/az-guard/infrastructure/collection"
	"github.com/AzielCF/az-guard/infrastructure/memstore"
	"github.com/AzielCF/az-guard/pkg/doccache"
	"github.com/stretchr/testify/require"
)

// newTestManager returns a started manager over an in-memory store.
func newTestManager(t *testing.T) *collection.Manager {
	t.Helper()
	m := collection.NewManager(memstore.New(), collection.Options{
		Cache:       doccache.Config{TTL: time.Minute},
		PoolWorkers: 2,
	})
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func testEconomyConfig() config.EconomyConfig {
	return config.EconomyConfig{
		CurrencySymbol:  "$",
		StartingBalance: 50,
		DailyReward:     100,
		DailyCooldown:   24 * time.Hour,
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}
