package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	c := NewCollector()
	c.CacheLookup("wallets", true)
	c.CacheLookup("wallets", true)
	c.CacheLookup("wallets", false)
	c.CacheEviction("wallets", "expired", 3)
	c.RemoteOp("wallets", "find_one", time.Now(), errors.New("boom"))
	c.SyncJob("update", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("wallets", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("wallets", "miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.cacheEvictions.WithLabelValues("wallets", "expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.remoteOps.WithLabelValues("wallets", "find_one", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.syncJobs.WithLabelValues("update", "success")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.CacheLookup("x", true)
		c.CacheEviction("x", "removed", 1)
		c.CacheSize("x", 1, 1)
		c.RemoteOp("x", "find", time.Now(), nil)
		c.SyncJob("insert", nil)
		c.SyncInline("x")
		c.RemoteInvalidation("x")
	})
	assert.Nil(t, c.Registry())
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.CacheSize("guild_settings", 4, 512)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `azguard_cache_entries{collection="guild_settings"} 4`)
}
