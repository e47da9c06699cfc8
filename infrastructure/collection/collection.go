// Package collection puts a doccache.Cache in front of each remote
// collection. Single-document reads go through the cache; multi-document
// reads and counts always hit the store; writes go to the store first and
// are then mirrored into the cache in the background.
package collection

import (
	"context"
	"time"

	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	"github.com/AzielCF/az-guard/infrastructure/metrics"
	"github.com/AzielCF/az-guard/pkg/doccache"
	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/AzielCF/az-guard/pkg/syncpool"
	"github.com/sirupsen/logrus"
)

// Invalidator broadcasts cache invalidations to other processes sharing the
// same store.
type Invalidator interface {
	Publish(ctx context.Context, collection string, q docquery.Query) error
}

// Collection is safe for concurrent use.
type Collection struct {
	name    string
	remote  domainCollection.IRemoteCollection
	cache   *doccache.Cache
	pool    *syncpool.Pool
	metrics *metrics.Collector
	bus     Invalidator
}

// New wires a facade by hand; Manager.Collection is the usual way. cache,
// pool, m and bus may all be nil: without a cache every call goes remote,
// without a pool mirrors run inline.
func New(remote domainCollection.IRemoteCollection, cache *doccache.Cache, pool *syncpool.Pool, m *metrics.Collector, bus Invalidator) *Collection {
	return &Collection{
		name:    remote.Name(),
		remote:  remote,
		cache:   cache,
		pool:    pool,
		metrics: m,
		bus:     bus,
	}
}

func (c *Collection) Name() string { return c.name }

// Cache returns the collection's cache, nil when caching is off.
func (c *Collection) Cache() *doccache.Cache { return c.cache }

// FindOne answers from the cache when a cached record matches q. Otherwise
// it asks the store and caches what comes back. A store error is returned
// as is; it never turns into a cache-only answer.
func (c *Collection) FindOne(ctx context.Context, q docquery.Query) (docquery.Document, bool, error) {
	if c.cache != nil {
		if doc, ok := c.cache.GetOne(q); ok {
			return doc, true, nil
		}
	}

	start := time.Now()
	doc, found, err := c.remote.FindOne(ctx, q)
	c.metrics.RemoteOp(c.name, "find_one", start, err)
	if err != nil || !found {
		return nil, false, err
	}
	c.backfill(doc)
	return doc, true, nil
}

// Find always reads from the store, then caches every result.
func (c *Collection) Find(ctx context.Context, q docquery.Query, opts domainCollection.FindOptions) ([]docquery.Document, error) {
	start := time.Now()
	docs, err := c.remote.Find(ctx, q, opts)
	c.metrics.RemoteOp(c.name, "find", start, err)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		c.backfill(d)
	}
	return docs, nil
}

// InsertOne writes doc to the store and, once that succeeded, schedules the
// cache insert with the _id the store assigned. The caller does not wait
// for the cache.
func (c *Collection) InsertOne(ctx context.Context, doc docquery.Document) (any, error) {
	if doc == nil {
		return nil, docquery.ErrNotDocument
	}
	start := time.Now()
	id, err := c.remote.InsertOne(ctx, doc)
	c.metrics.RemoteOp(c.name, "insert_one", start, err)
	if err != nil {
		return nil, err
	}

	mirror := docquery.Clone(doc)
	if _, ok := mirror["_id"]; !ok && id != nil {
		mirror["_id"] = id
	}
	c.mirror("insert", func() {
		if err := c.cache.Add(mirror); err != nil {
			logrus.WithError(err).Warnf("[COLLECTION] %s: cache insert failed", c.name)
		}
	})
	return id, nil
}

// UpdateOne writes to the store, then schedules the cache update. When the
// store neither matched nor upserted a document the cache is left alone and
// no invalidation is published.
//
// When several documents match q the store and the cache may each pick a
// different one; the cache's copy is then stale until its TTL runs out.
func (c *Collection) UpdateOne(ctx context.Context, q docquery.Query, u docquery.Update, opts domainCollection.UpdateOptions) (domainCollection.UpdateResult, error) {
	start := time.Now()
	res, err := c.remote.UpdateOne(ctx, q, u, opts)
	c.metrics.RemoteOp(c.name, "update_one", start, err)
	if err != nil {
		return res, err
	}
	if res.Matched == 0 && res.UpsertedID == nil {
		return res, nil
	}

	q, u = cloneQuery(q), docquery.Update(docquery.Clone(docquery.Document(u)))
	c.mirror("update", func() {
		if !docquery.Supported(q) {
			c.cache.Clear()
			return
		}
		c.cache.Update(q, u)
	})
	c.publish(ctx, q)
	return res, nil
}

// DeleteOne deletes in the store, then schedules the cache removal.
func (c *Collection) DeleteOne(ctx context.Context, q docquery.Query) (int64, error) {
	start := time.Now()
	n, err := c.remote.DeleteOne(ctx, q)
	c.metrics.RemoteOp(c.name, "delete_one", start, err)
	if err != nil {
		return 0, err
	}

	q = cloneQuery(q)
	c.mirror("delete", func() {
		if !docquery.Supported(q) {
			c.cache.Clear()
			return
		}
		c.cache.Remove(q)
	})
	c.publish(ctx, q)
	return n, nil
}

// CountDocuments always asks the store.
func (c *Collection) CountDocuments(ctx context.Context, q docquery.Query) (int64, error) {
	start := time.Now()
	n, err := c.remote.CountDocuments(ctx, q)
	c.metrics.RemoteOp(c.name, "count_documents", start, err)
	return n, err
}

// Invalidate drops every cached record matching q, or the whole cache when
// q is a shape the cache cannot evaluate.
func (c *Collection) Invalidate(q docquery.Query) int {
	if c.cache == nil {
		return 0
	}
	if !docquery.Supported(q) {
		n := c.cache.Len()
		c.cache.Clear()
		return n
	}
	return c.cache.RemoveMany(q)
}

// Stats returns the cache counters; zero when caching is off.
func (c *Collection) Stats() doccache.Stats {
	if c.cache == nil {
		return doccache.Stats{Name: c.name}
	}
	st := c.cache.Stats()
	c.metrics.CacheSize(c.name, st.Entries, st.Size)
	return st
}

// ClearCache empties the collection's cache.
func (c *Collection) ClearCache() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

func (c *Collection) backfill(doc docquery.Document) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Add(doc); err != nil {
		logrus.WithError(err).Warnf("[COLLECTION] %s: cache backfill failed", c.name)
	}
}

// mirror hands fn to the sync pool. If the pool refuses it (full or
// stopped) fn runs right away so the cache is not left stale.
func (c *Collection) mirror(op string, fn func()) {
	if c.cache == nil {
		return
	}
	if c.pool != nil {
		ok := c.pool.TryDispatch(syncpool.Job{
			Key: c.name,
			Op:  op,
			Handler: func(context.Context) error {
				fn()
				return nil
			},
		})
		if ok {
			return
		}
	}
	c.metrics.SyncInline(c.name)
	fn()
}

func (c *Collection) publish(ctx context.Context, q docquery.Query) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(ctx, c.name, q); err != nil {
		logrus.WithError(err).Warnf("[COLLECTION] %s: failed to publish invalidation", c.name)
	}
}

func cloneQuery(q docquery.Query) docquery.Query {
	if q == nil {
		return docquery.Query{}
	}
	return docquery.Query(docquery.Clone(docquery.Document(q)))
}
