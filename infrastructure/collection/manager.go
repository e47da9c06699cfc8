package collection

import (
	"context"
	"sort"
	"sync"
	"time"

	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	"github.com/AzielCF/az-guard/infrastructure/metrics"
	"github.com/AzielCF/az-guard/pkg/doccache"
	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/AzielCF/az-guard/pkg/syncpool"
	"github.com/sirupsen/logrus"
)

// Subscriber delivers invalidations published by other processes.
type Subscriber interface {
	Invalidator
	Subscribe(ctx context.Context, handler func(collection string, q docquery.Query)) error
	Close()
}

// Options configures a Manager.
type Options struct {
	// CacheDisabled turns every collection into a pass-through.
	CacheDisabled bool
	// Cache is the template for each collection's cache; Name is overwritten.
	Cache doccache.Config
	// Pool runs cache mirrors. When nil the manager builds one with
	// PoolWorkers and PoolQueueSize and owns it.
	Pool          *syncpool.Pool
	PoolWorkers   int
	PoolQueueSize int
	Metrics       *metrics.Collector
	Bus           Subscriber
}

// Manager owns one Collection per name, the sync pool they share and the
// optional invalidation bus.
type Manager struct {
	store    domainCollection.IDocumentStore
	opts     Options
	pool     *syncpool.Pool
	ownsPool bool

	mu      sync.Mutex
	colls   map[string]*Collection
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	closed  bool
}

func NewManager(store domainCollection.IDocumentStore, opts Options) *Manager {
	m := &Manager{store: store, opts: opts, colls: map[string]*Collection{}}
	m.pool = opts.Pool
	if m.pool == nil {
		m.pool = syncpool.New(opts.PoolWorkers, opts.PoolQueueSize)
		m.ownsPool = true
	}
	m.pool.OnJobDone = func(job syncpool.Job, err error) {
		opts.Metrics.SyncJob(job.Op, err)
	}
	m.cancel = func() {}
	return m
}

// Start runs the pool, subscribes to the bus and keeps the cache gauges
// fresh. Sweep loops start as collections are created.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	started := m.ctx
	for _, c := range m.colls {
		if c.cache != nil {
			c.cache.Start(started)
		}
	}
	m.mu.Unlock()

	if m.ownsPool {
		m.pool.Start(started)
	}
	if m.opts.Bus != nil {
		if err := m.opts.Bus.Subscribe(started, m.onInvalidation); err != nil {
			return err
		}
	}
	go m.refreshLoop(started)
	return nil
}

// Collection returns the facade for name, creating it on first use.
func (m *Manager) Collection(name string) *Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.colls[name]; ok {
		return c
	}

	var cache *doccache.Cache
	if !m.opts.CacheDisabled {
		cfg := m.opts.Cache
		cfg.Name = name
		mc := m.opts.Metrics
		cfg.OnEvict = func(reason doccache.EvictReason, n int) {
			mc.CacheEviction(name, string(reason), n)
		}
		cfg.OnLookup = func(hit bool) {
			mc.CacheLookup(name, hit)
		}
		cache = doccache.New(cfg)
		if m.started && !m.closed {
			cache.Start(m.ctx)
		}
	}

	var bus Invalidator
	if m.opts.Bus != nil {
		bus = m.opts.Bus
	}
	c := New(m.store.Collection(name), cache, m.pool, m.opts.Metrics, bus)
	m.colls[name] = c
	logrus.Debugf("[COLLECTION] %s ready (cache enabled: %v)", name, cache != nil)
	return c
}

// Collections returns every facade created so far, sorted by name.
func (m *Manager) Collections() []*Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Collection, 0, len(m.colls))
	for _, c := range m.colls {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Lookup returns an existing facade without creating one.
func (m *Manager) Lookup(name string) (*Collection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.colls[name]
	return c, ok
}

func (m *Manager) Store() domainCollection.IDocumentStore { return m.store }

func (m *Manager) Pool() *syncpool.Pool { return m.pool }

// Wait blocks until every background cache mirror dispatched so far has
// been applied. Before Start the pending mirrors run on the caller.
func (m *Manager) Wait() {
	m.pool.Wait()
}

// Close stops the sweep loops, drains the pool (when owned), leaves the bus
// and closes the store.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cancel()
	colls := make([]*Collection, 0, len(m.colls))
	for _, c := range m.colls {
		colls = append(colls, c)
	}
	m.mu.Unlock()

	for _, c := range colls {
		if c.cache != nil {
			c.cache.Stop()
		}
	}
	if m.ownsPool {
		m.pool.Stop()
	} else {
		m.pool.Wait()
	}
	if m.opts.Bus != nil {
		m.opts.Bus.Close()
	}
	logrus.Info("[COLLECTION] Manager closed")
	return m.store.Close(ctx)
}

func (m *Manager) onInvalidation(collection string, q docquery.Query) {
	c, ok := m.Lookup(collection)
	if !ok {
		return
	}
	n := c.Invalidate(q)
	m.opts.Metrics.RemoteInvalidation(collection)
	logrus.Debugf("[COLLECTION] %s: remote invalidation dropped %d entries", collection, n)
}

func (m *Manager) refreshLoop(ctx context.Context) {
	if m.opts.Metrics == nil {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range m.Collections() {
				c.Stats()
			}
		}
	}
}
