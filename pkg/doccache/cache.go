// Package doccache is an in-process, time-bounded mirror of remote documents.
// Records are looked up by field equality (see docquery.Matches) with a linear
// scan in insertion order. Expired records are dropped by a periodic sweep,
// and the whole cache is cleared when its encoded size passes a soft cap.
package doccache

import (
	"context"
	"sync"
	"time"

	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = int64(1 << 30)
)

// EvictReason tells an eviction hook why records left the cache.
type EvictReason string

const (
	EvictExpired EvictReason = "expired"
	EvictSizeCap EvictReason = "size_cap"
	EvictCleared EvictReason = "cleared"
	EvictRemoved EvictReason = "removed"
)

// Config configures a Cache. Zero values fall back to the defaults above;
// CleanupInterval defaults to TTL.
type Config struct {
	Name            string
	TTL             time.Duration
	CleanupInterval time.Duration
	MaxSize         int64

	// Now replaces the wall clock, mostly for tests.
	Now func() time.Time
	// OnEvict is called with the cache lock held; it must not call back into
	// the cache.
	OnEvict func(reason EvictReason, n int)
	// OnLookup is called after every GetOne/GetAll with the hit result.
	OnLookup func(hit bool)
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Name      string    `json:"name"`
	Entries   int       `json:"entries"`
	Size      int64     `json:"size"`
	HumanSize string    `json:"human_size"`
	MaxSize   int64     `json:"max_size"`
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Evictions int64     `json:"evictions"`
	Sweeps    int64     `json:"sweeps"`
	LastSweep time.Time `json:"last_sweep"`
}

type record struct {
	value     docquery.Document
	createdAt time.Time
	size      int64
}

// Cache is safe for concurrent use. Every operation holds one mutex, so a
// compound operation such as Update is atomic with respect to the others.
type Cache struct {
	mu        sync.Mutex
	cfg       Config
	records   []record
	size      int64
	lastSweep time.Time

	hits, misses, evictions, sweeps int64

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds an empty cache. The sweep loop is not running until Start.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = cfg.TTL
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{cfg: cfg, lastSweep: cfg.Now()}
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration { return c.cfg.TTL }

// Add stores a copy of doc unless a record with exactly the same fields is
// already present. A nil document is rejected with docquery.ErrNotDocument.
func (c *Cache) Add(doc docquery.Document) error {
	if doc == nil {
		return docquery.ErrNotDocument
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(doc)
	return nil
}

// AddMany adds docs one by one. Documents added before a rejected one stay.
func (c *Cache) AddMany(docs []docquery.Document) error {
	for _, d := range docs {
		if err := c.Add(d); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) add(doc docquery.Document) {
	for _, r := range c.records {
		if docquery.SameDocument(r.value, doc) {
			return
		}
	}
	v := docquery.Clone(doc)
	r := record{value: v, createdAt: c.cfg.Now(), size: docquery.SizeOf(v)}
	c.records = append(c.records, r)
	c.size += r.size

	if c.size > c.cfg.MaxSize {
		n := len(c.records)
		logrus.Warnf("[CACHE] %s exceeded %s (%s), clearing %d entries",
			c.name(), humanize.IBytes(uint64(c.cfg.MaxSize)), humanize.IBytes(uint64(c.size)), n)
		c.reset()
		c.evicted(EvictSizeCap, n)
	}
}

// GetOne returns a copy of the first record matching q in insertion order.
func (c *Cache) GetOne(q docquery.Query) (docquery.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(q)
	c.lookup(i >= 0)
	if i < 0 {
		return nil, false
	}
	return docquery.Clone(c.records[i].value), true
}

// GetAll returns copies of every record matching q in insertion order, at
// most limit of them when limit > 0. ok is false when nothing matches; a found
// result is never empty.
func (c *Cache) GetAll(q docquery.Query, limit int) (docs []docquery.Document, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.records {
		if !docquery.Matches(r.value, q) {
			continue
		}
		docs = append(docs, docquery.Clone(r.value))
		if limit > 0 && len(docs) == limit {
			break
		}
	}
	c.lookup(len(docs) > 0)
	if len(docs) == 0 {
		return nil, false
	}
	return docs, true
}

// Count returns the number of records matching q.
func (c *Cache) Count(q docquery.Query) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.records {
		if docquery.Matches(r.value, q) {
			n++
		}
	}
	return n
}

// Remove deletes the first record matching q and reports whether one did.
func (c *Cache) Remove(q docquery.Query) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(q)
	if i < 0 {
		return false
	}
	c.removeAt(i)
	c.evicted(EvictRemoved, 1)
	return true
}

// RemoveMany deletes every record matching q and returns how many went.
func (c *Cache) RemoveMany(q docquery.Query) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.records[:0]
	removed := 0
	for _, r := range c.records {
		if docquery.Matches(r.value, q) {
			c.size -= r.size
			removed++
			continue
		}
		kept = append(kept, r)
	}
	clear(c.records[len(kept):])
	c.records = kept
	if removed > 0 {
		c.evicted(EvictRemoved, removed)
	}
	return removed
}

// Update patches the first record matching q with the $set fields of u. The
// patched copy replaces the record at the end of the list, so its age starts
// over. When u carries anything besides plain $set assignments the record is
// dropped instead, since the cache cannot reproduce what the store did.
// It reports whether a record matched.
func (c *Cache) Update(q docquery.Query, u docquery.Update) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(q)
	if i < 0 {
		return false
	}
	set, other := docquery.SplitSet(u)
	old := c.records[i].value
	c.removeAt(i)
	if other {
		logrus.Debugf("[CACHE] %s: non-$set update, invalidating entry", c.name())
		c.evicted(EvictRemoved, 1)
		return true
	}
	patched := docquery.Clone(old)
	for k, v := range set {
		patched[k] = v
	}
	c.add(patched)
	return true
}

// Clear drops every record.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.records)
	c.reset()
	if n > 0 {
		c.evicted(EvictCleared, n)
	}
}

// Len returns the number of records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Size returns the encoded size of all records in bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Name:      c.cfg.Name,
		Entries:   len(c.records),
		Size:      c.size,
		HumanSize: humanize.IBytes(uint64(c.size)),
		MaxSize:   c.cfg.MaxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Sweeps:    c.sweeps,
		LastSweep: c.lastSweep,
	}
}

func (c *Cache) indexOf(q docquery.Query) int {
	for i, r := range c.records {
		if docquery.Matches(r.value, q) {
			return i
		}
	}
	return -1
}

func (c *Cache) removeAt(i int) {
	c.size -= c.records[i].size
	copy(c.records[i:], c.records[i+1:])
	c.records[len(c.records)-1] = record{}
	c.records = c.records[:len(c.records)-1]
}

func (c *Cache) reset() {
	c.records = nil
	c.size = 0
}

func (c *Cache) lookup(hit bool) {
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	if c.cfg.OnLookup != nil {
		c.cfg.OnLookup(hit)
	}
}

func (c *Cache) evicted(reason EvictReason, n int) {
	c.evictions += int64(n)
	if c.cfg.OnEvict != nil {
		c.cfg.OnEvict(reason, n)
	}
}

func (c *Cache) name() string {
	if c.cfg.Name == "" {
		return "cache"
	}
	return c.cfg.Name
}
