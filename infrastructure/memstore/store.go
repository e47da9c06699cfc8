// Package memstore is an in-process stand-in for the document server, used
// by the memory driver and by tests.
package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/256dpi/lungo/bsonkit"
	"github.com/256dpi/lungo/mongokit"
	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	"github.com/AzielCF/az-guard/infrastructure/docstore"
	"github.com/AzielCF/az-guard/pkg/docquery"
)

var ErrClosed = errors.New("memstore: closed")

type Store struct {
	mu      sync.RWMutex
	colls   map[string]*mongokit.Collection
	indexes map[string][]domainCollection.IndexSpec
	closed  bool
}

func New() *Store {
	return &Store{
		colls:   map[string]*mongokit.Collection{},
		indexes: map[string][]domainCollection.IndexSpec{},
	}
}

func (s *Store) Kind() string { return "memory" }

func (s *Store) Collection(name string) domainCollection.IRemoteCollection {
	return &collection{store: s, name: name}
}

// EnsureIndexes builds the indexes on collections that already hold
// documents and remembers them for the ones created later.
func (s *Store) EnsureIndexes(_ context.Context, specs []domainCollection.IndexSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, spec := range specs {
		if coll, ok := s.colls[spec.Collection]; ok {
			next := coll.Clone()
			if err := docstore.AddIndexes(next, []domainCollection.IndexSpec{spec}); err != nil {
				return err
			}
			s.colls[spec.Collection] = next
		}
		s.indexes[spec.Collection] = append(s.indexes[spec.Collection], spec)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type collection struct {
	store *Store
	name  string
}

func (c *collection) Name() string { return c.name }

func (c *collection) check(ctx context.Context) error {
	if c.store.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// write runs fn on a copy of the collection and keeps the copy only when fn
// succeeds.
func (c *collection) write(ctx context.Context, fn func(coll *mongokit.Collection) error) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.check(ctx); err != nil {
		return err
	}
	var next *mongokit.Collection
	if coll, ok := c.store.colls[c.name]; ok {
		next = coll.Clone()
	} else {
		var err error
		if next, err = docstore.NewCollection(c.store.indexes[c.name]); err != nil {
			return err
		}
	}
	if err := fn(next); err != nil {
		return docstore.Translate(err)
	}
	c.store.colls[c.name] = next
	return nil
}

func (c *collection) FindOne(ctx context.Context, q docquery.Query) (docquery.Document, bool, error) {
	docs, err := c.Find(ctx, q, domainCollection.FindOptions{Limit: 1})
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	return docs[0], true, nil
}

func (c *collection) Find(ctx context.Context, q docquery.Query, opts domainCollection.FindOptions) ([]docquery.Document, error) {
	list, err := c.find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	return docstore.DecodeList(list)
}

func (c *collection) find(ctx context.Context, q docquery.Query, opts domainCollection.FindOptions) (bsonkit.List, error) {
	query, err := docstore.Encode(q)
	if err != nil {
		return nil, err
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	coll, ok := c.store.colls[c.name]
	if !ok {
		coll = mongokit.NewCollection(false)
	}
	res, err := coll.Find(query, docstore.SortDoc(opts.Sort), int(opts.Skip), int(opts.Limit))
	if err != nil {
		return nil, err
	}
	return res.Matched, nil
}

func (c *collection) InsertOne(ctx context.Context, doc docquery.Document) (any, error) {
	d := docquery.Clone(doc)
	if d == nil {
		d = docquery.Document{}
	}
	id := docstore.EnsureID(d)
	encoded, err := docstore.Encode(d)
	if err != nil {
		return nil, err
	}
	err = c.write(ctx, func(coll *mongokit.Collection) error {
		_, err := coll.Insert(encoded)
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

func (c *collection) UpdateOne(ctx context.Context, q docquery.Query, u docquery.Update, opts domainCollection.UpdateOptions) (domainCollection.UpdateResult, error) {
	var res domainCollection.UpdateResult
	query, err := docstore.Encode(q)
	if err != nil {
		return res, err
	}
	update, err := docstore.Encode(u)
	if err != nil {
		return res, err
	}
	err = c.write(ctx, func(coll *mongokit.Collection) error {
		out, err := coll.Update(query, update, nil, 0, 1, nil)
		if err != nil {
			return err
		}
		res.Matched = int64(len(out.Matched))
		res.Modified = int64(len(out.Modified))
		if res.Matched > 0 || !opts.Upsert {
			return nil
		}
		upserted, err := docstore.Upsert(coll, query, update)
		if err != nil {
			return err
		}
		d, err := docstore.Decode(upserted)
		if err != nil {
			return err
		}
		res.UpsertedID = d["_id"]
		return nil
	})
	if err != nil {
		return domainCollection.UpdateResult{}, err
	}
	return res, nil
}

func (c *collection) DeleteOne(ctx context.Context, q docquery.Query) (int64, error) {
	query, err := docstore.Encode(q)
	if err != nil {
		return 0, err
	}
	var n int64
	err = c.write(ctx, func(coll *mongokit.Collection) error {
		out, err := coll.Delete(query, nil, 0, 1)
		if err != nil {
			return err
		}
		n = int64(len(out.Matched))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *collection) CountDocuments(ctx context.Context, q docquery.Query) (int64, error) {
	docs, err := c.find(ctx, q, domainCollection.FindOptions{})
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}
