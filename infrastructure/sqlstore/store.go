// Package sqlstore keeps documents as BSON blobs in one SQL table through
// gorm, for single-node deployments that run on sqlite or postgres instead
// of a document server. Queries are evaluated in process with mongokit after
// loading the collection's rows, so it suits the small collections a bot keeps
// per guild.
package sqlstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/256dpi/lungo/bsonkit"
	"github.com/256dpi/lungo/mongokit"
	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	"github.com/AzielCF/az-guard/infrastructure/docstore"
	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"gorm.io/gorm"
)

type documentRow struct {
	Collection string `gorm:"primaryKey;size:128"`
	DocID      string `gorm:"primaryKey;size:191;column:doc_id"`
	Seq        int64  `gorm:"index"`
	Data       []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (documentRow) TableName() string { return "documents" }

type Store struct {
	db *gorm.DB

	// writeMu serializes read-modify-write cycles within this process.
	writeMu sync.Mutex

	mu      sync.RWMutex
	indexes map[string][]domainCollection.IndexSpec
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, indexes: map[string][]domainCollection.IndexSpec{}}
}

// Migrate creates the documents table.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&documentRow{}); err != nil {
		return fmt.Errorf("failed to migrate documents table: %w", err)
	}
	return nil
}

func (s *Store) Kind() string { return "sql:" + s.db.Dialector.Name() }

func (s *Store) Collection(name string) domainCollection.IRemoteCollection {
	return &collection{store: s, name: name}
}

// EnsureIndexes migrates the table and remembers unique specs, which are
// enforced on every write.
func (s *Store) EnsureIndexes(_ context.Context, specs []domainCollection.IndexSpec) error {
	if err := s.Migrate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, spec := range specs {
		s.indexes[spec.Collection] = append(s.indexes[spec.Collection], spec)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) specs(name string) []domainCollection.IndexSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexes[name]
}

type collection struct {
	store *Store
	name  string
}

func (c *collection) Name() string { return c.name }

// load reads the collection's rows into a mongokit collection carrying specs.
// A query on a scalar _id only reads that row.
func (c *collection) load(tx *gorm.DB, q docquery.Query, specs []domainCollection.IndexSpec) (*mongokit.Collection, error) {
	query := tx.Where("collection = ?", c.name)
	if id, ok := q["_id"]; ok && docstore.Keyable(id) {
		query = query.Where("doc_id = ?", docstore.IDKey(id))
	}
	var rows []documentRow
	if err := query.Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", c.name, err)
	}
	coll, err := docstore.NewCollection(specs)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		doc, err := docstore.Unmarshal(r.Data)
		if err != nil {
			logrus.WithError(err).Warnf("[SQLSTORE] skipping undecodable document %s/%s", c.name, r.DocID)
			continue
		}
		if _, err := coll.Insert(doc); err != nil {
			return nil, fmt.Errorf("failed to load %s/%s: %w", c.name, r.DocID, docstore.Translate(err))
		}
	}
	return coll, nil
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
	coll, err := c.load(c.store.db.WithContext(ctx), q, nil)
	if err != nil {
		return nil, err
	}
	res, err := coll.Find(query, docstore.SortDoc(opts.Sort), int(opts.Skip), int(opts.Limit))
	if err != nil {
		return nil, err
	}
	return res.Matched, nil
}

func (c *collection) CountDocuments(ctx context.Context, q docquery.Query) (int64, error) {
	list, err := c.find(ctx, q, domainCollection.FindOptions{})
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
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

	c.store.writeMu.Lock()
	defer c.store.writeMu.Unlock()
	err = c.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		coll, err := c.load(tx, nil, c.store.specs(c.name))
		if err != nil {
			return err
		}
		if _, err := coll.Insert(encoded); err != nil {
			return docstore.Translate(err)
		}
		return c.create(tx, encoded)
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

func (c *collection) create(tx *gorm.DB, doc bsonkit.Doc) error {
	data, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	var last int64
	if err := tx.Model(&documentRow{}).Where("collection = ?", c.name).
		Select("COALESCE(MAX(seq), 0)").Scan(&last).Error; err != nil {
		return fmt.Errorf("failed to read sequence of %s: %w", c.name, err)
	}
	row := documentRow{
		Collection: c.name,
		DocID:      docstore.IDKey(bsonkit.Get(doc, "_id")),
		Seq:        last + 1,
		Data:       data,
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert into %s: %w", c.name, err)
	}
	return nil
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

	c.store.writeMu.Lock()
	defer c.store.writeMu.Unlock()
	err = c.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		coll, err := c.load(tx, nil, c.store.specs(c.name))
		if err != nil {
			return err
		}
		out, err := coll.Update(query, update, nil, 0, 1, nil)
		if err != nil {
			return docstore.Translate(err)
		}
		res.Matched = int64(len(out.Matched))
		for _, doc := range out.Modified {
			data, err := bson.Marshal(doc)
			if err != nil {
				return fmt.Errorf("failed to encode document: %w", err)
			}
			err = tx.Model(&documentRow{}).
				Where("collection = ? AND doc_id = ?", c.name, docstore.IDKey(bsonkit.Get(doc, "_id"))).
				Updates(map[string]any{"data": data, "updated_at": time.Now().UTC()}).Error
			if err != nil {
				return fmt.Errorf("failed to update %s: %w", c.name, err)
			}
			res.Modified++
		}
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
		return c.create(tx, upserted)
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

	c.store.writeMu.Lock()
	defer c.store.writeMu.Unlock()
	var deleted int64
	err = c.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		coll, err := c.load(tx, q, nil)
		if err != nil {
			return err
		}
		out, err := coll.Delete(query, nil, 0, 1)
		if err != nil {
			return err
		}
		for _, doc := range out.Matched {
			r := tx.Where("collection = ? AND doc_id = ?", c.name, docstore.IDKey(bsonkit.Get(doc, "_id"))).
				Delete(&documentRow{})
			if r.Error != nil {
				return fmt.Errorf("failed to delete from %s: %w", c.name, r.Error)
			}
			deleted += r.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
