// Package mongostore is the production document store, backed by the
// official MongoDB driver.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const DefaultConnectTimeout = 10 * time.Second

// Config holds what is needed to reach the document server.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration // Optional, defaults to DefaultConnectTimeout
	AppName        string
}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore connects and pings the server. The caller owns Close.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" || cfg.Database == "" {
		return nil, errors.New("mongo uri and database are required")
	}
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}

	opts := options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout)
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo (timeout: %v): %w", timeout, err)
	}

	logrus.Infof("[MONGO] Connected to database %s", cfg.Database)
	return &Store{client: client, db: client.Database(cfg.Database)}, nil
}

func (s *Store) Kind() string { return "mongo" }

func (s *Store) Collection(name string) domainCollection.IRemoteCollection {
	return &collection{coll: s.db.Collection(name)}
}

func (s *Store) EnsureIndexes(ctx context.Context, specs []domainCollection.IndexSpec) error {
	for _, spec := range specs {
		keys := bson.D{}
		for _, f := range spec.Fields {
			keys = append(keys, bson.E{Key: f, Value: 1})
		}
		model := mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(spec.Unique)}
		name, err := s.db.Collection(spec.Collection).Indexes().CreateOne(ctx, model)
		if err != nil {
			return fmt.Errorf("failed to create index on %s: %w", spec.Collection, err)
		}
		logrus.Debugf("[MONGO] Index %s ready on %s", name, spec.Collection)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type collection struct {
	coll *mongo.Collection
}

func (c *collection) Name() string { return c.coll.Name() }

func filter(q docquery.Query) bson.M {
	if q == nil {
		return bson.M{}
	}
	return bson.M(q)
}

func (c *collection) FindOne(ctx context.Context, q docquery.Query) (docquery.Document, bool, error) {
	var doc docquery.Document
	err := c.coll.FindOne(ctx, filter(q)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find_one %s: %w", c.Name(), err)
	}
	return docquery.FromBSON(doc), true, nil
}

func (c *collection) Find(ctx context.Context, q docquery.Query, opts domainCollection.FindOptions) ([]docquery.Document, error) {
	fo := options.Find()
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	if len(opts.Sort) > 0 {
		sort := bson.D{}
		for _, f := range opts.Sort {
			dir := 1
			if f.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: f.Field, Value: dir})
		}
		fo.SetSort(sort)
	}

	cur, err := c.coll.Find(ctx, filter(q), fo)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.Name(), err)
	}
	var docs []docquery.Document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("find %s: %w", c.Name(), err)
	}
	for i := range docs {
		docs[i] = docquery.FromBSON(docs[i])
	}
	return docs, nil
}

func (c *collection) InsertOne(ctx context.Context, doc docquery.Document) (any, error) {
	res, err := c.coll.InsertOne(ctx, bson.M(doc))
	if err != nil {
		return nil, fmt.Errorf("insert_one %s: %w", c.Name(), err)
	}
	return res.InsertedID, nil
}

func (c *collection) UpdateOne(ctx context.Context, q docquery.Query, u docquery.Update, opts domainCollection.UpdateOptions) (domainCollection.UpdateResult, error) {
	res, err := c.coll.UpdateOne(ctx, filter(q), bson.M(u), options.Update().SetUpsert(opts.Upsert))
	if err != nil {
		return domainCollection.UpdateResult{}, fmt.Errorf("update_one %s: %w", c.Name(), err)
	}
	return domainCollection.UpdateResult{
		Matched:    res.MatchedCount,
		Modified:   res.ModifiedCount,
		UpsertedID: res.UpsertedID,
	}, nil
}

func (c *collection) DeleteOne(ctx context.Context, q docquery.Query) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, filter(q))
	if err != nil {
		return 0, fmt.Errorf("delete_one %s: %w", c.Name(), err)
	}
	return res.DeletedCount, nil
}

func (c *collection) CountDocuments(ctx context.Context, q docquery.Query) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, filter(q))
	if err != nil {
		return 0, fmt.Errorf("count_documents %s: %w", c.Name(), err)
	}
	return n, nil
}

// IsDuplicateKey reports whether err is a unique index violation.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
