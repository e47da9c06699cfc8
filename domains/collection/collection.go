package collection

import (
	"context"
	"errors"

	"github.com/AzielCF/az-guard/pkg/docquery"
)

// ErrNoDocument is returned by stores when a single-document operation
// matched nothing and the caller asked to be told.
var ErrNoDocument = errors.New("no document matched")

// FindOptions narrows a multi-document read.
type FindOptions struct {
	Limit int64
	Skip  int64
	Sort  []docquery.SortField
}

// UpdateOptions tunes UpdateOne.
type UpdateOptions struct {
	Upsert bool
}

// UpdateResult reports what UpdateOne did on the remote side.
type UpdateResult struct {
	Matched    int64
	Modified   int64
	UpsertedID any
}

// IRemoteCollection is one collection of the authoritative document store.
// Implementations must return errors unmodified enough for errors.Is to see
// the driver's error.
type IRemoteCollection interface {
	Name() string
	FindOne(ctx context.Context, q docquery.Query) (docquery.Document, bool, error)
	Find(ctx context.Context, q docquery.Query, opts FindOptions) ([]docquery.Document, error)
	InsertOne(ctx context.Context, doc docquery.Document) (any, error)
	UpdateOne(ctx context.Context, q docquery.Query, u docquery.Update, opts UpdateOptions) (UpdateResult, error)
	DeleteOne(ctx context.Context, q docquery.Query) (int64, error)
	CountDocuments(ctx context.Context, q docquery.Query) (int64, error)
}

// IDocumentStore hands out collections of one database.
type IDocumentStore interface {
	Collection(name string) IRemoteCollection
	// EnsureIndexes prepares the backing storage (indexes, tables).
	EnsureIndexes(ctx context.Context, specs []IndexSpec) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	Kind() string
}

// IndexSpec describes one index the application relies on.
type IndexSpec struct {
	Collection string
	Fields     []string
	Unique     bool
}
