package collection

import (
	"context"

	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	"github.com/AzielCF/az-guard/pkg/docquery"
)

// Typed converts documents of one Collection to and from T through T's bson
// tags. Fields missing from a stored document decode to their zero value;
// pointer fields stay nil.
type Typed[T any] struct {
	c *Collection
}

func NewTyped[T any](c *Collection) *Typed[T] {
	return &Typed[T]{c: c}
}

// Raw returns the untyped collection.
func (t *Typed[T]) Raw() *Collection { return t.c }

func (t *Typed[T]) FindOne(ctx context.Context, q docquery.Query) (T, bool, error) {
	var zero T
	doc, found, err := t.c.FindOne(ctx, q)
	if err != nil || !found {
		return zero, found, err
	}
	v, err := docquery.Decode[T](doc)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (t *Typed[T]) Find(ctx context.Context, q docquery.Query, opts domainCollection.FindOptions) ([]T, error) {
	docs, err := t.c.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	return docquery.DecodeAll[T](docs)
}

func (t *Typed[T]) InsertOne(ctx context.Context, v T) (any, error) {
	doc, err := docquery.Encode(v)
	if err != nil {
		return nil, err
	}
	return t.c.InsertOne(ctx, doc)
}

func (t *Typed[T]) UpdateOne(ctx context.Context, q docquery.Query, u docquery.Update, opts domainCollection.UpdateOptions) (domainCollection.UpdateResult, error) {
	return t.c.UpdateOne(ctx, q, u, opts)
}

func (t *Typed[T]) DeleteOne(ctx context.Context, q docquery.Query) (int64, error) {
	return t.c.DeleteOne(ctx, q)
}

func (t *Typed[T]) CountDocuments(ctx context.Context, q docquery.Query) (int64, error) {
	return t.c.CountDocuments(ctx, q)
}
