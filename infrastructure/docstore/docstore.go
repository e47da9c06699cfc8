// Package docstore holds the query evaluation shared by the stores that keep
// documents themselves (memory and SQL) instead of delegating to a document
// server. Filters, updates, sorting and unique indexes run on lungo's
// mongokit, so both stores accept the same operator queries the server does.
package docstore

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/256dpi/lungo"
	"github.com/256dpi/lungo/bsonkit"
	"github.com/256dpi/lungo/mongokit"
	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrDuplicateKey mirrors the document server's E11000.
var ErrDuplicateKey = errors.New("duplicate key")

// Encode converts a document, query or update into the ordered form mongokit
// evaluates. Go ints become int32 or int64 the way the driver writes them.
func Encode(m map[string]any) (bsonkit.Doc, error) {
	if len(m) == 0 {
		return &bson.D{}, nil
	}
	raw, err := bson.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return Unmarshal(raw)
}

// Unmarshal reads a stored BSON document.
func Unmarshal(raw []byte) (bsonkit.Doc, error) {
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &d, nil
}

// Decode turns a mongokit document back into a detached Document.
func Decode(doc bsonkit.Doc) (docquery.Document, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var d docquery.Document
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return docquery.FromBSON(d), nil
}

// DecodeList decodes every document of list.
func DecodeList(list bsonkit.List) ([]docquery.Document, error) {
	out := make([]docquery.Document, 0, len(list))
	for _, doc := range list {
		d, err := Decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// SortDoc renders sort fields as a mongokit sort document.
func SortDoc(fields []docquery.SortField) bsonkit.Doc {
	d := bson.D{}
	for _, f := range fields {
		dir := int32(1)
		if f.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: f.Field, Value: dir})
	}
	return &d
}

// NewCollection returns an empty collection with the _id index and one
// index per spec.
func NewCollection(specs []domainCollection.IndexSpec) (*mongokit.Collection, error) {
	coll := mongokit.NewCollection(true)
	if err := AddIndexes(coll, specs); err != nil {
		return nil, err
	}
	return coll, nil
}

// AddIndexes builds the indexes described by specs on coll. Specs already
// present are skipped.
func AddIndexes(coll *mongokit.Collection, specs []domainCollection.IndexSpec) error {
	for _, spec := range specs {
		if len(spec.Fields) == 0 {
			continue
		}
		key := bson.D{}
		for _, f := range spec.Fields {
			key = append(key, bson.E{Key: f, Value: int32(1)})
		}
		_, err := coll.CreateIndex("", mongokit.IndexConfig{Key: &key, Unique: spec.Unique})
		if err != nil {
			return Translate(fmt.Errorf("%s index on %s: %w", spec.Collection, strings.Join(spec.Fields, ","), err))
		}
	}
	return nil
}

// Upsert inserts the document built from the equality parts of query with
// update applied. A missing _id is filled the way EnsureID does.
func Upsert(coll *mongokit.Collection, query, update bsonkit.Doc) (bsonkit.Doc, error) {
	doc, err := mongokit.Extract(query)
	if err != nil {
		return nil, err
	}
	if _, err := mongokit.Apply(doc, query, update, true, nil); err != nil {
		return nil, err
	}
	if bsonkit.Get(doc, "_id") == bsonkit.Missing {
		if _, err := bsonkit.Put(doc, "_id", uuid.NewString(), true); err != nil {
			return nil, err
		}
	}
	if _, err := coll.Insert(doc); err != nil {
		return nil, Translate(err)
	}
	return doc, nil
}

// Translate maps mongokit's unique index violations onto ErrDuplicateKey.
func Translate(err error) error {
	if err != nil && lungo.IsUniquenessError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

// EnsureID fills in a string _id when doc has none and returns the id.
func EnsureID(doc docquery.Document) any {
	id, ok := doc["_id"]
	if !ok || id == nil {
		id = uuid.NewString()
		doc["_id"] = id
	}
	return id
}

// IDKey renders an _id as a stable string key. Numbers that compare equal
// share a key whatever their Go or BSON kind, and so do a time.Time and the
// stored date it round trips to.
func IDKey(id any) string {
	switch v := id.(type) {
	case string:
		return "s:" + v
	case primitive.ObjectID:
		return "oid:" + v.Hex()
	case time.Time:
		return "date:" + strconv.FormatInt(v.UnixMilli(), 10)
	case primitive.DateTime:
		return "date:" + strconv.FormatInt(int64(v), 10)
	}
	rv := reflect.ValueOf(id)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "n:" + strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return "n:" + strconv.FormatInt(int64(u), 10)
		}
		return "n:" + strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return "n:" + strconv.FormatInt(int64(f), 10)
		}
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%T:%v", id, id)
}

// Keyable reports whether id is a scalar that IDKey renders the same way
// before and after a round trip through the store.
func Keyable(id any) bool {
	if id == nil {
		return false
	}
	switch reflect.ValueOf(id).Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer:
		return false
	}
	return true
}
