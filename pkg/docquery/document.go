// Package docquery holds the document model shared by the cache, the
// collection facade and the remote stores: raw documents, query-by-example
// matching, update operators and typed-record conversion.
package docquery

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotDocument is returned when a value that is not a mapping (or a struct
// that encodes to one) is handed over where a document is required.
var ErrNotDocument = errors.New("value is not a document")

// Document is a raw, untyped document: field name to scalar, array or
// nested document.
type Document map[string]any

// Query maps a field name to the value it must equal.
type Query map[string]any

// Update is an operator document such as {"$set": {"name": "x"}}.
type Update map[string]any

// ToDocument converts v into a Document. Maps keyed by string, bson.M, bson.D
// and structs (through their bson tags) are accepted; anything else is a
// contract violation and yields ErrNotDocument.
func ToDocument(v any) (Document, error) {
	switch d := v.(type) {
	case nil:
		return nil, ErrNotDocument
	case Document:
		if d == nil {
			return nil, ErrNotDocument
		}
		return d, nil
	case map[string]any:
		if d == nil {
			return nil, ErrNotDocument
		}
		return Document(d), nil
	case primitive.M:
		if d == nil {
			return nil, ErrNotDocument
		}
		return Document(d), nil
	case Query:
		if d == nil {
			return nil, ErrNotDocument
		}
		return Document(d), nil
	case primitive.D:
		return fromD(d), nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, ErrNotDocument
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || rv.Type() == reflect.TypeOf(time.Time{}) {
		return nil, fmt.Errorf("%w: %T", ErrNotDocument, v)
	}
	return Encode(v)
}

func fromD(d primitive.D) Document {
	out := make(Document, len(d))
	for _, e := range d {
		out[e.Key] = e.Value
	}
	return out
}

// Clone returns a deep copy of d. Nested documents and arrays are copied;
// scalar values are shared.
func Clone(d Document) Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return Clone(t)
	case map[string]any:
		return map[string]any(Clone(Document(t)))
	case primitive.M:
		return primitive.M(Clone(Document(t)))
	case primitive.D:
		out := make(primitive.D, len(t))
		for i, e := range t {
			out[i] = primitive.E{Key: e.Key, Value: cloneValue(e.Value)}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case primitive.A:
		out := make(primitive.A, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}

// SizeOf returns the BSON-encoded size of d, which is what the cache budgets
// against. Documents that cannot be encoded fall back to a rough estimate.
func SizeOf(d Document) int64 {
	raw, err := bson.Marshal(d)
	if err != nil {
		return int64(len(fmt.Sprint(map[string]any(d))))
	}
	return int64(len(raw))
}
