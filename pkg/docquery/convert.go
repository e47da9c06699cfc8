package docquery

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Encode turns a typed record into a Document through its bson tags.
func Encode(v any) (Document, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var out Document
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return normalize(out), nil
}

// Decode converts d into a T. Fields absent from d keep their zero value;
// pointer fields stay nil so callers can tell "absent" from "zero". Stored
// dates decode into time.Time.
func Decode[T any](d Document) (T, error) {
	var out T
	if d == nil {
		return out, ErrNotDocument
	}
	raw, err := bson.Marshal(d)
	if err != nil {
		return out, fmt.Errorf("decode into %T: %w", out, err)
	}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode into %T: %w", out, err)
	}
	return out, nil
}

// DecodeAll decodes every document of docs.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := Decode[T](d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// normalize rewrites driver containers into plain Documents and []any and
// stored dates into time.Time, so that values read back from BSON compare and
// clone like values built by hand.
func normalize(d Document) Document {
	for k, v := range d {
		d[k] = normalizeValue(v)
	}
	return d
}

func normalizeValue(v any) any {
	if t, ok := asTime(v); ok {
		return t.UTC()
	}
	if m, ok := asMap(v); ok {
		return map[string]any(normalize(Document(m)))
	}
	switch t := v.(type) {
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	case bson.A:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalizeValue(t[i])
		}
		return out
	}
	return v
}

// FromBSON normalizes a document decoded by the driver.
func FromBSON(d Document) Document {
	return normalize(d)
}
