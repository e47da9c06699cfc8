package docquery

import (
	"math"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Matches reports whether every field of q is present in d with an equal
// value. An empty query matches every document.
//
// Only plain equality is understood. Operator keys ($or, $and, ...), dotted
// paths and operator values ({"$gt": 1}) never match, so a query the cache
// cannot answer always falls through to the remote store. Arrays and nested
// documents compare by whole value; there is no element membership test.
func Matches(d Document, q Query) bool {
	if d == nil {
		return false
	}
	for k, want := range q {
		if !supportedField(k) || isOperatorValue(want) {
			return false
		}
		got, ok := d[k]
		if !ok || !Equal(got, want) {
			return false
		}
	}
	return true
}

// Supported reports whether q only uses shapes Matches can evaluate.
func Supported(q Query) bool {
	for k, v := range q {
		if !supportedField(k) || isOperatorValue(v) {
			return false
		}
	}
	return true
}

func supportedField(k string) bool {
	return k != "" && !strings.HasPrefix(k, "$") && !strings.Contains(k, ".")
}

func isOperatorValue(v any) bool {
	m, ok := asMap(v)
	if !ok {
		return false
	}
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// Equal compares two document values. Numbers compare by value across
// integer and float kinds, times compare at millisecond precision (what the
// document store keeps), documents compare key by key ignoring order and
// arrays compare element by element.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, ok := asNumber(a); ok {
		bn, ok := asNumber(b)
		return ok && an.equal(bn)
	}
	if at, ok := asTime(a); ok {
		bt, ok := asTime(b)
		return ok && at.UnixMilli() == bt.UnixMilli()
	}
	if am, ok := asMap(a); ok {
		bm, ok := asMap(b)
		if !ok || len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	if as, ok := asSlice(a); ok {
		bs, ok := asSlice(b)
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// SameDocument reports whether a and b hold exactly the same fields with
// equal values.
func SameDocument(a, b Document) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Equal(map[string]any(a), map[string]any(b))
}

type number struct {
	i     int64
	f     float64
	isInt bool
}

func (n number) equal(o number) bool {
	if n.isInt && o.isInt {
		return n.i == o.i
	}
	return n.float() == o.float()
}

func (n number) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

func asNumber(v any) (number, bool) {
	switch t := v.(type) {
	case int:
		return number{i: int64(t), isInt: true}, true
	case int8:
		return number{i: int64(t), isInt: true}, true
	case int16:
		return number{i: int64(t), isInt: true}, true
	case int32:
		return number{i: int64(t), isInt: true}, true
	case int64:
		return number{i: t, isInt: true}, true
	case uint:
		return fromUint(uint64(t)), true
	case uint8:
		return number{i: int64(t), isInt: true}, true
	case uint16:
		return number{i: int64(t), isInt: true}, true
	case uint32:
		return number{i: int64(t), isInt: true}, true
	case uint64:
		return fromUint(t), true
	case float32:
		return number{f: float64(t)}, true
	case float64:
		return number{f: t}, true
	}
	return number{}, false
}

func fromUint(u uint64) number {
	if u > math.MaxInt64 {
		return number{f: float64(u)}
	}
	return number{i: int64(u), isInt: true}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case Document:
		return t, true
	case map[string]any:
		return t, true
	case primitive.M:
		return t, true
	case primitive.D:
		return fromD(t), true
	case Query:
		return t, true
	}
	return nil, false
}

func asSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case primitive.A:
		return t, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
