package docquery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMatches_FieldEquality(t *testing.T) {
	doc := Document{"id": 1, "name": "a", "tags": []any{"x", "y"}}

	assert.True(t, Matches(doc, Query{"id": 1}))
	assert.True(t, Matches(doc, Query{"id": int64(1), "name": "a"}))
	assert.True(t, Matches(doc, Query{"id": 1.0}))
	assert.True(t, Matches(doc, Query{}), "empty query matches everything")
	assert.False(t, Matches(doc, Query{"id": 2}))
	assert.False(t, Matches(doc, Query{"missing": nil}), "missing fields never match")
	assert.False(t, Matches(nil, Query{}))
}

func TestMatches_UnsupportedShapesNeverMatch(t *testing.T) {
	doc := Document{"id": 1, "profile": map[string]any{"level": 3}, "tags": []any{"x"}}

	cases := map[string]Query{
		"operator key":   {"$or": []any{Query{"id": 1}}},
		"dotted path":    {"profile.level": 3},
		"operator value": {"id": map[string]any{"$gt": 0}},
		"array element":  {"tags": "x"},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, Matches(doc, q))
		})
	}
	assert.False(t, Supported(Query{"$and": []any{}}))
	assert.False(t, Supported(Query{"a.b": 1}))
	assert.True(t, Supported(Query{"a": 1, "b": map[string]any{"c": 2}}))
}

func TestMatches_WholeValueNested(t *testing.T) {
	doc := Document{"profile": bson.M{"level": int32(3), "xp": 10}}
	assert.True(t, Matches(doc, Query{"profile": map[string]any{"xp": 10, "level": 3}}))
	assert.False(t, Matches(doc, Query{"profile": map[string]any{"level": 3}}))

	ordered := Document{"profile": bson.D{{Key: "level", Value: 3}}}
	assert.True(t, Matches(ordered, Query{"profile": map[string]any{"level": 3}}))
}

func TestEqual_TimesAtMillisecondPrecision(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)
	assert.True(t, Equal(now, primitive.NewDateTimeFromTime(now)))
	assert.True(t, Equal(now, now.Add(500*time.Microsecond)))
	assert.False(t, Equal(now, now.Add(time.Millisecond)))
	assert.False(t, Equal(now, "2026-01-02"))
}

func TestEqual_NumbersAndNil(t *testing.T) {
	assert.True(t, Equal(int32(7), 7.0))
	assert.True(t, Equal(uint8(7), int64(7)))
	assert.False(t, Equal(int64(3), 3.5))
	assert.False(t, Equal(1, "1"))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, 0))
	assert.True(t, Equal([]any{1, "a"}, bson.A{int64(1), "a"}))
	assert.False(t, Equal([]any{1, "a"}, []any{"a", 1}))
}

func TestToDocument(t *testing.T) {
	type profile struct {
		ID   string `bson:"_id"`
		Name string `bson:"name"`
	}

	d, err := ToDocument(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, Document{"a": 1}, d)

	d, err = ToDocument(bson.D{{Key: "a", Value: 1}})
	require.NoError(t, err)
	assert.Equal(t, Document{"a": 1}, d)

	d, err = ToDocument(&profile{ID: "u1", Name: "neo"})
	require.NoError(t, err)
	assert.Equal(t, "u1", d["_id"])
	assert.Equal(t, "neo", d["name"])

	for _, bad := range []any{nil, 42, "doc", []any{1}, time.Now(), (*profile)(nil)} {
		_, err := ToDocument(bad)
		assert.ErrorIs(t, err, ErrNotDocument, "%T", bad)
	}
}

func TestClone_IsDeep(t *testing.T) {
	orig := Document{"n": map[string]any{"x": 1}, "arr": []any{1, 2}}
	cp := Clone(orig)
	cp["n"].(map[string]any)["x"] = 2
	cp["arr"].([]any)[0] = 9

	assert.Equal(t, 1, orig["n"].(map[string]any)["x"])
	assert.Equal(t, 1, orig["arr"].([]any)[0])
	assert.Nil(t, Clone(nil))
}

func TestSplitSet(t *testing.T) {
	set, other := SplitSet(Update{"$set": map[string]any{"a": 1}})
	assert.Equal(t, map[string]any{"a": 1}, set)
	assert.False(t, other)

	_, other = SplitSet(Update{"$set": map[string]any{"a": 1}, "$inc": map[string]any{"b": 1}})
	assert.True(t, other)

	_, other = SplitSet(Update{"$set": map[string]any{"a.b": 1}})
	assert.True(t, other)
}

func TestEncodeDecode(t *testing.T) {
	type wallet struct {
		UserID    string     `bson:"user_id"`
		Balance   int64      `bson:"balance"`
		LastDaily *time.Time `bson:"last_daily,omitempty"`
		Note      *string    `bson:"note,omitempty"`
	}

	when := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d, err := Encode(wallet{UserID: "u1", Balance: 7, LastDaily: &when})
	require.NoError(t, err)
	assert.Equal(t, "u1", d["user_id"])
	stored, ok := d["last_daily"].(time.Time)
	require.True(t, ok)
	assert.True(t, when.Equal(stored))
	_, hasNote := d["note"]
	assert.False(t, hasNote)

	w, err := Decode[wallet](Document{"user_id": "u2", "last_daily": primitive.NewDateTimeFromTime(when)})
	require.NoError(t, err)
	assert.Equal(t, "u2", w.UserID)
	assert.Zero(t, w.Balance, "missing fields decode to zero")
	assert.Nil(t, w.Note, "absent pointer fields stay nil")
	require.NotNil(t, w.LastDaily)
	assert.True(t, when.Equal(*w.LastDaily))

	_, err = Decode[wallet](nil)
	assert.ErrorIs(t, err, ErrNotDocument)

	all, err := DecodeAll[wallet]([]Document{{"user_id": "a"}, {"user_id": "b"}})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSizeOf(t *testing.T) {
	small := SizeOf(Document{"a": 1})
	big := SizeOf(Document{"a": 1, "b": "0123456789"})
	assert.Positive(t, small)
	assert.Greater(t, big, small)
}
