package collection

import (
	"context"
	"errors"
	"testing"
	"time"

	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	"github.com/AzielCF/az-guard/infrastructure/memstore"
	"github.com/AzielCF/az-guard/pkg/doccache"
	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/AzielCF/az-guard/pkg/syncpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) Name() string { return "users" }

func (m *mockRemote) FindOne(ctx context.Context, q docquery.Query) (docquery.Document, bool, error) {
	args := m.Called(ctx, q)
	doc, _ := args.Get(0).(docquery.Document)
	return doc, args.Bool(1), args.Error(2)
}

func (m *mockRemote) Find(ctx context.Context, q docquery.Query, opts domainCollection.FindOptions) ([]docquery.Document, error) {
	args := m.Called(ctx, q, opts)
	docs, _ := args.Get(0).([]docquery.Document)
	return docs, args.Error(1)
}

func (m *mockRemote) InsertOne(ctx context.Context, doc docquery.Document) (any, error) {
	args := m.Called(ctx, doc)
	return args.Get(0), args.Error(1)
}

func (m *mockRemote) UpdateOne(ctx context.Context, q docquery.Query, u docquery.Update, opts domainCollection.UpdateOptions) (domainCollection.UpdateResult, error) {
	args := m.Called(ctx, q, u, opts)
	return args.Get(0).(domainCollection.UpdateResult), args.Error(1)
}

func (m *mockRemote) DeleteOne(ctx context.Context, q docquery.Query) (int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRemote) CountDocuments(ctx context.Context, q docquery.Query) (int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(int64), args.Error(1)
}

var errConn = errors.New("connection refused")

func newFacade(t *testing.T, remote domainCollection.IRemoteCollection) (*Collection, *syncpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	pool := syncpool.New(2, 16)
	pool.Start(ctx)
	t.Cleanup(func() {
		pool.Stop()
		cancel()
	})
	return New(remote, doccache.New(doccache.Config{Name: remote.Name(), TTL: time.Minute}), pool, nil, nil), pool
}

func TestFindOne_CacheHitSkipsRemote(t *testing.T) {
	remote := &mockRemote{}
	c, _ := newFacade(t, remote)
	require.NoError(t, c.Cache().Add(docquery.Document{"id": 1, "name": "a"}))

	doc, found, err := c.FindOne(context.Background(), docquery.Query{"id": 1})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a", doc["name"])
	remote.AssertNotCalled(t, "FindOne", mock.Anything, mock.Anything)
	assert.Empty(t, remote.Calls)
}

func TestFindOne_MissReadsThroughAndCaches(t *testing.T) {
	remote := &mockRemote{}
	c, _ := newFacade(t, remote)
	q := docquery.Query{"id": 2}
	remote.On("FindOne", mock.Anything, q).Return(docquery.Document{"id": 2, "name": "b"}, true, nil).Once()

	doc, found, err := c.FindOne(context.Background(), q)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "b", doc["name"])

	// Second read is served from the cache; Once() would fail a second call.
	_, found, err = c.FindOne(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, found)
	remote.AssertExpectations(t)
}

func TestFindOne_NotFoundAndErrors(t *testing.T) {
	remote := &mockRemote{}
	c, _ := newFacade(t, remote)
	remote.On("FindOne", mock.Anything, docquery.Query{"id": 3}).Return(nil, false, nil)
	remote.On("FindOne", mock.Anything, docquery.Query{"id": 4}).Return(nil, false, errConn)

	_, found, err := c.FindOne(context.Background(), docquery.Query{"id": 3})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, c.Cache().Len())

	_, found, err = c.FindOne(context.Background(), docquery.Query{"id": 4})
	assert.ErrorIs(t, err, errConn)
	assert.False(t, found)
}

func TestFind_RemoteErrorIsNotMaskedByCache(t *testing.T) {
	remote := &mockRemote{}
	c, _ := newFacade(t, remote)
	require.NoError(t, c.Cache().Add(docquery.Document{"id": 1}))
	remote.On("Find", mock.Anything, docquery.Query{"id": 1}, domainCollection.FindOptions{}).Return(nil, errConn)

	docs, err := c.Find(context.Background(), docquery.Query{"id": 1}, domainCollection.FindOptions{})
	assert.ErrorIs(t, err, errConn)
	assert.Nil(t, docs)
}

func TestFind_AlwaysRemoteAndBackfills(t *testing.T) {
	remote := &mockRemote{}
	c, _ := newFacade(t, remote)
	require.NoError(t, c.Cache().Add(docquery.Document{"guild": "g", "n": 0}))
	q := docquery.Query{"guild": "g"}
	remote.On("Find", mock.Anything, q, domainCollection.FindOptions{}).Return([]docquery.Document{
		{"guild": "g", "n": 1},
		{"guild": "g", "n": 2},
	}, nil)

	docs, err := c.Find(context.Background(), q, domainCollection.FindOptions{})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, 3, c.Cache().Count(q))
	remote.AssertNumberOfCalls(t, "Find", 1)
}

// Scenario: insert fails remotely, the error comes back and nothing is cached.
func TestInsertOne_RemoteFailureLeavesNoPhantom(t *testing.T) {
	remote := &mockRemote{}
	c, pool := newFacade(t, remote)
	remote.On("InsertOne", mock.Anything, docquery.Document{"id": 5}).Return(nil, errConn)

	_, err := c.InsertOne(context.Background(), docquery.Document{"id": 5})
	assert.ErrorIs(t, err, errConn)

	pool.Wait()
	_, ok := c.Cache().GetOne(docquery.Query{"id": 5})
	assert.False(t, ok)
}

func TestInsertOne_MirrorsWithAssignedID(t *testing.T) {
	remote := &mockRemote{}
	c, pool := newFacade(t, remote)
	remote.On("InsertOne", mock.Anything, mock.Anything).Return("generated-id", nil)

	id, err := c.InsertOne(context.Background(), docquery.Document{"user": "u1"})
	require.NoError(t, err)
	assert.Equal(t, "generated-id", id)

	pool.Wait()
	doc, ok := c.Cache().GetOne(docquery.Query{"user": "u1"})
	require.True(t, ok)
	assert.Equal(t, "generated-id", doc["_id"])

	_, err = c.InsertOne(context.Background(), nil)
	assert.ErrorIs(t, err, docquery.ErrNotDocument)
}

func TestUpdateOne_MirrorsSet(t *testing.T) {
	remote := &mockRemote{}
	c, pool := newFacade(t, remote)
	require.NoError(t, c.Cache().Add(docquery.Document{"id": 1, "name": "a", "level": 2}))
	q := docquery.Query{"id": 1}
	u := docquery.Update{"$set": map[string]any{"name": "b"}}
	remote.On("UpdateOne", mock.Anything, q, u, domainCollection.UpdateOptions{}).
		Return(domainCollection.UpdateResult{Matched: 1, Modified: 1}, nil)

	res, err := c.UpdateOne(context.Background(), q, u, domainCollection.UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Modified)

	pool.Wait()
	doc, ok := c.Cache().GetOne(q)
	require.True(t, ok)
	assert.Equal(t, "b", doc["name"])
	assert.Equal(t, 2, doc["level"])
}

func TestUpdateOne_RemoteFailureLeavesCache(t *testing.T) {
	remote := &mockRemote{}
	c, pool := newFacade(t, remote)
	require.NoError(t, c.Cache().Add(docquery.Document{"id": 1, "name": "a"}))
	remote.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(domainCollection.UpdateResult{}, errConn)

	_, err := c.UpdateOne(context.Background(), docquery.Query{"id": 1},
		docquery.Update{"$set": map[string]any{"name": "b"}}, domainCollection.UpdateOptions{})
	assert.ErrorIs(t, err, errConn)

	pool.Wait()
	doc, ok := c.Cache().GetOne(docquery.Query{"id": 1})
	require.True(t, ok)
	assert.Equal(t, "a", doc["name"])
}

func TestUpdateOne_NoMatchLeavesCacheAndBus(t *testing.T) {
	remote := &mockRemote{}
	bus := &fakeBus{}
	pool := syncpool.New(2, 16)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)
	c := New(remote, doccache.New(doccache.Config{Name: "users", TTL: time.Minute}), pool, nil, bus)
	require.NoError(t, c.Cache().Add(docquery.Document{"id": 1, "name": "a"}))
	q := docquery.Query{"id": 1}
	remote.On("UpdateOne", mock.Anything, q, mock.Anything, mock.Anything).
		Return(domainCollection.UpdateResult{}, nil)

	res, err := c.UpdateOne(context.Background(), q,
		docquery.Update{"$set": map[string]any{"name": "b"}}, domainCollection.UpdateOptions{})
	require.NoError(t, err)
	assert.Zero(t, res.Matched)

	pool.Wait()
	doc, ok := c.Cache().GetOne(q)
	require.True(t, ok)
	assert.Equal(t, "a", doc["name"])
	assert.Empty(t, bus.published)
}

func TestUpdateOne_OperatorQueryClearsCache(t *testing.T) {
	remote := &mockRemote{}
	c, pool := newFacade(t, remote)
	require.NoError(t, c.Cache().AddMany([]docquery.Document{{"n": 1}, {"n": 2}}))
	q := docquery.Query{"n": map[string]any{"$gt": 1}}
	remote.On("UpdateOne", mock.Anything, q, mock.Anything, mock.Anything).
		Return(domainCollection.UpdateResult{Matched: 1, Modified: 1}, nil)

	_, err := c.UpdateOne(context.Background(), q, docquery.Update{"$set": map[string]any{"x": 1}}, domainCollection.UpdateOptions{})
	require.NoError(t, err)
	pool.Wait()
	assert.Equal(t, 0, c.Cache().Len())
}

func TestDeleteOne_RemovesFromCache(t *testing.T) {
	remote := &mockRemote{}
	c, pool := newFacade(t, remote)
	require.NoError(t, c.Cache().Add(docquery.Document{"id": 1}))
	remote.On("DeleteOne", mock.Anything, docquery.Query{"id": 1}).Return(int64(1), nil)

	n, err := c.DeleteOne(context.Background(), docquery.Query{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	pool.Wait()
	assert.Equal(t, 0, c.Cache().Len())
}

func TestDeleteOne_RemoteFailureKeepsCache(t *testing.T) {
	remote := &mockRemote{}
	c, pool := newFacade(t, remote)
	require.NoError(t, c.Cache().Add(docquery.Document{"id": 1}))
	remote.On("DeleteOne", mock.Anything, mock.Anything).Return(int64(0), errConn)

	_, err := c.DeleteOne(context.Background(), docquery.Query{"id": 1})
	assert.ErrorIs(t, err, errConn)
	pool.Wait()
	assert.Equal(t, 1, c.Cache().Len())
}

func TestCountDocuments_AlwaysRemote(t *testing.T) {
	remote := &mockRemote{}
	c, _ := newFacade(t, remote)
	require.NoError(t, c.Cache().Add(docquery.Document{"guild": "g"}))
	remote.On("CountDocuments", mock.Anything, docquery.Query{"guild": "g"}).Return(int64(7), nil)

	n, err := c.CountDocuments(context.Background(), docquery.Query{"guild": "g"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestMirror_RunsInlineWhenPoolRefuses(t *testing.T) {
	remote := &mockRemote{}
	pool := syncpool.New(1, 1)
	pool.Stop()
	c := New(remote, doccache.New(doccache.Config{TTL: time.Minute}), pool, nil, nil)
	remote.On("InsertOne", mock.Anything, mock.Anything).Return("x", nil)

	_, err := c.InsertOne(context.Background(), docquery.Document{"user": "u"})
	require.NoError(t, err)
	_, ok := c.Cache().GetOne(docquery.Query{"user": "u"})
	assert.True(t, ok, "cache updated synchronously")
}

func TestInvalidate(t *testing.T) {
	remote := &mockRemote{}
	c, _ := newFacade(t, remote)
	require.NoError(t, c.Cache().AddMany([]docquery.Document{{"g": 1, "n": 1}, {"g": 1, "n": 2}, {"g": 2}}))

	assert.Equal(t, 2, c.Invalidate(docquery.Query{"g": 1}))
	assert.Equal(t, 1, c.Invalidate(docquery.Query{"$or": []any{}}))
	assert.Equal(t, 0, c.Cache().Len())
}

func TestNoCache_PassThrough(t *testing.T) {
	remote := &mockRemote{}
	c := New(remote, nil, nil, nil, nil)
	remote.On("FindOne", mock.Anything, docquery.Query{"id": 1}).Return(docquery.Document{"id": 1}, true, nil).Twice()

	for i := 0; i < 2; i++ {
		_, found, err := c.FindOne(context.Background(), docquery.Query{"id": 1})
		require.NoError(t, err)
		assert.True(t, found)
	}
	remote.AssertExpectations(t)
	assert.Equal(t, 0, c.Invalidate(docquery.Query{}))
	assert.Equal(t, "users", c.Stats().Name)
}

type wallet struct {
	ID      string  `bson:"_id,omitempty"`
	UserID  string  `bson:"user_id"`
	Balance int64   `bson:"balance"`
	Note    *string `bson:"note,omitempty"`
}

func TestManager_TypedRoundTripOverMemstore(t *testing.T) {
	m := NewManager(memstore.New(), Options{Cache: doccache.Config{TTL: time.Minute}})
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Close(context.Background()) })

	wallets := NewTyped[wallet](m.Collection("wallets"))
	assert.Same(t, m.Collection("wallets"), wallets.Raw())

	id, err := wallets.InsertOne(context.Background(), wallet{UserID: "u1", Balance: 10})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	m.Wait()

	w, found, err := wallets.FindOne(context.Background(), docquery.Query{"user_id": "u1"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(10), w.Balance)
	assert.Equal(t, id, w.ID)
	assert.Nil(t, w.Note)

	_, err = wallets.UpdateOne(context.Background(), docquery.Query{"user_id": "u1"},
		docquery.Update{"$set": map[string]any{"balance": int64(25)}}, domainCollection.UpdateOptions{})
	require.NoError(t, err)
	m.Wait()

	w, _, err = wallets.FindOne(context.Background(), docquery.Query{"user_id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(25), w.Balance)

	all, err := wallets.Find(context.Background(), docquery.Query{}, domainCollection.FindOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	n, err := wallets.CountDocuments(context.Background(), docquery.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = wallets.DeleteOne(context.Background(), docquery.Query{"user_id": "u1"})
	require.NoError(t, err)
	m.Wait()
	_, found, err = wallets.FindOne(context.Background(), docquery.Query{"user_id": "u1"})
	require.NoError(t, err)
	assert.False(t, found)

	assert.Len(t, m.Collections(), 1)
}

type fakeBus struct {
	handler   func(string, docquery.Query)
	published []string
	closed    bool
}

func (b *fakeBus) Publish(_ context.Context, collection string, _ docquery.Query) error {
	b.published = append(b.published, collection)
	return nil
}

func (b *fakeBus) Subscribe(_ context.Context, h func(string, docquery.Query)) error {
	b.handler = h
	return nil
}

func (b *fakeBus) Close() { b.closed = true }

func TestManager_BusInvalidation(t *testing.T) {
	bus := &fakeBus{}
	m := NewManager(memstore.New(), Options{Cache: doccache.Config{TTL: time.Minute}, Bus: bus})
	require.NoError(t, m.Start(context.Background()))

	users := m.Collection("users")
	_, err := users.InsertOne(context.Background(), docquery.Document{"user": "u1"})
	require.NoError(t, err)
	m.Wait()
	require.Equal(t, 1, users.Cache().Len())

	_, err = users.DeleteOne(context.Background(), docquery.Query{"user": "nobody"})
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, bus.published)

	require.NotNil(t, bus.handler)
	bus.handler("users", docquery.Query{"user": "u1"})
	assert.Equal(t, 0, users.Cache().Len())
	bus.handler("unknown", docquery.Query{})

	require.NoError(t, m.Close(context.Background()))
	assert.True(t, bus.closed)
	require.NoError(t, m.Close(context.Background()))
}

func TestManager_WaitAndCloseWithoutStart(t *testing.T) {
	pool := syncpool.New(1, 8)
	m := NewManager(memstore.New(), Options{Cache: doccache.Config{TTL: time.Minute}, Pool: pool})

	users := m.Collection("users")
	_, err := users.InsertOne(context.Background(), docquery.Document{"user": "u1"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		m.Wait()
		done <- m.Close(context.Background())
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("manager blocked on a pool that was never started")
	}
	assert.Equal(t, 1, users.Cache().Len())
	assert.False(t, pool.Stopped(), "a caller-owned pool stays open")
	pool.Stop()
}
