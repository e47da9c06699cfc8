package valkey

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback delivers every published payload to the active receivers.
type loopback struct {
	mu        sync.Mutex
	receivers []func([]byte)
	ready     chan struct{}
	failFirst bool
}

func newLoopback() *loopback { return &loopback{ready: make(chan struct{}, 4)} }

func (l *loopback) Key(parts ...string) string {
	return "test:" + parts[0] + ":" + parts[1]
}

func (l *loopback) Publish(ctx context.Context, channel string, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, fn := range l.receivers {
		fn(payload)
	}
	return nil
}

func (l *loopback) Receive(ctx context.Context, channel string, fn func([]byte)) error {
	l.mu.Lock()
	if l.failFirst {
		l.failFirst = false
		l.mu.Unlock()
		return errors.New("connection reset")
	}
	l.receivers = append(l.receivers, fn)
	l.mu.Unlock()
	l.ready <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

type received struct {
	collection string
	query      docquery.Query
}

func TestInvalidationBus_DeliversToOtherOrigins(t *testing.T) {
	lb := newLoopback()
	local := newBus(lb, "node-a")
	remote := newBus(lb, "node-b")
	assert.Equal(t, "test:cache:invalidate", local.Channel())

	got := make(chan received, 2)
	require.NoError(t, local.Subscribe(context.Background(), func(c string, q docquery.Query) {
		got <- received{c, q}
	}))
	defer local.Close()
	<-lb.ready

	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, remote.Publish(context.Background(), "wallets", docquery.Query{
		"guild_id": "g1", "user_id": "u1", "since": when, "n": int64(3),
	}))
	// Own messages are ignored.
	require.NoError(t, local.Publish(context.Background(), "wallets", docquery.Query{"user_id": "u2"}))

	select {
	case r := <-got:
		assert.Equal(t, "wallets", r.collection)
		assert.Equal(t, "u1", r.query["user_id"])
		assert.True(t, docquery.Equal(when, r.query["since"]))
		assert.True(t, docquery.Equal(3, r.query["n"]))
	case <-time.After(time.Second):
		t.Fatal("invalidation not delivered")
	}
	select {
	case r := <-got:
		t.Fatalf("unexpected delivery of own message: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInvalidationBus_Resubscribes(t *testing.T) {
	lb := newLoopback()
	lb.failFirst = true
	bus := newBus(lb, "node-a")

	require.NoError(t, bus.Subscribe(context.Background(), func(string, docquery.Query) {}))
	select {
	case <-lb.ready:
	case <-time.After(3 * time.Second):
		t.Fatal("bus did not resubscribe")
	}
	assert.Error(t, bus.Subscribe(context.Background(), func(string, docquery.Query) {}))
	bus.Close()
	bus.Close()
}

func TestDecode_RejectsMalformed(t *testing.T) {
	_, err := decode([]byte("not json"))
	assert.Error(t, err)

	payload, err := encode(envelope{Origin: "x"})
	require.NoError(t, err)
	_, err = decode(payload)
	assert.Error(t, err, "collection is required")
}

func TestInvalidationBus_Live(t *testing.T) {
	addr := os.Getenv("VALKEY_ADDRESS")
	if addr == "" {
		addr = "localhost:6379"
	}
	client, err := NewClient(Config{Address: addr, KeyPrefix: "azguard-test", ConnectTimeout: time.Second})
	if err != nil {
		t.Skipf("Skipping: Valkey not available at %s: %v", addr, err)
	}
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx))
	assert.Equal(t, "azguard-test:cache:invalidate", client.Key("cache", "invalidate"))

	listener := NewInvalidationBus(client, "listener")
	got := make(chan string, 1)
	require.NoError(t, listener.Subscribe(ctx, func(c string, q docquery.Query) { got <- c }))
	defer listener.Close()

	sender := NewInvalidationBus(client, "sender")
	deadline := time.After(3 * time.Second)
	for {
		require.NoError(t, sender.Publish(ctx, "mod_cases", docquery.Query{"case_id": "c1"}))
		select {
		case c := <-got:
			assert.Equal(t, "mod_cases", c)
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no invalidation received")
		}
	}
}
