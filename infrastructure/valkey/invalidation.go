package valkey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

// publisher is the slice of Client the bus uses; tests swap it out.
type publisher interface {
	Key(parts ...string) string
	Publish(ctx context.Context, channel string, payload []byte) error
	Receive(ctx context.Context, channel string, fn func(payload []byte)) error
}

type envelope struct {
	Origin     string `bson:"origin"`
	Collection string `bson:"collection"`
	Query      bson.M `bson:"query"`
}

// InvalidationBus tells other processes sharing the store which cached
// records went stale. Queries travel as relaxed Extended JSON so dates and
// ids keep their types.
type InvalidationBus struct {
	client  publisher
	origin  string
	channel string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewInvalidationBus(client *Client, origin string) *InvalidationBus {
	return newBus(client, origin)
}

func newBus(client publisher, origin string) *InvalidationBus {
	return &InvalidationBus{client: client, origin: origin, channel: client.Key("cache", "invalidate")}
}

func (b *InvalidationBus) Channel() string { return b.channel }

// Publish announces that records of collection matching q are stale.
func (b *InvalidationBus) Publish(ctx context.Context, collection string, q docquery.Query) error {
	payload, err := encode(envelope{Origin: b.origin, Collection: collection, Query: bson.M(q)})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload)
}

// Subscribe delivers invalidations from other origins to handler until ctx
// is done or Close is called, resubscribing after connection errors.
func (b *InvalidationBus) Subscribe(ctx context.Context, handler func(collection string, q docquery.Query)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return errors.New("invalidation bus already subscribed")
	}
	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		backoff := 500 * time.Millisecond
		for {
			err := b.client.Receive(ctx, b.channel, func(payload []byte) {
				b.dispatch(payload, handler)
			})
			if ctx.Err() != nil {
				return
			}
			logrus.WithError(err).Warnf("[VALKEY] invalidation subscription dropped, retrying in %v", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}(b.done)

	logrus.Infof("[VALKEY] Listening for cache invalidations on %s", b.channel)
	return nil
}

func (b *InvalidationBus) dispatch(payload []byte, handler func(string, docquery.Query)) {
	env, err := decode(payload)
	if err != nil {
		logrus.WithError(err).Warn("[VALKEY] dropping malformed invalidation")
		return
	}
	if env.Origin == b.origin {
		return
	}
	handler(env.Collection, docquery.Query(docquery.FromBSON(docquery.Document(env.Query))))
}

// Close stops the subscription and waits for it to end.
func (b *InvalidationBus) Close() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func encode(env envelope) ([]byte, error) {
	if env.Query == nil {
		env.Query = bson.M{}
	}
	payload, err := bson.MarshalExtJSON(env, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to encode invalidation: %w", err)
	}
	return payload, nil
}

func decode(payload []byte) (envelope, error) {
	var env envelope
	if err := bson.UnmarshalExtJSON(payload, false, &env); err != nil {
		return env, fmt.Errorf("failed to decode invalidation: %w", err)
	}
	if env.Collection == "" {
		return env, errors.New("invalidation without collection")
	}
	return env, nil
}
