package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

const (
	// DefaultConnectTimeout is the maximum time to wait for initial connection
	DefaultConnectTimeout = 5 * time.Second
	DefaultKeyPrefix      = "azguard"
)

// Config holds the configuration for creating a Valkey client
type Config struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration // Optional, defaults to DefaultConnectTimeout
}

// Client wraps valkey-go with key prefixing and the pub/sub calls the cache
// invalidation bus needs.
type Client struct {
	inner     valkeylib.Client
	keyPrefix string
}

// NewClient connects and pings within the configured timeout. The caller
// owns Close.
func NewClient(cfg Config) (*Client, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
		Password:    cfg.Password,
	}
	inner, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}
	c := NewFromInner(inner, cfg.KeyPrefix)

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		inner.Close()
		return nil, fmt.Errorf("failed to ping valkey (timeout: %v): %w", timeout, err)
	}
	return c, nil
}

// NewFromInner wraps an existing valkey-go client.
func NewFromInner(inner valkeylib.Client, keyPrefix string) *Client {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if !strings.HasSuffix(keyPrefix, ":") {
		keyPrefix += ":"
	}
	return &Client{inner: inner, keyPrefix: keyPrefix}
}

// Inner returns the underlying valkey-go client.
func (c *Client) Inner() valkeylib.Client {
	return c.inner
}

func (c *Client) Close() {
	if c.inner != nil {
		c.inner.Close()
	}
}

// Key joins parts under the configured prefix.
// Example: Key("cache", "wallets") -> "azguard:cache:wallets"
func (c *Client) Key(parts ...string) string {
	if len(parts) == 0 {
		return strings.TrimSuffix(c.keyPrefix, ":")
	}
	return c.keyPrefix + strings.Join(parts, ":")
}

// Ping tests the connection with a context for timeout control.
func (c *Client) Ping(ctx context.Context) error {
	return c.inner.Do(ctx, c.inner.B().Ping().Build()).Error()
}

// Publish sends payload on channel.
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	cmd := c.inner.B().Publish().Channel(channel).Message(string(payload)).Build()
	return c.inner.Do(ctx, cmd).Error()
}

// Receive subscribes to channel and calls fn for every message until ctx is
// done or the connection fails.
func (c *Client) Receive(ctx context.Context, channel string, fn func(payload []byte)) error {
	return c.inner.Receive(ctx, c.inner.B().Subscribe().Channel(channel).Build(), func(msg valkeylib.PubSubMessage) {
		fn([]byte(msg.Message))
	})
}

// IsNil checks if an error returned by the client represents a Valkey NIL response.
func IsNil(err error) bool {
	return valkeylib.IsValkeyNil(err)
}
