package doccache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweep drops every record older than the TTL and returns how many it
// dropped. A record exactly TTL old survives.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweep()
}

func (c *Cache) sweep() int {
	now := c.cfg.Now()
	kept := c.records[:0]
	expired := 0
	for _, r := range c.records {
		if now.Sub(r.createdAt) > c.cfg.TTL {
			c.size -= r.size
			expired++
			continue
		}
		kept = append(kept, r)
	}
	clear(c.records[len(kept):])
	c.records = kept
	c.lastSweep = now
	c.sweeps++
	if expired > 0 {
		c.evicted(EvictExpired, expired)
		logrus.Debugf("[CACHE] %s: swept %d expired entries, %d left", c.name(), expired, len(kept))
	}
	return expired
}

// Start runs the sweep loop in the background until ctx is done or Stop is
// called. Calling Start on a running cache does nothing.
func (c *Cache) Start(ctx context.Context) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(ctx, c.done)
}

// Stop ends the sweep loop and waits for it to exit.
func (c *Cache) Stop() {
	c.loopMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.loopMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Cache) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
