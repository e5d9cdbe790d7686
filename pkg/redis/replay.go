package redis

import (
	"context"
	"time"
)

// Replay returns the response recorded for an idempotency key within scope.
func (c *Client) Replay(ctx context.Context, scope, key string) (string, bool, error) {
	return c.lookup(ctx, c.keys.Key(kindReplay, scope, key))
}

// StoreReplay records record unless one is already stored. It reports whether
// this call wrote it.
func (c *Client) StoreReplay(ctx context.Context, scope, key, record string, ttl time.Duration) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.cmd.SetNX(ctx, c.keys.Key(kindReplay, scope, key), record, ttl).Result()
}
