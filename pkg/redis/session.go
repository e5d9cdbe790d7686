package redis

import (
	"context"
	"time"
)

// PutSession stores the refresh token of an access id.
func (c *Client) PutSession(ctx context.Context, accessID, refresh string, ttl time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.Set(ctx, c.keys.Key(kindSession, accessID), refresh, ttl).Err()
}

func (c *Client) SessionToken(ctx context.Context, accessID string) (string, bool, error) {
	return c.lookup(ctx, c.keys.Key(kindSession, accessID))
}

func (c *Client) DropSession(ctx context.Context, accessID string) error {
	return c.del(ctx, c.keys.Key(kindSession, accessID))
}
