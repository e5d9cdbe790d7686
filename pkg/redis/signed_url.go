package redis

import (
	"context"
	"time"
)

// CachedURL returns a previously signed URL for a blob path.
func (c *Client) CachedURL(ctx context.Context, path string) (string, bool, error) {
	return c.lookup(ctx, c.keys.Key(kindSignedURL, path))
}

func (c *Client) CacheURL(ctx context.Context, path, url string, ttl time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.Set(ctx, c.keys.Key(kindSignedURL, path), url, ttl).Err()
}
