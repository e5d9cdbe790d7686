package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Lock takes the advisory lock for scope on behalf of token. It returns false
// while another token holds it.
func (c *Client) Lock(ctx context.Context, scope, token string, ttl time.Duration) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	if ttl <= 0 {
		return false, errors.New("lock ttl must be positive")
	}
	return c.cmd.SetNX(ctx, c.keys.Key(kindLock, scope), token, ttl).Result()
}

// Unlock drops the lock only if token still holds it.
func (c *Client) Unlock(ctx context.Context, scope, token string) error {
	if err := c.ready(); err != nil {
		return err
	}
	err := unlockScript.Run(ctx, c.cmd, []string{c.keys.Key(kindLock, scope)}, token).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
