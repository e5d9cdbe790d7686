package redis

import (
	"context"
	"errors"
	"time"
)

// Window is the state of a fixed rate window after one hit.
type Window struct {
	Count   int64
	Limit   int64
	ResetIn time.Duration
}

func (w Window) Allowed() bool { return w.Count <= w.Limit }

// Hit counts one request against scope. The window starts with the first hit
// and lasts window.
func (c *Client) Hit(ctx context.Context, scope string, limit int64, window time.Duration) (Window, error) {
	if err := c.ready(); err != nil {
		return Window{}, err
	}
	if window <= 0 {
		return Window{}, errors.New("rate window must be positive")
	}
	key := c.keys.Key(kindWindow, scope)
	count, err := c.cmd.Incr(ctx, key).Result()
	if err != nil {
		return Window{}, err
	}
	res := Window{Count: count, Limit: limit, ResetIn: window}
	if count == 1 {
		return res, c.cmd.PExpire(ctx, key, window).Err()
	}
	left, err := c.cmd.PTTL(ctx, key).Result()
	if err != nil {
		return res, nil
	}
	if left < 0 {
		// the expiry write after the first hit was lost
		return res, c.cmd.PExpire(ctx, key, window).Err()
	}
	res.ResetIn = left
	return res, nil
}
