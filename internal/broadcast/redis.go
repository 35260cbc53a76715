package broadcast

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisTransport uses a Redis pub/sub channel. It pairs naturally with the
// Redis store: the same server holds the data and announces changes to it.
type RedisTransport struct {
	rdb     *redis.Client
	channel string
}

func NewRedisTransport(rdb *redis.Client, channel string) *RedisTransport {
	return &RedisTransport{rdb: rdb, channel: channel}
}

func (t *RedisTransport) Publish(ctx context.Context, origin string) error {
	return t.rdb.Publish(ctx, t.channel, origin).Err()
}

func (t *RedisTransport) Listen(ctx context.Context, handle func(origin string)) error {
	sub := t.rdb.Subscribe(ctx, t.channel)
	defer sub.Close()

	// Wait for the subscription confirmation so a failure to subscribe is
	// reported instead of silently yielding a dead channel.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("redis subscription closed")
			}
			handle(msg.Payload)
		}
	}
}

// Close is a no-op; the client is owned by whoever created it.
func (t *RedisTransport) Close() error {
	return nil
}
