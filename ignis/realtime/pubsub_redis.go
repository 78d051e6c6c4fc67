package realtime

import (
	"context"

	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/redis/go-redis/v9"
)

// RedisPubSub is the default cross-instance PubSub implementation (spec
// §5 "pub/sub clients are duplicated per role" — PSubscribe opens its own
// connection distinct from the client used to Publish).
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub wraps an existing *redis.Client. The caller owns the
// client's lifecycle (connection pooling, auth) — this type only adds the
// channel-naming and (de)serialization conventions realtime needs.
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

func (r *RedisPubSub) Publish(ctx context.Context, channel string, msg PubSubMessage) error {
	b, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, channel, b).Err(); err != nil {
		return igniserr.Wrap(igniserr.KindConfigInvalid, err, "redis publish failed")
	}
	return nil
}

func (r *RedisPubSub) Subscribe(ctx context.Context, pattern string, handler func(channel string, msg PubSubMessage)) error {
	sub := r.client.PSubscribe(ctx, pattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return igniserr.Wrap(igniserr.KindConfigInvalid, err, "redis psubscribe failed")
	}
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				msg, err := decodeMessage([]byte(m.Payload))
				if err != nil {
					continue
				}
				handler(m.Channel, msg)
			}
		}
	}()
	return nil
}

func (r *RedisPubSub) Close() error { return r.client.Close() }
