package realtime

import (
	"context"
	"strings"

	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/nats-io/nats.go"
)

// NatsPubSub is the alternate cross-instance PubSub backend (spec §5's
// config-selectable pub/sub store; ignis/config's Realtime.PubSubBackend).
// Publish and Subscribe share one connection — nats.go's Conn is already
// safe for concurrent use and does not need a duplicated role connection
// the way a redis client pool does.
type NatsPubSub struct {
	conn *nats.Conn
}

// NewNatsPubSub wraps an existing *nats.Conn.
func NewNatsPubSub(conn *nats.Conn) *NatsPubSub {
	return &NatsPubSub{conn: conn}
}

func (n *NatsPubSub) Publish(_ context.Context, channel string, msg PubSubMessage) error {
	b, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(natsSubject(channel), b); err != nil {
		return igniserr.Wrap(igniserr.KindConfigInvalid, err, "nats publish failed")
	}
	return nil
}

func (n *NatsPubSub) Subscribe(ctx context.Context, pattern string, handler func(channel string, msg PubSubMessage)) error {
	sub, err := n.conn.Subscribe(natsSubject(pattern), func(m *nats.Msg) {
		msg, err := decodeMessage(m.Data)
		if err != nil {
			return
		}
		handler(m.Subject, msg)
	})
	if err != nil {
		return igniserr.Wrap(igniserr.KindConfigInvalid, err, "nats subscribe failed")
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

func (n *NatsPubSub) Close() error {
	n.conn.Close()
	return nil
}

// natsSubject rewrites the package's redis-glob channel names (e.g.
// "ws:room:*") into NATS subject wildcards ("ws.room.>"): NATS subjects are
// dot-separated and use ">" for a multi-token tail wildcard rather than "*"
// for a substring tail.
func natsSubject(channel string) string {
	channel = strings.ReplaceAll(channel, ":", ".")
	if strings.HasSuffix(channel, ".*") {
		return strings.TrimSuffix(channel, "*") + ">"
	}
	return channel
}
