package realtime

import (
	"context"
	"encoding/json"

	"github.com/ignis-framework/ignis/ignis/igniserr"
)

// PubSub is the cross-instance fan-out capability the hub depends on.
// Publish and Subscribe are expected to use distinct underlying
// connections (spec §5: "Pub/sub clients are duplicated per role").
type PubSub interface {
	Publish(ctx context.Context, channel string, msg PubSubMessage) error
	// Subscribe delivers every message received on any channel matching
	// pattern to handler, until ctx is canceled.
	Subscribe(ctx context.Context, pattern string, handler func(channel string, msg PubSubMessage)) error
	Close() error
}

func encodeMessage(msg PubSubMessage) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to encode pub/sub message")
	}
	return b, nil
}

func decodeMessage(b []byte) (PubSubMessage, error) {
	var msg PubSubMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		return PubSubMessage{}, igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to decode pub/sub message")
	}
	return msg, nil
}
