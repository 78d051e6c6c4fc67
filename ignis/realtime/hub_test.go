package realtime

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ignis-framework/ignis/ignis/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = metrics.Init()
	os.Exit(m.Run())
}

// fakeTransport records every write so tests can assert on delivered
// envelopes without a real socket.
type fakeTransport struct {
	mu     sync.Mutex
	sent   []Envelope
	closed bool
	code   CloseCode
}

func (f *fakeTransport) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	env, ok := v.(Envelope)
	if !ok {
		return nil
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeTransport) Close(code CloseCode, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.code = code
	return nil
}

func (f *fakeTransport) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, e := range f.sent {
		out[i] = e.Event
	}
	return out
}

func newTestHub(cfg Config) *Hub {
	return NewHub(cfg, nil, nil)
}

func TestConnectFlow_Success(t *testing.T) {
	cfg := DefaultConfig()
	h := newTestHub(cfg)
	var joined []string
	h.ValidateRoomFn = func(_, _ string, rooms []string) []string { joined = rooms; return rooms }
	h.AuthenticateFn = func(data any) (*AuthResult, error) {
		return &AuthResult{UserID: "u1"}, nil
	}
	cfg.DefaultRooms = []string{"ws-default", "ws-notification"}
	h.cfg.DefaultRooms = cfg.DefaultRooms

	ft := &fakeTransport{}
	c := h.Connect(ft)
	require.Equal(t, StateUnauthorized, c.State())

	h.HandleEnvelope(context.Background(), c, Envelope{Event: "authenticate", Data: map[string]any{"token": "x"}}, nil)

	require.Equal(t, StateAuthenticated, c.State())
	assert.Equal(t, "u1", c.UserID)
	assert.Contains(t, ft.events(), "connected")
	assert.ElementsMatch(t, []string{"ws-default", "ws-notification", c.ID}, c.Rooms())

	// join without a validated room list still works because ValidateRoomFn is set.
	h.HandleEnvelope(context.Background(), c, Envelope{Event: "join", Data: map[string]any{"rooms": []any{"game-1"}}}, nil)
	assert.Equal(t, []string{"game-1"}, joined)
	assert.Contains(t, c.Rooms(), "game-1")
}

func TestJoinRejectedWithoutValidator(t *testing.T) {
	h := newTestHub(DefaultConfig())
	h.AuthenticateFn = func(data any) (*AuthResult, error) { return &AuthResult{UserID: "u1"}, nil }

	ft := &fakeTransport{}
	c := h.Connect(ft)
	h.HandleEnvelope(context.Background(), c, Envelope{Event: "authenticate"}, nil)
	require.Equal(t, StateAuthenticated, c.State())

	h.HandleEnvelope(context.Background(), c, Envelope{Event: "join", Data: map[string]any{"rooms": []any{"game-1"}}}, nil)
	assert.NotContains(t, c.Rooms(), "game-1")
}

func TestAuthenticateFailureClosesWithCode4003(t *testing.T) {
	h := newTestHub(DefaultConfig())
	h.AuthenticateFn = func(data any) (*AuthResult, error) { return nil, nil }

	ft := &fakeTransport{}
	c := h.Connect(ft)
	h.HandleEnvelope(context.Background(), c, Envelope{Event: "authenticate"}, nil)

	assert.True(t, ft.closed)
	assert.Equal(t, CloseAuthFailure, ft.code)
}

func TestEncryptionRequiredWithoutHandshakeClosesWith4004(t *testing.T) {
	h := newTestHub(DefaultConfig())
	h.RequireEncryption = true
	h.AuthenticateFn = func(data any) (*AuthResult, error) { return &AuthResult{UserID: "u1"}, nil }

	ft := &fakeTransport{}
	c := h.Connect(ft)
	h.HandleEnvelope(context.Background(), c, Envelope{Event: "authenticate"}, nil)

	assert.True(t, ft.closed)
	assert.Equal(t, CloseEncryptionRequired, ft.code)
}

func TestBroadcastReachesAllConnectedClients(t *testing.T) {
	h := newTestHub(DefaultConfig())
	h.AuthenticateFn = func(data any) (*AuthResult, error) { return &AuthResult{UserID: ""}, nil }

	var transports []*fakeTransport
	for range 3 {
		ft := &fakeTransport{}
		transports = append(transports, ft)
		c := h.Connect(ft)
		h.HandleEnvelope(context.Background(), c, Envelope{Event: "authenticate"}, nil)
	}

	require.NoError(t, h.Broadcast(context.Background(), "ping", map[string]any{"n": 1}))

	for _, ft := range transports {
		assert.Contains(t, ft.events(), "ping")
	}
}

func TestSendToRoomExcludesListedClient(t *testing.T) {
	h := newTestHub(DefaultConfig())
	h.AuthenticateFn = func(data any) (*AuthResult, error) { return &AuthResult{UserID: ""}, nil }
	h.ValidateRoomFn = func(_, _ string, rooms []string) []string { return rooms }

	ft1, ft2 := &fakeTransport{}, &fakeTransport{}
	c1 := h.Connect(ft1)
	h.HandleEnvelope(context.Background(), c1, Envelope{Event: "authenticate"}, nil)
	h.HandleEnvelope(context.Background(), c1, Envelope{Event: "join", Data: map[string]any{"rooms": []any{"room-a"}}}, nil)

	c2 := h.Connect(ft2)
	h.HandleEnvelope(context.Background(), c2, Envelope{Event: "authenticate"}, nil)
	h.HandleEnvelope(context.Background(), c2, Envelope{Event: "join", Data: map[string]any{"rooms": []any{"room-a"}}}, nil)

	require.NoError(t, h.SendToRoom(context.Background(), "room-a", "notice", "hi", c1.ID))

	assert.NotContains(t, ft1.events(), "notice")
	assert.Contains(t, ft2.events(), "notice")
}

func TestOutboundTransformRewritesEventBeforeWrite(t *testing.T) {
	h := newTestHub(DefaultConfig())
	h.AuthenticateFn = func(data any) (*AuthResult, error) { return &AuthResult{UserID: ""}, nil }
	h.TransformFn = func(_ *Client, event string, data any) (string, any) {
		return "encrypted", map[string]any{"wrapped": true}
	}

	ft := &fakeTransport{}
	c := h.Connect(ft)
	h.HandleEnvelope(context.Background(), c, Envelope{Event: "authenticate"}, nil)

	require.NoError(t, h.SendToClient(context.Background(), c.ID, "custom", "payload"))
	assert.Contains(t, ft.events(), "encrypted")
	assert.NotContains(t, ft.events(), "custom")
}

// fakePubSub is an in-process PubSub used to test cross-instance dedup
// without a real broker.
type fakePubSub struct {
	mu       sync.Mutex
	handlers map[string][]func(string, PubSubMessage)
}

func newFakePubSub() *fakePubSub { return &fakePubSub{handlers: make(map[string][]func(string, PubSubMessage))} }

func (f *fakePubSub) Publish(_ context.Context, channel string, msg PubSubMessage) error {
	f.mu.Lock()
	hs := append([]func(string, PubSubMessage){}, f.handlers[channel]...)
	f.mu.Unlock()
	for _, h := range hs {
		h(channel, msg)
	}
	return nil
}

func (f *fakePubSub) Subscribe(_ context.Context, pattern string, handler func(string, PubSubMessage)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[pattern] = append(f.handlers[pattern], handler)
	return nil
}

func (f *fakePubSub) Close() error { return nil }

func TestPubSubDedupSkipsOwnServerID(t *testing.T) {
	ps := newFakePubSub()
	h := NewHub(Config{ServerID: "self"}, ps, nil)
	require.NoError(t, h.Start(context.Background()))
	defer h.Stop()

	ft := &fakeTransport{}
	h.AuthenticateFn = func(data any) (*AuthResult, error) { return &AuthResult{UserID: ""}, nil }
	c := h.Connect(ft)
	h.HandleEnvelope(context.Background(), c, Envelope{Event: "authenticate"}, nil)

	// A message claiming to originate from this same server must be dropped.
	h.onPubSubMessage(ChannelBroadcast, PubSubMessage{ServerID: "self", Type: MessageBroadcast, Event: "dup"})
	assert.NotContains(t, ft.events(), "dup")

	// A message from a different server is delivered.
	h.onPubSubMessage(ChannelBroadcast, PubSubMessage{ServerID: "other", Type: MessageBroadcast, Event: "real"})
	assert.Contains(t, ft.events(), "real")
}

func TestHeartbeatSweepClosesIdleClients(t *testing.T) {
	cfg := Config{HeartbeatInterval: 10 * time.Millisecond, HeartbeatTimeout: 20 * time.Millisecond, AuthTimeout: time.Second}
	h := newTestHub(cfg)
	ft := &fakeTransport{}
	c := h.Connect(ft)

	require.NoError(t, h.Start(context.Background()))
	defer h.Stop()

	assert.Eventually(t, func() bool {
		return ft.closed
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, CloseHeartbeatTimeout, ft.code)
	_ = c
}
