package realtime

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/ignis-framework/ignis/ignis/ignislog"
	"github.com/ignis-framework/ignis/ignis/metrics"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"
)

// heartbeatPoolSize bounds the goroutines the heartbeat sweep spends
// checking client idle time per tick, the same pre-allocated-pool shape the
// retrieval pack uses for its own DI-container-managed background pool.
const heartbeatPoolSize = 64

// Hub is the WebSocketServerHelper of spec §4.8: the authoritative owner of
// every connected Client, the room index, and the bridge to the
// cross-instance PubSub fan-out. One Hub exists per server process.
type Hub struct {
	cfg    Config
	pubsub PubSub
	log    ignislog.Logger

	AuthenticateFn   AuthenticateFunc
	HandshakeFn      HandshakeFunc
	ValidateRoomFn   ValidateRoomFunc
	TransformFn      TransformFunc
	ClientConnectedFn ClientConnectedFunc
	RequireEncryption bool

	mu      sync.RWMutex
	clients map[string]*Client            // clientID -> client
	users   map[string]map[string]*Client // userID -> clientID -> client
	rooms   map[string]map[string]*Client // room -> clientID -> client

	cancel context.CancelFunc
	wg     sync.WaitGroup
	pool   *ants.Pool
}

// NewHub builds a Hub. cfg.ServerID is generated if empty.
func NewHub(cfg Config, pubsub PubSub, log ignislog.Logger) *Hub {
	if cfg.ServerID == "" {
		cfg.ServerID = uuid.NewString()
	}
	pool, _ := ants.NewPool(heartbeatPoolSize, ants.WithPreAlloc(true))
	return &Hub{
		cfg:     cfg,
		pubsub:  pubsub,
		log:     log,
		clients: make(map[string]*Client),
		users:   make(map[string]map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		pool:    pool,
	}
}

// ServerID returns this instance's unique identifier (spec §4.8, §6).
func (h *Hub) ServerID() string { return h.cfg.ServerID }

// Start subscribes to the cross-instance pub/sub channels and arms the
// heartbeat sweep. It returns once the background goroutines are running.
func (h *Hub) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	if h.pubsub != nil {
		if err := h.pubsub.Subscribe(ctx, ChannelBroadcast, h.onPubSubMessage); err != nil {
			cancel()
			return igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to subscribe to broadcast channel")
		}
		if err := h.pubsub.Subscribe(ctx, ChannelForRoom("*"), h.onPubSubMessage); err != nil {
			cancel()
			return igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to subscribe to room channels")
		}
		if err := h.pubsub.Subscribe(ctx, ChannelForClient("*"), h.onPubSubMessage); err != nil {
			cancel()
			return igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to subscribe to client channels")
		}
		if err := h.pubsub.Subscribe(ctx, ChannelForUser("*"), h.onPubSubMessage); err != nil {
			cancel()
			return igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to subscribe to user channels")
		}
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.heartbeatLoop(ctx)
	}()
	return nil
}

// Stop flushes every connected socket with the shutdown close code, then
// stops the background loops (spec §4.3: booted->stopped order).
func (h *Hub) Stop() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		_ = c.Close(CloseServerShutdown, "server shutdown")
	}
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
	if h.pool != nil {
		h.pool.Release()
	}
}

// onPubSubMessage is the PubSub subscription callback shared by every
// channel pattern. Messages originating from this instance are dropped to
// prevent double delivery (spec §4.8, §8 realtime-dedup).
func (h *Hub) onPubSubMessage(_ string, msg PubSubMessage) {
	if msg.ServerID == h.cfg.ServerID {
		metrics.RealtimePubSubDedup.Inc()
		return
	}
	switch msg.Type {
	case MessageClient:
		h.deliverLocal(h.clientByID(msg.Target), msg.Event, msg.Data, nil)
	case MessageUser:
		for _, c := range h.clientsForUser(msg.Target) {
			h.deliverLocal(c, msg.Event, msg.Data, nil)
		}
	case MessageRoom:
		for _, c := range h.clientsInRoom(msg.Target) {
			h.deliverLocal(c, msg.Event, msg.Data, msg.Exclude)
		}
	case MessageBroadcast:
		for _, c := range h.allClients() {
			h.deliverLocal(c, msg.Event, msg.Data, msg.Exclude)
		}
	}
}

// Connect registers a newly opened transport and returns its Client entry
// in the unauthorized state (spec §4.8 step 1). The caller owns pumping
// the transport's inbound reads into HandleEnvelope.
func (h *Hub) Connect(transport Transport) *Client {
	id := uuid.NewString()
	c := NewClient(id, transport)

	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	metrics.RealtimeClientsConnected.Inc()

	timer := time.AfterFunc(h.authTimeout(), func() {
		if c.State() == StateUnauthorized || c.State() == StateAuthenticating {
			h.closeAndRemove(c, CloseAuthTimeout, "authentication timeout")
		}
	})
	c.setAuthTimer(timer)
	return c
}

func (h *Hub) authTimeout() time.Duration {
	if h.cfg.AuthTimeout <= 0 {
		return DefaultConfig().AuthTimeout
	}
	return h.cfg.AuthTimeout
}

// HandleEnvelope dispatches one inbound client message (spec §4.8, §6).
func (h *Hub) HandleEnvelope(ctx context.Context, c *Client, env Envelope, appHandler func(*Client, Envelope)) {
	c.touch()
	switch env.Event {
	case "authenticate":
		h.handleAuthenticate(ctx, c, env.Data)
	case "heartbeat":
		// touch() above already refreshed activity; nothing else to do.
	case "join":
		h.handleJoin(c, env.Data)
	case "leave":
		h.handleLeave(c, env.Data)
	default:
		if c.State() == StateAuthenticated && appHandler != nil {
			appHandler(c, env)
		}
	}
}

func roomsFromData(data any) []string {
	m, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := m["rooms"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (h *Hub) handleAuthenticate(ctx context.Context, c *Client, data any) {
	if c.State() != StateUnauthorized {
		return
	}
	c.setState(StateAuthenticating)
	if timer := c.authTimer(); timer != nil {
		timer.Reset(h.authTimeout() * 3)
	}

	if h.AuthenticateFn == nil {
		h.closeAndRemove(c, CloseAuthFailure, "no authenticator configured")
		return
	}
	result, err := h.AuthenticateFn(data)
	if err != nil || result == nil {
		_ = c.Send("error", map[string]any{"message": "authentication failed"})
		h.closeAndRemove(c, CloseAuthFailure, "authentication failed")
		return
	}

	var hsk *HandshakeResult
	if h.RequireEncryption {
		if h.HandshakeFn == nil {
			h.closeAndRemove(c, CloseEncryptionRequired, "encryption required")
			return
		}
		hsk, err = h.HandshakeFn(c.ID, result.UserID, data)
		if err != nil || hsk == nil {
			h.closeAndRemove(c, CloseEncryptionRequired, "encryption handshake failed")
			return
		}
		c.markEncrypted()
	}

	c.setState(StateAuthenticated)
	c.UserID = result.UserID
	c.Metadata = result.Metadata
	if timer := c.authTimer(); timer != nil {
		timer.Stop()
	}

	if result.UserID != "" {
		h.mu.Lock()
		if h.users[result.UserID] == nil {
			h.users[result.UserID] = make(map[string]*Client)
		}
		h.users[result.UserID][c.ID] = c
		h.mu.Unlock()
	}

	for _, room := range h.cfg.DefaultRooms {
		h.joinRoom(c, room)
	}
	h.joinRoom(c, c.ID)

	payload := map[string]any{
		"id":   c.ID,
		"time": time.Now().UTC(),
	}
	if result.UserID != "" {
		payload["userId"] = result.UserID
	}
	if hsk != nil {
		payload["serverPublicKey"] = hsk.ServerPublicKey
		payload["salt"] = hsk.Salt
	}
	h.deliverLocal(c, "connected", payload, nil)

	if h.ClientConnectedFn != nil {
		h.ClientConnectedFn(c)
	}
	_ = ctx
}

func (h *Hub) handleJoin(c *Client, data any) {
	if c.State() != StateAuthenticated {
		return
	}
	requested := roomsFromData(data)
	if len(requested) == 0 {
		return
	}
	var allowed []string
	if h.ValidateRoomFn != nil {
		allowed = h.ValidateRoomFn(c.ID, c.UserID, requested)
	}
	// No validator configured: every custom join is rejected (spec §4.8).
	for _, r := range allowed {
		h.joinRoom(c, r)
	}
}

func (h *Hub) handleLeave(c *Client, data any) {
	for _, r := range roomsFromData(data) {
		h.leaveRoom(c, r)
	}
}

func (h *Hub) joinRoom(c *Client, room string) {
	c.addRoom(room)
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][c.ID] = c
	h.mu.Unlock()
}

func (h *Hub) leaveRoom(c *Client, room string) {
	c.removeRoom(room)
	h.mu.Lock()
	if m, ok := h.rooms[room]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

// Disconnect removes a client entry entirely (transport closed). It is the
// only recovery action for the transport-closed error kind (spec §7).
func (h *Hub) Disconnect(c *Client) {
	if timer := c.authTimer(); timer != nil {
		timer.Stop()
	}
	h.mu.Lock()
	if _, existed := h.clients[c.ID]; existed {
		metrics.RealtimeClientsConnected.Dec()
	}
	delete(h.clients, c.ID)
	if c.UserID != "" {
		if m, ok := h.users[c.UserID]; ok {
			delete(m, c.ID)
			if len(m) == 0 {
				delete(h.users, c.UserID)
			}
		}
	}
	for _, room := range c.Rooms() {
		if m, ok := h.rooms[room]; ok {
			delete(m, c.ID)
			if len(m) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()
	c.setState(StateClosed)
}

func (h *Hub) closeAndRemove(c *Client, code CloseCode, reason string) {
	_ = c.Close(code, reason)
	metrics.RealtimeCloses.WithLabelValues(strconv.Itoa(int(code))).Inc()
	h.Disconnect(c)
}

func (h *Hub) clientByID(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

func (h *Hub) clientsForUser(userID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m := h.users[userID]
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

func (h *Hub) clientsInRoom(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m := h.rooms[room]
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

func (h *Hub) allClients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

func excludes(id string, exclude []string) bool {
	for _, e := range exclude {
		if e == id {
			return true
		}
	}
	return false
}

// deliverLocal writes event/data to c, applying TransformFn first (spec
// §4.8 "outbound transform"). Errors are swallowed: a dead transport is
// cleaned up by the transport's own close callback, not by the sender.
func (h *Hub) deliverLocal(c *Client, event string, data any, exclude []string) {
	if c == nil || c.State() == StateClosed {
		return
	}
	if excludes(c.ID, exclude) {
		return
	}
	sendEvent, sendData := event, data
	if h.TransformFn != nil {
		if e2, d2 := h.TransformFn(c, event, data); e2 != "" {
			sendEvent, sendData = e2, d2
		}
	}
	_ = c.Send(sendEvent, sendData)
}

// iterate runs fn over clients with a bounded-concurrency worker window
// (spec §4.8 "encryptedBatchLimit"), used whenever native fan-out is
// bypassed because a transformer or exclude list is present.
func (h *Hub) iterate(clients []*Client, fn func(*Client)) {
	limit := h.cfg.EncryptedBatchLimit
	if limit <= 0 {
		limit = DefaultConfig().EncryptedBatchLimit
	}
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for _, c := range clients {
		c := c
		g.Go(func() error {
			fn(c)
			return nil
		})
	}
	_ = g.Wait()
}

// needsIteration reports whether native (non-iterating) fan-out would
// bypass the outbound transformer or an exclude list (spec §4.8 table).
func (h *Hub) needsIteration(exclude []string) bool {
	return h.TransformFn != nil || len(exclude) > 0
}

// SendToClient delivers to a single client, locally if connected to this
// instance, otherwise via the client's pub/sub channel (spec §4.8 table).
func (h *Hub) SendToClient(ctx context.Context, clientID, event string, data any) error {
	metrics.RealtimeMessagesSent.WithLabelValues(string(MessageClient)).Inc()
	if c := h.clientByID(clientID); c != nil {
		h.deliverLocal(c, event, data, nil)
		return nil
	}
	return h.publish(ctx, ChannelForClient(clientID), MessageClient, clientID, event, data, nil)
}

// SendToUser delivers to every client of userID, local and remote.
func (h *Hub) SendToUser(ctx context.Context, userID, event string, data any) error {
	metrics.RealtimeMessagesSent.WithLabelValues(string(MessageUser)).Inc()
	for _, c := range h.clientsForUser(userID) {
		h.deliverLocal(c, event, data, nil)
	}
	return h.publish(ctx, ChannelForUser(userID), MessageUser, userID, event, data, nil)
}

// SendToRoom fans a message out to every client in room, local and remote.
func (h *Hub) SendToRoom(ctx context.Context, room, event string, data any, exclude ...string) error {
	metrics.RealtimeMessagesSent.WithLabelValues(string(MessageRoom)).Inc()
	clients := h.clientsInRoom(room)
	if h.needsIteration(exclude) {
		h.iterate(clients, func(c *Client) { h.deliverLocal(c, event, data, exclude) })
	} else {
		for _, c := range clients {
			h.deliverLocal(c, event, data, nil)
		}
	}
	return h.publish(ctx, ChannelForRoom(room), MessageRoom, room, event, data, exclude)
}

// Broadcast fans a message out to every connected client on every instance.
func (h *Hub) Broadcast(ctx context.Context, event string, data any, exclude ...string) error {
	metrics.RealtimeMessagesSent.WithLabelValues(string(MessageBroadcast)).Inc()
	clients := h.allClients()
	if h.needsIteration(exclude) {
		h.iterate(clients, func(c *Client) { h.deliverLocal(c, event, data, exclude) })
	} else {
		for _, c := range clients {
			h.deliverLocal(c, event, data, nil)
		}
	}
	return h.publish(ctx, ChannelBroadcast, MessageBroadcast, "", event, data, exclude)
}

func (h *Hub) publish(ctx context.Context, channel string, typ MessageType, target, event string, data any, exclude []string) error {
	if h.pubsub == nil {
		return nil
	}
	msg := PubSubMessage{ServerID: h.cfg.ServerID, Type: typ, Target: target, Event: event, Data: data, Exclude: exclude}
	if err := h.pubsub.Publish(ctx, channel, msg); err != nil {
		return igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to publish realtime message")
	}
	return nil
}

func (h *Hub) heartbeatLoop(ctx context.Context) {
	interval := h.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultConfig().HeartbeatInterval
	}
	timeout := h.cfg.HeartbeatTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().HeartbeatTimeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range h.allClients() {
				c := c
				submit := func() {
					if c.IdleSince() > timeout {
						if h.log != nil {
							h.log.Infow("closing idle realtime client", "clientId", c.ID, "idle", c.IdleSince())
						}
						h.closeAndRemove(c, CloseHeartbeatTimeout, "heartbeat timeout")
					}
				}
				if h.pool == nil || h.pool.Submit(submit) != nil {
					submit()
				}
			}
		}
	}
}
