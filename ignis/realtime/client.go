package realtime

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is a client's position in the connect-flow state machine (spec
// §4.8): unauthorized -> authenticating -> authenticated.
type State int32

const (
	StateUnauthorized State = iota
	StateAuthenticating
	StateAuthenticated
	StateClosed
)

// Transport is the minimal capability a Client needs from its underlying
// socket. Concrete transports (gorilla/websocket) implement this so the
// hub never imports a specific transport library directly.
type Transport interface {
	WriteJSON(v any) error
	Close(code CloseCode, reason string) error
}

// Client is one connected socket's server-side state.
type Client struct {
	ID       string
	UserID   string
	Metadata map[string]any

	transport Transport

	state        atomic.Int32
	lastActivity atomic.Int64 // unix nanos

	// encrypted is monotonic: once true it is never cleared for the
	// lifetime of the connection (spec §4.8).
	encrypted atomic.Bool

	// backpressured is an advisory bit a transport's drain callback
	// clears; producers may consult it to batch or drop (spec §5).
	backpressured atomic.Bool

	mu    sync.RWMutex
	rooms map[string]struct{}

	timerMu   sync.Mutex
	authTimerRef *time.Timer
}

// NewClient builds a fresh, unauthenticated Client wrapping transport.
func NewClient(id string, transport Transport) *Client {
	c := &Client{ID: id, transport: transport, rooms: make(map[string]struct{})}
	c.state.Store(int32(StateUnauthorized))
	c.touch()
	return c
}

func (c *Client) touch() { c.lastActivity.Store(time.Now().UnixNano()) }

// IdleSince returns how long it has been since the client's last observed
// activity.
func (c *Client) IdleSince() time.Duration {
	return time.Since(time.Unix(0, c.lastActivity.Load()))
}

func (c *Client) State() State { return State(c.state.Load()) }
func (c *Client) setState(s State) { c.state.Store(int32(s)) }

func (c *Client) Encrypted() bool { return c.encrypted.Load() }
func (c *Client) markEncrypted()  { c.encrypted.Store(true) }

func (c *Client) Backpressured() bool       { return c.backpressured.Load() }
func (c *Client) SetBackpressured(v bool)   { c.backpressured.Store(v) }

// Rooms returns a snapshot of the client's joined rooms.
func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		out = append(out, r)
	}
	return out
}

func (c *Client) inRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = struct{}{}
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

// Send writes event/data to the client directly, bypassing any registered
// TransformFunc — used by the hub after it has already applied the
// transform.
func (c *Client) Send(event string, data any) error {
	return c.transport.WriteJSON(Envelope{Event: event, Data: data})
}

// setAuthTimer installs the timer that enforces the auth timeout/extension
// protocol (spec §4.8 steps 1 and 3).
func (c *Client) setAuthTimer(t *time.Timer) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	c.authTimerRef = t
}

func (c *Client) authTimer() *time.Timer {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	return c.authTimerRef
}

// Close closes the underlying transport with the given close code.
func (c *Client) Close(code CloseCode, reason string) error {
	c.setState(StateClosed)
	return c.transport.Close(code, reason)
}
