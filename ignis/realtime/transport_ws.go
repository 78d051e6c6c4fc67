package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSTransport adapts a gorilla/websocket connection to the Transport
// capability the Hub depends on. Writes are serialized with a mutex since
// gorilla/websocket connections forbid concurrent writers.
type WSTransport struct {
	conn *websocket.Conn

	mu sync.Mutex
}

// NewWSTransport wraps conn.
func NewWSTransport(conn *websocket.Conn) *WSTransport {
	return &WSTransport{conn: conn}
}

// WriteJSON marshals v and writes it as a single text frame.
func (t *WSTransport) WriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return t.conn.WriteMessage(websocket.TextMessage, b)
}

// Close sends a close frame carrying code and reason, then closes the
// underlying connection.
func (t *WSTransport) Close(code CloseCode, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := websocket.FormatCloseMessage(int(code), reason)
	_ = t.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = t.conn.WriteMessage(websocket.CloseMessage, msg)
	return t.conn.Close()
}

// ReadEnvelopes blocks reading text frames off conn and decodes each into
// an Envelope, invoking onEnvelope for each one, until the connection is
// closed or onEnvelope returns false. onClose runs exactly once, however
// the loop ends.
func ReadEnvelopes(conn *websocket.Conn, onEnvelope func(Envelope) bool, onClose func()) {
	defer onClose()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if !onEnvelope(env) {
			return
		}
	}
}
