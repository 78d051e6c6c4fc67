package ginadapter

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ignis-framework/ignis/ignis/realtime"
)

// upgrader accepts any origin, matching the teacher's own permissive CORS
// middleware posture (middleware.Cors()); a production deployment
// tightens CheckOrigin via its own gin middleware in front of this route.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RealtimeHandler upgrades an incoming request to a WebSocket connection
// and pumps it through hub, using appHandler for every application-level
// event (spec §4.8's "any application event forwarded to messageHandler").
func RealtimeHandler(hub *realtime.Hub, appHandler func(*realtime.Client, realtime.Envelope)) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		transport := realtime.NewWSTransport(conn)
		client := hub.Connect(transport)
		ctx := c.Request.Context()

		realtime.ReadEnvelopes(conn, func(env realtime.Envelope) bool {
			hub.HandleEnvelope(ctx, client, env, appHandler)
			return true
		}, func() {
			hub.Disconnect(client)
		})
	}
}
