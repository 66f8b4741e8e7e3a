// Package realtime contains the endpoints of the verification
// notification channel: the WebSocket clients wait on, the internal
// trigger that wakes them, and the SSE fallback poller
package realtime

import (
	"net/http"
	"sync"
	"time"

	"bitwise74/verify-api/internal"
	"bitwise74/verify-api/internal/registry"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 512,
	// Cross-origin policy is enforced by the CORS middleware in front
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a gorilla connection to the registry's Conn interface.
// Writes can come from the registry's timer goroutines, hence the lock
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) Send(ev registry.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(ev)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

// Connect upgrades the request and registers the connection under its vid.
// The channel is receive-only for the client; the read loop only exists to
// notice the transport closing
func Connect(c *gin.Context, d *internal.Deps) {
	vid := c.Query("vid")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}

	conn := &wsConn{ws: ws}

	if err := d.Registry.Register(vid, conn); err != nil {
		// Register already pushed an ERROR event and closed the socket
		return
	}

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	d.Registry.Unregister(vid, conn)
}
