package api

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/mswim/pkg/transport"
)

// Upgrade accepts the HTTP connection as a WebSocket and hands it to the
// channel registry, which blocks until the client disconnects. channel and
// sessionId are read from the query string (§6.1), adapted from the
// teacher's handler_ws.go to gin's *http.Request/ResponseWriter pair.
func (s *Server) Upgrade(c *gin.Context) {
	if s.registry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "websocket transport not available"})
		return
	}

	channel := transport.Channel(c.Query("channel"))
	if channel != transport.ChannelWidget && channel != transport.ChannelDashboard {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel must be widget or dashboard"})
		return
	}
	sessionID := c.Query("sessionId")

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn("api: websocket accept failed", "err", err)
		return
	}

	s.registry.HandleConnection(c.Request.Context(), conn, channel, sessionID)
}
