package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/nhle/command-center/internal/model"
)

// initialLoadLimit is how many notifications a freshly connected client
// receives before live events take over.
const initialLoadLimit = 50

// handleWebSocket upgrades the connection, registers it with the hub,
// pushes the initial snapshot, and then holds the read loop open until
// the client goes away. All outbound traffic flows through the hub.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}

	s.hub.Register(conn)
	defer func() {
		s.hub.Unregister(conn)
		_ = conn.Close()
	}()

	recent := s.registry.FetchAllRecent(c.Request.Context(), initialLoadLimit)
	if err := s.hub.SendTo(conn, model.InitialLoadEvent(recent)); err != nil {
		s.log.Warn("initial load delivery failed", "error", err)
		return
	}

	// Inbound messages are ignored; the read loop only detects closure.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
