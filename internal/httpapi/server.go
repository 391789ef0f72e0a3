// Package httpapi exposes the local HTTP and WebSocket surface: the
// notification feed, triage actions, task creation, and adapter status.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nhle/command-center/internal/hub"
	"github.com/nhle/command-center/internal/registry"
	"github.com/nhle/command-center/internal/store"
)

// Server wires the store, adapter registry, and broadcast hub behind the
// HTTP surface.
type Server struct {
	store    store.Store
	registry *registry.Registry
	hub      *hub.Hub
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates the HTTP server.
func NewServer(
	st store.Store,
	reg *registry.Registry,
	h *hub.Hub,
	log *slog.Logger,
) *Server {
	return &Server{
		store:    st,
		registry: reg,
		hub:      h,
		log:      log,
		upgrader: websocket.Upgrader{
			// The server binds to loopback; browser clients connect from
			// file:// or localhost origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ws", s.handleWebSocket)

	api := router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/notifications", s.handleListNotifications)
		api.POST("/notifications/:id/action", s.handleAction)
		api.POST("/tasks", s.handleCreateTask)
		api.GET("/services/status", s.handleServiceStatus)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"active_connections": s.hub.Count(),
	})
}

func (s *Server) handleServiceStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"services": s.registry.Statuses(),
	})
}
