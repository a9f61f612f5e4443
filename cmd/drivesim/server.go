package main

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/race/drive/config"
	"github.com/race/drive/internal/network"
	"github.com/race/drive/internal/sim"
)

// Server handles WebSocket upgrades and routes viewer messages to the
// session.
type Server struct {
	config   *config.Config
	session  *sim.Session // The single session every viewer joins
	protocol *network.Protocol
	upgrader websocket.Upgrader

	mu          sync.Mutex // Protects connections
	connections map[*ClientConnection]bool

	log zerolog.Logger
}

// NewServer creates a server for one session.
func NewServer(cfg *config.Config, session *sim.Session, log zerolog.Logger) *Server {
	return &Server{
		config:   cfg,
		session:  session,
		protocol: network.NewProtocol(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin viewers are only accepted when CORS is enabled.
			CheckOrigin: func(r *http.Request) bool {
				return cfg.Server.EnableCORS || r.Header.Get("Origin") == ""
			},
		},
		connections: make(map[*ClientConnection]bool),
		log:         log,
	}
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("RequestID", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())

	if s.config.Server.EnableCORS {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "OPTIONS"},
			AllowHeaders:  []string{"Content-Type", "X-Request-ID"},
			ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
			MaxAge:        12 * time.Hour,
		}))
	}

	router.GET("/ws", s.handleWebSocket)
	router.GET("/health", s.handleHealth)
	router.GET("/stats", s.handleStats)

	return router
}

// handleHealth responds to health check requests.
func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if !s.session.Running() {
		status = "stopped"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStats returns the session statistics as JSON.
func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Stats())
}

// handleWebSocket upgrades the request and joins the connection to the
// session as a viewer.
func (s *Server) handleWebSocket(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := newClientConnection(ws, s)

	viewer, err := s.session.AddViewer(conn.id, conn)
	if err != nil {
		code := network.ErrorCodeServerError
		if errors.Is(err, sim.ErrSessionFull) {
			code = network.ErrorCodeSessionFull
		}
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		ws.WriteMessage(websocket.BinaryMessage, s.protocol.EncodeError(code, err.Error()))
		ws.Close()
		return
	}
	conn.viewer = viewer

	s.mu.Lock()
	s.connections[conn] = true
	s.mu.Unlock()

	s.log.Info().
		Str("conn", conn.id).
		Str("remote", conn.RemoteAddr()).
		Msg("new connection")

	go conn.writePump()
	go conn.readPump()
}

func (s *Server) forget(c *ClientConnection) {
	s.mu.Lock()
	delete(s.connections, c)
	s.mu.Unlock()
}

// CloseAll closes every open connection.
func (s *Server) CloseAll() {
	s.mu.Lock()
	conns := make([]*ClientConnection, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.cleanup()
	}
}
