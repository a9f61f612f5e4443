package main

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/race/drive/internal/network"
	"github.com/race/drive/internal/sim"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

var errConnectionClosed = errors.New("connection closed")

// ClientConnection is one websocket viewer. Each has its own goroutines for
// reading and writing.
type ClientConnection struct {
	id       string // Connection id, also logged by the session
	ws       *websocket.Conn
	server   *Server
	viewer   *sim.Viewer   // Set once the session accepted the connection
	sendChan chan []byte   // Outgoing messages, drained by writePump
	done     chan struct{} // Closed by Close

	closeOnce   sync.Once
	cleanupOnce sync.Once
}

func newClientConnection(ws *websocket.Conn, s *Server) *ClientConnection {
	return &ClientConnection{
		id:       uuid.New().String(),
		ws:       ws,
		server:   s,
		sendChan: make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

// Send queues data for the client. Frames are dropped while the buffer is
// full; the client will get the next one.
func (c *ClientConnection) Send(data []byte) error {
	select {
	case <-c.done:
		return errConnectionClosed
	default:
	}

	select {
	case c.sendChan <- data:
	default:
	}
	return nil
}

// Close shuts the connection down. Safe to call multiple times.
func (c *ClientConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// RemoteAddr returns the client's address for logging.
func (c *ClientConnection) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// writePump sends queued messages and periodic pings.
func (c *ClientConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.cleanup()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.sendChan:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump receives client messages and dispatches them.
func (c *ClientConnection) readPump() {
	defer c.cleanup()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.log.Warn().Err(err).Str("conn", c.id).Msg("read error")
			}
			return
		}

		c.handleMessage(message)
	}
}

// handleMessage dispatches on the message type byte.
func (c *ClientConnection) handleMessage(data []byte) {
	p := c.server.protocol
	msgType, err := p.MessageType(data)
	if err != nil {
		return
	}

	switch msgType {
	case network.MsgTypeInput:
		msg, err := p.DecodeInput(data)
		if err != nil {
			c.reject(err)
			return
		}
		c.server.session.HandleInput(c.viewer.ID, msg)

	case network.MsgTypeGesture:
		msg, err := p.DecodeGesture(data)
		if err != nil {
			c.reject(err)
			return
		}
		c.server.session.HandleGesture(c.viewer.ID, msg)

	case network.MsgTypePing:
		msg, err := p.DecodePing(data)
		if err != nil {
			c.reject(err)
			return
		}
		c.Send(p.EncodePong(msg.Timestamp))

	default:
		c.reject(network.ErrInvalidMessage)
	}
}

func (c *ClientConnection) reject(err error) {
	c.server.log.Debug().Err(err).Str("conn", c.id).Msg("invalid message")
	c.Send(c.server.protocol.EncodeError(network.ErrorCodeInvalidMessage, err.Error()))
}

// cleanup removes the viewer from the session and closes the socket.
func (c *ClientConnection) cleanup() {
	c.cleanupOnce.Do(func() {
		c.server.forget(c)
		if c.viewer != nil {
			c.server.session.RemoveViewer(c.viewer.ID)
		}
		c.Close()
		c.server.log.Info().Str("conn", c.id).Msg("connection closed")
	})
}
