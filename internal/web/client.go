package web

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codefionn/geocopilot/internal/logger"
	"github.com/codefionn/geocopilot/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

// Client represents a WebSocket client
type Client struct {
	ID     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan *WebMessage
	broker *MessageBroker

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, broker *MessageBroker) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:     session.GenerateID(),
		hub:    hub,
		conn:   conn,
		send:   make(chan *WebMessage, 256),
		broker: broker,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ReadPump pumps messages from the WebSocket connection to the broker
func (c *Client) ReadPump() {
	defer func() {
		c.cancel()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error: %v", err)
			}
			break
		}

		var msg WebMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Error("Failed to unmarshal message: %v", err)
			c.sendResponse(&WebMessage{Type: MessageTypeError, Error: "invalid message"})
			continue
		}

		c.handleMessage(&msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logger.Error("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles incoming messages from the client
func (c *Client) handleMessage(msg *WebMessage) {
	switch msg.Type {
	case MessageTypeTurn:
		// Turns can outlive the read deadline, so they run off the read loop.
		go c.runTurn(msg.Content)

	case MessageTypeReset:
		c.broker.Reset()
		c.hub.Broadcast(&WebMessage{
			Type:      MessageTypeSession,
			Session:   c.broker.SessionView(),
			Timestamp: time.Now(),
		})

	case MessageTypeSession:
		c.sendResponse(&WebMessage{
			Type:      MessageTypeSession,
			Session:   c.broker.SessionView(),
			Timestamp: time.Now(),
		})

	default:
		logger.Warn("Unknown message type: %s", msg.Type)
		c.sendResponse(&WebMessage{Type: MessageTypeError, Error: "unknown message type " + msg.Type})
	}
}

func (c *Client) runTurn(utterance string) {
	result, err := c.broker.ProcessUserMessage(c.ctx, utterance, c.sendResponse)
	if err != nil {
		c.sendResponse(&WebMessage{Type: MessageTypeError, Error: err.Error()})
		return
	}
	c.sendResponse(&WebMessage{Type: MessageTypeResult, Result: result, Timestamp: time.Now()})
	c.hub.Broadcast(&WebMessage{
		Type:      MessageTypeSession,
		Session:   c.broker.SessionView(),
		Timestamp: time.Now(),
	})
}

// sendResponse sends a response message to the client
func (c *Client) sendResponse(msg *WebMessage) {
	defer func() {
		// The hub closes send when it drops the client.
		if recover() != nil {
			logger.Debug("Client %s gone, dropping message", c.ID)
		}
	}()
	select {
	case c.send <- msg:
	default:
		logger.Warn("Client send channel full, dropping message")
	}
}
