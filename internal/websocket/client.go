// internal/websocket/client.go
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	wstypes "attendance-service/internal/domain/websocket"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	userID    string
	sessionID string
	role      string
	logger    *zap.Logger

	subscriptions map[wstypes.ChannelType]bool
	subMutex      sync.RWMutex

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewClient subscribes the client to its own session channel. conn may be
// nil in tests that never start the pumps.
func NewClient(hub *Hub, conn *websocket.Conn, auth *ClientAuth) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 64),
		userID:        auth.UserID,
		sessionID:     auth.SessionID,
		role:          auth.Role,
		logger:        hub.logger,
		subscriptions: map[wstypes.ChannelType]bool{wstypes.ChannelSession: true},
		ctx:           ctx,
		cancel:        cancel,
	}
	return c
}

func (c *Client) UserID() string    { return c.userID }
func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) isAdmin() bool {
	return c.role == "admin"
}

// Subscribe reports false for channels the client may not join.
func (c *Client) Subscribe(channel wstypes.ChannelType) bool {
	switch channel {
	case wstypes.ChannelSession:
	case wstypes.ChannelAdmin:
		if !c.isAdmin() {
			return false
		}
	default:
		return false
	}

	c.subMutex.Lock()
	defer c.subMutex.Unlock()
	c.subscriptions[channel] = true
	return true
}

func (c *Client) Unsubscribe(channel wstypes.ChannelType) {
	c.subMutex.Lock()
	defer c.subMutex.Unlock()
	delete(c.subscriptions, channel)
}

func (c *Client) IsSubscribed(channel wstypes.ChannelType) bool {
	c.subMutex.RLock()
	defer c.subMutex.RUnlock()
	return c.subscriptions[channel]
}

func (c *Client) Channels() []wstypes.ChannelType {
	c.subMutex.RLock()
	defer c.subMutex.RUnlock()
	out := make([]wstypes.ChannelType, 0, len(c.subscriptions))
	for ch := range c.subscriptions {
		out = append(out, ch)
	}
	return out
}

// ReadPump handles incoming messages from client
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
		c.handleMessage(message)
	}
}

// WritePump handles outgoing messages to client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	msg, err := wstypes.ParseMessage(data)
	if err != nil {
		c.SendError("invalid_message", "Failed to parse message", err.Error())
		return
	}

	handled, err := c.hub.HandleClientMessage(c.ctx, c, msg)
	if err != nil {
		c.SendError("handler_error", "Failed to process message", err.Error())
		return
	}
	if handled {
		return
	}

	switch msg.Type {
	case wstypes.EventTypePing:
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypePong, nil))

	case wstypes.EventTypeSubscribe:
		var req wstypes.SubscribeRequest
		if err := decodeData(msg.Data, &req); err != nil {
			c.SendError("invalid_subscribe", "Invalid subscribe request", err.Error())
			return
		}
		var granted []wstypes.ChannelType
		for _, channel := range req.Channels {
			if c.Subscribe(channel) {
				granted = append(granted, channel)
			}
		}
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypeSubscribe, map[string]interface{}{
			"channels": granted,
			"status":   "subscribed",
		}))

	case wstypes.EventTypeUnsubscribe:
		var req wstypes.UnsubscribeRequest
		if err := decodeData(msg.Data, &req); err != nil {
			c.SendError("invalid_unsubscribe", "Invalid unsubscribe request", err.Error())
			return
		}
		for _, channel := range req.Channels {
			c.Unsubscribe(channel)
		}
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypeUnsubscribe, map[string]interface{}{
			"channels": req.Channels,
			"status":   "unsubscribed",
		}))

	default:
		c.SendError("unknown_event", "Unsupported event type", string(msg.Type))
	}
}

// SendMessage queues msg; a client whose queue is full is dropped.
func (c *Client) SendMessage(msg *wstypes.WSMessage) {
	data, err := msg.ToJSON()
	if err != nil {
		c.logger.Error("failed to marshal websocket message", zap.Error(err))
		return
	}

	select {
	case <-c.ctx.Done():
		return
	default:
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("websocket send queue full, dropping client", zap.String("user_id", c.userID))
		c.Close()
		select {
		case c.hub.unregister <- c:
		default:
		}
	}
}

func (c *Client) SendError(code, message, details string) {
	c.SendMessage(wstypes.NewMessage(wstypes.EventTypeError, wstypes.ErrorData{
		Code:    code,
		Message: message,
		Details: details,
	}))
}

// Close stops the pumps. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(c.cancel)
}

func decodeData(data interface{}, target interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
