// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"attendance-service/internal/domain/attendance"
	wstypes "attendance-service/internal/domain/websocket"

	"go.uber.org/zap"
)

// Hub tracks connected clients by user and pushes session lifecycle events
// to them. It implements attendance.Notifier.
type Hub struct {
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	handlerRegistry *HandlerRegistry
	logger          *zap.Logger
}

// BroadcastMessage goes to the subscribed clients of UserIDs, or to every
// subscribed client when UserIDs is nil.
type BroadcastMessage struct {
	UserIDs []string
	Channel wstypes.ChannelType
	Message *wstypes.WSMessage
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:         make(map[string]map[*Client]bool),
		register:        make(chan *Client),
		unregister:      make(chan *Client, 64),
		broadcast:       make(chan *BroadcastMessage, 256),
		handlerRegistry: NewHandlerRegistry(),
		logger:          logger,
	}
}

func (h *Hub) RegisterHandler(handler MessageHandler) {
	h.handlerRegistry.Register(handler)
}

// HandleClientMessage routes a client event to its registered handler.
// Unhandled events fall through to the client's built-ins.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	handler, exists := h.handlerRegistry.GetHandler(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

// Register hands a new client to the hub loop.
func (h *Hub) Register(ctx context.Context, client *Client) {
	select {
	case h.register <- client:
	case <-ctx.Done():
		client.Close()
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	h.logger.Info("websocket client connected",
		zap.String("user_id", client.userID),
		zap.String("session_id", client.sessionID),
		zap.Int("total", total),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"userId":    client.userID,
		"sessionId": client.sessionID,
		"role":      client.role,
		"channels":  client.Channels(),
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	client.Close()
	if len(clients) == 0 {
		delete(h.clients, client.userID)
	}

	h.logger.Info("websocket client disconnected",
		zap.String("user_id", client.userID),
		zap.String("session_id", client.sessionID),
		zap.Int("total", h.totalClients()),
	)
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	send := func(clients map[*Client]bool) {
		for client := range clients {
			if client.IsSubscribed(msg.Channel) {
				client.SendMessage(msg.Message)
			}
		}
	}

	if msg.UserIDs == nil {
		for _, clients := range h.clients {
			send(clients)
		}
		return
	}
	for _, userID := range msg.UserIDs {
		send(h.clients[userID])
	}
}

// enqueue never blocks the caller; lifecycle writes must not wait on
// slow sockets.
func (h *Hub) enqueue(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping event",
			zap.String("type", string(msg.Message.Type)),
		)
	}
}

func (h *Hub) ConnectedClients(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// ========== attendance.Notifier ==========

// SessionClosed tells the user's clients to log out and the admin channel
// that the session ended.
func (h *Hub) SessionClosed(userID, sessionID string, status attendance.Status) {
	data := wstypes.SessionEventData{
		UserID:    userID,
		SessionID: sessionID,
		Status:    string(status),
		Reason:    string(status),
		Message:   closeMessage(status),
	}
	h.enqueue(&BroadcastMessage{
		UserIDs: []string{userID},
		Channel: wstypes.ChannelSession,
		Message: wstypes.NewMessage(wstypes.EventTypeForceLogout, data),
	})
	h.enqueue(&BroadcastMessage{
		Channel: wstypes.ChannelAdmin,
		Message: wstypes.NewMessage(wstypes.EventTypeSessionClosed, data),
	})
}

func (h *Hub) SessionSuspect(userID, sessionID string, poorHeartbeats int) {
	data := wstypes.SessionEventData{
		UserID:         userID,
		SessionID:      sessionID,
		Status:         string(attendance.StatusSuspect),
		Message:        "Location accuracy has been too poor to verify attendance",
		PoorHeartbeats: poorHeartbeats,
	}
	msg := wstypes.NewMessage(wstypes.EventTypeSessionSuspect, data)
	h.enqueue(&BroadcastMessage{UserIDs: []string{userID}, Channel: wstypes.ChannelSession, Message: msg})
	h.enqueue(&BroadcastMessage{Channel: wstypes.ChannelAdmin, Message: msg})
}

func closeMessage(status attendance.Status) string {
	switch status {
	case attendance.StatusLoggedOut:
		return "You have been logged out"
	case attendance.StatusExpired:
		return "Your session has expired"
	case attendance.StatusHeartbeatTimeout:
		return "Your session timed out waiting for a heartbeat"
	default:
		return "Your session was closed automatically"
	}
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
