// internal/websocket/handler.go
package websocket

import (
	"context"

	wstypes "attendance-service/internal/domain/websocket"
)

// MessageHandler handles one group of client events.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error
	SupportedEvents() []wstypes.EventType
}

// HandlerRegistry manages all message handlers
type HandlerRegistry struct {
	handlers map[wstypes.EventType]MessageHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[wstypes.EventType]MessageHandler),
	}
}

// Register registers a handler for its supported events
func (r *HandlerRegistry) Register(handler MessageHandler) {
	for _, eventType := range handler.SupportedEvents() {
		r.handlers[eventType] = handler
	}
}

func (r *HandlerRegistry) GetHandler(eventType wstypes.EventType) (MessageHandler, bool) {
	handler, exists := r.handlers[eventType]
	return handler, exists
}

// SessionStatusHandler answers session:status with the live state of the
// client's own session.
type SessionStatusHandler struct {
	sessions SessionVerifier
}

func NewSessionStatusHandler(sessions SessionVerifier) *SessionStatusHandler {
	return &SessionStatusHandler{sessions: sessions}
}

func (h *SessionStatusHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypeSessionStatus}
}

func (h *SessionStatusHandler) HandleMessage(ctx context.Context, client *Client, _ *wstypes.WSMessage) error {
	status, err := h.sessions.VerifySession(ctx, client.SessionID())
	if err != nil {
		return err
	}
	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeSessionStatus, status))
	return nil
}
