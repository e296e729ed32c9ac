// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Session events (server -> client)
	EventTypeSessionClosed  EventType = "session:closed"
	EventTypeForceLogout    EventType = "session:force_logout"
	EventTypeSessionSuspect EventType = "session:suspect"

	// Session status request (client -> server)
	EventTypeSessionStatus EventType = "session:status"

	// Subscription events
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      interface{}            `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ID        string                 `json:"id,omitempty"`
}

// ChannelType names a stream clients subscribe to.
type ChannelType string

const (
	// ChannelSession carries events about the client's own sessions. Every
	// client is subscribed on connect.
	ChannelSession ChannelType = "session"
	// ChannelAdmin carries session events for every user. Admins only.
	ChannelAdmin ChannelType = "admin"
)

type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

type UnsubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SessionEventData for session events
type SessionEventData struct {
	UserID         string `json:"userId"`
	SessionID      string `json:"sessionId"`
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	Message        string `json:"message"`
	PoorHeartbeats int    `json:"consecutivePoorHeartbeats,omitempty"`
}

func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        ulid.Make().String(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}
