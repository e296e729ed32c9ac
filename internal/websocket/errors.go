// internal/websocket/errors.go
package websocket

import "errors"

var (
	ErrSessionNotLive = errors.New("session is no longer live")
	ErrInvalidToken   = errors.New("invalid token")
)
