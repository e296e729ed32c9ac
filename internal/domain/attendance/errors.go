package attendance

import "errors"

var (
	// ErrLiveSessionConflict is returned by a store when inserting a live
	// session would give the user a second exclusive live session.
	ErrLiveSessionConflict = errors.New("user already has a live session")

	// ErrSessionNotLive is returned by conditional heartbeat writes when the
	// session left the live states before the write landed.
	ErrSessionNotLive = errors.New("session is not live")

	ErrUnknownStatus = errors.New("unknown session status")
)
