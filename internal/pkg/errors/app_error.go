// internal/pkg/errors/app_error.go
package xerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable machine-readable error code returned to clients.
type Kind string

const (
	KindInvalidCredentials         Kind = "INVALID_CREDENTIALS"
	KindDeviceNotAssigned          Kind = "DEVICE_NOT_ASSIGNED"
	KindNoDeviceAssigned           Kind = "NO_DEVICE_ASSIGNED"
	KindAllocatedLocationNotFound  Kind = "ALLOCATED_LOCATION_NOT_FOUND"
	KindNotWithinAllocatedLocation Kind = "NOT_WITHIN_ALLOCATED_LOCATION"
	KindNoLocationsConfigured      Kind = "NO_LOCATIONS_CONFIGURED"
	KindLocationNotAllowed         Kind = "LOCATION_NOT_ALLOWED"
	KindActiveSessionExists        Kind = "ACTIVE_SESSION_EXISTS"
	KindSessionNotFound            Kind = "SESSION_NOT_FOUND"
	KindDeviceMismatch             Kind = "DEVICE_MISMATCH"
	KindSessionNotActive           Kind = "SESSION_NOT_ACTIVE"
	KindSessionExpired             Kind = "SESSION_EXPIRED"
	KindHeartbeatTimeout           Kind = "HEARTBEAT_TIMEOUT"
	KindPoorLocationAccuracy       Kind = "POOR_LOCATION_ACCURACY"
	KindTooManyAttempts            Kind = "TOO_MANY_ATTEMPTS"
	KindInvalidInput               Kind = "INVALID_INPUT"
	KindNotFound                   Kind = "NOT_FOUND"
	KindUnauthorized               Kind = "UNAUTHORIZED"
	KindForbidden                  Kind = "FORBIDDEN"
	KindInternal                   Kind = "INTERNAL_ERROR"
)

// AppError is a domain error that carries everything a client needs to
// self-correct: a kind, an HTTP status, a message and structured details.
type AppError struct {
	Kind    Kind
	Status  int
	Message string
	Details map[string]any
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

// Is matches any *AppError with the same kind.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// With returns a copy of e with an extra detail field.
func (e *AppError) With(key string, value any) *AppError {
	out := *e
	out.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return &out
}

// WithStatus returns a copy of e answered with a different HTTP status.
func (e *AppError) WithStatus(status int) *AppError {
	out := *e
	out.Status = status
	return &out
}

// WithCause attaches an underlying error that is logged but not shown.
func (e *AppError) WithCause(err error) *AppError {
	out := *e
	out.cause = err
	return &out
}

func New(kind Kind, status int, message string) *AppError {
	return &AppError{Kind: kind, Status: status, Message: message}
}

// AsAppError extracts an *AppError from err.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for non-domain errors.
func KindOf(err error) Kind {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

func InvalidCredentials() *AppError {
	return New(KindInvalidCredentials, http.StatusUnauthorized, "Invalid username or password")
}

func DeviceNotAssigned(deviceID string) *AppError {
	return New(KindDeviceNotAssigned, http.StatusForbidden, "This device is not assigned to your account").
		With("deviceId", deviceID)
}

func NoDeviceAssigned() *AppError {
	return New(KindNoDeviceAssigned, http.StatusForbidden, "No device is assigned to your account, contact your administrator")
}

func AllocatedLocationNotFound(locationID string) *AppError {
	return New(KindAllocatedLocationNotFound, http.StatusInternalServerError, "Your allocated location could not be found").
		With("allocatedLocationId", locationID)
}

func NotWithinAllocatedLocation(locationName string, distance, required float64) *AppError {
	return New(KindNotWithinAllocatedLocation, http.StatusForbidden, "You are not within your allocated location").
		With("allocatedLocation", locationName).
		With("distanceMeters", roundMeters(distance)).
		With("requiredProximityMeters", required)
}

func NoLocationsConfigured() *AppError {
	return New(KindNoLocationsConfigured, http.StatusForbidden, "No locations are configured for your company")
}

func LocationNotAllowed(allowed []string, nearestDistance float64) *AppError {
	return New(KindLocationNotAllowed, http.StatusForbidden, "You are not within any allowed company location").
		With("allowedLocations", allowed).
		With("nearestDistanceMeters", roundMeters(nearestDistance))
}

func ActiveSessionExists(sessionID string) *AppError {
	return New(KindActiveSessionExists, http.StatusConflict, "An active session already exists, log out from the other device first").
		With("activeSessionId", sessionID)
}

func SessionNotFound() *AppError {
	return New(KindSessionNotFound, http.StatusUnauthorized, "Session not found")
}

func DeviceMismatch() *AppError {
	return New(KindDeviceMismatch, http.StatusForbidden, "Device does not match the session")
}

func SessionNotActive(status string) *AppError {
	return New(KindSessionNotActive, http.StatusUnauthorized, "Session is not active").
		With("status", status)
}

func SessionExpired(timeoutHours float64) *AppError {
	return New(KindSessionExpired, http.StatusUnauthorized, "Session has expired, log in again").
		With("sessionTimeoutHours", timeoutHours)
}

func HeartbeatTimeout(inactiveMinutes, expectedIntervalMinutes float64) *AppError {
	return New(KindHeartbeatTimeout, http.StatusUnauthorized, "Session timed out after missed heartbeats, log in again").
		With("inactiveMinutes", roundMinutes(inactiveMinutes)).
		With("expectedIntervalMinutes", expectedIntervalMinutes)
}

func TooManyAttempts(retryAfterSeconds int64) *AppError {
	return New(KindTooManyAttempts, http.StatusTooManyRequests, "Too many login attempts, try again later").
		With("retryAfterSeconds", retryAfterSeconds)
}

func InvalidInput(message string) *AppError {
	return New(KindInvalidInput, http.StatusBadRequest, message)
}

func NotFound(message string) *AppError {
	return New(KindNotFound, http.StatusNotFound, message)
}

func Unauthorized(message string) *AppError {
	return New(KindUnauthorized, http.StatusUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(KindForbidden, http.StatusForbidden, message)
}

func Internal(err error) *AppError {
	return New(KindInternal, http.StatusInternalServerError, "Internal server error").WithCause(err)
}

func roundMeters(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

func roundMinutes(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
