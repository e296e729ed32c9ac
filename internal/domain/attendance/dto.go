// internal/domain/attendance/dto.go
package attendance

import "time"

// LocationInput is the client-reported position sent with login, heartbeat
// and logout.
type LocationInput struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Accuracy float64 `json:"accuracy"`
	// ClientTime is the client's own timestamp for the fix.
	ClientTime     string `json:"ts,omitempty"`
	LocationStatus string `json:"locationStatus,omitempty"`
}

func (l LocationInput) Point() GeoPoint {
	return GeoPoint{Lat: l.Lat, Lon: l.Lon, Accuracy: l.Accuracy}
}

func (l LocationInput) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180 && l.Accuracy >= 0
}

type LoginRequest struct {
	Username         string        `json:"username" binding:"required"`
	Password         string        `json:"password" binding:"required"`
	DeviceID         string        `json:"deviceId" binding:"required"`
	Location         LocationInput `json:"location"`
	ValidateLocation *bool         `json:"validateLocation,omitempty"`
	IPAddress        string        `json:"-"`
}

type LoginResponse struct {
	OK          bool   `json:"ok"`
	SessionID   string `json:"sessionId"`
	ExpiresIn   int64  `json:"expiresIn"`
	CompanyID   string `json:"companyId,omitempty"`
	Role        Role   `json:"role"`
	AccessToken string `json:"accessToken,omitempty"`
}

type HeartbeatRequest struct {
	SessionID        string        `json:"sessionId" binding:"required"`
	DeviceID         string        `json:"deviceId" binding:"required"`
	Location         LocationInput `json:"location"`
	ValidateLocation *bool         `json:"validateLocation,omitempty"`
}

// HeartbeatResponse covers the accepted and the suspect outcomes. A suspect
// outcome is not an error: the heartbeat is recorded but OK is false.
type HeartbeatResponse struct {
	OK                        bool       `json:"ok"`
	SessionID                 string     `json:"sessionId"`
	LastHeartbeat             *time.Time `json:"lastHeartbeat,omitempty"`
	Suspect                   bool       `json:"suspect,omitempty"`
	ConsecutivePoorHeartbeats int        `json:"consecutivePoorHeartbeats,omitempty"`
	Warning                   string     `json:"warning,omitempty"`
}

type LogoutRequest struct {
	SessionID string         `json:"sessionId" binding:"required"`
	DeviceID  string         `json:"deviceId" binding:"required"`
	Location  *LocationInput `json:"location,omitempty"`
}

type LogoutResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type VerifySessionRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

type VerifySessionResponse struct {
	OK                bool       `json:"ok"`
	Valid             bool       `json:"valid"`
	SessionID         string     `json:"sessionId"`
	Status            Status     `json:"status"`
	RemainingSeconds  int64      `json:"remainingSeconds"`
	ExpiresAt         time.Time  `json:"expiresAt"`
	HeartbeatDeadline *time.Time `json:"heartbeatDeadline,omitempty"`
}
