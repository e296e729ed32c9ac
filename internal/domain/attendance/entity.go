// internal/domain/attendance/entity.go
package attendance

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type Role string

const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// GeoPoint is a reported position. Accuracy is the client's horizontal
// accuracy radius in meters.
type GeoPoint struct {
	Lat      float64 `json:"lat" bson:"lat"`
	Lon      float64 `json:"lon" bson:"lon"`
	Accuracy float64 `json:"accuracy" bson:"accuracy"`
}

type Session struct {
	ID                        string     `json:"id" bson:"_id"`
	CompanyID                 string     `json:"companyId,omitempty" bson:"companyId,omitempty"`
	UserID                    string     `json:"userId" bson:"userId"`
	DeviceID                  string     `json:"deviceId" bson:"deviceId"`
	LoginAt                   time.Time  `json:"loginAt" bson:"loginAt"`
	LogoutAt                  *time.Time `json:"logoutAt,omitempty" bson:"logoutAt,omitempty"`
	LoginLocation             GeoPoint   `json:"loginLocation" bson:"loginLocation"`
	LastHeartbeat             *time.Time `json:"lastHeartbeat,omitempty" bson:"lastHeartbeat,omitempty"`
	Status                    Status     `json:"status" bson:"status"`
	ConsecutivePoorHeartbeats int        `json:"consecutivePoorHeartbeats" bson:"consecutivePoorHeartbeats"`
	WorkedSeconds             *int64     `json:"workedSeconds,omitempty" bson:"workedSeconds,omitempty"`

	// Exclusive sessions take part in the one-live-session-per-user rule.
	// Admin sessions are not exclusive.
	Exclusive bool `json:"-" bson:"exclusive"`

	// SplitFrom is set on records created by the day-boundary split.
	SplitFrom string `json:"splitFrom,omitempty" bson:"splitFrom,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// HeartbeatOrLogin returns LastHeartbeat, or LoginAt when no heartbeat was recorded.
func (s *Session) HeartbeatOrLogin() time.Time {
	if s.LastHeartbeat != nil {
		return *s.LastHeartbeat
	}
	return s.LoginAt
}

// Duration is logoutAt - loginAt for closed sessions, zero otherwise.
func (s *Session) Duration() time.Duration {
	if s.LogoutAt == nil || s.LogoutAt.Before(s.LoginAt) {
		return 0
	}
	return s.LogoutAt.Sub(s.LoginAt)
}

type User struct {
	ID                  string `json:"id" bson:"_id"`
	CompanyID           string `json:"companyId,omitempty" bson:"companyId,omitempty"`
	Username            string `json:"username" bson:"username"`
	PasswordHash        string `json:"-" bson:"password"`
	DisplayName         string `json:"displayName,omitempty" bson:"displayName,omitempty"`
	Role                Role   `json:"role" bson:"role"`
	AssignedDeviceID    string `json:"assignedDeviceId,omitempty" bson:"assignedDeviceId,omitempty"`
	AllocatedLocationID string `json:"allocatedLocationId,omitempty" bson:"allocatedLocationId,omitempty"`

	// nil means true
	LocationValidationRequired *bool `json:"locationValidationRequired,omitempty" bson:"locationValidationRequired,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RequiresLocationCheck resolves the per-request flag against the user's
// preference. An explicit flag wins.
func (u *User) RequiresLocationCheck(explicit *bool) bool {
	if explicit != nil {
		return *explicit
	}
	if u.LocationValidationRequired != nil {
		return *u.LocationValidationRequired
	}
	return true
}

type Device struct {
	ID         string     `json:"id" bson:"_id"`
	DeviceID   string     `json:"deviceId" bson:"deviceId"`
	Serial     string     `json:"serial,omitempty" bson:"serial,omitempty"`
	Name       string     `json:"name,omitempty" bson:"name,omitempty"`
	CompanyID  string     `json:"companyId" bson:"companyId"`
	AssignedTo string     `json:"assignedTo,omitempty" bson:"assignedTo,omitempty"`
	LastSeen   *time.Time `json:"lastSeen,omitempty" bson:"lastSeen,omitempty"`
	CreatedAt  time.Time  `json:"createdAt" bson:"createdAt"`
}

type Location struct {
	ID           string    `json:"id" bson:"_id"`
	CompanyID    string    `json:"companyId" bson:"companyId"`
	Name         string    `json:"name" bson:"name"`
	Lat          float64   `json:"lat" bson:"lat"`
	Lon          float64   `json:"lon" bson:"lon"`
	RadiusMeters float64   `json:"radiusMeters" bson:"radiusMeters"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// CompanySettings are stored per company but the engine runs on process
// configuration.
type CompanySettings struct {
	SessionTimeoutHours float64 `json:"sessionTimeoutHours,omitempty" bson:"sessionTimeoutHours,omitempty"`
	HeartbeatMinutes    float64 `json:"heartbeatMinutes,omitempty" bson:"heartbeatMinutes,omitempty"`
}

type Company struct {
	ID        string          `json:"id" bson:"_id"`
	Name      string          `json:"name" bson:"name"`
	Timezone  string          `json:"timezone" bson:"timezone"`
	Settings  CompanySettings `json:"settings" bson:"settings"`
	CreatedAt time.Time       `json:"createdAt" bson:"createdAt"`
}

// NewID returns a sortable unique identifier for any attendance record.
func NewID() string {
	return ulid.Make().String()
}
