// internal/domain/attendance/repository.go
package attendance

import (
	"context"
	"time"
)

// HeartbeatUpdate describes one conditional heartbeat write. The write only
// applies while the session is live.
type HeartbeatUpdate struct {
	At time.Time

	// Accuracy selects the counter behaviour.
	Accuracy AccuracyReading

	// SuspectThreshold flips the session to suspect once the poor counter
	// reaches it. Only used with AccuracyPoor.
	SuspectThreshold int

	// Touch sets lastHeartbeat to At.
	Touch bool
}

type AccuracyReading int

const (
	// AccuracyUnchecked leaves the counter and status alone.
	AccuracyUnchecked AccuracyReading = iota
	// AccuracyPoor increments the counter.
	AccuracyPoor
	// AccuracyGood resets the counter and restores suspect to active.
	AccuracyGood
)

// StaleCriteria selects live sessions for the auto-logout sweeps. A session
// matches when its last heartbeat (or missing heartbeat) is before
// HeartbeatBefore, or, if LoginBefore is set, when it logged in before that.
type StaleCriteria struct {
	HeartbeatBefore time.Time
	LoginBefore     *time.Time
}

// ClosedSession identifies a session closed by a bulk update.
type ClosedSession struct {
	ID     string
	UserID string
}

// Closure is the terminal write applied to a session by the daily split.
type Closure struct {
	Status        Status
	LogoutAt      time.Time
	WorkedSeconds int64
}

// SessionQuery is the read-side filter. Zero values mean no constraint;
// Limit 0 means no limit.
type SessionQuery struct {
	CompanyID string
	UserID    string
	Statuses  StatusSet
	From      *time.Time
	To        *time.Time

	// RecentSince, when set, restricts results to live sessions plus
	// sessions that logged in at or after it.
	RecentSince *time.Time

	Skip  int
	Limit int
}

type SessionStore interface {
	FindByID(ctx context.Context, id string) (*Session, error)
	FindLiveByUser(ctx context.Context, userID string) (*Session, error)

	// InsertLive inserts a live session. For exclusive sessions it fails with
	// ErrLiveSessionConflict if the user already has an exclusive live session.
	InsertLive(ctx context.Context, s *Session) error

	// Transition moves the session to `to` only if its current status is in
	// from. Terminal targets set logoutAt to at. Reports whether it applied.
	Transition(ctx context.Context, id string, from []Status, to Status, at time.Time) (bool, error)

	// RecordHeartbeat applies upd and returns the updated record, or
	// ErrSessionNotLive.
	RecordHeartbeat(ctx context.Context, id string, upd HeartbeatUpdate) (*Session, error)

	// CloseStale bulk-closes live sessions matching c.
	CloseStale(ctx context.Context, c StaleCriteria, to Status, at time.Time) ([]ClosedSession, error)

	ListLive(ctx context.Context) ([]*Session, error)

	// CloseAndSplit closes a still-live session and inserts the follow-on
	// day records. Reports false if the session was no longer live.
	CloseAndSplit(ctx context.Context, id string, closure Closure, continuations []*Session) (bool, error)

	// Resolve restores a suspect session to active and resets its counter.
	Resolve(ctx context.Context, id string, at time.Time) (bool, error)

	List(ctx context.Context, q SessionQuery) ([]*Session, int64, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByIDs(ctx context.Context, ids []string) ([]*User, error)
}

type DeviceRepository interface {
	Create(ctx context.Context, d *Device) error
	FindByDeviceID(ctx context.Context, deviceID string) (*Device, error)
	Touch(ctx context.Context, deviceID string, at time.Time) error
}

type LocationRepository interface {
	Create(ctx context.Context, l *Location) error
	FindByID(ctx context.Context, id string) (*Location, error)
	ListByCompany(ctx context.Context, companyID string) ([]*Location, error)
}

type CompanyRepository interface {
	Create(ctx context.Context, c *Company) error
	FindByID(ctx context.Context, id string) (*Company, error)
}

// Notifier is told about lifecycle events that connected clients care about.
type Notifier interface {
	SessionClosed(userID, sessionID string, status Status)
	SessionSuspect(userID, sessionID string, poorHeartbeats int)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) SessionClosed(string, string, Status) {}
func (NopNotifier) SessionSuspect(string, string, int)   {}
