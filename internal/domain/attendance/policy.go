package attendance

import (
	"fmt"
	"time"
)

// Policy carries the session timing and geofence parameters. It is built
// once from configuration and handed to the engine and the scheduler.
type Policy struct {
	SessionTimeout        time.Duration
	HeartbeatInterval     time.Duration
	HeartbeatGraceFactor  float64
	ProximityMeters       float64
	PoorAccuracyThreshold int
	Location              *time.Location
}

// DefaultPolicy mirrors the documented defaults: 12h sessions, 5 minute
// heartbeats with a grace factor of 2, a 100 m proximity and 6 poor
// heartbeats before a session turns suspect.
func DefaultPolicy() Policy {
	return Policy{
		SessionTimeout:        12 * time.Hour,
		HeartbeatInterval:     5 * time.Minute,
		HeartbeatGraceFactor:  2,
		ProximityMeters:       100,
		PoorAccuracyThreshold: 6,
		Location:              time.UTC,
	}
}

// HeartbeatWindow is the longest accepted gap between two heartbeats.
func (p Policy) HeartbeatWindow() time.Duration {
	return time.Duration(float64(p.HeartbeatInterval) * p.HeartbeatGraceFactor)
}

// ExpiresAt is the hard end of a session that started at loginAt.
func (p Policy) ExpiresAt(loginAt time.Time) time.Time {
	return loginAt.Add(p.SessionTimeout)
}

func (p Policy) Validate() error {
	switch {
	case p.SessionTimeout <= 0:
		return fmt.Errorf("session timeout must be positive, got %s", p.SessionTimeout)
	case p.HeartbeatInterval <= 0:
		return fmt.Errorf("heartbeat interval must be positive, got %s", p.HeartbeatInterval)
	case p.HeartbeatGraceFactor < 1:
		return fmt.Errorf("heartbeat grace factor must be >= 1, got %v", p.HeartbeatGraceFactor)
	case p.ProximityMeters <= 0:
		return fmt.Errorf("location proximity must be positive, got %v", p.ProximityMeters)
	case p.PoorAccuracyThreshold < 1:
		return fmt.Errorf("poor accuracy threshold must be >= 1, got %d", p.PoorAccuracyThreshold)
	case p.Location == nil:
		return fmt.Errorf("report timezone is not set")
	}
	return nil
}
