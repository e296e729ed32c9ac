// internal/service/session/service.go
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"
	"attendance-service/internal/pkg/jwt"
	"attendance-service/internal/pkg/metrics"
	"attendance-service/internal/pkg/password"

	"go.uber.org/zap"
)

// LoginLimiter throttles login attempts per client address and username.
type LoginLimiter interface {
	CheckLoginAttempt(ctx context.Context, ip, username string) (bool, int64, time.Duration, error)
	ResetLoginAttempts(ctx context.Context, ip, username string) error
}

// TokenIssuer signs the access token returned with a successful login.
type TokenIssuer interface {
	IssueSessionToken(st jwt.SessionToken) (string, error)
}

type PasswordChecker interface {
	Compare(hash, plain string) error
}

// SessionService is the session lifecycle engine: login admission,
// heartbeats, logout, lazy expiry and the suspect override. Every write is
// conditional on the state it was decided from.
type SessionService struct {
	sessions  attendance.SessionStore
	users     attendance.UserRepository
	devices   attendance.DeviceRepository
	locations attendance.LocationRepository
	passwords PasswordChecker
	policy    attendance.Policy
	logger    *zap.Logger

	limiter  LoginLimiter
	tokens   TokenIssuer
	notifier attendance.Notifier
	now      func() time.Time
}

type Option func(*SessionService)

func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

func WithRateLimiter(l LoginLimiter) Option {
	return func(s *SessionService) { s.limiter = l }
}

func WithTokenIssuer(t TokenIssuer) Option {
	return func(s *SessionService) { s.tokens = t }
}

func WithNotifier(n attendance.Notifier) Option {
	return func(s *SessionService) {
		if n != nil {
			s.notifier = n
		}
	}
}

func NewSessionService(
	sessions attendance.SessionStore,
	users attendance.UserRepository,
	devices attendance.DeviceRepository,
	locations attendance.LocationRepository,
	passwords PasswordChecker,
	policy attendance.Policy,
	logger *zap.Logger,
	opts ...Option,
) *SessionService {
	s := &SessionService{
		sessions:  sessions,
		users:     users,
		devices:   devices,
		locations: locations,
		passwords: passwords,
		policy:    policy,
		logger:    logger,
		notifier:  attendance.NopNotifier{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionService) Policy() attendance.Policy {
	return s.policy
}

// ========== Shared helpers ==========

func (s *SessionService) loadSession(ctx context.Context, id string) (*attendance.Session, error) {
	sess, err := s.sessions.FindByID(ctx, id)
	if xerrors.IsNotFound(err) {
		return nil, xerrors.SessionNotFound()
	}
	if err != nil {
		return nil, xerrors.Internal(fmt.Errorf("failed to load session: %w", err))
	}
	return sess, nil
}

// close moves a live session to a terminal status and reports whether this
// call made the transition.
func (s *SessionService) close(ctx context.Context, sess *attendance.Session, to attendance.Status, at time.Time, source string) (bool, error) {
	applied, err := s.sessions.Transition(ctx, sess.ID, attendance.LiveStatuses, to, at)
	if err != nil {
		return false, xerrors.Internal(fmt.Errorf("failed to transition session to %s: %w", to, err))
	}
	if applied {
		metrics.SessionTransitionsTotal.WithLabelValues(string(to), source).Inc()
		s.notifier.SessionClosed(sess.UserID, sess.ID, to)
		s.logger.Info("session closed",
			zap.String("session_id", sess.ID),
			zap.String("user_id", sess.UserID),
			zap.String("status", string(to)),
			zap.String("source", source),
		)
	}
	return applied, nil
}

// checkLiveness applies the hard timeout and the heartbeat gap rules to a
// live session. It returns the terminal status the session should move to,
// or "" when it is still within both bounds.
func (s *SessionService) checkLiveness(sess *attendance.Session, now time.Time) (attendance.Status, error) {
	if now.Sub(sess.LoginAt) > s.policy.SessionTimeout {
		return attendance.StatusExpired, xerrors.SessionExpired(s.policy.SessionTimeout.Hours())
	}
	window := s.policy.HeartbeatWindow()
	if sess.LastHeartbeat == nil || now.Sub(*sess.LastHeartbeat) > window {
		idle := now.Sub(sess.HeartbeatOrLogin())
		return attendance.StatusHeartbeatTimeout, xerrors.HeartbeatTimeout(idle.Minutes(), window.Minutes())
	}
	return "", nil
}

func (s *SessionService) touchDevice(ctx context.Context, deviceID string, at time.Time) {
	if err := s.devices.Touch(ctx, deviceID, at); err != nil {
		s.logger.Warn("failed to update device last seen",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
}

func isMismatch(err error) bool {
	return errors.Is(err, password.ErrMismatch)
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(xerrors.KindOf(err))
}
