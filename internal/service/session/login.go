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

	"go.uber.org/zap"
)

// ========== Login ==========

// Login admits a user from a device and a position, enforcing the device,
// geofence and single-live-session rules.
func (s *SessionService) Login(ctx context.Context, req *attendance.LoginRequest) (resp *attendance.LoginResponse, err error) {
	defer func() { metrics.LoginsTotal.WithLabelValues(resultLabel(err)).Inc() }()

	if !req.Location.Valid() {
		return nil, xerrors.InvalidInput("location must carry a valid lat, lon and accuracy")
	}

	if err := s.checkRateLimit(ctx, req); err != nil {
		return nil, err
	}

	user, err := s.authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	if !user.IsAdmin() {
		if user.AssignedDeviceID == "" {
			return nil, xerrors.NoDeviceAssigned()
		}
		if user.AssignedDeviceID != req.DeviceID {
			return nil, xerrors.DeviceNotAssigned(req.DeviceID)
		}
		if user.RequiresLocationCheck(req.ValidateLocation) {
			if err := s.checkLocation(ctx, user, req.Location.Point()); err != nil {
				s.logger.Info("login rejected by location check",
					zap.String("user_id", user.ID),
					zap.String("error", string(xerrors.KindOf(err))),
				)
				return nil, err
			}
		}
	}

	now := s.now()
	if !user.IsAdmin() {
		if err := s.excludeLiveSession(ctx, user.ID, now); err != nil {
			return nil, err
		}
	}

	hb := now
	sess := &attendance.Session{
		ID:            attendance.NewID(),
		CompanyID:     user.CompanyID,
		UserID:        user.ID,
		DeviceID:      req.DeviceID,
		LoginAt:       now,
		LoginLocation: req.Location.Point(),
		LastHeartbeat: &hb,
		Status:        attendance.StatusActive,
		Exclusive:     !user.IsAdmin(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.sessions.InsertLive(ctx, sess); err != nil {
		if errors.Is(err, attendance.ErrLiveSessionConflict) {
			// A concurrent login won the race.
			existingID := ""
			if existing, findErr := s.sessions.FindLiveByUser(ctx, user.ID); findErr == nil {
				existingID = existing.ID
			}
			return nil, xerrors.ActiveSessionExists(existingID)
		}
		return nil, xerrors.Internal(fmt.Errorf("failed to create session: %w", err))
	}

	s.touchDevice(ctx, req.DeviceID, now)
	if s.limiter != nil {
		if err := s.limiter.ResetLoginAttempts(ctx, req.IPAddress, req.Username); err != nil {
			s.logger.Warn("failed to reset login attempts",
				zap.String("username", req.Username),
				zap.Error(err),
			)
		}
	}

	resp = &attendance.LoginResponse{
		OK:        true,
		SessionID: sess.ID,
		ExpiresIn: int64(s.policy.SessionTimeout / time.Second),
		CompanyID: user.CompanyID,
		Role:      user.Role,
	}

	if s.tokens != nil {
		token, err := s.tokens.IssueSessionToken(jwt.SessionToken{
			SessionID: sess.ID,
			UserID:    user.ID,
			Role:      string(user.Role),
			CompanyID: user.CompanyID,
			DeviceID:  req.DeviceID,
			ExpiresAt: s.policy.ExpiresAt(now),
		})
		if err != nil {
			s.logger.Error("failed to issue access token", zap.String("session_id", sess.ID), zap.Error(err))
		} else {
			resp.AccessToken = token
		}
	}

	s.logger.Info("session started",
		zap.String("session_id", sess.ID),
		zap.String("user_id", user.ID),
		zap.String("device_id", req.DeviceID),
		zap.String("role", string(user.Role)),
	)
	return resp, nil
}

func (s *SessionService) checkRateLimit(ctx context.Context, req *attendance.LoginRequest) error {
	if s.limiter == nil {
		return nil
	}
	allowed, _, retryAfter, err := s.limiter.CheckLoginAttempt(ctx, req.IPAddress, req.Username)
	if err != nil {
		// Limiter errors never block a login.
		s.logger.Warn("login rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !allowed {
		return xerrors.TooManyAttempts(int64(retryAfter / time.Second))
	}
	return nil
}

func (s *SessionService) authenticate(ctx context.Context, username, plain string) (*attendance.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if xerrors.IsNotFound(err) {
		return nil, xerrors.InvalidCredentials()
	}
	if err != nil {
		return nil, xerrors.Internal(fmt.Errorf("failed to find user: %w", err))
	}

	if err := s.passwords.Compare(user.PasswordHash, plain); err != nil {
		if !isMismatch(err) {
			s.logger.Warn("password comparison failed", zap.String("user_id", user.ID), zap.Error(err))
		}
		return nil, xerrors.InvalidCredentials()
	}
	return user, nil
}

// excludeLiveSession rejects the login while the user's live session is
// still heartbeating, and retires it when its heartbeat has gone stale.
func (s *SessionService) excludeLiveSession(ctx context.Context, userID string, now time.Time) error {
	existing, err := s.sessions.FindLiveByUser(ctx, userID)
	if xerrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return xerrors.Internal(fmt.Errorf("failed to look up live session: %w", err))
	}
	if !existing.Exclusive {
		return nil
	}

	if existing.LastHeartbeat != nil && now.Sub(*existing.LastHeartbeat) <= s.policy.HeartbeatWindow() {
		return xerrors.ActiveSessionExists(existing.ID)
	}

	if _, err := s.close(ctx, existing, attendance.StatusHeartbeatTimeout, now, "login"); err != nil {
		return err
	}
	return nil
}
