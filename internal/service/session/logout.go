package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"
	"attendance-service/internal/pkg/metrics"

	"go.uber.org/zap"
)

// ========== Logout ==========

func (s *SessionService) Logout(ctx context.Context, req *attendance.LogoutRequest) (*attendance.LogoutResponse, error) {
	sess, err := s.loadSession(ctx, req.SessionID)
	if err != nil {
		if xerrors.KindOf(err) == xerrors.KindSessionNotFound {
			return nil, xerrors.SessionNotFound().WithStatus(http.StatusNotFound)
		}
		return nil, err
	}
	if sess.DeviceID != req.DeviceID {
		return nil, xerrors.DeviceMismatch()
	}
	if !sess.Status.IsLive() {
		return nil, xerrors.SessionNotActive(string(sess.Status)).WithStatus(http.StatusBadRequest)
	}

	now := s.now()
	applied, err := s.close(ctx, sess, attendance.StatusLoggedOut, now, "logout")
	if err != nil {
		return nil, err
	}
	if !applied {
		status := "unknown"
		if fresh, findErr := s.sessions.FindByID(ctx, sess.ID); findErr == nil {
			status = string(fresh.Status)
		}
		return nil, xerrors.SessionNotActive(status).WithStatus(http.StatusBadRequest)
	}

	if req.Location != nil {
		s.logger.Debug("logout location",
			zap.String("session_id", sess.ID),
			zap.Float64("lat", req.Location.Lat),
			zap.Float64("lon", req.Location.Lon),
			zap.Float64("accuracy", req.Location.Accuracy),
		)
	}
	s.touchDevice(ctx, sess.DeviceID, now)

	return &attendance.LogoutResponse{OK: true, Message: "Logged out successfully"}, nil
}

// ========== Verify ==========

// VerifySession reports whether a session is still usable. A live session
// found past its hard timeout or heartbeat window is closed on the spot.
func (s *SessionService) VerifySession(ctx context.Context, sessionID string) (*attendance.VerifySessionResponse, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := s.policy.ExpiresAt(sess.LoginAt)
	resp := &attendance.VerifySessionResponse{
		OK:        true,
		SessionID: sess.ID,
		Status:    sess.Status,
		ExpiresAt: expiresAt,
	}

	if !sess.Status.IsLive() {
		return resp, nil
	}

	if to, _ := s.checkLiveness(sess, now); to != "" {
		applied, err := s.close(ctx, sess, to, now, "verify")
		if err != nil {
			return nil, err
		}
		if applied {
			resp.Status = to
		} else if fresh, findErr := s.sessions.FindByID(ctx, sess.ID); findErr == nil {
			resp.Status = fresh.Status
		}
		return resp, nil
	}

	deadline := sess.HeartbeatOrLogin().Add(s.policy.HeartbeatWindow())
	resp.Valid = true
	resp.RemainingSeconds = int64(expiresAt.Sub(now) / time.Second)
	resp.HeartbeatDeadline = &deadline
	return resp, nil
}

// ========== Suspect override ==========

// ResolveSuspect is the admin override that returns a suspect session to
// active. It is the only path from suspect to active other than an accurate
// heartbeat.
func (s *SessionService) ResolveSuspect(ctx context.Context, sessionID, adminID string) (*attendance.Session, error) {
	now := s.now()
	applied, err := s.sessions.Resolve(ctx, sessionID, now)
	if err != nil {
		return nil, xerrors.Internal(fmt.Errorf("failed to resolve session: %w", err))
	}

	sess, err := s.sessions.FindByID(ctx, sessionID)
	if xerrors.IsNotFound(err) {
		return nil, xerrors.SessionNotFound().WithStatus(http.StatusNotFound)
	}
	if err != nil {
		return nil, xerrors.Internal(fmt.Errorf("failed to load session: %w", err))
	}
	if !applied {
		return nil, xerrors.New(xerrors.KindSessionNotActive, http.StatusConflict, "Session is not suspect").
			With("status", string(sess.Status))
	}

	metrics.SessionTransitionsTotal.WithLabelValues(string(attendance.StatusActive), "admin").Inc()
	s.logger.Info("suspect session resolved",
		zap.String("session_id", sessionID),
		zap.String("admin_id", adminID),
	)
	return sess, nil
}
