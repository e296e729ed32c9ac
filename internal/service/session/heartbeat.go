package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"
	"attendance-service/internal/pkg/metrics"

	"go.uber.org/zap"
)

// ========== Heartbeat ==========

// Heartbeat records client liveness for a live session. Timeouts close the
// session; a coarse GPS fix is accepted but counted, and enough of them in a
// row mark the session suspect. A failed containment check rejects the
// heartbeat without touching the session's liveness.
func (s *SessionService) Heartbeat(ctx context.Context, req *attendance.HeartbeatRequest) (resp *attendance.HeartbeatResponse, err error) {
	defer func() { metrics.HeartbeatsTotal.WithLabelValues(heartbeatLabel(resp, err)).Inc() }()

	if !req.Location.Valid() {
		return nil, xerrors.InvalidInput("location must carry a valid lat, lon and accuracy")
	}

	sess, err := s.loadSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.DeviceID != req.DeviceID {
		return nil, xerrors.DeviceMismatch()
	}
	if !sess.Status.IsLive() {
		return nil, xerrors.SessionNotActive(string(sess.Status))
	}

	now := s.now()
	if to, lifeErr := s.checkLiveness(sess, now); to != "" {
		if _, err := s.close(ctx, sess, to, now, "heartbeat"); err != nil {
			return nil, err
		}
		return nil, lifeErr
	}

	user, err := s.users.FindByID(ctx, sess.UserID)
	if err != nil {
		return nil, xerrors.Internal(fmt.Errorf("failed to load session user: %w", err))
	}

	if user.IsAdmin() || !user.RequiresLocationCheck(req.ValidateLocation) {
		return s.acceptHeartbeat(ctx, sess, attendance.HeartbeatUpdate{At: now, Touch: true})
	}

	if req.Location.Accuracy > s.policy.ProximityMeters {
		return s.acceptPoorHeartbeat(ctx, sess, now)
	}

	if locErr := s.checkLocation(ctx, user, req.Location.Point()); locErr != nil {
		// The fix was accurate, so the poor streak still resets.
		if _, err := s.record(ctx, sess.ID, attendance.HeartbeatUpdate{At: now, Accuracy: attendance.AccuracyGood}); err != nil {
			return nil, err
		}
		return nil, locErr
	}

	return s.acceptHeartbeat(ctx, sess, attendance.HeartbeatUpdate{At: now, Accuracy: attendance.AccuracyGood, Touch: true})
}

func (s *SessionService) acceptHeartbeat(ctx context.Context, sess *attendance.Session, upd attendance.HeartbeatUpdate) (*attendance.HeartbeatResponse, error) {
	updated, err := s.record(ctx, sess.ID, upd)
	if err != nil {
		return nil, err
	}
	if sess.Status == attendance.StatusSuspect && updated.Status == attendance.StatusActive {
		metrics.SessionTransitionsTotal.WithLabelValues(string(attendance.StatusActive), "heartbeat").Inc()
		s.logger.Info("session restored from suspect", zap.String("session_id", sess.ID))
	}
	s.touchDevice(ctx, sess.DeviceID, upd.At)

	return &attendance.HeartbeatResponse{
		OK:            true,
		SessionID:     updated.ID,
		LastHeartbeat: updated.LastHeartbeat,
	}, nil
}

func (s *SessionService) acceptPoorHeartbeat(ctx context.Context, sess *attendance.Session, now time.Time) (*attendance.HeartbeatResponse, error) {
	updated, err := s.record(ctx, sess.ID, attendance.HeartbeatUpdate{
		At:               now,
		Accuracy:         attendance.AccuracyPoor,
		SuspectThreshold: s.policy.PoorAccuracyThreshold,
		Touch:            true,
	})
	if err != nil {
		return nil, err
	}
	s.touchDevice(ctx, sess.DeviceID, now)

	if updated.Status == attendance.StatusSuspect {
		if sess.Status != attendance.StatusSuspect {
			metrics.SessionTransitionsTotal.WithLabelValues(string(attendance.StatusSuspect), "heartbeat").Inc()
			s.notifier.SessionSuspect(updated.UserID, updated.ID, updated.ConsecutivePoorHeartbeats)
			s.logger.Warn("session marked suspect",
				zap.String("session_id", updated.ID),
				zap.String("user_id", updated.UserID),
				zap.Int("consecutive_poor_heartbeats", updated.ConsecutivePoorHeartbeats),
			)
		}
		return &attendance.HeartbeatResponse{
			OK:                        false,
			SessionID:                 updated.ID,
			LastHeartbeat:             updated.LastHeartbeat,
			Suspect:                   true,
			ConsecutivePoorHeartbeats: updated.ConsecutivePoorHeartbeats,
		}, nil
	}

	return &attendance.HeartbeatResponse{
		OK:                        true,
		SessionID:                 updated.ID,
		LastHeartbeat:             updated.LastHeartbeat,
		ConsecutivePoorHeartbeats: updated.ConsecutivePoorHeartbeats,
		Warning:                   string(xerrors.KindPoorLocationAccuracy),
	}, nil
}

// record applies a conditional heartbeat write. When the session left the
// live states in the meantime the fresh status is reported back.
func (s *SessionService) record(ctx context.Context, id string, upd attendance.HeartbeatUpdate) (*attendance.Session, error) {
	updated, err := s.sessions.RecordHeartbeat(ctx, id, upd)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, attendance.ErrSessionNotLive):
		status := "unknown"
		if fresh, findErr := s.sessions.FindByID(ctx, id); findErr == nil {
			status = string(fresh.Status)
		}
		return nil, xerrors.SessionNotActive(status)
	case xerrors.IsNotFound(err):
		return nil, xerrors.SessionNotFound()
	default:
		return nil, xerrors.Internal(fmt.Errorf("failed to record heartbeat: %w", err))
	}
}

func heartbeatLabel(resp *attendance.HeartbeatResponse, err error) string {
	switch {
	case err != nil:
		return resultLabel(err)
	case resp.Suspect:
		return "suspect"
	case resp.Warning != "":
		return "poor_accuracy"
	}
	return "ok"
}
