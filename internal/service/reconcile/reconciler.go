// internal/service/reconcile/reconciler.go
package reconcile

import (
	"context"
	"fmt"
	"time"

	"attendance-service/internal/domain/attendance"
	"attendance-service/internal/pkg/metrics"

	"go.uber.org/zap"
)

// Reconciler runs the background sweeps against the session store. Every
// write is a filter-conditioned update on still-live sessions, so a run
// racing a request or another run only ever closes a session once.
type Reconciler struct {
	sessions attendance.SessionStore
	policy   attendance.Policy
	notifier attendance.Notifier
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

func NewReconciler(sessions attendance.SessionStore, policy attendance.Policy, notifier attendance.Notifier, logger *zap.Logger) *Reconciler {
	if notifier == nil {
		notifier = attendance.NopNotifier{}
	}
	return &Reconciler{
		sessions: sessions,
		policy:   policy,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		newID:    attendance.NewID,
	}
}

// SetClock replaces the time source.
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// SweepStaleHeartbeats closes live sessions whose heartbeat is older than
// the heartbeat window.
func (r *Reconciler) SweepStaleHeartbeats(ctx context.Context) ([]attendance.ClosedSession, error) {
	now := r.now()
	criteria := attendance.StaleCriteria{HeartbeatBefore: now.Add(-r.policy.HeartbeatWindow())}
	return r.closeStale(ctx, JobStaleHeartbeat, criteria, now)
}

// SweepAutoLogout closes live sessions past either the hard session bound
// or the heartbeat window.
func (r *Reconciler) SweepAutoLogout(ctx context.Context) ([]attendance.ClosedSession, error) {
	now := r.now()
	loginBefore := now.Add(-r.policy.SessionTimeout)
	criteria := attendance.StaleCriteria{
		HeartbeatBefore: now.Add(-r.policy.HeartbeatWindow()),
		LoginBefore:     &loginBefore,
	}
	return r.closeStale(ctx, JobAutoLogout, criteria, now)
}

func (r *Reconciler) closeStale(ctx context.Context, job string, c attendance.StaleCriteria, now time.Time) ([]attendance.ClosedSession, error) {
	closed, err := r.sessions.CloseStale(ctx, c, attendance.StatusAutoLoggedOut, now)
	if err != nil {
		return nil, fmt.Errorf("%s sweep failed: %w", job, err)
	}
	for _, cs := range closed {
		r.notifier.SessionClosed(cs.UserID, cs.ID, attendance.StatusAutoLoggedOut)
	}
	if len(closed) > 0 {
		metrics.SessionTransitionsTotal.WithLabelValues(string(attendance.StatusAutoLoggedOut), job).Add(float64(len(closed)))
	}
	return closed, nil
}

// DailyResult summarises one daily aggregation run.
type DailyResult struct {
	// ClosedSessions counts live sessions closed by this run.
	ClosedSessions int `json:"closedSessions"`
	// SplitSessions counts the closed sessions that spanned a local midnight.
	SplitSessions int `json:"splitSessions"`
	// CreatedRecords counts the day records inserted by splits.
	CreatedRecords int `json:"createdRecords"`
}

// DailyAggregate closes every live session at its capped close time and
// splits the ones that cross a local day boundary. A failure on one session
// is logged and the run continues with the next.
func (r *Reconciler) DailyAggregate(ctx context.Context) (DailyResult, error) {
	var res DailyResult
	now := r.now()

	live, err := r.sessions.ListLive(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list live sessions: %w", err)
	}

	for _, s := range live {
		plan := planClose(s, r.policy.SessionTimeout, now, r.policy.Location, r.newID)

		applied, err := r.sessions.CloseAndSplit(ctx, s.ID, plan.Closure, plan.Continuations)
		if err != nil {
			r.logger.Error("daily aggregation failed for session",
				zap.String("session_id", s.ID),
				zap.Error(err),
			)
			continue
		}
		if !applied {
			// Closed concurrently by a request or another sweep.
			continue
		}

		res.ClosedSessions++
		if len(plan.Continuations) > 0 {
			res.SplitSessions++
			res.CreatedRecords += len(plan.Continuations)
			metrics.JobSessionsSplit.Inc()
		}
		metrics.SessionTransitionsTotal.WithLabelValues(string(attendance.StatusAutoLoggedOut), JobDailyAggregate).Inc()
		r.notifier.SessionClosed(s.UserID, s.ID, attendance.StatusAutoLoggedOut)
	}
	return res, nil
}
