// internal/service/reconcile/scheduler.go
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"attendance-service/internal/pkg/metrics"

	"go.uber.org/zap"
)

const (
	JobAutoLogout     = "auto_logout"
	JobStaleHeartbeat = "stale_heartbeat"
	JobDailyAggregate = "daily_aggregate"

	lockTTL = 2 * time.Minute
	jobWait = 90 * time.Second
)

// Locker keeps two processes from running the same job at once.
type Locker interface {
	Acquire(ctx context.Context, job string, ttl time.Duration) (release func(), ok bool, err error)
}

type noLock struct{}

func (noLock) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

type ScheduleConfig struct {
	AutoLogoutEvery time.Duration
	StaleSweepEvery time.Duration
	// DailyLocation is the calendar used to find the next midnight.
	DailyLocation *time.Location
}

// JobResult is what one run of a job reports.
type JobResult struct {
	Job        string       `json:"job"`
	Skipped    bool         `json:"skipped,omitempty"`
	Count      int          `json:"count"`
	SessionIDs []string     `json:"sessionIds,omitempty"`
	Daily      *DailyResult `json:"daily,omitempty"`
	StartedAt  time.Time    `json:"startedAt"`
	DurationMs int64        `json:"durationMs"`
}

// JobStats accumulates per-job counters for the metrics endpoint.
type JobStats struct {
	Runs          int64      `json:"runs"`
	Failures      int64      `json:"failures"`
	Skipped       int64      `json:"skipped"`
	TotalAffected int64      `json:"totalAffected"`
	LastCount     int        `json:"lastCount"`
	LastRunAt     *time.Time `json:"lastRunAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// Scheduler owns the periodic loops and is also the entry point for the
// manual triggers.
type Scheduler struct {
	rec    *Reconciler
	lock   Locker
	cfg    ScheduleConfig
	logger *zap.Logger

	mu    sync.Mutex
	stats map[string]*JobStats

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewScheduler(rec *Reconciler, lock Locker, cfg ScheduleConfig, logger *zap.Logger) *Scheduler {
	if lock == nil {
		lock = noLock{}
	}
	if cfg.DailyLocation == nil {
		cfg.DailyLocation = rec.policy.Location
	}
	return &Scheduler{
		rec:    rec,
		lock:   lock,
		cfg:    cfg,
		logger: logger,
		stats: map[string]*JobStats{
			JobAutoLogout:     {},
			JobStaleHeartbeat: {},
			JobDailyAggregate: {},
		},
		stopCh: make(chan struct{}),
	}
}

// Start begins the reconciliation loops.
func (s *Scheduler) Start() {
	s.wg.Add(3)
	go s.every(JobAutoLogout, s.cfg.AutoLogoutEvery)
	go s.every(JobStaleHeartbeat, s.cfg.StaleSweepEvery)
	go s.daily()

	s.logger.Info("scheduler started",
		zap.Duration("auto_logout_every", s.cfg.AutoLogoutEvery),
		zap.Duration("stale_sweep_every", s.cfg.StaleSweepEvery),
		zap.String("daily_timezone", s.cfg.DailyLocation.String()),
	)
}

// Stop stops the loops and waits for a running job to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) every(job string, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runLogged(job)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) daily() {
	defer s.wg.Done()

	target := NextMidnight(time.Now(), s.cfg.DailyLocation)
	for {
		timer := time.NewTimer(time.Until(target))
		select {
		case <-timer.C:
			s.runLogged(JobDailyAggregate)
			target = followingMidnight(target, time.Now(), s.cfg.DailyLocation)
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

// followingMidnight is the midnight after the one a run was aimed at, or
// the next one after now if the run overslept past it.
func followingMidnight(aimed, now time.Time, loc *time.Location) time.Time {
	next := NextMidnight(aimed, loc)
	if !next.After(now) {
		next = NextMidnight(now, loc)
	}
	return next
}

// runLogged runs a job from a loop; failures are logged and the next tick
// tries again.
func (s *Scheduler) runLogged(job string) {
	ctx, cancel := context.WithTimeout(context.Background(), jobWait)
	defer cancel()

	if _, err := s.Run(ctx, job); err != nil {
		s.logger.Error("scheduled job failed", zap.String("job", job), zap.Error(err))
	}
}

// Run executes one job under the cross-process lock. When another process
// holds the lock the result is marked skipped.
func (s *Scheduler) Run(ctx context.Context, job string) (*JobResult, error) {
	if _, known := s.stats[job]; !known {
		return nil, fmt.Errorf("unknown job %q", job)
	}

	res := &JobResult{Job: job, StartedAt: s.rec.now()}

	release, ok, err := s.lock.Acquire(ctx, job, lockTTL)
	if err != nil {
		// Run unlocked when the lock service is down.
		s.logger.Warn("job lock unavailable", zap.String("job", job), zap.Error(err))
		release, ok = func() {}, true
	}
	if !ok {
		res.Skipped = true
		s.record(job, res, nil)
		metrics.JobRunsTotal.WithLabelValues(job, "skipped").Inc()
		return res, nil
	}
	defer release()

	timer := metrics.NewTimer()
	err = s.execute(ctx, job, res)
	timer.ObserveDurationVec(metrics.JobDuration, job)
	res.DurationMs = timer.Duration().Milliseconds()

	s.record(job, res, err)
	if err != nil {
		metrics.JobRunsTotal.WithLabelValues(job, "error").Inc()
		return nil, err
	}
	metrics.JobRunsTotal.WithLabelValues(job, "ok").Inc()
	metrics.JobSessionsClosed.WithLabelValues(job).Add(float64(res.Count))

	s.logger.Info("job finished",
		zap.String("job", job),
		zap.Int("count", res.Count),
		zap.Int64("duration_ms", res.DurationMs),
	)
	return res, nil
}

func (s *Scheduler) execute(ctx context.Context, job string, res *JobResult) error {
	switch job {
	case JobAutoLogout, JobStaleHeartbeat:
		sweep := s.rec.SweepAutoLogout
		if job == JobStaleHeartbeat {
			sweep = s.rec.SweepStaleHeartbeats
		}
		closed, err := sweep(ctx)
		if err != nil {
			return err
		}
		res.Count = len(closed)
		for _, c := range closed {
			res.SessionIDs = append(res.SessionIDs, c.ID)
		}
	case JobDailyAggregate:
		daily, err := s.rec.DailyAggregate(ctx)
		if err != nil {
			return err
		}
		res.Count = daily.ClosedSessions
		res.Daily = &daily
	}
	return nil
}

func (s *Scheduler) record(job string, res *JobResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats[job]
	if res.Skipped {
		st.Skipped++
		return
	}
	st.Runs++
	at := res.StartedAt
	st.LastRunAt = &at
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
		return
	}
	st.LastError = ""
	st.LastCount = res.Count
	st.TotalAffected += int64(res.Count)
}

// Stats returns a copy of the per-job counters.
func (s *Scheduler) Stats() map[string]JobStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]JobStats, len(s.stats))
	for job, st := range s.stats {
		out[job] = *st
	}
	return out
}

// NextMidnight returns the first local midnight strictly after t.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}
