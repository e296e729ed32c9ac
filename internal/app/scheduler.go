// internal/app/scheduler.go
package app

import (
	"attendance-service/internal/config"
	"attendance-service/internal/domain/attendance"
	"attendance-service/internal/pkg/redisx"
	"attendance-service/internal/service/reconcile"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewScheduler builds the reconciliation scheduler. The job lock is only
// used when redis is configured.
func NewScheduler(cfg config.AppConfig, policy attendance.Policy, sessions attendance.SessionStore, redisClient *redis.Client, notifier attendance.Notifier, logger *zap.Logger) *reconcile.Scheduler {
	rec := reconcile.NewReconciler(sessions, policy, notifier, logger)

	var lock reconcile.Locker
	if redisClient != nil {
		lock = redisx.NewJobLock(redisClient)
	}

	return reconcile.NewScheduler(rec, lock, reconcile.ScheduleConfig{
		AutoLogoutEvery: cfg.AutoLogoutCheckEvery,
		StaleSweepEvery: cfg.StaleSweepEvery,
		DailyLocation:   policy.Location,
	}, logger)
}
