package reconcile

import (
	"time"

	"attendance-service/internal/domain/attendance"
)

// localMidnights returns every local midnight strictly between from and to.
func localMidnights(from, to time.Time, loc *time.Location) []time.Time {
	var out []time.Time
	y, m, d := from.In(loc).Date()
	for i := 1; ; i++ {
		midnight := time.Date(y, m, d+i, 0, 0, 0, 0, loc)
		if !midnight.Before(to) {
			return out
		}
		out = append(out, midnight)
	}
}

// cappedClose is min(lastHeartbeat or loginAt, loginAt + timeout, now),
// never earlier than loginAt.
func cappedClose(s *attendance.Session, timeout time.Duration, now time.Time) time.Time {
	end := s.HeartbeatOrLogin()
	if hard := s.LoginAt.Add(timeout); hard.Before(end) {
		end = hard
	}
	if now.Before(end) {
		end = now
	}
	if end.Before(s.LoginAt) {
		end = s.LoginAt
	}
	return end
}

// SplitPlan is the terminal write for one live session plus the records
// that carry the remainder into later local days.
type SplitPlan struct {
	Closure       attendance.Closure
	Continuations []*attendance.Session
}

// planClose builds the daily close for s. A session whose capped close
// lands on a later local day than its login is cut at each local midnight;
// every piece is auto_logged_out with its own workedSeconds.
func planClose(s *attendance.Session, timeout time.Duration, now time.Time, loc *time.Location, newID func() string) SplitPlan {
	end := cappedClose(s, timeout, now)
	cuts := localMidnights(s.LoginAt, end, loc)

	if len(cuts) == 0 {
		return SplitPlan{Closure: attendance.Closure{
			Status:        attendance.StatusAutoLoggedOut,
			LogoutAt:      end,
			WorkedSeconds: seconds(end.Sub(s.LoginAt)),
		}}
	}

	plan := SplitPlan{Closure: attendance.Closure{
		Status:        attendance.StatusAutoLoggedOut,
		LogoutAt:      cuts[0],
		WorkedSeconds: seconds(cuts[0].Sub(s.LoginAt)),
	}}

	for i, segStart := range cuts {
		segEnd := end
		if i+1 < len(cuts) {
			segEnd = cuts[i+1]
		}
		logoutAt, lastHB := segEnd, segEnd
		worked := seconds(segEnd.Sub(segStart))

		plan.Continuations = append(plan.Continuations, &attendance.Session{
			ID:            newID(),
			CompanyID:     s.CompanyID,
			UserID:        s.UserID,
			DeviceID:      s.DeviceID,
			LoginAt:       segStart,
			LogoutAt:      &logoutAt,
			LoginLocation: s.LoginLocation,
			LastHeartbeat: &lastHB,
			Status:        attendance.StatusAutoLoggedOut,
			WorkedSeconds: &worked,
			SplitFrom:     s.ID,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return plan
}

func seconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
