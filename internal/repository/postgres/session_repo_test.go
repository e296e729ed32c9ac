package postgres

import (
	"testing"
	"time"

	"attendance-service/internal/domain/attendance"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

var (
	_ attendance.SessionStore       = (*SessionRepository)(nil)
	_ attendance.UserRepository     = (*UserRepository)(nil)
	_ attendance.DeviceRepository   = (*DeviceRepository)(nil)
	_ attendance.LocationRepository = (*LocationRepository)(nil)
	_ attendance.CompanyRepository  = (*CompanyRepository)(nil)
)

func TestBuildSessionFilterEmpty(t *testing.T) {
	where, args := buildSessionFilter(attendance.SessionQuery{})
	assert.Equal(t, "TRUE", where)
	assert.Empty(t, args)
}

func TestBuildSessionFilterNumbersArguments(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	since := from.AddDate(0, 0, -30)

	where, args := buildSessionFilter(attendance.SessionQuery{
		CompanyID:   "c1",
		Statuses:    attendance.StatusSet{attendance.StatusActive, attendance.StatusExpired},
		From:        &from,
		RecentSince: &since,
	})

	assert.Equal(t,
		"TRUE AND company_id = $1 AND status = ANY($2) AND login_at >= $3 AND (status IN ('active', 'suspect') OR login_at >= $4)",
		where,
	)
	assert.Len(t, args, 4)
	assert.Equal(t, "c1", args[0])
	assert.Equal(t, pq.Array([]string{"active", "expired"}), args[1])
	assert.Equal(t, from, args[2])
	assert.Equal(t, since, args[3])
}

func TestInsertArgsMatchColumns(t *testing.T) {
	s := &attendance.Session{ID: "s1", Status: attendance.StatusActive}
	assert.Len(t, insertArgs(s), 17)
}
