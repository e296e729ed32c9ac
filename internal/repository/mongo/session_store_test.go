package mongo

import (
	"testing"
	"time"

	"attendance-service/internal/domain/attendance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	_ attendance.SessionStore       = (*SessionStore)(nil)
	_ attendance.UserRepository     = (*UserRepository)(nil)
	_ attendance.DeviceRepository   = (*DeviceRepository)(nil)
	_ attendance.LocationRepository = (*LocationRepository)(nil)
	_ attendance.CompanyRepository  = (*CompanyRepository)(nil)
)

func keys(d bson.D) []string {
	out := make([]string, len(d))
	for i, e := range d {
		out[i] = e.Key
	}
	return out
}

func setOf(t *testing.T, stage bson.D) bson.D {
	t.Helper()
	require.Len(t, stage, 1)
	require.Equal(t, "$set", stage[0].Key)
	set, ok := stage[0].Value.(bson.D)
	require.True(t, ok)
	return set
}

func TestQueryFilter(t *testing.T) {
	assert.Empty(t, queryFilter(attendance.SessionQuery{}))

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	since := from.AddDate(0, 0, -30)
	f := queryFilter(attendance.SessionQuery{
		CompanyID:   "c1",
		UserID:      "u1",
		Statuses:    attendance.StatusSet{attendance.StatusExpired},
		From:        &from,
		RecentSince: &since,
	})
	assert.Equal(t, []string{"companyId", "userId", "status", "loginAt", "$or"}, keys(f))
	assert.Equal(t, bson.D{{Key: "$in", Value: bson.A{"expired"}}}, f[2].Value)
	assert.Equal(t, bson.D{{Key: "$gte", Value: from}}, f[3].Value)
}

func TestStaleFilter(t *testing.T) {
	cutoff := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	f := staleFilter(attendance.StaleCriteria{HeartbeatBefore: cutoff})
	assert.Equal(t, []string{"status", "$or"}, keys(f))
	assert.Len(t, f[1].Value, 2)

	login := cutoff.Add(-12 * time.Hour)
	f = staleFilter(attendance.StaleCriteria{HeartbeatBefore: cutoff, LoginBefore: &login})
	assert.Len(t, f[1].Value, 3)
}

func TestHeartbeatStage(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	set := setOf(t, heartbeatStage(attendance.HeartbeatUpdate{At: at, Accuracy: attendance.AccuracyPoor, SuspectThreshold: 6, Touch: true}))
	assert.Equal(t, []string{"updatedAt", "consecutivePoorHeartbeats", "status", "lastHeartbeat"}, keys(set))

	set = setOf(t, heartbeatStage(attendance.HeartbeatUpdate{At: at, Accuracy: attendance.AccuracyGood}))
	assert.Equal(t, []string{"updatedAt", "consecutivePoorHeartbeats", "status"}, keys(set))
	assert.Equal(t, 0, set[1].Value)

	set = setOf(t, heartbeatStage(attendance.HeartbeatUpdate{At: at, Touch: true}))
	assert.Equal(t, []string{"updatedAt", "lastHeartbeat"}, keys(set))
}

func TestCloseStageOnlySetsLogoutForTerminal(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, []string{"status", "updatedAt", "logoutAt"}, keys(setOf(t, closeStage(attendance.StatusExpired, at))))
	assert.Equal(t, []string{"status", "updatedAt"}, keys(setOf(t, closeStage(attendance.StatusActive, at))))
}
