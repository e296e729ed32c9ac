package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusSet(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    StatusSet
		wantErr bool
	}{
		{name: "empty", raw: "", want: StatusSet{}},
		{name: "single", raw: "active", want: StatusSet{StatusActive}},
		{name: "case and spacing", raw: " Active , LOGGED-OUT ", want: StatusSet{StatusActive, StatusLoggedOut}},
		{name: "aliases", raw: "timeout,auto", want: StatusSet{StatusAutoLoggedOut, StatusHeartbeatTimeout}},
		{name: "duplicates collapse", raw: "expired,expired,Expired", want: StatusSet{StatusExpired}},
		{name: "live expands", raw: "live", want: StatusSet{StatusActive, StatusSuspect}},
		{name: "closed expands", raw: "closed", want: StatusSet(TerminalStatuses)},
		{name: "skips blanks", raw: "active,,", want: StatusSet{StatusActive}},
		{name: "unknown token", raw: "active,bogus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatusSet(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnknownStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("Heartbeat-Timeout")
	require.NoError(t, err)
	assert.Equal(t, StatusHeartbeatTimeout, s)

	_, err = ParseStatus("live")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestStatusClassification(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, s.Valid(), s)
		assert.NotEqual(t, s.IsLive(), s.IsTerminal(), s)
	}
	assert.False(t, Status("paused").Valid())
	assert.False(t, Status("paused").IsTerminal())
}

func TestRequiresLocationCheck(t *testing.T) {
	yes, no := true, false

	u := &User{}
	assert.True(t, u.RequiresLocationCheck(nil))
	assert.False(t, u.RequiresLocationCheck(&no))

	u.LocationValidationRequired = &no
	assert.False(t, u.RequiresLocationCheck(nil))
	assert.True(t, u.RequiresLocationCheck(&yes))
}

func TestPolicyHeartbeatWindow(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 10*time.Minute, p.HeartbeatWindow())

	p.HeartbeatGraceFactor = 1.5
	assert.Equal(t, 7*time.Minute+30*time.Second, p.HeartbeatWindow())
	require.NoError(t, p.Validate())

	p.Location = nil
	assert.Error(t, p.Validate())
}
