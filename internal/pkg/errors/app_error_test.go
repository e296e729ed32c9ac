package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMatching(t *testing.T) {
	err := fmt.Errorf("heartbeat: %w", HeartbeatTimeout(25.5, 10))

	assert.True(t, errors.Is(err, HeartbeatTimeout(0, 0)))
	assert.False(t, errors.Is(err, SessionExpired(12)))
	assert.Equal(t, KindHeartbeatTimeout, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, appErr.Status)
	assert.Equal(t, 25.5, appErr.Details["inactiveMinutes"])
	assert.Equal(t, 10.0, appErr.Details["expectedIntervalMinutes"])
}

func TestAppErrorWithDoesNotMutate(t *testing.T) {
	base := New(KindInvalidInput, http.StatusBadRequest, "bad")
	derived := base.With("field", "lat")

	assert.Nil(t, base.Details)
	assert.Equal(t, "lat", derived.Details["field"])
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStatusTable(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{InvalidCredentials(), http.StatusUnauthorized},
		{DeviceNotAssigned("d1"), http.StatusForbidden},
		{NoDeviceAssigned(), http.StatusForbidden},
		{AllocatedLocationNotFound("l1"), http.StatusInternalServerError},
		{NotWithinAllocatedLocation("HQ", 200, 100), http.StatusForbidden},
		{NoLocationsConfigured(), http.StatusForbidden},
		{LocationNotAllowed(nil, 0), http.StatusForbidden},
		{ActiveSessionExists("s1"), http.StatusConflict},
		{SessionNotFound(), http.StatusUnauthorized},
		{DeviceMismatch(), http.StatusForbidden},
		{SessionNotActive("expired"), http.StatusUnauthorized},
		{NotFound("user not found"), http.StatusNotFound},
		{TooManyAttempts(900), http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestStoreSentinels(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("session s1: %w", ErrNotFound)))
	assert.False(t, IsNotFound(ErrConflict))
	assert.True(t, IsConflict(fmt.Errorf("username bob: %w", ErrConflict)))
	assert.False(t, IsConflict(errors.New("boom")))
}
