package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodRange(t *testing.T) {
	f := newFixture(t)
	// 2024-03-20 is a Wednesday.
	tests := []struct {
		period   string
		from, to time.Time
	}{
		{"", time.Date(2024, 3, 20, 0, 0, 0, 0, ist), time.Date(2024, 3, 21, 0, 0, 0, 0, ist)},
		{"daily", time.Date(2024, 3, 20, 0, 0, 0, 0, ist), time.Date(2024, 3, 21, 0, 0, 0, 0, ist)},
		{"Weekly", time.Date(2024, 3, 17, 0, 0, 0, 0, ist), time.Date(2024, 3, 24, 0, 0, 0, 0, ist)},
		{"monthly", time.Date(2024, 3, 1, 0, 0, 0, 0, ist), time.Date(2024, 4, 1, 0, 0, 0, 0, ist)},
		{"yearly", time.Date(2024, 1, 1, 0, 0, 0, 0, ist), time.Date(2025, 1, 1, 0, 0, 0, 0, ist)},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			from, to, err := f.svc.PeriodRange(tt.period, now)
			require.NoError(t, err)
			assert.True(t, tt.from.Equal(from), "from %s", from)
			assert.True(t, tt.to.Equal(to), "to %s", to)
		})
	}

	_, _, err := f.svc.PeriodRange("hourly", now)
	assert.Equal(t, xerrors.KindInvalidInput, xerrors.KindOf(err))
}

func TestParseDay(t *testing.T) {
	f := newFixture(t)

	d, err := f.svc.ParseDay("2024-03-01")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 1, 0, 0, 0, 0, ist).Equal(d))

	d, err = f.svc.ParseDay("")
	require.NoError(t, err)
	assert.True(t, now.Equal(d))

	_, err = f.svc.ParseDay("yesterday")
	assert.Equal(t, xerrors.KindInvalidInput, xerrors.KindOf(err))
}

func TestExportSessions(t *testing.T) {
	f := newFixture(t)
	f.closed("recent", "u1", now.AddDate(0, 0, -2), 90*time.Minute, attendance.StatusLoggedOut)
	f.closed("stranger", "u9", now.AddDate(0, 0, -1), time.Hour, attendance.StatusAutoLoggedOut)
	f.closed("old", "u1", now.AddDate(0, 0, -45), time.Hour, attendance.StatusLoggedOut)

	exp, err := f.svc.ExportSessions(context.Background(), ExportFilter{})
	require.NoError(t, err)
	require.Len(t, exp.Sessions, 2)
	assert.Equal(t, "stranger", exp.Sessions[0].SessionID)

	var buf bytes.Buffer
	require.NoError(t, exp.WriteCSV(&buf))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "Unknown", rows[1][3])
	assert.Equal(t, "Asha Rao", rows[2][3])
	assert.Equal(t, "1.50", rows[2][12])
	assert.Equal(t, "90", rows[2][13])
	assert.Equal(t, "12.97", rows[2][9])
}

func TestExportSessionsErrors(t *testing.T) {
	f := newFixture(t)
	from := now.AddDate(-2, 0, 0)
	to := now

	_, err := f.svc.ExportSessions(context.Background(), ExportFilter{From: &from, To: &to})
	assert.Equal(t, xerrors.KindInvalidInput, xerrors.KindOf(err))

	_, err = f.svc.ExportSessions(context.Background(), ExportFilter{})
	assert.Equal(t, xerrors.KindNotFound, xerrors.KindOf(err))
}
