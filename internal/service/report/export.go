// internal/service/report/export.go
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"
)

const (
	maxExportRange = 365 * 24 * time.Hour
	maxExportRows  = 10000
)

type ExportFilter struct {
	CompanyID string
	From      *time.Time
	To        *time.Time
}

type Export struct {
	From     time.Time
	To       time.Time
	Sessions []SessionView
}

// ExportSessions returns up to ten thousand sessions in a window of at most
// a year. A single bound extends one year the other way; no bound means the
// last 30 days.
func (s *ReportService) ExportSessions(ctx context.Context, f ExportFilter) (*Export, error) {
	var from, to time.Time
	switch {
	case f.From != nil && f.To != nil:
		from, to = *f.From, *f.To
		if to.Before(from) {
			return nil, xerrors.InvalidInput("'to' must not be before 'from'")
		}
		if to.Sub(from) > maxExportRange {
			return nil, xerrors.InvalidInput("Export date range cannot exceed 1 year (365 days). Please select a smaller date range.").
				With("maxDays", 365).
				With("requestedDays", int(to.Sub(from)/(24*time.Hour)))
		}
	case f.From != nil:
		from = *f.From
		to = from.AddDate(1, 0, 0)
	case f.To != nil:
		to = *f.To
		from = to.AddDate(-1, 0, 0)
	default:
		to = s.now()
		from = to.Add(-recentWindow)
	}

	sessions, _, err := s.sessions.List(ctx, attendance.SessionQuery{
		CompanyID: f.CompanyID,
		From:      &from,
		To:        &to,
		Limit:     maxExportRows,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, xerrors.NotFound("No sessions found for the specified date range.").
			With("from", from).
			With("to", to)
	}

	users := s.userIndex(ctx, sessions)
	out := &Export{From: from, To: to, Sessions: make([]SessionView, 0, len(sessions))}
	for _, sess := range sessions {
		out.Sessions = append(out.Sessions, s.view(sess, users[sess.UserID]))
	}
	return out, nil
}

var csvHeader = []string{
	"SessionId", "CompanyId", "UserId", "UserDisplayName", "DeviceId",
	"LoginAt", "LogoutAt", "Status", "LastHeartbeat",
	"LoginLat", "LoginLon", "LoginAccuracy", "WorkingHours", "WorkingMinutes",
}

// WriteCSV writes the export with timestamps in the report timezone.
func (e *Export) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, v := range e.Sessions {
		row := []string{
			v.SessionID, v.CompanyID, v.UserID, v.UserDisplayName, v.DeviceID,
			v.LoginAtLocal, deref(v.LogoutAtLocal), string(v.Status), deref(v.LastHeartbeatLocal),
			"", "", "",
			strconv.FormatFloat(v.WorkingHours, 'f', 2, 64),
			strconv.FormatInt(v.WorkingMinutes, 10),
		}
		if v.LoginLocation != nil {
			row[9] = strconv.FormatFloat(v.LoginLocation.Lat, 'f', -1, 64)
			row[10] = strconv.FormatFloat(v.LoginLocation.Lon, 'f', -1, 64)
			row[11] = strconv.FormatFloat(v.LoginLocation.Accuracy, 'f', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
