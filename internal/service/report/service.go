// internal/service/report/service.go
package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"

	"go.uber.org/zap"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500

	recentWindow     = 30 * 24 * time.Hour
	defaultReportDay = 7
	dayLayout        = "2006-01-02"
)

// ReportService is the read side over session records: filtered listings
// for the admin dashboard and per-day worked time for one user.
type ReportService struct {
	sessions attendance.SessionStore
	users    attendance.UserRepository
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

func NewReportService(sessions attendance.SessionStore, users attendance.UserRepository, loc *time.Location, logger *zap.Logger) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{
		sessions: sessions,
		users:    users,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *ReportService) SetClock(now func() time.Time) {
	s.now = now
}

// ========== Listing ==========

// ListFilter is the admin listing query. Status is a comma separated list
// parsed with attendance.ParseStatusSet.
type ListFilter struct {
	CompanyID string
	UserID    string
	Status    string
	From      *time.Time
	To        *time.Time
	ShowAll   bool
	Skip      int
	Limit     int
}

type LocationView struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Accuracy float64 `json:"accuracy"`
}

type SessionView struct {
	SessionID          string            `json:"sessionId"`
	CompanyID          string            `json:"companyId"`
	UserID             string            `json:"userId"`
	Username           string            `json:"username"`
	UserDisplayName    string            `json:"userDisplayName"`
	DeviceID           string            `json:"deviceId"`
	LoginAt            time.Time         `json:"loginAt"`
	LogoutAt           *time.Time        `json:"logoutAt"`
	WorkingHours       float64           `json:"workingHours"`
	WorkingMinutes     int64             `json:"workingMinutes"`
	WorkedSeconds      *int64            `json:"workedSeconds,omitempty"`
	Status             attendance.Status `json:"status"`
	LastHeartbeat      *time.Time        `json:"lastHeartbeat"`
	LoginLocation      *LocationView     `json:"loginLocation"`
	SplitFrom          string            `json:"splitFrom,omitempty"`
	LoginAtLocal       string            `json:"loginAtLocal"`
	LogoutAtLocal      *string           `json:"logoutAtLocal"`
	LastHeartbeatLocal *string           `json:"lastHeartbeatLocal"`
}

type SessionPage struct {
	Total    int64         `json:"total"`
	Skip     int           `json:"skip"`
	Limit    int           `json:"limit"`
	Count    int           `json:"count"`
	Sessions []SessionView `json:"sessions"`
}

// ListSessions returns sessions newest first. Without a login range or
// ShowAll only live sessions and sessions from the last 30 days are listed.
func (s *ReportService) ListSessions(ctx context.Context, f ListFilter) (*SessionPage, error) {
	statuses, err := attendance.ParseStatusSet(f.Status)
	if err != nil {
		return nil, xerrors.InvalidInput(err.Error())
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, xerrors.InvalidInput("'to' must not be before 'from'")
	}
	if f.Skip < 0 {
		return nil, xerrors.InvalidInput("skip must not be negative")
	}

	limit := f.Limit
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	q := attendance.SessionQuery{
		CompanyID: f.CompanyID,
		UserID:    f.UserID,
		Statuses:  statuses,
		From:      f.From,
		To:        f.To,
		Skip:      f.Skip,
		Limit:     limit,
	}
	if f.From == nil && f.To == nil && !f.ShowAll {
		since := s.now().Add(-recentWindow)
		q.RecentSince = &since
	}

	sessions, total, err := s.sessions.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	users := s.userIndex(ctx, sessions)

	page := &SessionPage{
		Total:    total,
		Skip:     f.Skip,
		Limit:    limit,
		Count:    len(sessions),
		Sessions: make([]SessionView, 0, len(sessions)),
	}
	for _, sess := range sessions {
		page.Sessions = append(page.Sessions, s.view(sess, users[sess.UserID]))
	}
	return page, nil
}

// userIndex looks up display names; a failed lookup degrades to "unknown".
func (s *ReportService) userIndex(ctx context.Context, sessions []*attendance.Session) map[string]*attendance.User {
	seen := make(map[string]struct{}, len(sessions))
	ids := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		if _, ok := seen[sess.UserID]; ok {
			continue
		}
		seen[sess.UserID] = struct{}{}
		ids = append(ids, sess.UserID)
	}

	index := make(map[string]*attendance.User, len(ids))
	if len(ids) == 0 {
		return index
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to load users for session listing", zap.Int("count", len(ids)), zap.Error(err))
		return index
	}
	for _, u := range users {
		index[u.ID] = u
	}
	return index
}

func (s *ReportService) view(sess *attendance.Session, u *attendance.User) SessionView {
	v := SessionView{
		SessionID:       sess.ID,
		CompanyID:       sess.CompanyID,
		UserID:          sess.UserID,
		Username:        "unknown",
		UserDisplayName: "Unknown",
		DeviceID:        sess.DeviceID,
		LoginAt:         sess.LoginAt,
		LogoutAt:        sess.LogoutAt,
		WorkedSeconds:   sess.WorkedSeconds,
		Status:          sess.Status,
		LastHeartbeat:   sess.LastHeartbeat,
		SplitFrom:       sess.SplitFrom,
		LoginAtLocal:    s.local(sess.LoginAt),
	}
	if u != nil {
		v.Username = u.Username
		v.UserDisplayName = u.DisplayName
	}
	if sess.LogoutAt != nil {
		v.WorkingMinutes = int64(sess.LogoutAt.Sub(sess.LoginAt) / time.Minute)
		v.WorkingHours = math.Round(float64(v.WorkingMinutes)/60*100) / 100
		l := s.local(*sess.LogoutAt)
		v.LogoutAtLocal = &l
	}
	if sess.LastHeartbeat != nil {
		l := s.local(*sess.LastHeartbeat)
		v.LastHeartbeatLocal = &l
	}
	if p := sess.LoginLocation; p.Lat != 0 || p.Lon != 0 {
		v.LoginLocation = &LocationView{Lat: p.Lat, Lon: p.Lon, Accuracy: p.Accuracy}
	}
	return v
}

func (s *ReportService) local(t time.Time) string {
	return t.In(s.loc).Format(time.RFC3339)
}

// ========== Work report ==========

type DayReport struct {
	Date          string     `json:"date"`
	Sessions      int        `json:"sessions"`
	WorkedSeconds int64      `json:"workedSeconds"`
	WorkedMinutes int64      `json:"workedMinutes"`
	WorkedHours   float64    `json:"workedHours"`
	FirstLogin    time.Time  `json:"firstLogin"`
	LastLogout    *time.Time `json:"lastLogout"`
}

type WorkReport struct {
	UserID          string      `json:"userId"`
	Username        string      `json:"username"`
	UserDisplayName string      `json:"userDisplayName"`
	From            time.Time   `json:"from"`
	To              time.Time   `json:"to"`
	Timezone        string      `json:"timezone"`
	TotalSeconds    int64       `json:"totalSeconds"`
	Days            []DayReport `json:"days"`
}

// UserWorkReport sums the worked time of a user's closed sessions per local
// day of login. A missing range covers the last seven local days.
func (s *ReportService) UserWorkReport(ctx context.Context, userID string, from, to *time.Time) (*WorkReport, error) {
	if userID == "" {
		return nil, xerrors.InvalidInput("userId is required")
	}

	now := s.now()
	end := now
	if to != nil {
		end = *to
	}
	start := s.startOfDay(end).AddDate(0, 0, -(defaultReportDay - 1))
	if from != nil {
		start = *from
	}
	if end.Before(start) {
		return nil, xerrors.InvalidInput("'to' must not be before 'from'")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if xerrors.IsNotFound(err) {
			return nil, xerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	sessions, _, err := s.sessions.List(ctx, attendance.SessionQuery{
		UserID:   userID,
		Statuses: attendance.StatusSet(attendance.TerminalStatuses),
		From:     &start,
		To:       &end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	rep := &WorkReport{
		UserID:          user.ID,
		Username:        user.Username,
		UserDisplayName: user.DisplayName,
		From:            start,
		To:              end,
		Timezone:        s.loc.String(),
		Days:            []DayReport{},
	}

	days := make(map[string]*DayReport)
	for _, sess := range sessions {
		key := sess.LoginAt.In(s.loc).Format(dayLayout)
		d, ok := days[key]
		if !ok {
			d = &DayReport{Date: key, FirstLogin: sess.LoginAt}
			days[key] = d
		}
		worked := workedSeconds(sess)
		d.Sessions++
		d.WorkedSeconds += worked
		rep.TotalSeconds += worked
		if sess.LoginAt.Before(d.FirstLogin) {
			d.FirstLogin = sess.LoginAt
		}
		if sess.LogoutAt != nil && (d.LastLogout == nil || sess.LogoutAt.After(*d.LastLogout)) {
			t := *sess.LogoutAt
			d.LastLogout = &t
		}
	}

	for _, d := range days {
		d.WorkedMinutes = d.WorkedSeconds / 60
		d.WorkedHours = math.Round(float64(d.WorkedSeconds)/3600*100) / 100
		rep.Days = append(rep.Days, *d)
	}
	sort.Slice(rep.Days, func(i, j int) bool { return rep.Days[i].Date < rep.Days[j].Date })
	return rep, nil
}

// workedSeconds prefers the value written by the daily run.
func workedSeconds(sess *attendance.Session) int64 {
	if sess.WorkedSeconds != nil {
		return *sess.WorkedSeconds
	}
	if sess.LogoutAt == nil || sess.LogoutAt.Before(sess.LoginAt) {
		return 0
	}
	return int64(sess.LogoutAt.Sub(sess.LoginAt) / time.Second)
}

func (s *ReportService) startOfDay(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}
