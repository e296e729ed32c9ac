// Package memory holds mutex-guarded in-process stores. They back the
// memory store driver and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"
)

type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*attendance.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*attendance.Session)}
}

func cloneSession(s *attendance.Session) *attendance.Session {
	out := *s
	if s.LogoutAt != nil {
		t := *s.LogoutAt
		out.LogoutAt = &t
	}
	if s.LastHeartbeat != nil {
		t := *s.LastHeartbeat
		out.LastHeartbeat = &t
	}
	if s.WorkedSeconds != nil {
		w := *s.WorkedSeconds
		out.WorkedSeconds = &w
	}
	return &out
}

func (m *SessionStore) FindByID(_ context.Context, id string) (*attendance.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *SessionStore) FindLiveByUser(_ context.Context, userID string) (*attendance.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.liveExclusiveLocked(userID); s != nil {
		return cloneSession(s), nil
	}
	// Non-exclusive (admin) sessions are still returned, newest first.
	var newest *attendance.Session
	for _, s := range m.sessions {
		if s.UserID == userID && s.Status.IsLive() && (newest == nil || s.LoginAt.After(newest.LoginAt)) {
			newest = s
		}
	}
	if newest == nil {
		return nil, xerrors.ErrNotFound
	}
	return cloneSession(newest), nil
}

func (m *SessionStore) liveExclusiveLocked(userID string) *attendance.Session {
	for _, s := range m.sessions {
		if s.UserID == userID && s.Exclusive && s.Status.IsLive() {
			return s
		}
	}
	return nil
}

func (m *SessionStore) InsertLive(_ context.Context, s *attendance.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("session %s: %w", s.ID, xerrors.ErrConflict)
	}
	if s.Exclusive && m.liveExclusiveLocked(s.UserID) != nil {
		return attendance.ErrLiveSessionConflict
	}
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

// Insert stores a record without any live-session check. Used by tests to
// seed arbitrary states.
func (m *SessionStore) Insert(s *attendance.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = cloneSession(s)
}

func statusIn(s attendance.Status, set []attendance.Status) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (m *SessionStore) Transition(_ context.Context, id string, from []attendance.Status, to attendance.Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || !statusIn(s.Status, from) {
		return false, nil
	}
	applyStatus(s, to, at)
	return true, nil
}

func applyStatus(s *attendance.Session, to attendance.Status, at time.Time) {
	s.Status = to
	if to.IsTerminal() && s.LogoutAt == nil {
		t := at
		if t.Before(s.LoginAt) {
			t = s.LoginAt
		}
		s.LogoutAt = &t
	}
	s.UpdatedAt = at
}

func (m *SessionStore) RecordHeartbeat(_ context.Context, id string, upd attendance.HeartbeatUpdate) (*attendance.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	if !s.Status.IsLive() {
		return nil, attendance.ErrSessionNotLive
	}

	switch upd.Accuracy {
	case attendance.AccuracyPoor:
		s.ConsecutivePoorHeartbeats++
		if upd.SuspectThreshold > 0 && s.ConsecutivePoorHeartbeats >= upd.SuspectThreshold {
			s.Status = attendance.StatusSuspect
		}
	case attendance.AccuracyGood:
		s.ConsecutivePoorHeartbeats = 0
		if s.Status == attendance.StatusSuspect {
			s.Status = attendance.StatusActive
		}
	}
	if upd.Touch {
		t := upd.At
		s.LastHeartbeat = &t
	}
	s.UpdatedAt = upd.At
	return cloneSession(s), nil
}

func matchesStale(s *attendance.Session, c attendance.StaleCriteria) bool {
	if s.LastHeartbeat == nil || s.LastHeartbeat.Before(c.HeartbeatBefore) {
		return true
	}
	return c.LoginBefore != nil && s.LoginAt.Before(*c.LoginBefore)
}

func (m *SessionStore) CloseStale(_ context.Context, c attendance.StaleCriteria, to attendance.Status, at time.Time) ([]attendance.ClosedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var closed []attendance.ClosedSession
	for _, s := range m.sessions {
		if !s.Status.IsLive() || !matchesStale(s, c) {
			continue
		}
		applyStatus(s, to, at)
		closed = append(closed, attendance.ClosedSession{ID: s.ID, UserID: s.UserID})
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].ID < closed[j].ID })
	return closed, nil
}

func (m *SessionStore) ListLive(_ context.Context) ([]*attendance.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*attendance.Session
	for _, s := range m.sessions {
		if s.Status.IsLive() {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoginAt.Before(out[j].LoginAt) })
	return out, nil
}

func (m *SessionStore) CloseAndSplit(_ context.Context, id string, closure attendance.Closure, continuations []*attendance.Session) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || !s.Status.IsLive() {
		return false, nil
	}
	for _, c := range continuations {
		if _, exists := m.sessions[c.ID]; exists {
			return false, fmt.Errorf("continuation %s: %w", c.ID, xerrors.ErrConflict)
		}
	}

	s.Status = closure.Status
	t := closure.LogoutAt
	s.LogoutAt = &t
	w := closure.WorkedSeconds
	s.WorkedSeconds = &w
	s.UpdatedAt = closure.LogoutAt
	for _, c := range continuations {
		m.sessions[c.ID] = cloneSession(c)
	}
	return true, nil
}

func (m *SessionStore) Resolve(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.Status != attendance.StatusSuspect {
		return false, nil
	}
	s.Status = attendance.StatusActive
	s.ConsecutivePoorHeartbeats = 0
	s.UpdatedAt = at
	return true, nil
}

func (m *SessionStore) List(_ context.Context, q attendance.SessionQuery) ([]*attendance.Session, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*attendance.Session
	for _, s := range m.sessions {
		if matchesQuery(s, q) {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].LoginAt.Equal(matched[j].LoginAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].LoginAt.After(matched[j].LoginAt)
	})

	total := int64(len(matched))
	if q.Skip >= len(matched) {
		return []*attendance.Session{}, total, nil
	}
	matched = matched[q.Skip:]
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]*attendance.Session, len(matched))
	for i, s := range matched {
		out[i] = cloneSession(s)
	}
	return out, total, nil
}

func matchesQuery(s *attendance.Session, q attendance.SessionQuery) bool {
	if q.CompanyID != "" && s.CompanyID != q.CompanyID {
		return false
	}
	if q.UserID != "" && s.UserID != q.UserID {
		return false
	}
	if len(q.Statuses) > 0 && !q.Statuses.Contains(s.Status) {
		return false
	}
	if q.From != nil && s.LoginAt.Before(*q.From) {
		return false
	}
	if q.To != nil && s.LoginAt.After(*q.To) {
		return false
	}
	if q.RecentSince != nil && !s.Status.IsLive() && s.LoginAt.Before(*q.RecentSince) {
		return false
	}
	return true
}
