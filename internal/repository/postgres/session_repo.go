// internal/repository/postgres/session_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	uniqueViolation      = "23505"
	liveSessionIndexName = "uq_sessions_one_live_per_user"

	sessionColumns = `
		id, company_id, user_id, device_id, login_at, logout_at,
		login_lat, login_lon, login_accuracy, last_heartbeat, status,
		consecutive_poor_heartbeats, worked_seconds, exclusive, split_from,
		created_at, updated_at`

	liveFilter = `status IN ('active', 'suspect')`
)

type SessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row pgx.Row) (*attendance.Session, error) {
	var s attendance.Session
	err := row.Scan(
		&s.ID, &s.CompanyID, &s.UserID, &s.DeviceID, &s.LoginAt, &s.LogoutAt,
		&s.LoginLocation.Lat, &s.LoginLocation.Lon, &s.LoginLocation.Accuracy, &s.LastHeartbeat, &s.Status,
		&s.ConsecutivePoorHeartbeats, &s.WorkedSeconds, &s.Exclusive, &s.SplitFrom,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSessions(rows pgx.Rows) ([]*attendance.Session, error) {
	defer rows.Close()

	var out []*attendance.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ========== Reads ==========

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*attendance.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.db.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return s, nil
}

// FindLiveByUser prefers the exclusive live session, then the newest live one.
func (r *SessionRepository) FindLiveByUser(ctx context.Context, userID string) (*attendance.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND ` + liveFilter + `
		ORDER BY exclusive DESC, login_at DESC
		LIMIT 1`

	s, err := scanSession(r.db.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find live session: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) ListLive(ctx context.Context) ([]*attendance.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + liveFilter + ` ORDER BY login_at`

	rows, err := r.db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list live sessions: %w", err)
	}
	return collectSessions(rows)
}

// ========== Writes ==========

const insertSession = `
	INSERT INTO sessions (` + sessionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

func insertArgs(s *attendance.Session) []any {
	return []any{
		s.ID, s.CompanyID, s.UserID, s.DeviceID, s.LoginAt, s.LogoutAt,
		s.LoginLocation.Lat, s.LoginLocation.Lon, s.LoginLocation.Accuracy, s.LastHeartbeat, string(s.Status),
		s.ConsecutivePoorHeartbeats, s.WorkedSeconds, s.Exclusive, s.SplitFrom,
		s.CreatedAt, s.UpdatedAt,
	}
}

// InsertLive relies on the partial unique index for the single-live rule.
func (r *SessionRepository) InsertLive(ctx context.Context, s *attendance.Session) error {
	if !s.Status.IsLive() {
		return fmt.Errorf("insert live session with status %q: %w", s.Status, xerrors.ErrInvalidInput)
	}
	_, err := r.db.pool.Exec(ctx, insertSession, insertArgs(s)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == liveSessionIndexName {
				return attendance.ErrLiveSessionConflict
			}
			return fmt.Errorf("session %s: %w", s.ID, xerrors.ErrConflict)
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Transition(ctx context.Context, id string, from []attendance.Status, to attendance.Status, at time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET status = $3,
		    logout_at = CASE WHEN $4::boolean AND logout_at IS NULL THEN GREATEST($5, login_at) ELSE logout_at END,
		    updated_at = $5
		WHERE id = $1 AND status = ANY($2)
	`
	tag, err := r.db.pool.Exec(ctx, query, id, pq.Array(attendance.StatusSet(from).Strings()), string(to), to.IsTerminal(), at)
	if err != nil {
		return false, fmt.Errorf("failed to transition session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecordHeartbeat applies the counter, status and touch in one statement.
// Every SET expression reads the pre-update row.
func (r *SessionRepository) RecordHeartbeat(ctx context.Context, id string, upd attendance.HeartbeatUpdate) (*attendance.Session, error) {
	query := `
		UPDATE sessions
		SET consecutive_poor_heartbeats = CASE $2::int
		        WHEN 1 THEN consecutive_poor_heartbeats + 1
		        WHEN 2 THEN 0
		        ELSE consecutive_poor_heartbeats
		    END,
		    status = CASE
		        WHEN $2::int = 1 AND $3::int > 0 AND consecutive_poor_heartbeats + 1 >= $3::int THEN 'suspect'
		        WHEN $2::int = 2 AND status = 'suspect' THEN 'active'
		        ELSE status
		    END,
		    last_heartbeat = CASE WHEN $4::boolean THEN $5 ELSE last_heartbeat END,
		    updated_at = $5
		WHERE id = $1 AND ` + liveFilter + `
		RETURNING ` + sessionColumns

	s, err := scanSession(r.db.pool.QueryRow(ctx, query, id, int(upd.Accuracy), upd.SuspectThreshold, upd.Touch, upd.At))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to record heartbeat: %w", err)
	}

	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, attendance.ErrSessionNotLive
}

func (r *SessionRepository) CloseStale(ctx context.Context, c attendance.StaleCriteria, to attendance.Status, at time.Time) ([]attendance.ClosedSession, error) {
	query := `
		UPDATE sessions
		SET status = $1,
		    logout_at = GREATEST($2, login_at),
		    updated_at = $2
		WHERE ` + liveFilter + `
		  AND (last_heartbeat IS NULL
		       OR last_heartbeat < $3
		       OR ($4::timestamptz IS NOT NULL AND login_at < $4::timestamptz))
		RETURNING id, user_id
	`
	rows, err := r.db.pool.Query(ctx, query, string(to), at, c.HeartbeatBefore, c.LoginBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to close stale sessions: %w", err)
	}
	defer rows.Close()

	var closed []attendance.ClosedSession
	for rows.Next() {
		var cs attendance.ClosedSession
		if err := rows.Scan(&cs.ID, &cs.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan closed session: %w", err)
		}
		closed = append(closed, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].ID < closed[j].ID })
	return closed, nil
}

// CloseAndSplit closes the original and inserts the day records in one
// transaction.
func (r *SessionRepository) CloseAndSplit(ctx context.Context, id string, closure attendance.Closure, continuations []*attendance.Session) (bool, error) {
	applied := false
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE sessions
			SET status = $2, logout_at = $3, worked_seconds = $4, updated_at = $3
			WHERE id = $1 AND `+liveFilter,
			id, string(closure.Status), closure.LogoutAt, closure.WorkedSeconds,
		)
		if err != nil {
			return fmt.Errorf("failed to close session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		for _, c := range continuations {
			if _, err := tx.Exec(ctx, insertSession, insertArgs(c)...); err != nil {
				return fmt.Errorf("failed to insert day record %s: %w", c.ID, err)
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *SessionRepository) Resolve(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET status = 'active', consecutive_poor_heartbeats = 0, updated_at = $2
		WHERE id = $1 AND status = 'suspect'
	`
	tag, err := r.db.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to resolve session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ========== Listing ==========

// buildSessionFilter returns the WHERE clause and args for q.
func buildSessionFilter(q attendance.SessionQuery) (string, []any) {
	conditions := []string{"TRUE"}
	args := []any{}
	argPos := 1

	add := func(format string, v any) {
		conditions = append(conditions, fmt.Sprintf(format, argPos))
		args = append(args, v)
		argPos++
	}

	if q.CompanyID != "" {
		add("company_id = $%d", q.CompanyID)
	}
	if q.UserID != "" {
		add("user_id = $%d", q.UserID)
	}
	if len(q.Statuses) > 0 {
		add("status = ANY($%d)", pq.Array(q.Statuses.Strings()))
	}
	if q.From != nil {
		add("login_at >= $%d", *q.From)
	}
	if q.To != nil {
		add("login_at <= $%d", *q.To)
	}
	if q.RecentSince != nil {
		add("("+liveFilter+" OR login_at >= $%d)", *q.RecentSince)
	}
	return strings.Join(conditions, " AND "), args
}

func (r *SessionRepository) List(ctx context.Context, q attendance.SessionQuery) ([]*attendance.Session, int64, error) {
	where, args := buildSessionFilter(q)

	var total int64
	if err := r.db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM sessions WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + where + ` ORDER BY login_at DESC, id ASC`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Skip > 0 {
		query += fmt.Sprintf(" OFFSET %d", q.Skip)
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	sessions, err := collectSessions(rows)
	if err != nil {
		return nil, 0, err
	}
	if sessions == nil {
		sessions = []*attendance.Session{}
	}
	return sessions, total, nil
}
