// internal/repository/postgres/directory_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ========== Users ==========

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, COALESCE(company_id, ''), username, password_hash, display_name, role,
	assigned_device_id, allocated_location_id, location_validation_required, created_at`

func scanUser(row pgx.Row) (*attendance.User, error) {
	var u attendance.User
	err := row.Scan(
		&u.ID, &u.CompanyID, &u.Username, &u.PasswordHash, &u.DisplayName, &u.Role,
		&u.AssignedDeviceID, &u.AllocatedLocationID, &u.LocationValidationRequired, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *attendance.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))

	var companyID any
	if u.CompanyID != "" {
		companyID = u.CompanyID
	}

	query := `
		INSERT INTO users (id, company_id, username, password_hash, display_name, role,
		                   assigned_device_id, allocated_location_id, location_validation_required, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.pool.Exec(ctx, query,
		u.ID, companyID, u.Username, u.PasswordHash, u.DisplayName, string(u.Role),
		u.AssignedDeviceID, u.AllocatedLocationID, u.LocationValidationRequired, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("username %s: %w", u.Username, xerrors.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*attendance.User, error) {
	u, err := scanUser(r.db.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*attendance.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1)`

	u, err := scanUser(r.db.pool.QueryRow(ctx, query, strings.TrimSpace(username)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]*attendance.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	defer rows.Close()

	var out []*attendance.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ========== Devices ==========

type DeviceRepository struct {
	db *DB
}

func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) Create(ctx context.Context, d *attendance.Device) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO devices (id, device_id, serial, name, company_id, assigned_to, last_seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.pool.Exec(ctx, query,
		d.ID, d.DeviceID, d.Serial, d.Name, d.CompanyID, d.AssignedTo, d.LastSeen, d.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("device %s: %w", d.DeviceID, xerrors.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (r *DeviceRepository) FindByDeviceID(ctx context.Context, deviceID string) (*attendance.Device, error) {
	query := `
		SELECT id, device_id, serial, name, company_id, assigned_to, last_seen, created_at
		FROM devices
		WHERE device_id = $1
	`
	var d attendance.Device
	err := r.db.pool.QueryRow(ctx, query, deviceID).Scan(
		&d.ID, &d.DeviceID, &d.Serial, &d.Name, &d.CompanyID, &d.AssignedTo, &d.LastSeen, &d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find device: %w", err)
	}
	return &d, nil
}

func (r *DeviceRepository) Touch(ctx context.Context, deviceID string, at time.Time) error {
	if _, err := r.db.pool.Exec(ctx, `UPDATE devices SET last_seen = $2 WHERE device_id = $1`, deviceID, at); err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}
	return nil
}

// ========== Locations ==========

type LocationRepository struct {
	db *DB
}

func NewLocationRepository(db *DB) *LocationRepository {
	return &LocationRepository{db: db}
}

func (r *LocationRepository) Create(ctx context.Context, l *attendance.Location) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO locations (id, company_id, name, lat, lon, radius_meters, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.pool.Exec(ctx, query, l.ID, l.CompanyID, l.Name, l.Lat, l.Lon, l.RadiusMeters, l.CreatedAt); err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	return nil
}

func (r *LocationRepository) FindByID(ctx context.Context, id string) (*attendance.Location, error) {
	var l attendance.Location
	err := r.db.pool.QueryRow(ctx,
		`SELECT id, company_id, name, lat, lon, radius_meters, created_at FROM locations WHERE id = $1`, id,
	).Scan(&l.ID, &l.CompanyID, &l.Name, &l.Lat, &l.Lon, &l.RadiusMeters, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find location: %w", err)
	}
	return &l, nil
}

func (r *LocationRepository) ListByCompany(ctx context.Context, companyID string) ([]*attendance.Location, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, company_id, name, lat, lon, radius_meters, created_at
		FROM locations
		WHERE company_id = $1
		ORDER BY name
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var out []*attendance.Location
	for rows.Next() {
		var l attendance.Location
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.Name, &l.Lat, &l.Lon, &l.RadiusMeters, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// ========== Companies ==========

type CompanyRepository struct {
	db *DB
}

func NewCompanyRepository(db *DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

func (r *CompanyRepository) Create(ctx context.Context, c *attendance.Company) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	settings, err := json.Marshal(c.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal company settings: %w", err)
	}
	query := `INSERT INTO companies (id, name, timezone, settings, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.pool.Exec(ctx, query, c.ID, c.Name, c.Timezone, settings, c.CreatedAt); err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

func (r *CompanyRepository) FindByID(ctx context.Context, id string) (*attendance.Company, error) {
	var (
		c        attendance.Company
		settings []byte
	)
	err := r.db.pool.QueryRow(ctx,
		`SELECT id, name, timezone, settings, created_at FROM companies WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Timezone, &settings, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find company: %w", err)
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &c.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal company settings: %w", err)
		}
	}
	return &c, nil
}
