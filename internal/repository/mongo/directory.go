// internal/repository/mongo/directory.go
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	driver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// findOne decodes the first match into out, mapping no documents to
// ErrNotFound.
func findOne(ctx context.Context, coll *driver.Collection, filter bson.D, out any) error {
	err := coll.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, driver.ErrNoDocuments) {
		return xerrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find in %s: %w", coll.Name(), err)
	}
	return nil
}

func insertOne(ctx context.Context, coll *driver.Collection, doc any, key string) error {
	_, err := coll.InsertOne(ctx, doc)
	if driver.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s %s: %w", coll.Name(), key, xerrors.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", coll.Name(), err)
	}
	return nil
}

// ========== Users ==========

type UserRepository struct {
	coll *driver.Collection
}

func NewUserRepository(db *driver.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

func (r *UserRepository) Create(ctx context.Context, u *attendance.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	return insertOne(ctx, r.coll, u, u.Username)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*attendance.User, error) {
	var u attendance.User
	if err := findOne(ctx, r.coll, bson.D{{Key: "_id", Value: id}}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByUsername matches the stored lowercase form.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*attendance.User, error) {
	var u attendance.User
	filter := bson.D{{Key: "username", Value: strings.ToLower(strings.TrimSpace(username))}}
	if err := findOne(ctx, r.coll, filter, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]*attendance.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := r.coll.Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	var out []*attendance.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return out, nil
}

// ========== Devices ==========

type DeviceRepository struct {
	coll *driver.Collection
}

func NewDeviceRepository(db *driver.Database) *DeviceRepository {
	return &DeviceRepository{coll: db.Collection(devicesCollection)}
}

func (r *DeviceRepository) Create(ctx context.Context, d *attendance.Device) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	return insertOne(ctx, r.coll, d, d.DeviceID)
}

func (r *DeviceRepository) FindByDeviceID(ctx context.Context, deviceID string) (*attendance.Device, error) {
	var d attendance.Device
	if err := findOne(ctx, r.coll, bson.D{{Key: "deviceId", Value: deviceID}}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DeviceRepository) Touch(ctx context.Context, deviceID string, at time.Time) error {
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "lastSeen", Value: at}}}}
	if _, err := r.coll.UpdateOne(ctx, bson.D{{Key: "deviceId", Value: deviceID}}, update); err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}
	return nil
}

// ========== Locations ==========

type LocationRepository struct {
	coll *driver.Collection
}

func NewLocationRepository(db *driver.Database) *LocationRepository {
	return &LocationRepository{coll: db.Collection(locationsCollection)}
}

func (r *LocationRepository) Create(ctx context.Context, l *attendance.Location) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	return insertOne(ctx, r.coll, l, l.ID)
}

func (r *LocationRepository) FindByID(ctx context.Context, id string) (*attendance.Location, error) {
	var l attendance.Location
	if err := findOne(ctx, r.coll, bson.D{{Key: "_id", Value: id}}, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LocationRepository) ListByCompany(ctx context.Context, companyID string) ([]*attendance.Location, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.D{{Key: "companyId", Value: companyID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	var out []*attendance.Location
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode locations: %w", err)
	}
	return out, nil
}

// ========== Companies ==========

type CompanyRepository struct {
	coll *driver.Collection
}

func NewCompanyRepository(db *driver.Database) *CompanyRepository {
	return &CompanyRepository{coll: db.Collection(companiesCollection)}
}

func (r *CompanyRepository) Create(ctx context.Context, c *attendance.Company) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return insertOne(ctx, r.coll, c, c.ID)
}

func (r *CompanyRepository) FindByID(ctx context.Context, id string) (*attendance.Company, error) {
	var c attendance.Company
	if err := findOne(ctx, r.coll, bson.D{{Key: "_id", Value: id}}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
