package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"
)

// Directory holds users, devices, locations and companies.
type Directory struct {
	mu        sync.RWMutex
	users     map[string]*attendance.User
	devices   map[string]*attendance.Device
	locations map[string]*attendance.Location
	companies map[string]*attendance.Company
}

func NewDirectory() *Directory {
	return &Directory{
		users:     make(map[string]*attendance.User),
		devices:   make(map[string]*attendance.Device),
		locations: make(map[string]*attendance.Location),
		companies: make(map[string]*attendance.Company),
	}
}

// Users, Devices, Locations and Companies expose the directory through the
// narrower repository interfaces.
func (d *Directory) Users() attendance.UserRepository         { return userRepo{d} }
func (d *Directory) Devices() attendance.DeviceRepository     { return deviceRepo{d} }
func (d *Directory) Locations() attendance.LocationRepository { return locationRepo{d} }
func (d *Directory) Companies() attendance.CompanyRepository  { return companyRepo{d} }

type userRepo struct{ d *Directory }

func (r userRepo) Create(_ context.Context, u *attendance.User) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	u.Username = strings.ToLower(u.Username)
	for _, existing := range r.d.users {
		if existing.Username == u.Username {
			return fmt.Errorf("username %s: %w", u.Username, xerrors.ErrConflict)
		}
	}
	cp := *u
	r.d.users[u.ID] = &cp
	return nil
}

func (r userRepo) FindByID(_ context.Context, id string) (*attendance.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	u, ok := r.d.users[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) FindByUsername(_ context.Context, username string) (*attendance.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	username = strings.ToLower(strings.TrimSpace(username))
	for _, u := range r.d.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r userRepo) FindByIDs(_ context.Context, ids []string) ([]*attendance.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	var out []*attendance.User
	for _, id := range ids {
		if u, ok := r.d.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

type deviceRepo struct{ d *Directory }

func (r deviceRepo) Create(_ context.Context, dev *attendance.Device) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	if _, exists := r.d.devices[dev.DeviceID]; exists {
		return fmt.Errorf("device %s: %w", dev.DeviceID, xerrors.ErrConflict)
	}
	cp := *dev
	r.d.devices[dev.DeviceID] = &cp
	return nil
}

func (r deviceRepo) FindByDeviceID(_ context.Context, deviceID string) (*attendance.Device, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	dev, ok := r.d.devices[deviceID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *dev
	return &cp, nil
}

// Touch is a no-op for unknown devices, matching the SQL and document stores.
func (r deviceRepo) Touch(_ context.Context, deviceID string, at time.Time) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	if dev, ok := r.d.devices[deviceID]; ok {
		t := at
		dev.LastSeen = &t
	}
	return nil
}

type locationRepo struct{ d *Directory }

func (r locationRepo) Create(_ context.Context, l *attendance.Location) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	cp := *l
	r.d.locations[l.ID] = &cp
	return nil
}

func (r locationRepo) FindByID(_ context.Context, id string) (*attendance.Location, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	l, ok := r.d.locations[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r locationRepo) ListByCompany(_ context.Context, companyID string) ([]*attendance.Location, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	var out []*attendance.Location
	for _, l := range r.d.locations {
		if l.CompanyID == companyID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type companyRepo struct{ d *Directory }

func (r companyRepo) Create(_ context.Context, c *attendance.Company) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	cp := *c
	r.d.companies[c.ID] = &cp
	return nil
}

func (r companyRepo) FindByID(_ context.Context, id string) (*attendance.Company, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	c, ok := r.d.companies[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}
