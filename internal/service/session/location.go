package session

import (
	"context"
	"fmt"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"
	"attendance-service/internal/pkg/geofence"
)

// checkLocation runs the containment rule shared by login and heartbeat.
// A user with an allocated location must be within the configured proximity
// of it; everyone else must be inside any of the company's locations using
// each location's own radius.
func (s *SessionService) checkLocation(ctx context.Context, user *attendance.User, p attendance.GeoPoint) error {
	point := geofence.Point{Lat: p.Lat, Lon: p.Lon}

	if user.AllocatedLocationID != "" {
		loc, err := s.locations.FindByID(ctx, user.AllocatedLocationID)
		if xerrors.IsNotFound(err) {
			return xerrors.AllocatedLocationNotFound(user.AllocatedLocationID)
		}
		if err != nil {
			return xerrors.Internal(fmt.Errorf("failed to load allocated location: %w", err))
		}

		d := geofence.DistanceMeters(point, geofence.Point{Lat: loc.Lat, Lon: loc.Lon})
		if d > s.policy.ProximityMeters {
			return xerrors.NotWithinAllocatedLocation(loc.Name, d, s.policy.ProximityMeters)
		}
		return nil
	}

	locs, err := s.locations.ListByCompany(ctx, user.CompanyID)
	if err != nil {
		return xerrors.Internal(fmt.Errorf("failed to load company locations: %w", err))
	}
	if len(locs) == 0 {
		return xerrors.NoLocationsConfigured()
	}

	zones := make([]geofence.Zone, len(locs))
	names := make([]string, len(locs))
	for i, l := range locs {
		zones[i] = geofence.Zone{Center: geofence.Point{Lat: l.Lat, Lon: l.Lon}, RadiusMeters: l.RadiusMeters}
		names[i] = l.Name
	}
	if !geofence.WithinAnyZone(point, zones) {
		_, nearest := geofence.Nearest(point, zones)
		return xerrors.LocationNotAllowed(names, nearest)
	}
	return nil
}
