// internal/repository/mongo/store.go
package mongo

import (
	"context"
	"fmt"

	"attendance-service/internal/domain/attendance"

	"go.mongodb.org/mongo-driver/v2/bson"
	driver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	sessionsCollection  = "sessions"
	usersCollection     = "users"
	devicesCollection   = "devices"
	locationsCollection = "locations"
	companiesCollection = "companies"

	liveSessionIndexName = "one_live_session_per_user"
)

func liveStatuses() bson.A {
	return bson.A{string(attendance.StatusActive), string(attendance.StatusSuspect)}
}

// EnsureIndexes creates the indexes the stores depend on. The partial
// unique index on sessions enforces one live exclusive session per user
// and needs MongoDB 6.0 or later for $in in the filter.
func EnsureIndexes(ctx context.Context, db *driver.Database) error {
	specs := map[string][]driver.IndexModel{
		sessionsCollection: {
			{
				Keys: bson.D{{Key: "userId", Value: 1}},
				Options: options.Index().
					SetName(liveSessionIndexName).
					SetUnique(true).
					SetPartialFilterExpression(bson.D{
						{Key: "exclusive", Value: true},
						{Key: "status", Value: bson.D{{Key: "$in", Value: liveStatuses()}}},
					}),
			},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "loginAt", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "loginAt", Value: -1}}},
		},
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		devicesCollection: {
			{Keys: bson.D{{Key: "deviceId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		locationsCollection: {
			{Keys: bson.D{{Key: "companyId", Value: 1}}},
		},
	}

	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	return nil
}
