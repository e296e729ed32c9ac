// internal/app/stores.go
package app

import (
	"context"
	"fmt"
	"time"

	"attendance-service/internal/config"
	"attendance-service/internal/db"
	"attendance-service/internal/domain/attendance"
	"attendance-service/internal/repository/memory"
	mongorepo "attendance-service/internal/repository/mongo"
	"attendance-service/internal/repository/postgres"

	"go.uber.org/zap"
)

// Stores bundles the repositories for the configured driver.
type Stores struct {
	Sessions  attendance.SessionStore
	Users     attendance.UserRepository
	Devices   attendance.DeviceRepository
	Locations attendance.LocationRepository
	Companies attendance.CompanyRepository

	close func()
}

func (s *Stores) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// OpenStores connects the backend named by STORE_DRIVER.
func OpenStores(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.ConnectDB(ctx, db.PostgresConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: 20,
			Attempts: 5,
			Delay:    2 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		logger.Info("connected to postgres")

		pg := postgres.NewDB(pool)
		return &Stores{
			Sessions:  postgres.NewSessionRepository(pg),
			Users:     postgres.NewUserRepository(pg),
			Devices:   postgres.NewDeviceRepository(pg),
			Locations: postgres.NewLocationRepository(pg),
			Companies: postgres.NewCompanyRepository(pg),
			close:     pg.Close,
		}, nil

	case config.StoreDriverMongo:
		mdb, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := mongorepo.EnsureIndexes(ctx, mdb); err != nil {
			_ = mdb.Client().Disconnect(context.Background())
			return nil, fmt.Errorf("failed to ensure mongo indexes: %w", err)
		}
		logger.Info("connected to mongo", zap.String("database", cfg.MongoDatabase))

		return &Stores{
			Sessions:  mongorepo.NewSessionStore(mdb),
			Users:     mongorepo.NewUserRepository(mdb),
			Devices:   mongorepo.NewDeviceRepository(mdb),
			Locations: mongorepo.NewLocationRepository(mdb),
			Companies: mongorepo.NewCompanyRepository(mdb),
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = mdb.Client().Disconnect(ctx)
			},
		}, nil

	case config.StoreDriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		dir := memory.NewDirectory()
		return &Stores{
			Sessions:  memory.NewSessionStore(),
			Users:     dir.Users(),
			Devices:   dir.Devices(),
			Locations: dir.Locations(),
			Companies: dir.Companies(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
