// seed inserts one sample company with an office, an admin, an employee and
// the employee's device. Idempotent: skips everything if the admin user
// already exists.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"attendance-service/internal/app"
	"attendance-service/internal/config"
	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"
	"attendance-service/internal/pkg/password"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	companyID    = "C1"
	locationID   = "L1"
	adminID      = "U1"
	employeeID   = "U2"
	deviceID     = "D-001"
	adminName    = "admin"
	employeeName = "john.doe"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Fatal("seed: STORE_DRIVER=memory has nothing to seed")
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	defer stores.Close()

	if _, err := stores.Users.FindByUsername(ctx, adminName); err == nil {
		logger.Info("seed data already present, skipping")
		return
	} else if !xerrors.IsNotFound(err) {
		log.Fatalf("seed: lookup admin: %v", err)
	}

	hasher := password.NewHasher(bcrypt.DefaultCost)
	adminHash, err := hasher.Hash(envOr("SEED_ADMIN_PASSWORD", "admin123"))
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	employeeHash, err := hasher.Hash(envOr("SEED_EMPLOYEE_PASSWORD", "password123"))
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	now := time.Now().UTC()
	steps := []struct {
		name string
		run  func() error
	}{
		{"company", func() error {
			return stores.Companies.Create(ctx, &attendance.Company{
				ID: companyID, Name: "Transvigour", Timezone: cfg.ReportTimezone,
				Settings:  attendance.CompanySettings{SessionTimeoutHours: cfg.SessionTimeoutHours, HeartbeatMinutes: cfg.HeartbeatMinutes},
				CreatedAt: now,
			})
		}},
		{"location", func() error {
			return stores.Locations.Create(ctx, &attendance.Location{
				ID: locationID, CompanyID: companyID, Name: "Main Office",
				Lat: 9.12345, Lon: 77.12345, RadiusMeters: 150, CreatedAt: now,
			})
		}},
		{"admin", func() error {
			return stores.Users.Create(ctx, &attendance.User{
				ID: adminID, CompanyID: companyID, Username: adminName, PasswordHash: adminHash,
				DisplayName: "System Administrator", Role: attendance.RoleAdmin, CreatedAt: now,
			})
		}},
		{"employee", func() error {
			return stores.Users.Create(ctx, &attendance.User{
				ID: employeeID, CompanyID: companyID, Username: employeeName, PasswordHash: employeeHash,
				DisplayName: "John Doe", Role: attendance.RoleEmployee,
				AssignedDeviceID: deviceID, AllocatedLocationID: locationID, CreatedAt: now,
			})
		}},
		{"device", func() error {
			return stores.Devices.Create(ctx, &attendance.Device{
				ID: deviceID, DeviceID: deviceID, Serial: "SN123456", Name: "PC-MAIN",
				CompanyID: companyID, AssignedTo: employeeID, CreatedAt: now,
			})
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			if xerrors.IsConflict(err) {
				logger.Warn("already seeded", zap.String("entity", step.name))
				continue
			}
			log.Fatalf("seed: create %s: %v", step.name, err)
		}
		logger.Info("seeded", zap.String("entity", step.name))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
