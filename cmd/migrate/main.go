// migrate applies the embedded Postgres migrations.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"attendance-service/internal/config"
	"attendance-service/internal/db/migrate"

	"github.com/joho/godotenv"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env or export DATABASE_URL")
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
