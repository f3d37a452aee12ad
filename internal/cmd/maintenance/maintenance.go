// Package maintenance parses maintenance command flags and runs the fleet
// reset against the race database.
package maintenance

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	entrypoint "github.com/coderace/coderace/internal/platform/cmd"
	"github.com/coderace/coderace/internal/race/service"
	racesqlite "github.com/coderace/coderace/internal/race/storage/sqlite"
)

// Config holds maintenance command configuration.
type Config struct {
	DBPath string `env:"CODERACE_DB_PATH" envDefault:"data/coderace.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the fleet reset and reports what it repaired.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMaintenance, func(ctx context.Context) error {
		if strings.TrimSpace(cfg.DBPath) == "" {
			return fmt.Errorf("db path is required")
		}
		store, err := racesqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Printf("close sqlite store: %v", closeErr)
			}
		}()

		report, err := service.FleetReset(ctx, service.Stores{Players: store, Races: store})
		if err != nil {
			return err
		}
		log.Printf("fleet reset: %d players cleared, %d races reset", report.PlayersCleared, report.RacesReset)
		return nil
	})
}
