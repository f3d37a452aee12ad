// Package server parses server command flags and launches the race runtime.
package server

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/coderace/coderace/internal/platform/cmd"
	"github.com/coderace/coderace/internal/race/app"
)

// Config holds server command configuration.
type Config struct {
	Port         int           `env:"CODERACE_PORT" envDefault:"8080"`
	DBPath       string        `env:"CODERACE_DB_PATH" envDefault:"data/coderace.db"`
	NATSURL      string        `env:"CODERACE_NATS_URL"`
	Countdown    time.Duration `env:"CODERACE_COUNTDOWN" envDefault:"15s"`
	JoinLock     time.Duration `env:"CODERACE_JOIN_LOCK" envDefault:"5s"`
	TickInterval time.Duration `env:"CODERACE_TICK_INTERVAL" envDefault:"1s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The HTTP server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "Optional NATS server URL for event publishing")
	fs.DurationVar(&cfg.Countdown, "countdown", cfg.Countdown, "Race start countdown duration")
	fs.DurationVar(&cfg.JoinLock, "join-lock", cfg.JoinLock, "Window before start during which joining closes")
	fs.DurationVar(&cfg.TickInterval, "tick-interval", cfg.TickInterval, "Lifecycle sweep interval")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the server runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		return app.Run(ctx, app.RuntimeConfig{
			Port:         cfg.Port,
			DBPath:       cfg.DBPath,
			NATSURL:      cfg.NATSURL,
			Countdown:    cfg.Countdown,
			JoinLock:     cfg.JoinLock,
			TickInterval: cfg.TickInterval,
		})
	})
}
