// Package main runs the race fleet reset as a one-shot command.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	maintenancecmd "github.com/coderace/coderace/internal/cmd/maintenance"
	"github.com/coderace/coderace/internal/platform/config"
)

func main() {
	cfg, err := maintenancecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := maintenancecmd.Run(ctx, cfg); err != nil {
		config.Exitf("Error: %v", err)
	}
}
