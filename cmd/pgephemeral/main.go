// Package main implements the pgephemeral CLI: it provisions a throwaway
// postgres server and a temporary database inside it, prints the DSN to
// stdout, and tears everything down on interrupt. Handy for poking at a
// clean database without polluting a local install.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/pgephemeral"
	"github.com/phrazzld/pgephemeral/internal/config"
	"github.com/phrazzld/pgephemeral/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("pgephemeral: %v", err)
	}
}

// run loads configuration, sets up logging, and holds an ephemeral server
// plus temporary database open until the process is interrupted. The scopes
// guarantee teardown on the way out.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Setup(cfg.Server.LogLevel)

	opts := []pgephemeral.Option{
		pgephemeral.WithReadyTimeout(cfg.Server.ReadyTimeout),
		pgephemeral.WithPollInterval(cfg.Server.PollInterval),
		pgephemeral.WithNamePrefix(cfg.Database.NamePrefix),
		pgephemeral.WithAdminIdentity(cfg.Server.AdminUser, cfg.Server.AdminPassword, cfg.Server.BootstrapDatabase),
	}
	if cfg.Database.OwnerRole {
		opts = append(opts, pgephemeral.WithOwnerRole())
	}

	slog.Info("provisioning ephemeral postgres server",
		slog.String("image", cfg.Server.Image))

	result := pgephemeral.WithServer(cfg.Server.Image, func(admin pgephemeral.ConnParams) (struct{}, error) {
		inner := pgephemeral.WithDatabase(admin, pgephemeral.TLSDisable, func(params pgephemeral.ConnParams) (struct{}, error) {
			// The DSN goes to stdout; everything else goes to stderr via slog.
			fmt.Println(params.URL())
			slog.Info("temporary database ready, interrupt to tear down",
				slog.String("url", params.Redacted()))

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			slog.Info("interrupt received, tearing down")
			return struct{}{}, nil
		}, opts...)
		return inner.Unwrap()
	}, opts...)

	if _, err := result.Unwrap(); err != nil {
		return err
	}
	return nil
}
