package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the admin HTTP surface (/healthz, /readyz, /metrics) for a long-lived deployment",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	container, logger := loadContainer()
	defer closeContainer(container, logger)

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize admin http server: %w", err)
	}
	if db, dbErr := container.DB(); dbErr == nil {
		server.SetDB(db)
	}

	ctx, cancel := notifyContext(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("admin http server shutdown failed: %w", err)
		}
		return nil
	case err := <-serverErr:
		return err
	}
}
