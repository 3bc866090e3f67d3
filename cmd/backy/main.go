// Package main is BackyDB's command-line entry point: `backy backup`,
// `backy restore`, `backy serve`, and a handful of key-provisioning
// helpers, wired through internal/app.Container exactly the way the
// teacher's cmd/app/main.go wires its own Container.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/allisson/backydb/internal/app"
	"github.com/allisson/backydb/internal/config"
	apperrors "github.com/allisson/backydb/internal/errors"
)

const toolVersion = "0.1.0"

func main() {
	cmd := &cli.Command{
		Name:    "backy",
		Usage:   "Modular backup-and-restore engine for relational databases",
		Version: toolVersion,
		Commands: []*cli.Command{
			backupCommand(),
			restoreCommand(),
			serveCommand(),
			createLocalKeyCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("backy: command failed", slog.Any("error", err))
		os.Exit(apperrors.ExitCode(err))
	}
}

// closeContainer releases every resource the container opened, logging
// (not failing) any shutdown error since the command's own result has
// already been decided by the time Shutdown runs.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("backy: container shutdown failed", slog.Any("error", err))
	}
}

// notifyContext wraps ctx with SIGINT/SIGTERM cancellation, the same
// graceful-shutdown signal set the teacher's runServer uses.
func notifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func loadContainer() (*app.Container, *slog.Logger) {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	return container, container.Logger()
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}
