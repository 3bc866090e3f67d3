package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/allisson/backydb/internal/jobstore"
	"github.com/allisson/backydb/internal/orchestrator"
)

func restoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "restore",
		Usage: "Fetch, verify, decrypt/decompress, and apply a stored backup",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Storage prefix the manifest and artifacts were written under (overrides BACKUP_PATH)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runRestore(ctx, cmd.String("path"))
		},
	}
}

func runRestore(ctx context.Context, path string) error {
	container, logger := loadContainer()
	defer closeContainer(container, logger)
	cfg := container.Config()

	if path == "" {
		path = cfg.BackupPath
	}

	adapter, err := container.SchemaAdapter()
	if err != nil {
		return err
	}
	keyProvider, err := container.KeyProvider()
	if err != nil {
		return err
	}
	store, err := container.Store()
	if err != nil {
		return err
	}
	jobStore, err := container.JobStore()
	if err != nil {
		return err
	}
	businessMetrics, err := container.Metrics()
	if err != nil {
		return err
	}

	job := orchestrator.RestoreJob{
		BackupPath:      path,
		IntegritySecret: []byte(cfg.IntegritySecret),
	}
	deps := orchestrator.RestoreDeps{
		Adapter:         adapter,
		KeyWrapper:      keyProvider,
		Store:           store,
		IntegritySecret: []byte(cfg.IntegritySecret),
		ToolVersion:     toolVersion,
		Metrics:         businessMetrics,
	}

	jobID := recordJobStart(ctx, jobStore, logger, jobstore.KindRestore, path)
	startedAt := time.Now()

	state, err := orchestrator.Restore(ctx, job, deps)
	if err != nil {
		logger.Error("restore failed", "state", state, "error", err)
		recordJobFinish(ctx, jobStore, logger, jobID, string(state), nil, err)
		return err
	}

	recordJobFinish(ctx, jobStore, logger, jobID, string(state), nil, nil)
	printf("restore %s complete: job_id=%s path=%s duration=%s\n", state, jobID, path, time.Since(startedAt).Round(time.Millisecond))
	return nil
}
