package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/allisson/backydb/internal/compressor"
	"github.com/allisson/backydb/internal/envelope"
	"github.com/allisson/backydb/internal/integrity"
	"github.com/allisson/backydb/internal/jobstore"
	"github.com/allisson/backydb/internal/orchestrator"
	"github.com/allisson/backydb/internal/schemaengine"
)

func backupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Extract, optionally compress/encrypt, and store a database backup",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Storage prefix (job id) the artifacts and manifest are written under",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runBackup(ctx, cmd.String("prefix"))
		},
	}
}

func runBackup(ctx context.Context, prefix string) error {
	container, logger := loadContainer()
	defer closeContainer(container, logger)
	cfg := container.Config()

	if prefix == "" {
		prefix = "backup"
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

	job := orchestrator.BackupJob{
		Features:       featuresFromConfig(cfg.Features),
		MultipleFiles:  cfg.MultipleFiles,
		Compress:       cfg.Compression,
		CompressType:   compressor.Type(cfg.CompressionType),
		Encrypt:        cfg.Encryption,
		IntegrityCheck: cfg.IntegrityCheck,
		IntegrityType:  integrity.Type(cfg.IntegrityType),
		KeySize:        cfg.KeySize,
		StoragePrefix:  prefix,
	}

	deps := orchestrator.BackupDeps{
		Adapter:         adapter,
		KeyWrapper:      keyProvider,
		KeyProviderName: cfg.Provider,
		EnvelopeAlg:     envelope.AESGCM,
		Store:           store,
		IntegritySecret: []byte(cfg.IntegritySecret),
		ToolVersion:     toolVersion,
		FanOut:          cfg.FanOut,
		Metrics:         businessMetrics,
	}

	jobID := recordJobStart(ctx, jobStore, logger, jobstore.KindBackup, prefix)
	startedAt := time.Now()

	m, state, err := orchestrator.Backup(ctx, job, deps)
	if err != nil {
		logger.Error("backup failed", "state", state, "error", err)
		recordJobFinish(ctx, jobStore, logger, jobID, string(state), nil, err)
		return err
	}

	recordJobFinish(ctx, jobStore, logger, jobID, string(state), m, nil)
	printf("backup %s complete: job_id=%s backup_id=%s prefix=%s artifacts=%d duration=%s\n",
		state, jobID, m.BackupID, prefix, len(m.Artifacts), time.Since(startedAt).Round(time.Millisecond))
	return nil
}

func featuresFromConfig(f map[string]bool) schemaengine.Features {
	return schemaengine.Features{
		Tables:     f["tables"],
		Data:       f["data"],
		Views:      f["views"],
		Functions:  f["functions"],
		Procedures: f["procedures"],
		Triggers:   f["triggers"],
		Events:     f["events"],
	}
}
