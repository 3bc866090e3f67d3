package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/backydb/internal/jobstore"
)

// recordJobStart inserts a backy_jobs row when store is non-nil (a metadata
// database is configured); it is a no-op otherwise, since job bookkeeping
// is an operability add-on, never a pipeline dependency.
func recordJobStart(ctx context.Context, store jobstore.Store, logger *slog.Logger, kind jobstore.Kind, prefix string) uuid.UUID {
	id := uuid.Must(uuid.NewV7())
	if store == nil {
		return id
	}
	if err := store.Start(ctx, id, kind, prefix, time.Now().UTC()); err != nil {
		logger.Warn("failed to record job start", "error", err)
	}
	return id
}

func recordJobFinish(ctx context.Context, store jobstore.Store, logger *slog.Logger, id uuid.UUID, state string, manifest any, jobErr error) {
	if store == nil {
		return
	}
	if err := store.Finish(ctx, id, state, time.Now().UTC(), manifest, jobErr); err != nil {
		logger.Warn("failed to record job finish", "error", err)
	}
}
