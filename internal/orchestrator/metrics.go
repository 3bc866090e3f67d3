package orchestrator

import (
	"context"
	"time"

	"github.com/allisson/backydb/internal/metrics"
)

// recordStage reports one pipeline stage's outcome to m: an operation count
// and duration under domain ("backup" or "restore") and the stage name
// ("extract", "compress", "encrypt", "store", "manifest", "fetch",
// "integrity_check", "decrypt", "decompress", "apply"), status "success" or
// "error". A nil m is tolerated so callers never need an
// `if deps.Metrics != nil` guard at every stage boundary, the same
// nil-tolerant shape cmd/backy/jobs.go uses for a nil jobstore.Store.
func recordStage(ctx context.Context, m metrics.BusinessMetrics, domain, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RecordOperation(ctx, domain, operation, status)
	m.RecordDuration(ctx, domain, operation, time.Since(start), status)
}
