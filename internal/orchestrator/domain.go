package orchestrator

import (
	"github.com/allisson/backydb/internal/envelope"
	"github.com/allisson/backydb/internal/metrics"
	"github.com/allisson/backydb/internal/schemaengine"
	"github.com/allisson/backydb/internal/storage"
)

// State is one node of the backup or restore state machine (§4.8, §4.9).
// A run transitions through its states in order; any state may instead
// transition to StateFailed.
type State string

const (
	StateValidated         State = "validated"
	StateSchemaExtracting  State = "schema_extracting"
	StateCompressing       State = "compressing"
	StateEncrypting        State = "encrypting"
	StateStoring           State = "storing"
	StateManifesting       State = "manifesting"
	StateFetching          State = "fetching"
	StateIntegrityChecking State = "integrity_checking"
	StateDecrypting        State = "decrypting"
	StateDecompressing     State = "decompressing"
	StateApplying          State = "applying"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// defaultFanOut is the per-artifact pipeline concurrency when none is
// configured (§5: "up to a configured fan-out (default 4)").
const defaultFanOut = 4

// manifestName is the fixed object name the Manifest is stored under,
// alongside whatever artifact file(s) a job produces.
const manifestName = "manifest.json"

// BackupDeps collects the collaborators a Backup run needs beyond the
// BackupJob description itself: one instance per component in §2's table.
type BackupDeps struct {
	Adapter         schemaengine.Adapter
	KeyWrapper      envelope.KeyWrapper
	KeyProviderName string
	EnvelopeAlg     envelope.Algorithm
	Store           storage.Store
	IntegritySecret []byte
	ToolVersion     string
	FanOut          int

	// Metrics records per-stage operation counts/durations (domain
	// "backup"). A nil Metrics is tolerated; recordStage is a no-op in
	// that case, the same nil-tolerant-decorator shape cmd/backy/jobs.go
	// uses for a nil jobstore.Store.
	Metrics metrics.BusinessMetrics
}

func (d BackupDeps) fanOut() int {
	if d.FanOut <= 0 {
		return defaultFanOut
	}
	return d.FanOut
}

// RestoreDeps collects the collaborators a Restore run needs.
type RestoreDeps struct {
	Adapter    schemaengine.Adapter
	KeyWrapper envelope.KeyWrapper
	Store      storage.Store

	// IntegritySecret is not read by Restore: the HMAC secret used to
	// verify a manifest of integrity type "hmac" is RestoreJob.IntegritySecret.
	IntegritySecret []byte

	// ToolVersion is this build's semver. Restore does not compare it with
	// the manifest's tool_version; engine major-version compatibility is
	// checked by checkEngineCompatibility against Adapter.EngineVersion.
	ToolVersion string

	// Metrics records per-stage operation counts/durations (domain
	// "restore"). A nil Metrics is tolerated.
	Metrics metrics.BusinessMetrics
}
