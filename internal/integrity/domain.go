// Package integrity computes and verifies the tamper-evidence tag BackyDB
// stamps onto a backup (§4.5): either an HMAC-SHA256 over the manifest's
// canonical form concatenated with every output's bytes, keyed by a
// caller-supplied secret, or a per-file SHA-256 checksum.
package integrity

import (
	"github.com/allisson/backydb/internal/errors"
)

// Type selects the integrity scheme §6's integrity_type configuration key
// recognizes.
type Type string

const (
	HMAC     Type = "hmac"
	Checksum Type = "checksum"
)

// Tag is the computed integrity value: for HMAC, a single tag over the
// manifest-plus-outputs; for Checksum, one SHA-256 value per named output.
type Tag struct {
	Type   Type
	Value  string            // hex-encoded HMAC, only set for Type == HMAC
	PerKey map[string]string // name -> hex-encoded SHA-256, only set for Type == Checksum
}

// ErrIntegrityFailure indicates a recomputed tag does not match the stored
// one; per §4.5 the restore must abort before touching the database.
var ErrIntegrityFailure = errors.Wrap(errors.ErrIntegrityFailure, "integrity: tag mismatch")
