package orchestrator

import apperrors "github.com/allisson/backydb/internal/errors"

// errMalformedDump indicates a single-file dump's category markers could
// not be parsed back into per-category segments during restore.
var errMalformedDump = apperrors.Wrap(apperrors.ErrCorruptArchive, "orchestrator: malformed dump: missing category marker")

// ErrEngineVersionIncompatible indicates the manifest's recorded engine
// major version does not match the target database's, per §9's "refusing
// restore across incompatible major versions."
var ErrEngineVersionIncompatible = apperrors.Wrap(apperrors.ErrConfigInvalid, "orchestrator: incompatible engine major version")
