// Package orchestrator drives the backup and restore state machines
// (§4.8, §4.9), wiring together the schema engine, compressor, envelope,
// integrity, storage, and manifest components in the order the mode
// matrix requires.
package orchestrator

import (
	validation "github.com/jellydator/validation"

	"github.com/allisson/backydb/internal/compressor"
	"github.com/allisson/backydb/internal/integrity"
	"github.com/allisson/backydb/internal/schemaengine"
	appValidation "github.com/allisson/backydb/internal/validation"
)

// BackupJob describes one backup run's inputs (§6's database/compression/
// security/integrity/storage configuration keys, scoped to a job).
type BackupJob struct {
	Features       schemaengine.Features
	MultipleFiles  bool
	Compress       bool
	CompressType   compressor.Type
	Encrypt        bool
	IntegrityCheck bool
	IntegrityType  integrity.Type
	KeySize        int
	StoragePrefix  string
}

// Validate checks the job for internal consistency before any state
// transition begins (ErrConfigInvalid, §7).
func (j BackupJob) Validate() error {
	err := validation.ValidateStruct(&j,
		validation.Field(&j.CompressType, validation.When(j.Compress, appValidation.CompressionType)),
		validation.Field(&j.IntegrityType, validation.When(j.IntegrityCheck, appValidation.IntegrityType)),
		validation.Field(&j.KeySize, validation.When(j.Encrypt, appValidation.KeySize)),
		validation.Field(&j.StoragePrefix, appValidation.NotBlank),
	)
	return appValidation.WrapValidationError(err)
}

// RestoreJob describes one restore run's inputs.
type RestoreJob struct {
	BackupPath      string
	IntegritySecret []byte
	KeyWrapperURI   string
}

// Validate checks the job before Fetching begins.
func (j RestoreJob) Validate() error {
	err := validation.ValidateStruct(&j,
		validation.Field(&j.BackupPath, appValidation.NotBlank),
	)
	return appValidation.WrapValidationError(err)
}
