// Package validation provides custom validation rules shared by BackupJob
// and RestoreJob construction.
package validation

import (
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/backydb/internal/errors"
)

// WrapValidationError wraps a jellydator/validation error as the domain
// ErrConfigInvalid sentinel so callers can errors.Is against it uniformly.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrConfigInvalid, err.Error())
}

// NotBlank validates that a string is not empty after trimming whitespace.
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// KeySize validates that an RSA key size is one of the sizes §6 recognizes.
var KeySize = validation.By(func(value interface{}) error {
	size, ok := value.(int)
	if !ok {
		return validation.NewError("validation_key_size_type", "must be an int")
	}
	switch size {
	case 2048, 3072, 4096:
		return nil
	default:
		return validation.NewError("validation_key_size", "must be one of 2048, 3072, 4096")
	}
})

// CompressionType validates a compression_type configuration value. Built
// with NewStringRuleWithError rather than By+value.(string), because the
// validated field is the named type compressor.Type, not string: By's
// InlineRule hands the rule the field's reflect.Value.Interface() with its
// original dynamic type preserved, so a plain type assertion to string
// would always fail. NewStringRuleWithError's EnsureString instead checks
// reflect.Kind() == String, so it accepts compressor.Type the same way
// NotBlank above accepts any named string type.
var CompressionType = validation.NewStringRuleWithError(
	func(s string) bool {
		switch s {
		case "", "zip", "tar":
			return true
		default:
			return false
		}
	},
	validation.NewError("validation_compression_type", "must be one of zip, tar"),
)

// IntegrityType validates an integrity_type configuration value. Same
// named-type concern as CompressionType: the validated field is
// integrity.Type, so this also goes through NewStringRuleWithError.
var IntegrityType = validation.NewStringRuleWithError(
	func(s string) bool {
		switch s {
		case "", "hmac", "checksum":
			return true
		default:
			return false
		}
	},
	validation.NewError("validation_integrity_type", "must be one of hmac, checksum"),
)
