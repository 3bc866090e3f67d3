// Package keyprovider supplies the asymmetric key material BackyDB's
// envelope uses to wrap and unwrap per-artifact data keys (§4.1). Three
// variants share one capability interface: a local RSA vault, a cloud
// keystore, and a cloud KMS — the latter two both delegate to
// gocloud.dev/secrets so the distinction between "returns key material" and
// "never does" is a property of the configured driver, not of BackyDB code.
package keyprovider

import (
	"github.com/allisson/backydb/internal/errors"
)

// Algorithm identifies the asymmetric scheme a Provider uses to wrap data
// keys. RSAOAEPSHA256 is the only scheme LocalVault implements; cloud
// providers report Opaque since the wrapping algorithm is internal to the
// KMS/keystore.
type Algorithm string

const (
	RSAOAEPSHA256 Algorithm = "RSA-OAEP-SHA256"
	Opaque        Algorithm = "opaque"
)

// PublicParams describes a Provider's wrapping scheme without exposing key
// material, surfaced on the manifest's transform record (§6).
type PublicParams struct {
	Algorithm Algorithm
	KeySize   int
}

// Provider is the capability surface every Key Provider variant implements
// (§4.1): wrap a data key for storage, unwrap one previously stored, and
// report its public parameters. It also satisfies envelope.KeyWrapper.
type Provider interface {
	Wrap(dataKey []byte) (wrapped []byte, err error)
	Unwrap(wrapped []byte) (dataKey []byte, err error)
	PublicParams() PublicParams
}

var (
	// ErrKeyNotFound indicates no such key id exists for the provider.
	ErrKeyNotFound = errors.ErrKeyNotFound
	// ErrKeyAccessDenied indicates the caller lacks permission to use the key.
	ErrKeyAccessDenied = errors.ErrKeyAccessDenied
	// ErrKeyAlgorithmUnsupported indicates the requested algorithm/key size
	// combination is not supported by this provider.
	ErrKeyAlgorithmUnsupported = errors.ErrKeyAlgorithmUnsupported
	// ErrProviderUnavailable is transient; callers retry per §4.1 (3x,
	// exponential backoff capped at 8s) via Retry in this package.
	ErrProviderUnavailable = errors.ErrProviderUnavailable
)
