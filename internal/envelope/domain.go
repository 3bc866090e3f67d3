// Package envelope implements BackyDB's hybrid-encryption container: a
// symmetric data key, generated fresh per artifact, wraps the artifact
// bytes under AES-256-GCM (or ChaCha20-Poly1305) while the data key itself
// is wrapped by a keyprovider.Provider (RSA-OAEP for local vaults, a cloud
// KMS/keystore call otherwise).
package envelope

import (
	"github.com/allisson/backydb/internal/errors"
)

// Algorithm identifies the AEAD cipher an Envelope's alg_id byte selects.
type Algorithm uint8

const (
	// AESGCM is alg_id 1: AES-256-GCM, paired with RSA-OAEP-SHA256 key
	// wrapping for LocalVault providers (§6 bit-exact format).
	AESGCM Algorithm = 1
	// ChaCha20 is alg_id 2: ChaCha20-Poly1305, the alternate AEAD the
	// manifest's transform record may reference (§4.2 expansion note).
	ChaCha20 Algorithm = 2
)

const (
	// Magic is the 4-byte envelope header identifying a BackyDB envelope.
	Magic = "BKY1"
	// Version is the current envelope format version.
	Version uint8 = 1
	// NonceSize is the AES-GCM/ChaCha20-Poly1305 nonce length in bytes.
	NonceSize = 12
	// KeySize is the symmetric data key length in bytes (256 bits).
	KeySize = 32
	// TagSize is the AEAD authentication tag length in bytes.
	TagSize = 16
	// ChunkSize is the size of the buffered read/write unit used while
	// assembling or disassembling an artifact (§5: "AEAD is applied in
	// chunks of 64 KiB").
	ChunkSize = 64 * 1024
)

// HeaderSize is the fixed-size prefix before the wrapped key bytes:
// magic(4) + version(1) + alg_id(1) + nonce(12) + wrapped_len(4).
const HeaderSize = 4 + 1 + 1 + NonceSize + 4

var (
	// ErrMagicMismatch indicates the input does not start with "BKY1".
	ErrMagicMismatch = errors.Wrap(errors.ErrCorruptArchive, "envelope: bad magic")
	// ErrUnsupportedVersion indicates the envelope version byte is unknown.
	ErrUnsupportedVersion = errors.Wrap(errors.ErrCorruptArchive, "envelope: unsupported version")
	// ErrUnsupportedAlgorithm indicates the alg_id byte is not recognized.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrKeyAlgorithmUnsupported, "envelope: unsupported algorithm")
	// ErrTruncated indicates the input is shorter than the declared header/body.
	ErrTruncated = errors.Wrap(errors.ErrCorruptArchive, "envelope: truncated input")
	// ErrInvalidKeySize indicates a data key that is not exactly KeySize bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrConfigInvalid, "envelope: invalid key size")
	// ErrAuthenticationFailed indicates the AEAD tag did not verify; per §4.2
	// this must report zero plaintext bytes and map to IntegrityFailure.
	ErrAuthenticationFailed = errors.Wrap(errors.ErrIntegrityFailure, "envelope: authentication failed")
)

// KeyWrapper is the capability an Envelope needs from a Key Provider:
// wrap a freshly generated data key for storage, or unwrap one previously
// stored. keyprovider.Provider satisfies this interface; it is declared
// here (rather than imported) so envelope has no dependency on keyprovider,
// matching the "leaves first" component ordering in §2.
type KeyWrapper interface {
	Wrap(dataKey []byte) (wrapped []byte, err error)
	Unwrap(wrapped []byte) (dataKey []byte, err error)
}
