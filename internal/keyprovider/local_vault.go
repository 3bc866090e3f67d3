package keyprovider

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	apperrors "github.com/allisson/backydb/internal/errors"
)

const (
	localVaultKeySize       = 4096
	localVaultPBKDF2Iters   = 310_000
	localVaultSaltSize      = 16
	localVaultFileName      = "vault.key"
	localVaultPrivatePrefix = "BACKYDB ENCRYPTED PRIVATE KEY"
)

// LocalVault is the LocalVault Key Provider variant (§4.1): it reads a
// password-protected RSA private key file from dir, generating a fresh
// 4096-bit key pair on first use. The password is supplied by the caller
// (e.g. from Settings.PrivateKeyPassword, itself sourced from the
// PRIVATE_KEY_PASSWORD environment variable) and never read by the core
// itself.
type LocalVault struct {
	dir      string
	password string

	mu      sync.Mutex
	private *rsa.PrivateKey
}

// NewLocalVault returns a LocalVault rooted at dir, using password to
// encrypt/decrypt the private key file at rest.
func NewLocalVault(dir, password string) *LocalVault {
	return &LocalVault{dir: dir, password: password}
}

// PublicParams reports the RSA-OAEP-SHA256 scheme and configured key size.
func (v *LocalVault) PublicParams() PublicParams {
	return PublicParams{Algorithm: RSAOAEPSHA256, KeySize: localVaultKeySize}
}

// Ensure generates the vault's key pair if none exists yet, otherwise it is
// a no-op. It backs the CLI's `create-local-key` helper command, which lets
// an operator provision the vault ahead of the first backup without
// paying for key generation inline with that run.
func (v *LocalVault) Ensure() error {
	_, err := v.loadOrCreate()
	return err
}

// Wrap RSA-OAEP-SHA256 encrypts dataKey under the vault's public key,
// generating the key pair on first use if none exists yet.
func (v *LocalVault) Wrap(dataKey []byte) ([]byte, error) {
	key, err := v.loadOrCreate()
	if err != nil {
		return nil, err
	}

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, &key.PublicKey, dataKey, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrKeyAlgorithmUnsupported, err.Error())
	}
	return wrapped, nil
}

// Unwrap RSA-OAEP-SHA256 decrypts wrapped back to the data key.
func (v *LocalVault) Unwrap(wrapped []byte) ([]byte, error) {
	key, err := v.loadOrCreate()
	if err != nil {
		return nil, err
	}

	dataKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, key, wrapped, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrIntegrityFailure, "local vault: unwrap failed")
	}
	return dataKey, nil
}

func (v *LocalVault) loadOrCreate() (*rsa.PrivateKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.private != nil {
		return v.private, nil
	}

	path := filepath.Join(v.dir, localVaultFileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		key, decErr := v.decodePrivateKey(data)
		if decErr != nil {
			return nil, decErr
		}
		v.private = key
		return key, nil
	case os.IsNotExist(err):
		key, genErr := v.generateAndPersist(path)
		if genErr != nil {
			return nil, genErr
		}
		v.private = key
		return key, nil
	default:
		return nil, apperrors.Wrap(apperrors.ErrProviderUnavailable, err.Error())
	}
}

func (v *LocalVault) generateAndPersist(path string) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, localVaultKeySize)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err.Error())
	}

	encoded, err := v.encodePrivateKey(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(v.dir, 0o700); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrProviderUnavailable, err.Error())
	}
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrProviderUnavailable, err.Error())
	}

	return key, nil
}

// encodePrivateKey PKCS#8-marshals key, then AES-256-GCM-encrypts it under
// a PBKDF2-derived key and wraps the result in a PEM block so the file
// stays diagnosable with standard tooling.
func (v *LocalVault) encodePrivateKey(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err.Error())
	}

	salt := make([]byte, localVaultSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err.Error())
	}

	aead, err := v.aeadFromPassword(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err.Error())
	}

	ciphertext := aead.Seal(nil, nonce, der, nil)

	block := &pem.Block{
		Type: localVaultPrivatePrefix,
		Headers: map[string]string{
			"Salt":  hex.EncodeToString(salt),
			"Nonce": hex.EncodeToString(nonce),
		},
		Bytes: ciphertext,
	}
	return pem.EncodeToMemory(block), nil
}

func (v *LocalVault) decodePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != localVaultPrivatePrefix {
		return nil, apperrors.Wrap(apperrors.ErrCorruptArchive, "local vault: invalid key file")
	}

	salt, err := hex.DecodeString(block.Headers["Salt"])
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCorruptArchive, "local vault: bad salt header")
	}
	nonce, err := hex.DecodeString(block.Headers["Nonce"])
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCorruptArchive, "local vault: bad nonce header")
	}

	aead, err := v.aeadFromPassword(salt)
	if err != nil {
		return nil, err
	}

	der, err := aead.Open(nil, nonce, block.Bytes, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrKeyAccessDenied, "local vault: wrong password or corrupt key file")
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCorruptArchive, err.Error())
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrKeyAlgorithmUnsupported, "local vault: key file is not RSA")
	}
	return rsaKey, nil
}

func (v *LocalVault) aeadFromPassword(salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(v.password), salt, localVaultPBKDF2Iters, 32, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err.Error())
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err.Error())
	}
	return aead, nil
}
