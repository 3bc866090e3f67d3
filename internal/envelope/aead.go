package envelope

// AEAD is the authenticated-encryption interface both supported ciphers
// implement, mirroring the teacher's crypto/service.AEAD.
type AEAD interface {
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// NewCipher is a factory that returns the AEAD implementation for alg,
// mirroring the teacher's AEADManagerService.CreateCipher.
func NewCipher(key []byte, alg Algorithm) (AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	switch alg {
	case AESGCM:
		return newAESGCM(key)
	case ChaCha20:
		return newChaCha20Poly1305(key)
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}
