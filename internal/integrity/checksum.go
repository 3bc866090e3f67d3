package integrity

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeChecksum hashes each named output independently with SHA-256,
// populating Tag.PerKey rather than a single aggregate value (§4.5).
func ComputeChecksum(outputs map[string][]byte) Tag {
	perKey := make(map[string]string, len(outputs))
	for name, data := range outputs {
		sum := sha256.Sum256(data)
		perKey[name] = hex.EncodeToString(sum[:])
	}
	return Tag{Type: Checksum, PerKey: perKey}
}

// VerifyChecksum recomputes each output's SHA-256 and compares it against
// want, returning ErrIntegrityFailure on any missing or mismatched entry.
func VerifyChecksum(outputs map[string][]byte, want map[string]string) error {
	if len(want) != len(outputs) {
		return ErrIntegrityFailure
	}

	got := ComputeChecksum(outputs)
	for name, wantSum := range want {
		gotSum, ok := got.PerKey[name]
		if !ok || !checksumEqual(gotSum, wantSum) {
			return ErrIntegrityFailure
		}
	}
	return nil
}

// checksumEqual compares hex-encoded SHA-256 digests. Constant-time
// comparison isn't load-bearing here (checksums aren't secrets, unlike the
// HMAC tag), but decoding first catches malformed hex instead of doing a
// misleading string compare.
func checksumEqual(got, want string) bool {
	gotBytes, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	wantBytes, err := hex.DecodeString(want)
	if err != nil {
		return false
	}
	if len(gotBytes) != len(wantBytes) {
		return false
	}
	for i := range gotBytes {
		if gotBytes[i] != wantBytes[i] {
			return false
		}
	}
	return true
}
