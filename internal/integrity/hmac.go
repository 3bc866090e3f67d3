package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeHMAC keys an HMAC-SHA256 with secret and feeds it the canonical
// manifest form followed by every output's bytes, in the order given
// (§4.5, §9's "canonical form ... excluding the tag field").
func ComputeHMAC(secret []byte, manifestCanonical []byte, outputs [][]byte) Tag {
	mac := hmac.New(sha256.New, secret)
	mac.Write(manifestCanonical)
	for _, out := range outputs {
		mac.Write(out)
	}
	return Tag{Type: HMAC, Value: hex.EncodeToString(mac.Sum(nil))}
}

// VerifyHMAC recomputes the HMAC and compares it against want in constant
// time, returning ErrIntegrityFailure on any mismatch.
func VerifyHMAC(secret []byte, manifestCanonical []byte, outputs [][]byte, want string) error {
	got := ComputeHMAC(secret, manifestCanonical, outputs)

	wantBytes, err := hex.DecodeString(want)
	if err != nil {
		return ErrIntegrityFailure
	}
	gotBytes, err := hex.DecodeString(got.Value)
	if err != nil {
		return ErrIntegrityFailure
	}

	if !hmac.Equal(gotBytes, wantBytes) {
		return ErrIntegrityFailure
	}
	return nil
}
