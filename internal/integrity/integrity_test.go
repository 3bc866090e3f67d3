package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeVerifyHMAC_RoundTrip(t *testing.T) {
	secret := []byte("super-secret-key")
	manifest := []byte(`{"backup_id":"abc"}`)
	outputs := [][]byte{[]byte("tables.sql"), []byte("data.sql")}

	tag := ComputeHMAC(secret, manifest, outputs)
	assert.Equal(t, HMAC, tag.Type)
	assert.NotEmpty(t, tag.Value)

	require.NoError(t, VerifyHMAC(secret, manifest, outputs, tag.Value))
}

func TestVerifyHMAC_WrongSecretFails(t *testing.T) {
	manifest := []byte(`{"backup_id":"abc"}`)
	outputs := [][]byte{[]byte("tables.sql")}

	tag := ComputeHMAC([]byte("secret-one"), manifest, outputs)
	err := VerifyHMAC([]byte("secret-two"), manifest, outputs, tag.Value)
	assert.ErrorIs(t, err, ErrIntegrityFailure)
}

func TestVerifyHMAC_TamperedOutputFails(t *testing.T) {
	secret := []byte("super-secret-key")
	manifest := []byte(`{"backup_id":"abc"}`)
	outputs := [][]byte{[]byte("tables.sql")}

	tag := ComputeHMAC(secret, manifest, outputs)

	tampered := [][]byte{[]byte("tables.sql modified")}
	err := VerifyHMAC(secret, manifest, tampered, tag.Value)
	assert.ErrorIs(t, err, ErrIntegrityFailure)
}

func TestVerifyHMAC_MalformedWantFails(t *testing.T) {
	secret := []byte("super-secret-key")
	manifest := []byte(`{}`)
	outputs := [][]byte{[]byte("x")}

	err := VerifyHMAC(secret, manifest, outputs, "not-hex-zz")
	assert.ErrorIs(t, err, ErrIntegrityFailure)
}

func TestComputeVerifyChecksum_RoundTrip(t *testing.T) {
	outputs := map[string][]byte{
		"tables.sql": []byte("CREATE TABLE departments (id INT);"),
		"data.sql":   []byte("INSERT INTO departments VALUES (1);"),
	}

	tag := ComputeChecksum(outputs)
	assert.Equal(t, Checksum, tag.Type)
	require.Len(t, tag.PerKey, 2)

	require.NoError(t, VerifyChecksum(outputs, tag.PerKey))
}

func TestVerifyChecksum_TamperedFileFails(t *testing.T) {
	outputs := map[string][]byte{
		"tables.sql": []byte("CREATE TABLE departments (id INT);"),
	}
	tag := ComputeChecksum(outputs)

	tampered := map[string][]byte{
		"tables.sql": []byte("DROP TABLE departments;"),
	}
	err := VerifyChecksum(tampered, tag.PerKey)
	assert.ErrorIs(t, err, ErrIntegrityFailure)
}

func TestVerifyChecksum_MissingFileFails(t *testing.T) {
	outputs := map[string][]byte{
		"tables.sql": []byte("a"),
		"data.sql":   []byte("b"),
	}
	tag := ComputeChecksum(outputs)

	incomplete := map[string][]byte{
		"tables.sql": []byte("a"),
	}
	err := VerifyChecksum(incomplete, tag.PerKey)
	assert.ErrorIs(t, err, ErrIntegrityFailure)
}

func TestVerifyChecksum_ExtraFileFails(t *testing.T) {
	outputs := map[string][]byte{
		"tables.sql": []byte("a"),
	}
	tag := ComputeChecksum(outputs)

	extra := map[string][]byte{
		"tables.sql": []byte("a"),
		"views.sql":  []byte("b"),
	}
	err := VerifyChecksum(extra, tag.PerKey)
	assert.ErrorIs(t, err, ErrIntegrityFailure)
}
