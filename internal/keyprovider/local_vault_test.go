package keyprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalVault_GeneratesKeyPairOnFirstUse(t *testing.T) {
	dir := t.TempDir()
	vault := NewLocalVault(dir, "correct horse battery staple")

	dataKey := make([]byte, 32)
	wrapped, err := vault.Wrap(dataKey)
	require.NoError(t, err)
	assert.NotEmpty(t, wrapped)

	params := vault.PublicParams()
	assert.Equal(t, RSAOAEPSHA256, params.Algorithm)
	assert.Equal(t, 4096, params.KeySize)
}

func TestLocalVault_WrapUnwrapRoundTrip(t *testing.T) {
	dir := t.TempDir()
	vault := NewLocalVault(dir, "hunter2")

	dataKey := []byte("0123456789abcdef0123456789abcdef")[:32]
	wrapped, err := vault.Wrap(dataKey)
	require.NoError(t, err)

	unwrapped, err := vault.Unwrap(wrapped)
	require.NoError(t, err)
	assert.Equal(t, dataKey, unwrapped)
}

func TestLocalVault_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	dataKey := make([]byte, 32)

	first := NewLocalVault(dir, "shared-password")
	wrapped, err := first.Wrap(dataKey)
	require.NoError(t, err)

	second := NewLocalVault(dir, "shared-password")
	unwrapped, err := second.Unwrap(wrapped)
	require.NoError(t, err)
	assert.Equal(t, dataKey, unwrapped)
}

func TestLocalVault_WrongPasswordFails(t *testing.T) {
	dir := t.TempDir()
	dataKey := make([]byte, 32)

	first := NewLocalVault(dir, "correct-password")
	wrapped, err := first.Wrap(dataKey)
	require.NoError(t, err)

	second := NewLocalVault(dir, "wrong-password")
	_, err = second.Unwrap(wrapped)
	assert.ErrorIs(t, err, ErrKeyAccessDenied)
}
