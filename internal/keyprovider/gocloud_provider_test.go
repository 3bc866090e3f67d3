package keyprovider

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGocloudProvider_WrapUnwrapRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	keyURI := "base64key://" + base64.StdEncoding.EncodeToString(key)

	provider, err := OpenGocloudProvider(context.Background(), keyURI, 5*time.Second)
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, Opaque, provider.PublicParams().Algorithm)

	dataKey := []byte("a 32 byte long data key!!!!!!!!!")
	wrapped, err := provider.Wrap(dataKey)
	require.NoError(t, err)
	assert.NotEqual(t, dataKey, wrapped)

	unwrapped, err := provider.Unwrap(wrapped)
	require.NoError(t, err)
	assert.Equal(t, dataKey, unwrapped)
}

func TestGocloudProvider_OpenInvalidURI(t *testing.T) {
	_, err := OpenGocloudProvider(context.Background(), "not-a-real-scheme://x", time.Second)
	assert.Error(t, err)
}
