package storage

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetRoundTrip(t *testing.T) {
	store, err := OpenLocalStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	loc, err := store.Put(ctx, "backup/tables.sql", strings.NewReader("CREATE TABLE t (id INT);"))
	require.NoError(t, err)
	assert.Equal(t, "backup/tables.sql", loc)

	rc, err := store.Get(ctx, "backup/tables.sql")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE t (id INT);", string(data))
}

func TestLocalStore_GetMissingReturnsNotFound(t *testing.T) {
	store, err := OpenLocalStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(context.Background(), "does-not-exist.sql")
	assert.ErrorIs(t, err, ErrStorageNotFound)
}

func TestLocalStore_List(t *testing.T) {
	store, err := OpenLocalStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for _, name := range []string{"backup/tables.sql", "backup/data.sql", "other/skip.sql"} {
		_, err := store.Put(ctx, name, strings.NewReader("x"))
		require.NoError(t, err)
	}

	names, err := store.List(ctx, "backup/")
	require.NoError(t, err)
	sort.Strings(names)
	assert.Equal(t, []string{"backup/data.sql", "backup/tables.sql"}, names)
}

func TestLocalStore_Delete(t *testing.T) {
	store, err := OpenLocalStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.Put(ctx, "gone.sql", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "gone.sql"))
	_, err = store.Get(ctx, "gone.sql")
	assert.ErrorIs(t, err, ErrStorageNotFound)

	// deleting an already-absent name is not an error.
	require.NoError(t, store.Delete(ctx, "gone.sql"))
}
