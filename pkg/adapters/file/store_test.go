package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/companion/pkg/adapters/file"
	"github.com/aretw0/companion/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunBlobStoreContract(t, store)
}

func TestFileStore_AtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "companion_app_state", []byte(`{"chats":[]}`)))
	require.NoError(t, store.Save(ctx, "companion_app_state", []byte(`{"chats":[{}]}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "companion_app_state.blob", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, "companion_app_state.blob"))
	require.NoError(t, err)
	assert.Equal(t, `{"chats":[{}]}`, string(data))
}

func TestFileStore_RejectsPathKeys(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"", "../escape", `a\b`, ".."} {
		err := store.Save(ctx, key, []byte("x"))
		assert.ErrorIs(t, err, file.ErrInvalidKey, "key %q", key)
	}
}

func TestFileStore_ListMissingDirectory(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "missing"))
	keys, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}
