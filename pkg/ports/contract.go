package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/companion/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBlobStoreContract runs a suite of tests to verify that a BlobStore implementation
// adheres to the defined interface contract.
func RunBlobStoreContract(t *testing.T, store BlobStore) {
	ctx := context.Background()
	key := "contract-test-" + time.Now().Format("20060102150405.000000")

	t.Run("Save and Load", func(t *testing.T) {
		payload := []byte(`{"chats":[],"openAiApiSettings":{"apiKey":"k"}}`)

		err := store.Save(ctx, key, payload)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, payload, loaded)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, []byte("first")))
		require.NoError(t, store.Save(ctx, key, []byte("second")))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), loaded)
	})

	t.Run("Isolation", func(t *testing.T) {
		payload := []byte("original")
		require.NoError(t, store.Save(ctx, key, payload))
		payload[0] = 'X'

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), loaded, "Store must not alias caller buffers")

		loaded[0] = 'Y'
		again, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), again)
	})

	t.Run("Binary Payload", func(t *testing.T) {
		payload := []byte{0x00, 0xff, 0x10, 0x89, 'P', 'N', 'G', 0x00}
		require.NoError(t, store.Save(ctx, key+"-bin", payload))
		defer func() { _ = store.Delete(ctx, key+"-bin") }()

		loaded, err := store.Load(ctx, key+"-bin")
		require.NoError(t, err)
		assert.Equal(t, payload, loaded)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrBlobNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, []byte("x")))

		err := store.Delete(ctx, key)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrBlobNotFound, "Load after Delete should return ErrBlobNotFound")

		assert.NoError(t, store.Delete(ctx, key), "Deleting a missing key is not an error")
	})

	t.Run("List", func(t *testing.T) {
		k1 := key + "-1"
		k2 := key + "-2"
		require.NoError(t, store.Save(ctx, k1, []byte("1")))
		require.NoError(t, store.Save(ctx, k2, []byte("2")))
		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})

	t.Run("Concurrent Saves", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, store.Save(ctx, key, []byte(fmt.Sprintf("value-%d", i))))
			}(i)
		}
		wg.Wait()

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Regexp(t, `^value-\d$`, string(loaded), "Concurrent writes must never interleave")
		_ = store.Delete(ctx, key)
	})
}
