package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/companion/pkg/adapters/memory"
	"github.com/aretw0/companion/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunBlobStoreContract(t, store)
}

func TestMemoryLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	locker := memory.NewLocker()

	unlock, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "k", time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "Second Lock must wait for the first")

	other, err := locker.Lock(ctx, "other", time.Second)
	require.NoError(t, err, "Different keys do not contend")
	require.NoError(t, other(ctx))

	require.NoError(t, unlock(ctx))
	require.NoError(t, unlock(ctx), "Unlock is idempotent")

	again, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}
