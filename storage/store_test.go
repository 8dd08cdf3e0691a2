package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"genix/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runQuotaStoreContract exercises the behavior every QuotaStore shares
func runQuotaStoreContract(t *testing.T, store QuotaStore) {
	t.Helper()
	ctx := context.Background()
	uid := "user-" + uuid.NewString()
	created := time.UnixMilli(1_700_000_000_000)

	t.Run("missing record", func(t *testing.T) {
		_, err := store.GetQuota(ctx, uid)
		assert.ErrorIs(t, err, ErrQuotaNotFound)

		_, err = store.ConsumeGeneration(ctx, uid, created)
		assert.ErrorIs(t, err, ErrQuotaNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, store.SetQuota(ctx, models.NewUserQuota(uid, 5, created)))

		got, err := store.GetQuota(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, models.NewUserQuota(uid, 5, created), got)
	})

	t.Run("consume past allowance", func(t *testing.T) {
		var last time.Time
		for i := 1; i <= 6; i++ {
			last = created.Add(time.Duration(i) * time.Minute)
			q, err := store.ConsumeGeneration(ctx, uid, last)
			require.NoError(t, err)
			assert.Equal(t, 5-i, q.RemainingGenerations)
			assert.Equal(t, i, q.TotalGenerations)
		}

		got, err := store.GetQuota(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, -1, got.RemainingGenerations)
		assert.Equal(t, 6, got.TotalGenerations)
		assert.Equal(t, last.UnixMilli(), got.LastGeneratedAt)
		assert.Equal(t, last.UnixMilli(), got.UpdatedAt)
		assert.Equal(t, created.UnixMilli(), got.CreatedAt)
	})

	t.Run("set replaces", func(t *testing.T) {
		reset := models.NewUserQuota(uid, 10, created.Add(time.Hour))
		require.NoError(t, store.SetQuota(ctx, reset))

		got, err := store.GetQuota(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, reset, got)
	})
}

func TestMemoryQuotaStore(t *testing.T) {
	runQuotaStoreContract(t, NewMemoryQuotaStore())
}

func TestMemoryQuotaStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryQuotaStore()
	require.NoError(t, store.SetQuota(ctx, models.NewUserQuota("u1", 5, time.Now())))

	got, err := store.GetQuota(ctx, "u1")
	require.NoError(t, err)
	got.RemainingGenerations = 100

	again, err := store.GetQuota(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, again.RemainingGenerations)
}

func TestMemoryQuotaStore_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryQuotaStore()
	require.NoError(t, store.SetQuota(ctx, models.NewUserQuota("u1", 5, time.Now())))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ConsumeGeneration(ctx, "u1", time.Now())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.GetQuota(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.TotalGenerations)
	assert.Equal(t, -45, got.RemainingGenerations)
}

func TestCachedQuotaStore_WithoutRedisPassesThrough(t *testing.T) {
	runQuotaStoreContract(t, NewCachedQuotaStore(NewMemoryQuotaStore(), nil, time.Minute))
}

func TestGetQuery(t *testing.T) {
	for _, key := range []string{
		"quota.create_user_quotas_table",
		"quota.get_quota",
		"quota.upsert_quota",
		"quota.consume_generation",
	} {
		assert.NotEmpty(t, GetQuery(key), key)
	}
	assert.Empty(t, GetQuery("quota.missing"))
}
