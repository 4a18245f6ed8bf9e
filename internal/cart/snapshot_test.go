package cart

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

// setupTestRedis creates a miniredis server and returns a snapshot cache on top of it
func setupTestRedis(t *testing.T) (*RedisSnapshotCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSnapshotCache(client), mr
}

func TestSnapshot_SetAndGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	items := []domain.CartItem{
		{ProductID: 10, Quantity: 3, PriceUnit: 100, PaymentTermID: 21},
		domain.NewTransportItem("", 20),
	}
	require.NoError(t, cache.Set(ctx, "20123456789", items))

	stored, err := mr.Get(snapshotKey("20123456789"))
	require.NoError(t, err)
	var snap snapshot
	require.NoError(t, json.Unmarshal([]byte(stored), &snap))
	assert.Equal(t, "20123456789", snap.CUIT)

	got, err := cache.Get(ctx, "20123456789")
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestSnapshot_Miss(t *testing.T) {
	cache, _ := setupTestRedis(t)
	_, err := cache.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrSnapshotMiss)
}

func TestSnapshot_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(snapshotKey("20123456789"), `{"items": [`))

	_, err := cache.Get(context.Background(), "20123456789")
	assert.ErrorContains(t, err, "unmarshal cart snapshot failed")
}

func TestSnapshot_TTL(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, cache.Set(context.Background(), "20123456789", nil))

	ttl := mr.TTL(snapshotKey("20123456789"))
	assert.GreaterOrEqual(t, ttl, 7*24*time.Hour)
	assert.Less(t, ttl, 7*24*time.Hour+time.Hour)
}

func TestSnapshot_Delete(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "20123456789", nil))
	require.True(t, mr.Exists(snapshotKey("20123456789")))

	require.NoError(t, cache.Delete(ctx, "20123456789"))
	assert.False(t, mr.Exists(snapshotKey("20123456789")))
}

func TestSyncer_WritesSnapshot(t *testing.T) {
	cache, _ := setupTestRedis(t)
	syncer := NewSyncer(&fakeSaver{err: errors.New("offline")}, "20123456789", SyncOptions{Workers: 1, Snapshot: cache}, nil)
	store := NewStore(syncer, nil)

	require.NoError(t, store.AddItem(domain.Product{ProductID: 10, PriceUnit: 100}))
	syncer.Close()

	items, err := cache.Get(context.Background(), "20123456789")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(10), items[0].ProductID)
}
