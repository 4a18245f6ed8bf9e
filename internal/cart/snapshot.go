package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

var ErrSnapshotMiss = errors.New("cart snapshot miss")

// SnapshotCache keeps a local copy of the last cart state per CUIT, used when
// the backend cannot return the cart at startup.
type SnapshotCache interface {
	Get(ctx context.Context, cuit string) ([]domain.CartItem, error)
	Set(ctx context.Context, cuit string, items []domain.CartItem) error
	Delete(ctx context.Context, cuit string) error
}

type snapshot struct {
	CUIT    string            `json:"cuit"`
	Items   []domain.CartItem `json:"items"`
	SavedAt time.Time         `json:"saved_at"`
}

func NewRedisSnapshotCache(client *redis.Client) *RedisSnapshotCache {
	return &RedisSnapshotCache{
		client:  client,
		baseTTL: 7 * 24 * time.Hour,
	}
}

type RedisSnapshotCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisSnapshotCache) Get(ctx context.Context, cuit string) ([]domain.CartItem, error) {
	data, err := r.client.Get(ctx, snapshotKey(cuit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal cart snapshot failed: %w", err)
	}
	return snap.Items, nil
}

func (r RedisSnapshotCache) Set(ctx context.Context, cuit string, items []domain.CartItem) error {
	data, err := json.Marshal(snapshot{CUIT: cuit, Items: items, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal cart snapshot failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(60)) * time.Minute
	if err := r.client.Set(ctx, snapshotKey(cuit), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisSnapshotCache) Delete(ctx context.Context, cuit string) error {
	if err := r.client.Del(ctx, snapshotKey(cuit)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func snapshotKey(cuit string) string {
	return fmt.Sprintf("cart:snapshot:%s", cuit)
}
