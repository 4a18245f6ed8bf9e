package cart

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

// Loader reads the cart the backend last accepted.
type Loader interface {
	LoadCart(ctx context.Context, cuit string) ([]domain.CartItem, error)
}

// HydrationSource tells where the restored items came from.
type HydrationSource string

const (
	HydratedFromBackend  HydrationSource = "backend"
	HydratedFromSnapshot HydrationSource = "snapshot"
	HydratedEmpty        HydrationSource = "empty"
)

// Hydrate restores the cart at session start: the backend copy first, then
// the local snapshot. Restored items are not synced back. When neither source
// answers the store is left as it is and nothing is sent, so a failed load
// never overwrites what the backend last accepted. It never fails; snapshot
// may be nil.
func Hydrate(ctx context.Context, store *Store, loader Loader, snapshot SnapshotCache, cuit string, logger *zap.Logger) HydrationSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cuit == "" {
		return HydratedEmpty
	}

	items, err := loader.LoadCart(ctx, cuit)
	if err == nil {
		store.restore(items)
		logger.Debug("cart hydrated from backend", zap.Int("items", len(items)))
		return HydratedFromBackend
	}
	logger.Debug("cart load failed", zap.Error(err))

	if snapshot != nil {
		items, err = snapshot.Get(ctx, cuit)
		if err == nil {
			store.restore(items)
			logger.Info("cart hydrated from local snapshot", zap.Int("items", len(items)))
			return HydratedFromSnapshot
		}
		if !errors.Is(err, ErrSnapshotMiss) {
			logger.Debug("cart snapshot read failed", zap.Error(err))
		}
	}
	return HydratedEmpty
}
