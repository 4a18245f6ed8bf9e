// Package stock checks cart lines against the backend stock flags before checkout.
package stock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

const defaultConcurrency = 4

// StateFetcher returns the stock flag of one product.
type StateFetcher interface {
	ProductStockState(ctx context.Context, productID int64) (domain.StockState, error)
}

// Report is the stock state of every product in the cart at CheckedAt.
type Report struct {
	States    map[int64]domain.StockState
	CheckedAt time.Time
}

// Blocking returns the ids of the products that must be removed, ascending.
func (r Report) Blocking() []int64 {
	var ids []int64
	for id, state := range r.States {
		if state.Blocks() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r Report) Blocks(productID int64) bool {
	return r.States[productID].Blocks()
}

// Covers reports whether the report was built for exactly the products in items.
func (r Report) Covers(items []domain.CartItem) bool {
	ids := productIDs(items)
	if len(ids) != len(r.States) {
		return false
	}
	for _, id := range ids {
		if _, ok := r.States[id]; !ok {
			return false
		}
	}
	return true
}

// State returns the flag for productID; unknown products read as green.
func (r Report) State(productID int64) domain.StockState {
	if s, ok := r.States[productID]; ok {
		return s
	}
	return domain.StockGreen
}

type Gate struct {
	fetcher     StateFetcher
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

func NewGate(fetcher StateFetcher, concurrency int, logger *zap.Logger) *Gate {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{fetcher: fetcher, concurrency: concurrency, logger: logger, now: time.Now}
}

// Check fetches a fresh flag for every product in items. A product whose
// lookup fails counts as green; the transport line is never checked. The only
// error is a cancelled ctx.
func (g *Gate) Check(ctx context.Context, items []domain.CartItem) (Report, error) {
	ids := productIDs(items)
	report := Report{States: make(map[int64]domain.StockState, len(ids))}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for _, id := range ids {
		id := id
		eg.Go(func() error {
			state, err := g.fetcher.ProductStockState(egCtx, id)
			if err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				g.logger.Debug("stock lookup failed, treating as available",
					zap.Int64("product_id", id), zap.Error(err))
				state = domain.StockGreen
			}
			if state == "" {
				state = domain.StockGreen
			}
			mu.Lock()
			report.States[id] = state
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Report{}, fmt.Errorf("stock check interrupted: %w", err)
	}

	report.CheckedAt = g.now()
	if blocking := report.Blocking(); len(blocking) > 0 {
		g.logger.Info("stock gate blocking products", zap.Int64s("product_ids", blocking))
	}
	return report, nil
}

func productIDs(items []domain.CartItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if item.IsTransport() {
			continue
		}
		if _, dup := seen[item.ProductID]; dup {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
