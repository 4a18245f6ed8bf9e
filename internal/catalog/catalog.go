// Package catalog caches the payment terms and their discount rules for a session.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

// Source is the backend surface the catalog reads from.
type Source interface {
	PaymentTerms(ctx context.Context) ([]domain.PaymentTerm, error)
	DiscountRules(ctx context.Context) (domain.DiscountRules, error)
}

// Catalog loads terms and rules once and reuses them. Failed loads are not
// cached, so the next call tries again.
type Catalog struct {
	source Source
	logger *zap.Logger
	sfg    singleflight.Group // concurrent first loads share one request

	mu    sync.RWMutex
	terms []domain.PaymentTerm
	rules domain.DiscountRules
}

func New(source Source, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{source: source, logger: logger}
}

// Terms returns the payment terms, fetching them on first use.
func (c *Catalog) Terms(ctx context.Context) ([]domain.PaymentTerm, error) {
	c.mu.RLock()
	terms := c.terms
	c.mu.RUnlock()
	if terms != nil {
		return cloneTerms(terms), nil
	}

	v, err, _ := c.sfg.Do("terms", func() (interface{}, error) {
		c.mu.RLock()
		cached := c.terms
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		fetched, err := c.source.PaymentTerms(ctx)
		if err != nil {
			return nil, err
		}
		if fetched == nil {
			fetched = []domain.PaymentTerm{}
		}
		c.mu.Lock()
		c.terms = fetched
		c.mu.Unlock()
		c.logger.Debug("payment terms loaded", zap.Int("count", len(fetched)))
		return fetched, nil
	})
	if err != nil {
		return nil, fmt.Errorf("payment terms unavailable: %w", err)
	}
	return cloneTerms(v.([]domain.PaymentTerm)), nil
}

// Rules returns the discount rules, fetching them on first use.
func (c *Catalog) Rules(ctx context.Context) (domain.DiscountRules, error) {
	c.mu.RLock()
	rules := c.rules
	c.mu.RUnlock()
	if rules != nil {
		return cloneRules(rules), nil
	}
	return c.loadRules(ctx)
}

// RefreshRules refetches the rules unconditionally. Concurrent refreshes
// overwrite each other; the last response wins.
func (c *Catalog) RefreshRules(ctx context.Context) (domain.DiscountRules, error) {
	return c.loadRules(ctx)
}

// Refresh drops both cached lists and reloads them.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.terms = nil
	c.rules = nil
	c.mu.Unlock()

	if _, err := c.Terms(ctx); err != nil {
		return err
	}
	_, err := c.Rules(ctx)
	return err
}

// TermName resolves a term id to its display name, or "" when unknown.
func (c *Catalog) TermName(ctx context.Context, termID int64) (string, error) {
	terms, err := c.Terms(ctx)
	if err != nil {
		return "", err
	}
	for _, term := range terms {
		if term.ID == termID {
			return term.Name, nil
		}
	}
	return "", nil
}

func (c *Catalog) loadRules(ctx context.Context) (domain.DiscountRules, error) {
	v, err, _ := c.sfg.Do("rules", func() (interface{}, error) {
		fetched, err := c.source.DiscountRules(ctx)
		if err != nil {
			return nil, err
		}
		if fetched == nil {
			fetched = domain.DiscountRules{}
		}
		c.mu.Lock()
		c.rules = fetched
		c.mu.Unlock()
		c.logger.Debug("discount rules loaded", zap.Int("count", len(fetched)))
		return fetched, nil
	})
	if err != nil {
		return nil, fmt.Errorf("discount rules unavailable: %w", err)
	}
	return cloneRules(v.(domain.DiscountRules)), nil
}

func cloneTerms(terms []domain.PaymentTerm) []domain.PaymentTerm {
	out := make([]domain.PaymentTerm, len(terms))
	copy(out, terms)
	return out
}

func cloneRules(rules domain.DiscountRules) domain.DiscountRules {
	out := make(domain.DiscountRules, len(rules))
	for k, v := range rules {
		out[k] = v
	}
	return out
}
