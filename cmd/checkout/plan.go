package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/SalBom/app-sb-sub000/internal/backend"
	"github.com/SalBom/app-sb-sub000/internal/cart"
	"github.com/SalBom/app-sb-sub000/internal/checkout"
	"github.com/SalBom/app-sb-sub000/internal/domain"
)

// Plan is a scripted checkout session.
type Plan struct {
	CUIT      string         `json:"cuit"`
	KeepCart  bool           `json:"keep_cart"`
	Items     []PlanItem     `json:"items"`
	Transport *PlanTransport `json:"transport,omitempty"`
	ClientID  int64          `json:"client_id,omitempty"`
	Delivery  string         `json:"delivery,omitempty"`
	AddressID string         `json:"address_id,omitempty"`
	Note      string         `json:"note,omitempty"`
}

type PlanItem struct {
	ProductID     int64 `json:"product_id"`
	Quantity      int   `json:"quantity"`
	PaymentTermID int64 `json:"payment_term_id"`
}

type PlanTransport struct {
	Label string  `json:"label"`
	Price float64 `json:"price"`
}

var errEmptyPlan = errors.New("plan has no items and keep_cart is false")

func LoadPlan(path string) (Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to read plan: %w", err)
	}
	var plan Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return Plan{}, fmt.Errorf("failed to decode plan: %w", err)
	}
	if len(plan.Items) == 0 && !plan.KeepCart {
		return Plan{}, errEmptyPlan
	}
	return plan, nil
}

// ProductLookup prices the products a plan adds.
type ProductLookup interface {
	ProductInfo(ctx context.Context, productID int64) (backend.ProductInfo, error)
}

type session struct {
	products ProductLookup
	cart     *cart.Store
	wizard   *checkout.Wizard
	logger   *zap.Logger
}

// fill loads the plan's lines into the cart at their current backend prices.
func (s *session) fill(ctx context.Context, plan Plan) error {
	if !plan.KeepCart {
		s.cart.Clear()
	}
	for _, item := range plan.Items {
		info, err := s.products.ProductInfo(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if err := s.cart.AddItem(domain.Product{
			ProductID:     item.ProductID,
			Name:          info.Name,
			PriceUnit:     float64(info.PriceUnit),
			ListPrice:     float64(info.ListPrice),
			DefaultCode:   info.DefaultCode,
			Quantity:      item.Quantity,
			PaymentTermID: item.PaymentTermID,
		}); err != nil {
			return fmt.Errorf("failed to add product %d: %w", item.ProductID, err)
		}
		if item.Quantity > 0 {
			if err := s.cart.UpdateQuantity(item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("failed to set quantity of product %d: %w", item.ProductID, err)
			}
		}
	}
	if plan.Transport != nil {
		return s.cart.AddOrUpdateTransport(plan.Transport.Label, plan.Transport.Price)
	}
	return nil
}

// run drives the wizard from Products to Success.
func (s *session) run(ctx context.Context, plan Plan) (checkout.Result, error) {
	if err := s.fill(ctx, plan); err != nil {
		return checkout.Result{}, err
	}

	view, err := s.wizard.EnterProducts(ctx)
	if err != nil {
		return checkout.Result{}, err
	}
	s.logger.Info("products",
		zap.Int("lines", len(view.Lines)),
		zap.Float64("subtotal", view.Subtotal),
		zap.Float64("discounted", view.Discounted),
		zap.String("payment_term", view.PaymentTerm),
		zap.Int64s("blocking", view.Blocking))

	if err := s.wizard.AdvanceFromProducts(ctx); err != nil {
		return checkout.Result{}, err
	}

	if plan.ClientID != 0 {
		if _, err := s.wizard.SelectClient(ctx, plan.ClientID); err != nil {
			return checkout.Result{}, err
		}
	}
	if plan.Delivery != "" {
		if err := s.wizard.SelectDelivery(domain.DeliveryMethod(plan.Delivery)); err != nil {
			return checkout.Result{}, err
		}
	}
	if plan.AddressID != "" {
		if err := s.wizard.SelectAddress(plan.AddressID); err != nil {
			return checkout.Result{}, err
		}
	}

	draft, err := s.wizard.AdvanceFromShipping(ctx)
	if err != nil {
		return checkout.Result{}, err
	}
	s.logger.Info("draft order", zap.Int64("order_id", draft.OrderID), zap.String("order_number", draft.OrderNumber))

	if plan.Note != "" {
		if err := s.wizard.SetNote(plan.Note); err != nil {
			return checkout.Result{}, err
		}
	}
	summary, err := s.wizard.ConfirmationView()
	if err != nil {
		return checkout.Result{}, err
	}
	s.logger.Info("confirmation",
		zap.String("client", summary.Client.Name),
		zap.String("delivery", string(summary.Delivery)),
		zap.Float64("base", summary.Totals.Base),
		zap.Float64("total", summary.Totals.Total),
		zap.Bool("backend_totals", summary.Totals.FromBackend),
		zap.Float64("exchange_rate", summary.ExchangeRate))

	return s.wizard.Confirm(ctx)
}
