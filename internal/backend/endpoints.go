package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

// Number decodes a JSON number that the backend sometimes sends as a string.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", s, err)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// ID decodes a backend id that may arrive as a number or a string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	*id = ID(string(data))
	return nil
}

func (id ID) Int64() int64 {
	v, _ := strconv.ParseInt(string(id), 10, 64)
	return v
}

// PaymentTerms returns GET /plazos-pago.
func (c *Client) PaymentTerms(ctx context.Context) ([]domain.PaymentTerm, error) {
	var terms []domain.PaymentTerm
	if err := c.get(ctx, "/plazos-pago", &terms); err != nil {
		return nil, fmt.Errorf("failed to fetch payment terms: %w", err)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].ID < terms[j].ID })
	return terms, nil
}

type discountRuleDTO struct {
	Discount1   Number `json:"descuento"`
	Discount2   Number `json:"descuento2"`
	MinPurchase Number `json:"min_compra"`
	Offer       bool   `json:"oferta"`
}

// DiscountRules returns GET /admin/plazos-descuentos keyed by payment term id.
// Entries whose key is not a numeric term id are ignored.
func (c *Client) DiscountRules(ctx context.Context) (domain.DiscountRules, error) {
	var raw map[string]discountRuleDTO
	if err := c.get(ctx, "/admin/plazos-descuentos", &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch discount rules: %w", err)
	}
	rules := make(domain.DiscountRules, len(raw))
	for key, dto := range raw {
		termID, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			continue
		}
		rules[termID] = domain.DiscountRule{
			PaymentTermID:     termID,
			Discount1Pct:      float64(dto.Discount1),
			Discount2Pct:      float64(dto.Discount2),
			MinPurchaseAmount: float64(dto.MinPurchase),
			EligibleForOffer:  dto.Offer,
		}
	}
	return rules, nil
}

// ProductInfo is the subset of GET /producto/{id}/info used by checkout.
type ProductInfo struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	DefaultCode string            `json:"default_code"`
	ListPrice   Number            `json:"list_price"`
	PriceUnit   Number            `json:"price_unit"`
	StockState  domain.StockState `json:"stock_state"`
}

func (c *Client) ProductInfo(ctx context.Context, productID int64) (ProductInfo, error) {
	var info ProductInfo
	if err := c.get(ctx, fmt.Sprintf("/producto/%d/info", productID), &info); err != nil {
		return ProductInfo{}, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}
	return info, nil
}

// ProductStockState returns only the stock flag of a product.
func (c *Client) ProductStockState(ctx context.Context, productID int64) (domain.StockState, error) {
	info, err := c.ProductInfo(ctx, productID)
	if err != nil {
		return "", err
	}
	return info.StockState, nil
}

type cartPayload struct {
	CUIT  string            `json:"cuit"`
	Items []domain.CartItem `json:"items"`
}

// SaveCart posts the full item list. The response body is ignored.
func (c *Client) SaveCart(ctx context.Context, cuit string, items []domain.CartItem) error {
	if items == nil {
		items = []domain.CartItem{}
	}
	if err := c.post(ctx, c.timeout, "/cart/save", cartPayload{CUIT: cuit, Items: items}, nil); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (c *Client) LoadCart(ctx context.Context, cuit string) ([]domain.CartItem, error) {
	var body struct {
		Items []domain.CartItem `json:"items"`
	}
	if err := c.get(ctx, "/cart/load?cuit="+url.QueryEscape(cuit), &body); err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return body.Items, nil
}

type orderResponse struct {
	OrderID     ID                `json:"pedido_id"`
	OrderNumber string            `json:"nro_pedido"`
	Currency    string            `json:"currency"`
	Total       Number            `json:"total"`
	Base        Number            `json:"base_imponible"`
	Groups      []domain.TaxGroup `json:"groups"`
	TaxTotals   json.RawMessage   `json:"tax_totals"`
}

// CreateOrder posts to /crear-pedido under the submit timeout. The backend
// creates a draft when OrderIDToUpdate is nil and mutates it otherwise.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.DraftOrder, error) {
	var resp orderResponse
	if err := c.post(ctx, c.submitTimeout, "/crear-pedido", req, &resp); err != nil {
		return domain.DraftOrder{}, fmt.Errorf("failed to create order: %w", err)
	}
	orderID := resp.OrderID.Int64()
	if orderID == 0 {
		return domain.DraftOrder{}, ErrMissingOrderID
	}
	return domain.DraftOrder{
		OrderID:     orderID,
		OrderNumber: resp.OrderNumber,
		Currency:    resp.Currency,
		Base:        float64(resp.Base),
		Total:       float64(resp.Total),
		TaxGroups:   resp.Groups,
		TaxTotals:   resp.TaxTotals,
	}, nil
}

type profileDTO struct {
	PartnerID ID     `json:"partner_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

func (c *Client) UserProfile(ctx context.Context, cuit string) (domain.Profile, error) {
	var dto profileDTO
	if err := c.get(ctx, "/usuario-perfil?cuit="+url.QueryEscape(cuit), &dto); err != nil {
		return domain.Profile{}, fmt.Errorf("failed to fetch user profile: %w", err)
	}
	return domain.Profile{PartnerID: dto.PartnerID.Int64(), Name: dto.Name, Role: dto.Role}, nil
}

type partnerDTO struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	VAT    string `json:"vat"`
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
	Type   string `json:"type"`
}

// Clients returns the sub-accounts the user may order for.
func (c *Client) Clients(ctx context.Context, cuit string) ([]domain.Client, error) {
	var list itemsOrArray[partnerDTO]
	if err := c.get(ctx, "/clients?cuit="+url.QueryEscape(cuit), &list); err != nil {
		return nil, fmt.Errorf("failed to fetch clients: %w", err)
	}
	clients := make([]domain.Client, 0, len(list))
	for _, dto := range list {
		clients = append(clients, domain.Client{
			ID:     dto.ID.Int64(),
			Name:   dto.Name,
			VAT:    dto.VAT,
			Street: dto.Street,
			City:   dto.City,
			State:  dto.State,
			Zip:    dto.Zip,
		})
	}
	return clients, nil
}

func (c *Client) Addresses(ctx context.Context, clientID int64) ([]domain.Address, error) {
	var list itemsOrArray[partnerDTO]
	path := "/cliente-direcciones?cliente_id=" + strconv.FormatInt(clientID, 10)
	if err := c.get(ctx, path, &list); err != nil {
		return nil, fmt.Errorf("failed to fetch addresses: %w", err)
	}
	addresses := make([]domain.Address, 0, len(list))
	for _, dto := range list {
		addresses = append(addresses, domain.Address{
			ID:     string(dto.ID),
			Name:   dto.Name,
			Street: dto.Street,
			City:   dto.City,
			State:  dto.State,
			Zip:    dto.Zip,
			Source: dto.Type,
		})
	}
	return addresses, nil
}

// ExchangeRate returns the display rate from GET /tipo-cambio, preferring inverse_rate.
func (c *Client) ExchangeRate(ctx context.Context) (float64, error) {
	var body struct {
		InverseRate Number `json:"inverse_rate"`
		Rate        Number `json:"rate"`
	}
	if err := c.get(ctx, "/tipo-cambio", &body); err != nil {
		return 0, fmt.Errorf("failed to fetch exchange rate: %w", err)
	}
	if body.InverseRate > 0 {
		return float64(body.InverseRate), nil
	}
	if body.Rate > 0 {
		return float64(body.Rate), nil
	}
	return 0, fmt.Errorf("exchange rate missing in response")
}

// itemsOrArray accepts either a bare JSON array or an object wrapping it in "items".
type itemsOrArray[T any] []T

func (l *itemsOrArray[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var wrapped struct {
		Items []T `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*l = wrapped.Items
	return nil
}
