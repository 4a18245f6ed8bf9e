package fakebackend

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

const maxRequestBodySize = 1 << 20 // 1MB

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type Server struct {
	store  *Store
	logger *zap.Logger
}

// NewRouter exposes store over the storefront REST contract.
func NewRouter(store *Store, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{store: store, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, maxRequestBodySize)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/plazos-pago", s.paymentTerms)
	r.Get("/admin/plazos-descuentos", s.discountRules)
	r.Get("/producto/{id}/info", s.productInfo)
	r.Post("/cart/save", s.saveCart)
	r.Get("/cart/load", s.loadCart)
	r.Post("/crear-pedido", s.createOrder)
	r.Get("/usuario-perfil", s.userProfile)
	r.Get("/clients", s.clients)
	r.Get("/cliente-direcciones", s.addresses)
	r.Get("/tipo-cambio", s.exchangeRate)

	return otelhttp.NewHandler(r, "fakebackend")
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) paymentTerms(w http.ResponseWriter, r *http.Request) {
	terms := s.store.Terms()
	if terms == nil {
		terms = []domain.PaymentTerm{}
	}
	respondJSON(w, http.StatusOK, terms)
}

type ruleDTO struct {
	Discount1   float64 `json:"descuento"`
	Discount2   float64 `json:"descuento2"`
	MinPurchase float64 `json:"min_compra"`
	Offer       bool    `json:"oferta"`
}

func (s *Server) discountRules(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]ruleDTO)
	for id, rule := range s.store.Rules() {
		out[strconv.FormatInt(id, 10)] = ruleDTO{
			Discount1:   rule.Discount1Pct,
			Discount2:   rule.Discount2Pct,
			MinPurchase: rule.MinPurchaseAmount,
			Offer:       rule.EligibleForOffer,
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) productInfo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return
	}
	p, ok := s.store.Product(id)
	if !ok {
		respondError(w, http.StatusNotFound, "product_not_found", "Producto no encontrado")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":           p.ID,
		"name":         p.Name,
		"default_code": p.DefaultCode,
		"price_unit":   p.PriceUnit,
		"list_price":   p.ListPrice,
		"stock_state":  p.StockState,
	})
}

type cartDTO struct {
	CUIT  string            `json:"cuit"`
	Items []domain.CartItem `json:"items"`
}

func (s *Server) saveCart(w http.ResponseWriter, r *http.Request) {
	var req cartDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.CUIT == "" {
		respondError(w, http.StatusBadRequest, "missing_cuit", "Falta cuit")
		return
	}
	s.store.saveCart(req.CUIT, req.Items)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) loadCart(w http.ResponseWriter, r *http.Request) {
	cuit := r.URL.Query().Get("cuit")
	if cuit == "" {
		respondError(w, http.StatusBadRequest, "missing_cuit", "Falta cuit")
		return
	}
	items := s.store.Cart(cuit)
	if items == nil {
		items = []domain.CartItem{}
	}
	respondJSON(w, http.StatusOK, cartDTO{CUIT: cuit, Items: items})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if d := s.store.delay(); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	order, err := s.store.CommitOrder(req)
	switch {
	case errors.Is(err, ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "El pedido a actualizar no existe")
		return
	case errors.Is(err, ErrMissingCUIT):
		respondError(w, http.StatusBadRequest, "MISSING_CUIT", "Falta cliente_cuit")
		return
	case errors.Is(err, ErrEmptyOrder):
		respondError(w, http.StatusBadRequest, "EMPTY_ITEMS", "El pedido no tiene productos")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Error interno al crear el pedido")
		return
	}

	s.logger.Info("order committed",
		zap.Int64("order_id", order.ID),
		zap.Int("updates", order.Updates),
		zap.String("transaction_id", req.TransactionID))

	tax := order.Total - order.Base
	respondJSON(w, http.StatusOK, map[string]any{
		"pedido_id":      order.ID,
		"nro_pedido":     order.Number,
		"currency":       "ARS",
		"total":          order.Total,
		"base_imponible": order.Base,
		"groups":         []domain.TaxGroup{{Name: "IVA 21%", Amount: tax}},
		"tax_totals":     map[string]float64{"amount_untaxed": order.Base, "amount_tax": tax, "amount_total": order.Total},
	})
}

func (s *Server) userProfile(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.store.Profile(r.URL.Query().Get("cuit"))
	if !ok {
		respondError(w, http.StatusNotFound, "user_not_found", "Usuario no encontrado")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"partner_id": profile.PartnerID,
		"name":       profile.Name,
		"role":       profile.Role,
	})
}

type partnerDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	VAT    string `json:"vat,omitempty"`
	Street string `json:"street,omitempty"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	Zip    string `json:"zip,omitempty"`
	Type   string `json:"type,omitempty"`
}

// clients answers in the wrapped {items} shape; the client also accepts a bare array.
func (s *Server) clients(w http.ResponseWriter, r *http.Request) {
	clients := s.store.Clients(r.URL.Query().Get("cuit"))
	items := make([]partnerDTO, 0, len(clients))
	for _, c := range clients {
		items = append(items, partnerDTO{
			ID:     strconv.FormatInt(c.ID, 10),
			Name:   c.Name,
			VAT:    c.VAT,
			Street: c.Street,
			City:   c.City,
			State:  c.State,
			Zip:    c.Zip,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) addresses(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("cliente_id")), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_client_id", "cliente_id must be an integer")
		return
	}
	addresses, err := s.store.Addresses(clientID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	out := make([]partnerDTO, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, partnerDTO{
			ID:     a.ID,
			Name:   a.Name,
			Street: a.Street,
			City:   a.City,
			State:  a.State,
			Zip:    a.Zip,
			Type:   "delivery",
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) exchangeRate(w http.ResponseWriter, r *http.Request) {
	rate := s.store.ExchangeRate()
	if rate <= 0 {
		respondJSON(w, http.StatusOK, map[string]any{})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"inverse_rate": rate, "rate": 1 / rate})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
