package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pharmkart/order-core/internal/cart"
	"github.com/pharmkart/order-core/internal/catalog"
	"github.com/pharmkart/order-core/internal/order"
	"github.com/pharmkart/order-core/internal/payment"
)

type CartService interface {
	AddItem(ctx context.Context, userID string, itemID int64, quantity int) error
	ListItems(ctx context.Context, userID string) ([]cart.LineItemView, error)
	RemoveItem(ctx context.Context, userID string, itemID int64) error
}

type CheckoutService interface {
	InitiateCheckout(ctx context.Context, userID string) (decimal.Decimal, error)
}

type PaymentService interface {
	ProcessPayment(ctx context.Context, userID, method string, amount decimal.Decimal) (string, error)
	VerifyAndFinalize(ctx context.Context, userID, gatewayRef string) (string, error)
}

type OrderService interface {
	Cancel(ctx context.Context, orderID, requestingUserID string) error
	History(ctx context.Context, userID string) ([]order.View, error)
}

type CatalogReader interface {
	GetItem(ctx context.Context, id int64) (*catalog.Item, error)
	FindByName(ctx context.Context, pattern string) (*catalog.Item, error)
}

type Handler struct {
	carts    CartService
	checkout CheckoutService
	payments PaymentService
	orders   OrderService
	catalog  CatalogReader
}

func NewHandler(carts CartService, checkout CheckoutService, payments PaymentService, orders OrderService, cat CatalogReader) *Handler {
	return &Handler{
		carts:    carts,
		checkout: checkout,
		payments: payments,
		orders:   orders,
		catalog:  cat,
	}
}

type AddItemRequestDTO struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type ProcessPaymentRequestDTO struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

type VerifyPaymentRequestDTO struct {
	GatewayRef string `json:"gateway_ref"`
}

type CheckoutResponseDTO struct {
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type OrderResponseDTO struct {
	OrderID string `json:"order_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.carts.AddItem(r.Context(), userID, req.ItemID, req.Quantity); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	items, err := h.carts.ListItems(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	itemID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id must be an integer")
		return
	}

	if err := h.carts.RemoveItem(r.Context(), userID, itemID); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	total, err := h.checkout.InitiateCheckout(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, CheckoutResponseDTO{TotalAmount: total})
}

func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req ProcessPaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Method == "" {
		respondError(w, http.StatusBadRequest, "invalid_method", "payment method is required")
		return
	}

	orderID, err := h.payments.ProcessPayment(r.Context(), userID, req.Method, req.Amount)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, OrderResponseDTO{OrderID: orderID})
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req VerifyPaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.GatewayRef == "" {
		respondError(w, http.StatusBadRequest, "invalid_gateway_ref", "gateway_ref is required")
		return
	}

	orderID, err := h.payments.VerifyAndFinalize(r.Context(), userID, req.GatewayRef)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, OrderResponseDTO{OrderID: orderID})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if err := h.orders.Cancel(r.Context(), orderID, userID); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	views, err := h.orders.History(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id must be an integer")
		return
	}

	item, err := h.catalog.GetItem(r.Context(), itemID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, itemDTO(item))
}

func (h *Handler) SearchItems(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "invalid_query", "name query parameter is required")
		return
	}

	item, err := h.catalog.FindByName(r.Context(), name)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, itemDTO(item))
}

type ItemDTO struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	PackSizeLabel string          `json:"pack_size_label"`
	ImageURL      string          `json:"image_url"`
	Uses          string          `json:"uses,omitempty"`
	SideEffects   string          `json:"side_effects,omitempty"`
	Manufacturer  string          `json:"manufacturer,omitempty"`
}

func itemDTO(item *catalog.Item) ItemDTO {
	return ItemDTO{
		ID:            item.ID,
		Name:          item.Name,
		Price:         item.Price,
		Stock:         item.Stock,
		PackSizeLabel: item.PackSizeLabel,
		ImageURL:      item.ImageURL,
		Uses:          item.Uses,
		SideEffects:   item.SideEffects,
		Manufacturer:  item.Manufacturer,
	}
}

func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrItemNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, cart.ErrLineItemNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, catalog.ErrInsufficientStock):
		respondError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, cart.ErrNoActiveCart),
		errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, payment.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, order.ErrAlreadyCancelled),
		errors.Is(err, payment.ErrAlreadyProcessed):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, payment.ErrGatewayDeclined),
		errors.Is(err, payment.ErrPaymentNotSucceeded):
		respondError(w, http.StatusPaymentRequired, "payment_failed", err.Error())
	case errors.Is(err, payment.ErrGatewayUnavailable):
		respondError(w, http.StatusBadGateway, "gateway_unavailable", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
