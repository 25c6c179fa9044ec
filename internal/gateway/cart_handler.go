package gateway

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/backend"
	"github.com/pawmart/storefront/internal/domain"
)

type CartHandler struct {
	stores *StoreRegistry
}

func NewCartHandler(stores *StoreRegistry) *CartHandler {
	return &CartHandler{stores: stores}
}

type AddItemRequestDTO struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Items      []domain.CartItem `json:"items"`
	TotalItems int               `json:"total_items"`
	TotalPrice decimal.Decimal   `json:"total_price"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// GetCart is the explicit cart load: entering a cart-sensitive view hits
// this route, nothing loads the cart automatically.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	if accountID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing account authentication")
		return
	}

	store := h.stores.For(accountID)
	if err := store.Load(r.Context()); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(store))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	if accountID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing account authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	store := h.stores.For(accountID)
	product := domain.Product{ID: req.ProductID, Name: req.Name, Price: req.Price}
	if err := store.AddItem(r.Context(), product, req.Quantity); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, cartResponse(store))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	if accountID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing account authentication")
		return
	}

	itemID := chi.URLParam(r, "item_id")
	if itemID == "" {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not exceed 99")
		return
	}

	// Zero or negative quantities mean removal; the store handles that.
	store := h.stores.For(accountID)
	if err := store.UpdateQuantity(r.Context(), itemID, req.Quantity); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(store))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	if accountID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing account authentication")
		return
	}

	itemID := chi.URLParam(r, "item_id")
	if itemID == "" {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item id is required")
		return
	}

	store := h.stores.For(accountID)
	if err := store.RemoveItem(r.Context(), itemID); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(store))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	if accountID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing account authentication")
		return
	}

	store := h.stores.For(accountID)
	if err := store.Clear(r.Context()); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(store))
}

func cartResponse(store interface {
	Snapshot() domain.CartSnapshot
}) CartResponseDTO {
	snap := store.Snapshot()
	items := snap.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartResponseDTO{
		Items:      items,
		TotalItems: snap.TotalItems(),
		TotalPrice: snap.TotalPrice(),
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleStoreError converts the normalized error taxonomy to HTTP codes.
func handleStoreError(w http.ResponseWriter, err error) {
	var itErr *domain.InvalidTransitionError
	if errors.As(err, &itErr) {
		respondError(w, http.StatusConflict, "invalid_transition", itErr.Error())
		return
	}

	var apiErr *backend.APIError
	switch {
	case errors.Is(err, backend.ErrAuthRequired):
		respondError(w, http.StatusUnauthorized, "unauthenticated", "please sign in")
	case errors.Is(err, backend.ErrForbidden):
		respondError(w, http.StatusForbidden, "permission_denied", "not permitted")
	case errors.Is(err, backend.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "record no longer exists")
	case errors.As(err, &apiErr):
		respondError(w, http.StatusBadGateway, "backend_error", apiErr.Message)
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
