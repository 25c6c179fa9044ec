package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pawmart/storefront/internal/domain"
)

type OrderHandler struct {
	watches *WatchRegistry
}

func NewOrderHandler(watches *WatchRegistry) *OrderHandler {
	return &OrderHandler{watches: watches}
}

type AdvanceRequestDTO struct {
	Status string `json:"status"`
}

type WatchResponseDTO struct {
	Watching bool `json:"watching"`
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	if accountID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing account authentication")
		return
	}

	coord, err := h.watches.Coordinator(r.Context(), accountID, chi.URLParam(r, "order_id"))
	if err != nil {
		handleStoreError(w, err)
		return
	}
	if err := coord.Refresh(r.Context()); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, coord.Order())
}

// ConfirmPayment is the customer-initiated confirmation path.
func (h *OrderHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	if accountID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing account authentication")
		return
	}

	coord, err := h.watches.Coordinator(r.Context(), accountID, chi.URLParam(r, "order_id"))
	if err != nil {
		handleStoreError(w, err)
		return
	}
	if err := coord.ConfirmPayment(r.Context()); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, coord.Order())
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	if accountID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing account authentication")
		return
	}

	coord, err := h.watches.Coordinator(r.Context(), accountID, chi.URLParam(r, "order_id"))
	if err != nil {
		handleStoreError(w, err)
		return
	}
	if err := coord.Cancel(r.Context()); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, coord.Order())
}

func (h *OrderHandler) Advance(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	if accountID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing account authentication")
		return
	}

	var req AdvanceRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	target, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}

	coord, err := h.watches.Coordinator(r.Context(), accountID, chi.URLParam(r, "order_id"))
	if err != nil {
		handleStoreError(w, err)
		return
	}
	if err := coord.Advance(r.Context(), target); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, coord.Order())
}

func (h *OrderHandler) PaymentQR(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	if accountID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing account authentication")
		return
	}

	coord, err := h.watches.Coordinator(r.Context(), accountID, chi.URLParam(r, "order_id"))
	if err != nil {
		handleStoreError(w, err)
		return
	}
	if err := coord.RefreshPaymentQR(r.Context()); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, coord.Order().Payment)
}

// Watch opens the order-detail background tasks for this account+order.
func (h *OrderHandler) Watch(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	if accountID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing account authentication")
		return
	}

	if _, err := h.watches.Open(r.Context(), accountID, chi.URLParam(r, "order_id")); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, WatchResponseDTO{Watching: true})
}

// Unwatch is the view-teardown hook; it cancels both pollers.
func (h *OrderHandler) Unwatch(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	if accountID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing account authentication")
		return
	}

	h.watches.Close(accountID, chi.URLParam(r, "order_id"))
	respondJSON(w, http.StatusOK, WatchResponseDTO{Watching: false})
}
