package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawmart/storefront/internal/cartstore"
	"github.com/pawmart/storefront/internal/domain"
	"github.com/pawmart/storefront/internal/notify"
)

func newOrderRouter(fake *fakeBackend) (*chi.Mux, *WatchRegistry, *StoreRegistry) {
	stores := NewStoreRegistry(func(accountID string) *cartstore.Store {
		return cartstore.NewStore(accountID, fake, nil, notify.LogNotifier{})
	})
	watches := NewWatchRegistry(fake, notify.LogNotifier{}, stores, 5*time.Millisecond, 5*time.Millisecond)
	handler := NewOrderHandler(watches)

	r := chi.NewRouter()
	r.Use(AuthMiddleware)
	r.Get("/orders/{order_id}", handler.GetOrder)
	r.Post("/orders/{order_id}/confirm-payment", handler.ConfirmPayment)
	r.Post("/orders/{order_id}/cancel", handler.Cancel)
	r.Post("/orders/{order_id}/status", handler.Advance)
	r.Get("/orders/{order_id}/payment-qr", handler.PaymentQR)
	r.Post("/orders/{order_id}/watch", handler.Watch)
	r.Delete("/orders/{order_id}/watch", handler.Unwatch)
	return r, watches, stores
}

func doRequest(t *testing.T, router *chi.Mux, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if body != nil {
		request = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		request = httptest.NewRequest(method, path, nil)
	}
	request.Header.Set("X-Account-ID", "acct-1")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func testOrder(status domain.OrderStatus) domain.Order {
	return domain.Order{
		ID:        "42",
		AccountID: "acct-1",
		Status:    status,
	}
}

func TestGetOrder_ReturnsFreshState(t *testing.T) {
	fake := &fakeBackend{order: testOrder(domain.OrderStatusPending)}
	router, _, _ := newOrderRouter(fake)

	recorder := doRequest(t, router, "GET", "/orders/42", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	var order domain.Order
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&order))
	assert.Equal(t, "42", order.ID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
}

func TestConfirmPayment_HappyPath(t *testing.T) {
	fake := &fakeBackend{order: testOrder(domain.OrderStatusPending)}
	router, _, _ := newOrderRouter(fake)

	recorder := doRequest(t, router, "POST", "/orders/42/confirm-payment", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	var order domain.Order
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&order))
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
}

func TestCancel_PaidOrderRejectedWithConflict(t *testing.T) {
	fake := &fakeBackend{order: testOrder(domain.OrderStatusPaid)}
	router, _, _ := newOrderRouter(fake)

	recorder := doRequest(t, router, "POST", "/orders/42/cancel", nil)

	require.Equal(t, http.StatusConflict, recorder.Code)
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "invalid_transition", response.Code)
	assert.Equal(t, domain.OrderStatusPaid, fake.order.Status, "order unchanged")
}

func TestAdvance_InvalidStatusString(t *testing.T) {
	fake := &fakeBackend{order: testOrder(domain.OrderStatusPaid)}
	router, _, _ := newOrderRouter(fake)

	body, _ := json.Marshal(AdvanceRequestDTO{Status: "TELEPORTED"})
	recorder := doRequest(t, router, "POST", "/orders/42/status", body)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAdvance_PaidToShipped(t *testing.T) {
	fake := &fakeBackend{order: testOrder(domain.OrderStatusPaid)}
	router, _, _ := newOrderRouter(fake)

	body, _ := json.Marshal(AdvanceRequestDTO{Status: "SHIPPED"})
	recorder := doRequest(t, router, "POST", "/orders/42/status", body)

	require.Equal(t, http.StatusOK, recorder.Code)
	var order domain.Order
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&order))
	assert.Equal(t, domain.OrderStatusShipped, order.Status)
}

func TestPaymentQR(t *testing.T) {
	fake := &fakeBackend{order: testOrder(domain.OrderStatusPending)}
	router, _, _ := newOrderRouter(fake)

	recorder := doRequest(t, router, "GET", "/orders/42/payment-qr", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	var info domain.PaymentInfo
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&info))
	assert.Equal(t, "https://qr/42", info.QRCodeURL)
}

func TestWatchThenUnwatch(t *testing.T) {
	fake := &fakeBackend{order: testOrder(domain.OrderStatusPending)}
	router, watches, _ := newOrderRouter(fake)

	recorder := doRequest(t, router, "POST", "/orders/42/watch", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	watches.mu.Lock()
	open := len(watches.sessions)
	watches.mu.Unlock()
	require.Equal(t, 1, open)

	recorder = doRequest(t, router, "DELETE", "/orders/42/watch", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	watches.mu.Lock()
	open = len(watches.sessions)
	watches.mu.Unlock()
	assert.Zero(t, open)
}

func TestWatch_PaymentConfirmationFlowsToCart(t *testing.T) {
	fake := &fakeBackend{
		order: testOrder(domain.OrderStatusPending),
		items: []domain.CartItem{{ID: "srv-1", ProductID: 7, Quantity: 2}},
	}
	router, watches, stores := newOrderRouter(fake)
	defer watches.CloseAll()

	// The cart view was loaded before the admin confirmed the payment.
	require.NoError(t, stores.For("acct-1").Load(context.Background()))

	recorder := doRequest(t, router, "POST", "/orders/42/watch", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	fake.mu.Lock()
	fake.order.Status = domain.OrderStatusPaid
	fake.mu.Unlock()

	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.items) == 0
	}, time.Second, 5*time.Millisecond, "payment confirmation should clear the cart")
}

func TestOrderRoutes_Unauthorized(t *testing.T) {
	fake := &fakeBackend{order: testOrder(domain.OrderStatusPending)}
	router, _, _ := newOrderRouter(fake)

	request := httptest.NewRequest("GET", "/orders/42", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
