package orderflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawmart/storefront/internal/backend"
	"github.com/pawmart/storefront/internal/domain"
)

type mockOrderBackend struct {
	mu    sync.Mutex
	order domain.Order

	getErr     error
	confirmErr error
	cancelErr  error
	updateErr  error

	confirmCalls int
	cancelCalls  int
	updateCalls  int
	getCalls     int
}

func (m *mockOrderBackend) GetOrder(context.Context, string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	o := m.order
	return &o, nil
}

func (m *mockOrderBackend) ConfirmPayment(context.Context, string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmCalls++
	if m.confirmErr != nil {
		return nil, m.confirmErr
	}
	m.order.Status = domain.OrderStatusPaid
	m.order.Payment = &domain.PaymentInfo{Status: domain.PaymentStatusPaid, QRCodeURL: "https://qr/42"}
	m.order.UpdatedAt = time.Now()
	o := m.order
	return &o, nil
}

func (m *mockOrderBackend) CancelOrder(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCalls++
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.order.Status = domain.OrderStatusCancelled
	return nil
}

func (m *mockOrderBackend) UpdateOrderStatus(_ context.Context, _ string, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	m.order.Status = status
	return nil
}

func (m *mockOrderBackend) GetPaymentQR(context.Context, string) (*domain.PaymentInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &domain.PaymentInfo{
		Status:    domain.PaymentStatusPending,
		QRCodeURL: "https://qr/fresh",
		Amount:    decimal.RequireFromString("120.00"),
	}, nil
}

type mockNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (m *mockNotifier) Success(_ context.Context, _ string, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes = append(m.successes, msg)
}

func (m *mockNotifier) Warning(context.Context, string, string) {}

func (m *mockNotifier) Error(_ context.Context, _ string, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, msg)
}

func pendingOrder() domain.Order {
	return domain.Order{
		ID:        "42",
		AccountID: "acct-1",
		Status:    domain.OrderStatusPending,
		Items:     []domain.OrderItem{{ProductID: 7, Quantity: 2, Price: decimal.RequireFromString("9.50")}},
	}
}

func newTestCoordinator(mock *mockOrderBackend, initial domain.Order) (*Coordinator, *mockNotifier) {
	mock.order = initial
	notifier := &mockNotifier{}
	return NewCoordinator(mock, notifier, initial), notifier
}

func TestConfirmPayment_FromPending(t *testing.T) {
	sut, notifier := newTestCoordinator(&mockOrderBackend{}, pendingOrder())

	require.NoError(t, sut.ConfirmPayment(context.Background()))

	got := sut.Order()
	assert.Equal(t, domain.OrderStatusPaid, got.Status)
	require.NotNil(t, got.Payment, "payment info merged from the response")
	assert.Equal(t, domain.PaymentStatusPaid, got.Payment.Status)
	assert.Len(t, notifier.successes, 1)
}

func TestConfirmPayment_DuplicateRejectedBeforeCall(t *testing.T) {
	order := pendingOrder()
	order.Status = domain.OrderStatusPaid
	mock := &mockOrderBackend{}
	sut, _ := newTestCoordinator(mock, order)

	err := sut.ConfirmPayment(context.Background())
	var itErr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, domain.OrderStatusPaid, itErr.From)
	assert.Zero(t, mock.confirmCalls, "duplicate confirmation must never reach the backend")
}

func TestCancel_FromPending(t *testing.T) {
	sut, _ := newTestCoordinator(&mockOrderBackend{}, pendingOrder())

	require.NoError(t, sut.Cancel(context.Background()))
	assert.Equal(t, domain.OrderStatusCancelled, sut.Order().Status)
}

func TestCancel_PaidOrderRejected(t *testing.T) {
	order := pendingOrder()
	order.Status = domain.OrderStatusPaid
	mock := &mockOrderBackend{}
	sut, _ := newTestCoordinator(mock, order)

	err := sut.Cancel(context.Background())
	var itErr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, domain.OrderStatusPaid, itErr.From)
	assert.Equal(t, domain.OrderStatusCancelled, itErr.To)
	assert.Equal(t, domain.OrderStatusPaid, sut.Order().Status, "order unchanged")
	assert.Zero(t, mock.cancelCalls)
}

func TestAdvance_AlongTheGraph(t *testing.T) {
	order := pendingOrder()
	order.Status = domain.OrderStatusPaid
	sut, _ := newTestCoordinator(&mockOrderBackend{}, order)
	ctx := context.Background()

	require.NoError(t, sut.Advance(ctx, domain.OrderStatusShipped))
	assert.Equal(t, domain.OrderStatusShipped, sut.Order().Status)

	require.NoError(t, sut.Advance(ctx, domain.OrderStatusDelivered))
	assert.Equal(t, domain.OrderStatusDelivered, sut.Order().Status)
}

func TestAdvance_IllegalEdgesRejectedWithoutBackendCall(t *testing.T) {
	cases := []struct {
		from domain.OrderStatus
		to   domain.OrderStatus
	}{
		{domain.OrderStatusPending, domain.OrderStatusShipped},
		{domain.OrderStatusPending, domain.OrderStatusDelivered},
		{domain.OrderStatusPaid, domain.OrderStatusDelivered},
		{domain.OrderStatusShipped, domain.OrderStatusPaid},
		{domain.OrderStatusDelivered, domain.OrderStatusShipped},
		{domain.OrderStatusCancelled, domain.OrderStatusPaid},
	}
	for _, tc := range cases {
		order := pendingOrder()
		order.Status = tc.from
		mock := &mockOrderBackend{}
		sut, _ := newTestCoordinator(mock, order)

		err := sut.Advance(context.Background(), tc.to)
		var itErr *domain.InvalidTransitionError
		require.ErrorAs(t, err, &itErr, "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.from, sut.Order().Status, "status unchanged after rejection")
		assert.Zero(t, mock.updateCalls)
	}
}

func TestTerminalStatesNeverLeave(t *testing.T) {
	for _, terminal := range []domain.OrderStatus{domain.OrderStatusDelivered, domain.OrderStatusCancelled} {
		order := pendingOrder()
		order.Status = terminal
		mock := &mockOrderBackend{}
		sut, _ := newTestCoordinator(mock, order)
		ctx := context.Background()

		assert.Error(t, sut.ConfirmPayment(ctx))
		assert.Error(t, sut.Cancel(ctx))
		assert.Error(t, sut.Advance(ctx, domain.OrderStatusShipped))
		assert.Equal(t, terminal, sut.Order().Status)
		assert.Zero(t, mock.confirmCalls+mock.cancelCalls+mock.updateCalls)
	}
}

func TestBackendValidationFailureBecomesInvalidTransition(t *testing.T) {
	mock := &mockOrderBackend{
		confirmErr: &backend.APIError{StatusCode: 422, Message: "order already processed"},
	}
	sut, _ := newTestCoordinator(mock, pendingOrder())

	err := sut.ConfirmPayment(context.Background())
	var itErr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, "order already processed", itErr.Reason)
	assert.Equal(t, domain.OrderStatusPending, sut.Order().Status, "no partial mutation on failure")
}

func TestServerErrorLeavesStateUntouched(t *testing.T) {
	mock := &mockOrderBackend{
		cancelErr: &backend.APIError{StatusCode: 500, Message: "backend down"},
	}
	sut, notifier := newTestCoordinator(mock, pendingOrder())

	err := sut.Cancel(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.OrderStatusPending, sut.Order().Status)
	require.Len(t, notifier.failures, 1)
	assert.Equal(t, "backend down", notifier.failures[0])
}

func TestRefreshPaymentQR_UpdatesOnlyPaymentInfo(t *testing.T) {
	sut, _ := newTestCoordinator(&mockOrderBackend{}, pendingOrder())

	require.NoError(t, sut.RefreshPaymentQR(context.Background()))
	got := sut.Order()
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	require.NotNil(t, got.Payment)
	assert.Equal(t, "https://qr/fresh", got.Payment.QRCodeURL)
}

func TestApplyRefreshed_ReportsPreviousStatus(t *testing.T) {
	sut, _ := newTestCoordinator(&mockOrderBackend{}, pendingOrder())

	refreshed := pendingOrder()
	refreshed.Status = domain.OrderStatusCancelled
	previous := sut.ApplyRefreshed(refreshed)

	assert.Equal(t, domain.OrderStatusPending, previous)
	assert.Equal(t, domain.OrderStatusCancelled, sut.Order().Status)
}

func TestApplyPaid_MarksPaymentCompleted(t *testing.T) {
	sut, _ := newTestCoordinator(&mockOrderBackend{}, pendingOrder())

	paid := pendingOrder()
	paid.Status = domain.OrderStatusPaid
	sut.ApplyPaid(paid)

	got := sut.Order()
	assert.Equal(t, domain.OrderStatusPaid, got.Status)
	require.NotNil(t, got.Payment)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Payment.Status)
}
