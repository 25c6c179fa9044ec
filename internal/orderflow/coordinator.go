package orderflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pawmart/storefront/internal/backend"
	"github.com/pawmart/storefront/internal/domain"
	"github.com/pawmart/storefront/internal/notify"
)

// Backend is the slice of the backend client the coordinator needs.
type Backend interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ConfirmPayment(ctx context.Context, orderID string) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
	GetPaymentQR(ctx context.Context, orderID string) (*domain.PaymentInfo, error)
}

// Coordinator owns one order's view state and is the only place that
// mutates it. Every transition is validated against the status graph
// before the backend is called, and the backend response is the single
// source of truth for status and payment info afterwards.
type Coordinator struct {
	backend  Backend
	notifier notify.Notifier

	mu    sync.Mutex
	order domain.Order
}

func NewCoordinator(b Backend, n notify.Notifier, initial domain.Order) *Coordinator {
	return &Coordinator{
		backend:  b,
		notifier: n,
		order:    initial,
	}
}

// Order returns a copy of the current view state.
func (c *Coordinator) Order() domain.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order
}

// ConfirmPayment is the customer-initiated confirmation, legal only from
// PENDING. A duplicate confirmation is rejected here before any call so
// the backend's validation error never reaches the user. On success the
// response's status and payment info are merged, never guessed.
func (c *Coordinator) ConfirmPayment(ctx context.Context) error {
	current := c.Order()
	if current.Status != domain.OrderStatusPending {
		return c.reject(ctx, current.Status, domain.OrderStatusPaid, "")
	}

	updated, err := c.backend.ConfirmPayment(ctx, current.ID)
	if err != nil {
		return c.transitionFailed(ctx, err, current.Status, domain.OrderStatusPaid, "could not confirm payment")
	}

	c.mu.Lock()
	c.order.Status = updated.Status
	c.order.Payment = updated.Payment
	c.order.UpdatedAt = updated.UpdatedAt
	c.mu.Unlock()

	c.notifier.Success(ctx, current.AccountID, "payment confirmed")
	return nil
}

// Cancel is legal only from PENDING. The order is re-fetched after the
// backend accepts, so local state reflects exactly what the server holds.
func (c *Coordinator) Cancel(ctx context.Context) error {
	current := c.Order()
	if !domain.CanTransitionTo(current.Status, domain.OrderStatusCancelled) {
		return c.reject(ctx, current.Status, domain.OrderStatusCancelled, "")
	}

	if err := c.backend.CancelOrder(ctx, current.ID); err != nil {
		return c.transitionFailed(ctx, err, current.Status, domain.OrderStatusCancelled, "could not cancel order")
	}

	if err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh after cancel: %w", err)
	}
	c.notifier.Success(ctx, current.AccountID, "order cancelled")
	return nil
}

// Advance moves a paid order along the fulfilment edges
// (PAID -> SHIPPED, SHIPPED -> DELIVERED).
func (c *Coordinator) Advance(ctx context.Context, target domain.OrderStatus) error {
	current := c.Order()
	if !domain.CanTransitionTo(current.Status, target) || target == domain.OrderStatusCancelled {
		return c.reject(ctx, current.Status, target, "")
	}

	if err := c.backend.UpdateOrderStatus(ctx, current.ID, target); err != nil {
		return c.transitionFailed(ctx, err, current.Status, target, "could not update order status")
	}

	if err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh after status update: %w", err)
	}
	c.notifier.Success(ctx, current.AccountID, fmt.Sprintf("order is now %s", target))
	return nil
}

// Refresh re-fetches the order and replaces the view state wholesale.
func (c *Coordinator) Refresh(ctx context.Context) error {
	current := c.Order()
	updated, err := c.backend.GetOrder(ctx, current.ID)
	if err != nil {
		return fmt.Errorf("refresh order: %w", err)
	}
	c.ApplyRefreshed(*updated)
	return nil
}

// RefreshPaymentQR pulls fresh QR/bank fields into the payment info
// without touching the order status.
func (c *Coordinator) RefreshPaymentQR(ctx context.Context) error {
	current := c.Order()
	info, err := c.backend.GetPaymentQR(ctx, current.ID)
	if err != nil {
		return fmt.Errorf("refresh payment qr: %w", err)
	}
	c.mu.Lock()
	c.order.Payment = info
	c.mu.Unlock()
	return nil
}

// ApplyRefreshed replaces the view state with a freshly fetched order and
// reports the previously observed status. Pollers use the pair to detect
// externally initiated changes.
func (c *Coordinator) ApplyRefreshed(order domain.Order) (previous domain.OrderStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous = c.order.Status
	c.order = order
	return previous
}

// ApplyPaid merges a refreshed order whose payment was observed settled:
// the payment projection is forced to COMPLETED on top of the server's
// fields, matching what the backend will eventually report.
func (c *Coordinator) ApplyPaid(order domain.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if order.Payment == nil {
		order.Payment = &domain.PaymentInfo{}
	}
	order.Payment.Status = domain.PaymentStatusCompleted
	c.order = order
}

// reject refuses an illegal edge without mutating local state.
func (c *Coordinator) reject(ctx context.Context, from, to domain.OrderStatus, reason string) error {
	err := &domain.InvalidTransitionError{From: from, To: to, Reason: reason}
	c.notifier.Error(ctx, c.Order().AccountID, err.Error())
	return err
}

// transitionFailed normalizes a backend rejection. Validation failures
// become InvalidTransitionError with the server's message; everything
// else is surfaced with the body message when present. Local state is
// never touched on any failure.
func (c *Coordinator) transitionFailed(ctx context.Context, err error, from, to domain.OrderStatus, fallback string) error {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == 400 || apiErr.StatusCode == 422) {
		return c.reject(ctx, from, to, apiErr.Message)
	}

	message := fallback
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		message = apiErr.Message
	}
	switch {
	case errors.Is(err, backend.ErrAuthRequired):
		message = "please sign in"
	case errors.Is(err, backend.ErrForbidden):
		message = "not permitted"
	case errors.Is(err, backend.ErrNotFound):
		message = "record no longer exists"
	}
	c.notifier.Error(ctx, c.Order().AccountID, message)
	return fmt.Errorf("%s: %w", fallback, err)
}
