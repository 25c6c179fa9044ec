package poller

import (
	"context"
	"log"
	"time"

	"github.com/pawmart/storefront/internal/domain"
	"github.com/pawmart/storefront/internal/notify"
	"github.com/pawmart/storefront/internal/orderflow"
)

// OrderFetcher is the single backend read both pollers depend on.
type OrderFetcher interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

// CartClearer is the best-effort cart clear run after a payment lands.
type CartClearer interface {
	ClearQuiet(ctx context.Context) error
}

const DefaultPaymentInterval = 3 * time.Second

// ShouldPoll reports whether a payment poller is worth starting: the
// order is still PENDING and neither the status nor the lagging payment
// projection says the money arrived.
func ShouldPoll(order domain.Order) bool {
	if order.Status != domain.OrderStatusPending {
		return false
	}
	return order.Payment == nil || !order.Payment.Status.IsSettled()
}

// PaymentPoller re-fetches one order until its payment is confirmed.
// It is owned by the order-detail view and must be stopped on teardown;
// poll failures are logged and the next tick tries again.
type PaymentPoller struct {
	orderID  string
	backend  OrderFetcher
	coord    *orderflow.Coordinator
	cart     CartClearer
	notifier notify.Notifier
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewPaymentPoller(orderID string, backend OrderFetcher, coord *orderflow.Coordinator, cart CartClearer, notifier notify.Notifier, interval time.Duration) *PaymentPoller {
	if interval <= 0 {
		interval = DefaultPaymentInterval
	}
	return &PaymentPoller{
		orderID:  orderID,
		backend:  backend,
		coord:    coord,
		cart:     cart,
		notifier: notifier,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (p *PaymentPoller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)
}

// Stop cancels the polling task. In-flight fetches are not aborted, but
// their results are discarded once the context is done.
func (p *PaymentPoller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Done closes when the task has fully exited, either by confirmation or
// by Stop.
func (p *PaymentPoller) Done() <-chan struct{} {
	return p.done
}

func (p *PaymentPoller) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if p.tick(ctx) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// tick performs one poll and reports whether the task is finished.
func (p *PaymentPoller) tick(ctx context.Context) bool {
	order, err := p.backend.GetOrder(ctx, p.orderID)
	if err != nil {
		// Routine polling hiccup; never surfaced to the user.
		log.Printf("[poller] payment poll for order %s failed: %v", p.orderID, err)
		return false
	}
	if ctx.Err() != nil {
		// The view is gone; a stale result must not be applied.
		return true
	}
	if order.Status != domain.OrderStatusPaid {
		return false
	}

	p.coord.ApplyPaid(*order)

	if err := p.cart.ClearQuiet(ctx); err != nil {
		log.Printf("[poller] cart clear after payment for order %s failed: %v", p.orderID, err)
	}

	p.notifier.Success(ctx, order.AccountID, "payment received, thank you for your order")
	return true
}
