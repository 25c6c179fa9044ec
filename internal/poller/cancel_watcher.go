package poller

import (
	"context"
	"log"
	"time"

	"github.com/pawmart/storefront/internal/domain"
	"github.com/pawmart/storefront/internal/notify"
	"github.com/pawmart/storefront/internal/orderflow"
)

const DefaultWatchInterval = 30 * time.Second

// CancellationWatcher is the low-frequency silent refresh that runs for
// the whole lifetime of an order-detail view. Its one loud case is an
// admin cancelling a PENDING order out from under the customer, which
// gets a distinct warning instead of a silent merge.
type CancellationWatcher struct {
	orderID  string
	backend  OrderFetcher
	coord    *orderflow.Coordinator
	notifier notify.Notifier
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewCancellationWatcher(orderID string, backend OrderFetcher, coord *orderflow.Coordinator, notifier notify.Notifier, interval time.Duration) *CancellationWatcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &CancellationWatcher{
		orderID:  orderID,
		backend:  backend,
		coord:    coord,
		notifier: notifier,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (w *CancellationWatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.run(ctx)
}

func (w *CancellationWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *CancellationWatcher) Done() <-chan struct{} {
	return w.done
}

func (w *CancellationWatcher) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *CancellationWatcher) tick(ctx context.Context) {
	order, err := w.backend.GetOrder(ctx, w.orderID)
	if err != nil {
		log.Printf("[poller] silent refresh for order %s failed: %v", w.orderID, err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	previous := w.coord.ApplyRefreshed(*order)
	if previous == domain.OrderStatusPending && order.Status == domain.OrderStatusCancelled {
		w.notifier.Warning(ctx, order.AccountID, "your order was cancelled by the shop administrator")
	}
}
