package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/pawmart/storefront/internal/notify"
	"github.com/pawmart/storefront/internal/orderflow"
	"github.com/pawmart/storefront/internal/poller"
)

// watchSession is the server-side stand-in for one open order-detail
// view: a coordinator plus its two independent background tasks.
type watchSession struct {
	coord   *orderflow.Coordinator
	payment *poller.PaymentPoller // nil when the order no longer needs one
	watcher *poller.CancellationWatcher
}

func (s *watchSession) stop() {
	if s.payment != nil {
		s.payment.Stop()
	}
	s.watcher.Stop()
}

// WatchRegistry owns the watch sessions. Opening a watch starts the
// cancellation watcher for the view's lifetime and, while the order is
// still awaiting payment, the payment poller; closing tears both down.
type WatchRegistry struct {
	backend  orderflow.Backend
	notifier notify.Notifier
	carts    *StoreRegistry

	paymentInterval time.Duration
	watchInterval   time.Duration

	mu       sync.Mutex
	sessions map[string]*watchSession
}

func NewWatchRegistry(b orderflow.Backend, n notify.Notifier, carts *StoreRegistry, paymentInterval, watchInterval time.Duration) *WatchRegistry {
	return &WatchRegistry{
		backend:         b,
		notifier:        n,
		carts:           carts,
		paymentInterval: paymentInterval,
		watchInterval:   watchInterval,
		sessions:        make(map[string]*watchSession),
	}
}

func watchKey(accountID, orderID string) string {
	return accountID + "/" + orderID
}

// Open fetches the order and starts the view's background tasks. Opening
// an already-open watch returns the existing session's coordinator.
func (r *WatchRegistry) Open(ctx context.Context, accountID, orderID string) (*orderflow.Coordinator, error) {
	r.mu.Lock()
	if session, ok := r.sessions[watchKey(accountID, orderID)]; ok {
		r.mu.Unlock()
		return session.coord, nil
	}
	r.mu.Unlock()

	order, err := r.backend.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	coord := orderflow.NewCoordinator(r.backend, r.notifier, *order)
	session := &watchSession{
		coord:   coord,
		watcher: poller.NewCancellationWatcher(orderID, r.backend, coord, r.notifier, r.watchInterval),
	}
	if poller.ShouldPoll(*order) {
		session.payment = poller.NewPaymentPoller(orderID, r.backend, coord, r.carts.For(accountID), r.notifier, r.paymentInterval)
	}

	r.mu.Lock()
	if existing, ok := r.sessions[watchKey(accountID, orderID)]; ok {
		// Lost the race to another open; use the session that won.
		r.mu.Unlock()
		return existing.coord, nil
	}
	r.sessions[watchKey(accountID, orderID)] = session
	r.mu.Unlock()

	session.watcher.Start()
	if session.payment != nil {
		session.payment.Start()
	}
	return coord, nil
}

// Close tears down one view's tasks. Reports whether a watch was open.
func (r *WatchRegistry) Close(accountID, orderID string) bool {
	r.mu.Lock()
	session, ok := r.sessions[watchKey(accountID, orderID)]
	delete(r.sessions, watchKey(accountID, orderID))
	r.mu.Unlock()
	if !ok {
		return false
	}
	session.stop()
	return true
}

// CloseAll tears down every open watch; used on shutdown.
func (r *WatchRegistry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*watchSession)
	r.mu.Unlock()
	for _, session := range sessions {
		session.stop()
	}
}

// Coordinator returns the open session's coordinator, or a transient one
// built from a fresh fetch when the view is not being watched.
func (r *WatchRegistry) Coordinator(ctx context.Context, accountID, orderID string) (*orderflow.Coordinator, error) {
	r.mu.Lock()
	session, ok := r.sessions[watchKey(accountID, orderID)]
	r.mu.Unlock()
	if ok {
		return session.coord, nil
	}

	order, err := r.backend.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return orderflow.NewCoordinator(r.backend, r.notifier, *order), nil
}
