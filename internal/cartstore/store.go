package cartstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/pawmart/storefront/internal/backend"
	"github.com/pawmart/storefront/internal/cache"
	"github.com/pawmart/storefront/internal/domain"
	"github.com/pawmart/storefront/internal/notify"
)

// Backend is the slice of the backend client the store needs.
type Backend interface {
	GetMyCart(ctx context.Context) (*domain.CartSnapshot, error)
	AddCartItem(ctx context.Context, productID int64, quantity int, price decimal.Decimal) error
	UpdateCartItem(ctx context.Context, itemID string, productID int64, quantity int, price decimal.Decimal) error
	DeleteCartItem(ctx context.Context, itemID string) error
}

const localIDPrefix = "local-"

// Store holds one session's cart snapshot and mutates it only through
// reconciled round-trips to the backend. When the backend's cart endpoints
// are not deployed yet it degrades to local-only state, which lives for
// the session and is silently replaced once a backend read succeeds.
type Store struct {
	accountID string
	backend   Backend
	cache     cache.SnapshotCache // nil disables caching
	notifier  notify.Notifier

	mu         sync.Mutex
	snapshot   domain.CartSnapshot
	seq        uint64
	appliedSeq uint64
	subs       []func(domain.CartSnapshot)

	sfg singleflight.Group // collapses concurrent loads
}

func NewStore(accountID string, b Backend, c cache.SnapshotCache, n notify.Notifier) *Store {
	return &Store{
		accountID: accountID,
		backend:   b,
		cache:     c,
		notifier:  n,
	}
}

// Load fetches the authoritative snapshot and replaces local state. It is
// invoked explicitly by cart-sensitive views, never automatically: the
// backing endpoint may not exist yet, in which case the current local
// state is kept and no error is surfaced.
func (s *Store) Load(ctx context.Context) error {
	_, err, _ := s.sfg.Do(s.accountID, func() (interface{}, error) {
		if s.cache != nil {
			snap, cacheErr := s.cache.Get(ctx, s.accountID)
			if cacheErr == nil {
				s.applySnapshot(*snap, s.nextSeq())
				return nil, nil
			}
			if !errors.Is(cacheErr, cache.ErrCacheMiss) {
				log.Printf("[cartstore] cache get error: %v", cacheErr)
			}
		}
		return nil, s.reload(ctx)
	})
	if errors.Is(err, backend.ErrNotImplemented) {
		log.Printf("[cartstore] cart read endpoint unavailable, keeping local state")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	return nil
}

// AddItem posts a new line and re-fetches the snapshot. A duplicate-line
// conflict is recovered transparently by merging quantities; an absent
// backend endpoint degrades to a local-only append with a synthetic id.
func (s *Store) AddItem(ctx context.Context, product domain.Product, quantity int) error {
	if s.accountID == "" {
		s.notifier.Error(ctx, s.accountID, "please sign in to add items to your cart")
		return fmt.Errorf("add to cart: %w", backend.ErrAuthRequired)
	}

	s.invalidateCache()
	err := s.backend.AddCartItem(ctx, product.ID, quantity, product.Price)
	switch {
	case err == nil:
	case errors.Is(err, backend.ErrConflict):
		if mergeErr := s.mergeExistingLine(ctx, product, quantity); mergeErr != nil {
			s.notifier.Error(ctx, s.accountID, "could not add item to cart")
			return fmt.Errorf("add to cart: %w", mergeErr)
		}
	case errors.Is(err, backend.ErrNotImplemented):
		s.applyLocalAdd(product, quantity)
		log.Printf("[cartstore] cart add endpoint unavailable, keeping local line for product %d", product.ID)
		s.notifier.Success(ctx, s.accountID, fmt.Sprintf("%s added to cart", product.Name))
		return nil
	default:
		s.notifier.Error(ctx, s.accountID, userMessage(err, "could not add item to cart"))
		return fmt.Errorf("add to cart: %w", err)
	}

	s.reconcile(ctx, func() { s.applyLocalAdd(product, quantity) })
	s.notifier.Success(ctx, s.accountID, fmt.Sprintf("%s added to cart", product.Name))
	return nil
}

// UpdateQuantity pushes the new quantity then reloads. A quantity of zero
// or less is a removal.
func (s *Store) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, itemID)
	}

	item, ok := s.findItem(itemID)
	if !ok {
		s.notifier.Error(ctx, s.accountID, "cart item no longer exists")
		return fmt.Errorf("update quantity: %w", backend.ErrNotFound)
	}

	if isLocalID(itemID) {
		s.patchQuantity(itemID, quantity)
		s.notifier.Success(ctx, s.accountID, "cart updated")
		return nil
	}

	s.invalidateCache()
	err := s.backend.UpdateCartItem(ctx, itemID, item.ProductID, quantity, item.UnitPrice)
	switch {
	case err == nil:
		s.reconcile(ctx, func() { s.patchQuantity(itemID, quantity) })
	case errors.Is(err, backend.ErrNotImplemented):
		s.patchQuantity(itemID, quantity)
	default:
		s.notifier.Error(ctx, s.accountID, userMessage(err, "could not update cart"))
		return fmt.Errorf("update quantity: %w", err)
	}

	s.notifier.Success(ctx, s.accountID, "cart updated")
	return nil
}

// RemoveItem deletes the line remotely then reloads, or filters it out
// locally under the fallback rule.
func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	if isLocalID(itemID) {
		s.dropItems(map[string]bool{itemID: true})
		s.notifier.Success(ctx, s.accountID, "item removed from cart")
		return nil
	}

	s.invalidateCache()
	err := s.backend.DeleteCartItem(ctx, itemID)
	switch {
	case err == nil:
		s.reconcile(ctx, func() { s.dropItems(map[string]bool{itemID: true}) })
	case errors.Is(err, backend.ErrNotImplemented):
		s.dropItems(map[string]bool{itemID: true})
	default:
		s.notifier.Error(ctx, s.accountID, userMessage(err, "could not remove item from cart"))
		return fmt.Errorf("remove item: %w", err)
	}

	s.notifier.Success(ctx, s.accountID, "item removed from cart")
	return nil
}

// Clear removes every line individually; there is no bulk-delete endpoint.
// Local state is cleared only for the deletes that resolved, so a partial
// failure leaves a partially-cleared cart behind.
func (s *Store) Clear(ctx context.Context) error {
	return s.clear(ctx, false)
}

// ClearQuiet is Clear without user notifications, for callers like the
// payment poller whose own outcome must not be muddied by cart errors.
func (s *Store) ClearQuiet(ctx context.Context) error {
	return s.clear(ctx, true)
}

func (s *Store) clear(ctx context.Context, quiet bool) error {
	items := s.Snapshot().Items

	removed := make(map[string]bool, len(items))
	var firstErr error
	failures := 0
	for _, item := range items {
		if isLocalID(item.ID) {
			removed[item.ID] = true
			continue
		}
		err := s.backend.DeleteCartItem(ctx, item.ID)
		if err == nil || errors.Is(err, backend.ErrNotImplemented) {
			removed[item.ID] = true
			continue
		}
		failures++
		if firstErr == nil {
			firstErr = err
		}
	}

	s.dropItems(removed)
	s.invalidateCache()

	if failures > 0 {
		if !quiet {
			s.notifier.Error(ctx, s.accountID, "some items could not be removed from your cart")
		}
		return fmt.Errorf("clear cart: %d items not removed: %w", failures, firstErr)
	}
	if !quiet {
		s.notifier.Success(ctx, s.accountID, "cart cleared")
	}
	return nil
}

// TotalItems is a pure derived read over the current snapshot.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.TotalItems()
}

// TotalPrice prefers each line's own total, falling back to
// unitPrice * quantity.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.TotalPrice()
}

func (s *Store) Snapshot() domain.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

// Subscribe registers a listener invoked with a copy of the snapshot
// after every applied change.
func (s *Store) Subscribe(fn func(domain.CartSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// reload fetches the snapshot and applies it unless a newer state was
// applied while the request was in flight.
func (s *Store) reload(ctx context.Context) error {
	seq := s.nextSeq()
	snap, err := s.backend.GetMyCart(ctx)
	if err != nil {
		return err
	}
	s.applySnapshot(*snap, seq)
	s.cacheSet(snap)
	return nil
}

// reconcile runs the post-mutation reload; when the read path is absent
// it applies the given local patch instead, and any other reload failure
// is only logged because the write itself already succeeded.
func (s *Store) reconcile(ctx context.Context, patch func()) {
	err := s.reload(ctx)
	if errors.Is(err, backend.ErrNotImplemented) {
		patch()
		return
	}
	if err != nil {
		log.Printf("[cartstore] reload after write failed: %v", err)
	}
}

// mergeExistingLine recovers from a duplicate-line conflict: fetch the
// current snapshot, find the colliding line and push the summed quantity.
func (s *Store) mergeExistingLine(ctx context.Context, product domain.Product, quantity int) error {
	snap, err := s.backend.GetMyCart(ctx)
	if err != nil {
		return fmt.Errorf("recover duplicate line: %w", err)
	}
	idx := snap.FindByProduct(product.ID)
	if idx < 0 {
		// The line vanished between the conflict and the read; the
		// reload that follows reconciles whatever state remains.
		return nil
	}
	line := snap.Items[idx]
	newQuantity := line.Quantity + quantity
	if err := s.backend.UpdateCartItem(ctx, line.ID, product.ID, newQuantity, line.UnitPrice); err != nil {
		return fmt.Errorf("recover duplicate line: %w", err)
	}
	return nil
}

func (s *Store) applySnapshot(snap domain.CartSnapshot, seq uint64) {
	s.mu.Lock()
	if seq <= s.appliedSeq {
		// A newer state was applied while this response was in flight.
		s.mu.Unlock()
		return
	}
	s.appliedSeq = seq
	s.snapshot = snap
	subs, copied := s.subsAndCopyLocked()
	s.mu.Unlock()
	for _, fn := range subs {
		fn(copied)
	}
}

func (s *Store) applyLocalAdd(product domain.Product, quantity int) {
	s.mu.Lock()
	if idx := s.snapshot.FindByProduct(product.ID); idx >= 0 {
		s.snapshot.Items[idx].Quantity += quantity
		s.snapshot.Items[idx].Total = decimal.Zero
	} else {
		p := product
		s.snapshot.Items = append(s.snapshot.Items, domain.CartItem{
			ID:        localIDPrefix + uuid.NewString(),
			ProductID: product.ID,
			Quantity:  quantity,
			UnitPrice: product.Price,
			Product:   &p,
		})
	}
	s.appliedSeq = s.nextSeqLocked()
	subs, copied := s.subsAndCopyLocked()
	s.mu.Unlock()
	for _, fn := range subs {
		fn(copied)
	}
}

func (s *Store) patchQuantity(itemID string, quantity int) {
	s.mu.Lock()
	for i := range s.snapshot.Items {
		if s.snapshot.Items[i].ID == itemID {
			s.snapshot.Items[i].Quantity = quantity
			s.snapshot.Items[i].Total = decimal.Zero
			break
		}
	}
	s.appliedSeq = s.nextSeqLocked()
	subs, copied := s.subsAndCopyLocked()
	s.mu.Unlock()
	for _, fn := range subs {
		fn(copied)
	}
}

func (s *Store) dropItems(ids map[string]bool) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	kept := s.snapshot.Items[:0]
	for _, item := range s.snapshot.Items {
		if !ids[item.ID] {
			kept = append(kept, item)
		}
	}
	s.snapshot.Items = kept
	s.appliedSeq = s.nextSeqLocked()
	subs, copied := s.subsAndCopyLocked()
	s.mu.Unlock()
	for _, fn := range subs {
		fn(copied)
	}
}

func (s *Store) findItem(itemID string) (domain.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.snapshot.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return domain.CartItem{}, false
}

func (s *Store) subsAndCopyLocked() ([]func(domain.CartSnapshot), domain.CartSnapshot) {
	subs := make([]func(domain.CartSnapshot), len(s.subs))
	copy(subs, s.subs)
	return subs, s.snapshot.Clone()
}

func (s *Store) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeqLocked()
}

func (s *Store) nextSeqLocked() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) cacheSet(snap *domain.CartSnapshot) {
	if s.cache == nil {
		return
	}
	go func() {
		if err := s.cache.Set(context.Background(), s.accountID, snap); err != nil {
			log.Printf("[cartstore] cache set error: %v", err)
		}
	}()
}

func (s *Store) invalidateCache() {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, s.accountID); err != nil {
		log.Printf("[cartstore] cache invalidate error: %v", err)
	}
}

func isLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

// userMessage prefers the message the backend put in the response body
// and falls back to a generic localized string.
func userMessage(err error, fallback string) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	switch {
	case errors.Is(err, backend.ErrAuthRequired):
		return "please sign in"
	case errors.Is(err, backend.ErrForbidden):
		return "not permitted"
	case errors.Is(err, backend.ErrNotFound):
		return "record no longer exists"
	}
	return fallback
}
