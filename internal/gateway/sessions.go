package gateway

import (
	"sync"

	"github.com/pawmart/storefront/internal/cartstore"
)

// CartStoreFactory builds one cart store per authenticated session.
type CartStoreFactory func(accountID string) *cartstore.Store

// StoreRegistry hands out the per-account cart store, creating it on
// first use. Stores are session-scoped, never shared across accounts.
type StoreRegistry struct {
	mu      sync.Mutex
	stores  map[string]*cartstore.Store
	factory CartStoreFactory
}

func NewStoreRegistry(factory CartStoreFactory) *StoreRegistry {
	return &StoreRegistry{
		stores:  make(map[string]*cartstore.Store),
		factory: factory,
	}
}

func (r *StoreRegistry) For(accountID string) *cartstore.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[accountID]
	if !ok {
		store = r.factory(accountID)
		r.stores[accountID] = store
	}
	return store
}
