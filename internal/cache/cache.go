package cache

import (
	"context"
	"errors"

	"github.com/pawmart/storefront/internal/domain"
)

// SnapshotCache fronts the backend cart read with a short-lived copy of
// the last reconciled snapshot. Mutations invalidate; misses fall through.
type SnapshotCache interface {
	Get(ctx context.Context, accountID string) (*domain.CartSnapshot, error)
	Set(ctx context.Context, accountID string, snapshot *domain.CartSnapshot) error
	Delete(ctx context.Context, accountID string) error
}

var ErrCacheMiss = errors.New("cache miss")
