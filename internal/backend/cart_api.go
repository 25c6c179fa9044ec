package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/domain"
)

// The cart endpoints are the newest part of the backend and some are not
// deployed yet; they answer 400 until they exist. That case is mapped to
// ErrNotImplemented so the store can degrade to local-only state.

type cartLineRequest struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// GetMyCart fetches the authoritative snapshot for the calling account.
func (c *Client) GetMyCart(ctx context.Context) (*domain.CartSnapshot, error) {
	code, body, err := c.roundTrip(ctx, http.MethodGet, "/carts/my", nil)
	if err != nil {
		return nil, err
	}
	switch code {
	case http.StatusOK:
		return normalizeCartPayload(body)
	case http.StatusBadRequest:
		return nil, ErrNotImplemented
	default:
		return nil, statusError(code, body)
	}
}

func (c *Client) AddCartItem(ctx context.Context, productID int64, quantity int, price decimal.Decimal) error {
	code, body, err := c.roundTrip(ctx, http.MethodPost, "/carts", cartLineRequest{
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
	})
	if err != nil {
		return err
	}
	switch code {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadRequest:
		return ErrNotImplemented
	default:
		return statusError(code, body)
	}
}

func (c *Client) UpdateCartItem(ctx context.Context, itemID string, productID int64, quantity int, price decimal.Decimal) error {
	code, body, err := c.roundTrip(ctx, http.MethodPut, "/carts/"+itemID, cartLineRequest{
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
	})
	if err != nil {
		return err
	}
	switch code {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusBadRequest:
		return ErrNotImplemented
	default:
		return statusError(code, body)
	}
}

func (c *Client) DeleteCartItem(ctx context.Context, itemID string) error {
	code, body, err := c.roundTrip(ctx, http.MethodDelete, "/carts/"+itemID, nil)
	if err != nil {
		return err
	}
	switch code {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusBadRequest:
		return ErrNotImplemented
	default:
		return statusError(code, body)
	}
}

// normalizeCartPayload turns either response shape the backend produces
// (a bare array, or an object wrapping an items array) into the one
// canonical snapshot type before anything else touches the data.
func normalizeCartPayload(body []byte) (*domain.CartSnapshot, error) {
	var items []domain.CartItem
	if err := json.Unmarshal(body, &items); err == nil {
		return &domain.CartSnapshot{Items: items}, nil
	}

	var wrapped struct {
		Items []domain.CartItem `json:"items"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("unrecognized cart payload: %w", err)
	}
	return &domain.CartSnapshot{Items: wrapped.Items}, nil
}
