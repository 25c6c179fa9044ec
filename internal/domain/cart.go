package domain

import "github.com/shopspring/decimal"

// Product is the subset of catalog data the cart needs to render a line
// without another round-trip.
type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl,omitempty"`
}

type CartItem struct {
	ID        string          `json:"id"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Total     decimal.Decimal `json:"total"`
	Product   *Product        `json:"product,omitempty"`
}

// LineTotal prefers the server-supplied total and falls back to
// unitPrice * quantity when the backend did not compute one.
func (i CartItem) LineTotal() decimal.Decimal {
	if !i.Total.IsZero() {
		return i.Total
	}
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartSnapshot is the full cart state as last reconciled with the backend.
// It is owned by the cart store; view code only ever sees copies.
type CartSnapshot struct {
	Items []CartItem `json:"items"`
}

func (s CartSnapshot) TotalItems() int {
	n := 0
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}

func (s CartSnapshot) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// FindByProduct returns the index of the line holding productID, or -1.
// At most one line per product may exist in a snapshot.
func (s CartSnapshot) FindByProduct(productID int64) int {
	for i := range s.Items {
		if s.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (s CartSnapshot) Clone() CartSnapshot {
	items := make([]CartItem, len(s.Items))
	copy(items, s.Items)
	return CartSnapshot{Items: items}
}
