package domain

import (
	"fmt"
	"strings"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// transitions is the complete set of legal status edges. Anything not
// listed here is rejected before the backend is called.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped},
	OrderStatusShipped: {OrderStatusDelivered},
}

func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseOrderStatus maps backend spellings onto the canonical enum. The
// backend is inconsistent about casing and uses CANCEL in some responses,
// so the mapping lives here at the boundary and nowhere else.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING":
		return OrderStatusPending, nil
	case "PAID":
		return OrderStatusPaid, nil
	case "SHIPPED":
		return OrderStatusShipped, nil
	case "DELIVERED":
		return OrderStatusDelivered, nil
	case "CANCELLED", "CANCELED", "CANCEL":
		return OrderStatusCancelled, nil
	}
	return "", fmt.Errorf("unknown order status %q", raw)
}

// InvalidTransitionError reports a rejected status change, carrying both
// ends of the attempted edge so the UI can explain what went wrong.
type InvalidTransitionError struct {
	From   OrderStatus
	To     OrderStatus
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("illegal order status transition %s -> %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("illegal order status transition %s -> %s", e.From, e.To)
}
