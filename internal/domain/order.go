package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
)

// IsSettled reports whether the payment fact behind this projection is
// already final. paymentInfo lags the order status, so callers check both.
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentStatusPaid || s == PaymentStatusCompleted
}

type PaymentInfo struct {
	Status      PaymentStatus   `json:"status"`
	QRCodeURL   string          `json:"qrCodeUrl"`
	BankID      string          `json:"bankId"`
	AccountNo   string          `json:"accountNo"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// OrderItem lines are immutable once the order is created.
type OrderItem struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID        string       `json:"orderId"`
	AccountID string       `json:"accountId"`
	Status    OrderStatus  `json:"status"`
	Items     []OrderItem  `json:"items"`
	Payment   *PaymentInfo `json:"paymentInfo,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// PaymentSettled checks the lagging paymentInfo projection together with
// the order status; neither field alone is trusted to gate actions.
func (o Order) PaymentSettled() bool {
	if o.Status == OrderStatusPaid {
		return true
	}
	return o.Payment != nil && o.Payment.Status.IsSettled()
}
