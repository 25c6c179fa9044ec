package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/domain"
)

type orderPayload struct {
	ID        string             `json:"orderId"`
	AccountID string             `json:"accountId"`
	Status    string             `json:"status"`
	Items     []domain.OrderItem `json:"items"`
	Payment   *paymentPayload    `json:"paymentInfo"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type paymentPayload struct {
	Status      string          `json:"status"`
	QRCodeURL   string          `json:"qrCodeUrl"`
	BankID      string          `json:"bankId"`
	AccountNo   string          `json:"accountNo"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	code, body, err := c.roundTrip(ctx, http.MethodGet, "/orders/"+orderID, nil)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, statusError(code, body)
	}
	return decodeOrder(body)
}

// ConfirmPayment marks the order's payment received. Only legal from
// PENDING; the coordinator preflights that before calling here.
func (c *Client) ConfirmPayment(ctx context.Context, orderID string) (*domain.Order, error) {
	code, body, err := c.roundTrip(ctx, http.MethodPatch, "/orders/"+orderID+"/confirm-payment", nil)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, statusError(code, body)
	}
	return decodeOrder(body)
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	code, body, err := c.roundTrip(ctx, http.MethodPatch, "/orders/"+orderID+"/cancel", nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK && code != http.StatusNoContent {
		return statusError(code, body)
	}
	return nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	code, body, err := c.roundTrip(ctx, http.MethodPatch, "/orders/"+orderID+"/status", map[string]string{
		"status": status.String(),
	})
	if err != nil {
		return err
	}
	if code != http.StatusOK && code != http.StatusNoContent {
		return statusError(code, body)
	}
	return nil
}

func (c *Client) GetPaymentQR(ctx context.Context, orderID string) (*domain.PaymentInfo, error) {
	code, body, err := c.roundTrip(ctx, http.MethodGet, "/orders/"+orderID+"/payment-qr", nil)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, statusError(code, body)
	}
	var payload paymentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payment info failed: %w", err)
	}
	info := payload.toDomain()
	return &info, nil
}

func decodeOrder(body []byte) (*domain.Order, error) {
	var payload orderPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal order failed: %w", err)
	}

	status, err := domain.ParseOrderStatus(payload.Status)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:        payload.ID,
		AccountID: payload.AccountID,
		Status:    status,
		Items:     payload.Items,
		CreatedAt: payload.CreatedAt,
		UpdatedAt: payload.UpdatedAt,
	}
	if payload.Payment != nil {
		info := payload.Payment.toDomain()
		order.Payment = &info
	}
	return order, nil
}

func (p paymentPayload) toDomain() domain.PaymentInfo {
	return domain.PaymentInfo{
		Status:      domain.PaymentStatus(strings.ToUpper(strings.TrimSpace(p.Status))),
		QRCodeURL:   p.QRCodeURL,
		BankID:      p.BankID,
		AccountNo:   p.AccountNo,
		Amount:      p.Amount,
		Description: p.Description,
	}
}
