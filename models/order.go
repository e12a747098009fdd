package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem is a dish as listed on the menu
type MenuItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ImageRef    string          `json:"image,omitempty"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
}

// CartLine represents a single menu item and its quantity in the cart
type CartLine struct {
	ItemID    string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageRef  string          `json:"image,omitempty"`
}

// LineTotal returns the unrounded unit price times quantity
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CustomerInfo holds the delivery details collected at checkout
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// User is the signed-in account as reported by the auth service
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Totals holds the monetary breakdown of an order at full precision
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Total       decimal.Decimal `json:"total"`
}

// Rounded returns the totals rounded to two decimal places
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal:    t.Subtotal.Round(2),
		Tax:         t.Tax.Round(2),
		DeliveryFee: t.DeliveryFee.Round(2),
		Total:       t.Total.Round(2),
	}
}

// OrderDraft is the immutable snapshot handed to the payment step.
// It is never persisted locally.
type OrderDraft struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id"`
	UserID    string       `json:"user_id"`
	Lines     []CartLine   `json:"lines"`
	Customer  CustomerInfo `json:"customer"`
	Totals    Totals       `json:"totals"`
	Currency  string       `json:"currency"`
	CreatedAt time.Time    `json:"created_at"`
}

// PaymentStatus is the outcome reported by the payment gateway
type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentResult is the response of a charge attempt
type PaymentResult struct {
	Ref           string        `json:"payment_ref"`
	Status        PaymentStatus `json:"status"`
	FailureReason string        `json:"failure_reason,omitempty"`
}

// Succeeded reports whether the charge was captured
func (r PaymentResult) Succeeded() bool {
	return r.Status == PaymentStatusSucceeded
}

// OrderStatus represents the current status of a stored order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderRecord is an order as read back from order storage
type OrderRecord struct {
	ID              string            `json:"id"`
	Total           decimal.Decimal   `json:"total"`
	Status          OrderStatus       `json:"status"`
	CustomerName    string            `json:"customer_name"`
	CustomerPhone   string            `json:"customer_phone"`
	DeliveryAddress string            `json:"delivery_address"`
	PaymentRef      string            `json:"payment_ref,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []OrderRecordItem `json:"order_items"`
}

// OrderRecordItem represents a single item of a stored order
type OrderRecordItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"item_name"`
	ImageRef string          `json:"item_image,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}
