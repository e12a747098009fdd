// Package notify announces placed orders to the kitchen and the customer.
package notify

import (
	"context"
	"log/slog"
	"time"

	"restaurant-ordering/models"
	"restaurant-ordering/pricing"
)

// OrderPlaced is published once an order has been paid and recorded.
type OrderPlaced struct {
	EventType string              `json:"event_type"`
	OrderID   string              `json:"order_id"`
	DraftID   string              `json:"draft_id"`
	UserID    string              `json:"user_id"`
	Customer  models.CustomerInfo `json:"customer"`
	Items     []Item              `json:"items"`
	Total     string              `json:"total"`
	Currency  string              `json:"currency"`
	Timestamp time.Time           `json:"timestamp"`
}

type Item struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// NewOrderPlaced builds the event for a recorded draft.
func NewOrderPlaced(draft models.OrderDraft, orderID string, at time.Time) OrderPlaced {
	ev := OrderPlaced{
		EventType: "OrderPlaced",
		OrderID:   orderID,
		DraftID:   draft.ID,
		UserID:    draft.UserID,
		Customer:  draft.Customer,
		Total:     pricing.Format(draft.Totals.Total),
		Currency:  draft.Currency,
		Timestamp: at.UTC(),
	}
	for _, l := range draft.Lines {
		ev.Items = append(ev.Items, Item{
			ItemID:   l.ItemID,
			Name:     l.Name,
			Quantity: l.Quantity,
			Price:    pricing.Format(l.UnitPrice),
		})
	}
	return ev
}

// Notifier delivers OrderPlaced events.
type Notifier interface {
	OrderPlaced(ctx context.Context, ev OrderPlaced) error
}

// LogNotifier only logs the event. Used when no broker is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) OrderPlaced(ctx context.Context, ev OrderPlaced) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Order placed", "order_id", ev.OrderID, "draft_id", ev.DraftID, "total", ev.Total, "items", len(ev.Items))
	return nil
}
