package activities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"restaurant-ordering/cart"
	"restaurant-ordering/models"
	"restaurant-ordering/notify"
	"restaurant-ordering/payment"
	"restaurant-ordering/preferences"
	"restaurant-ordering/storage"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// Sessions resolves the signed-in user of a device session.
type Sessions interface {
	CurrentUser(ctx context.Context, sessionID string) (*models.User, error)
	AccessToken(ctx context.Context, sessionID string) (string, error)
}

// OrderWriter records paid orders.
type OrderWriter interface {
	CreateOrder(ctx context.Context, token string, draft models.OrderDraft, paymentRef string) (string, error)
}

// CheckoutContext is what the checkout needs to know about a session at submit time.
type CheckoutContext struct {
	Lines   []models.CartLine   `json:"lines"`
	User    *models.User        `json:"user,omitempty"`
	Profile preferences.Profile `json:"profile"`
}

// CheckoutActivities contains the side effects of a checkout
type CheckoutActivities struct {
	kv       storage.Store
	sessions Sessions
	gateway  payment.Gateway
	orders   OrderWriter
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewCheckoutActivities creates a new CheckoutActivities instance. logger
// receives the warnings of the cart and preference stores; nil means
// slog.Default.
func NewCheckoutActivities(kv storage.Store, sessions Sessions, gateway payment.Gateway, orders OrderWriter, notifier notify.Notifier, logger *slog.Logger) *CheckoutActivities {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutActivities{
		kv:       kv,
		sessions: sessions,
		gateway:  gateway,
		orders:   orders,
		notifier: notifier,
		logger:   logger,
	}
}

// storeLogger scopes store warnings to the session and the running activity.
func (a *CheckoutActivities) storeLogger(ctx context.Context, sessionID string) *slog.Logger {
	l := a.logger.With("session_id", sessionID)
	if activity.IsActivity(ctx) {
		info := activity.GetInfo(ctx)
		l = l.With("activity", info.ActivityType.Name, "workflow_id", info.WorkflowExecution.ID)
	}
	return l
}

// LoadCheckoutContext reads the cart, the signed-in user and the saved
// profile of a session.
func (a *CheckoutActivities) LoadCheckoutContext(ctx context.Context, sessionID string) (CheckoutContext, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Loading checkout context", "session_id", sessionID)

	storeLogger := a.storeLogger(ctx, sessionID)
	c, err := cart.Open(ctx, a.kv, sessionID, storeLogger)
	if err != nil {
		return CheckoutContext{}, fmt.Errorf("failed to load cart: %w", err)
	}

	user, err := a.sessions.CurrentUser(ctx, sessionID)
	if err != nil {
		return CheckoutContext{}, fmt.Errorf("failed to load session: %w", err)
	}

	profile, err := preferences.New(a.kv, sessionID, storeLogger).Profile(ctx)
	if err != nil {
		return CheckoutContext{}, fmt.Errorf("failed to load profile: %w", err)
	}

	logger.Info("Checkout context loaded", "session_id", sessionID, "lines", len(c.Items()), "signed_in", user != nil)
	return CheckoutContext{Lines: c.Items(), User: user, Profile: profile}, nil
}

// Charge charges the draft total. A declined payment is a result, not an error.
func (a *CheckoutActivities) Charge(ctx context.Context, draft models.OrderDraft, attempt int) (models.PaymentResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Charging payment", "draft_id", draft.ID, "attempt", attempt, "amount", draft.Totals.Total.StringFixed(2))

	activity.RecordHeartbeat(ctx, "charging payment")

	result, err := a.gateway.Charge(ctx, draft, attempt)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidAmount) {
			return models.PaymentResult{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidAmount", err)
		}
		return models.PaymentResult{}, fmt.Errorf("failed to charge payment: %w", err)
	}

	if result.Succeeded() {
		logger.Info("Payment succeeded", "draft_id", draft.ID, "payment_ref", result.Ref)
	} else {
		logger.Warn("Payment declined", "draft_id", draft.ID, "reason", result.FailureReason)
	}
	return result, nil
}

// CreateOrder records the paid draft and returns the order ID.
func (a *CheckoutActivities) CreateOrder(ctx context.Context, draft models.OrderDraft, paymentRef string) (string, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Creating order", "draft_id", draft.ID, "payment_ref", paymentRef)

	token, err := a.sessions.AccessToken(ctx, draft.SessionID)
	if err != nil {
		return "", temporal.NewNonRetryableApplicationError("session expired", "Unauthenticated", err)
	}

	activity.RecordHeartbeat(ctx, "writing order")

	orderID, err := a.orders.CreateOrder(ctx, token, draft, paymentRef)
	if err != nil {
		logger.Error("Order write failed", "draft_id", draft.ID, "partial_order_id", orderID, "error", err)
		return "", fmt.Errorf("failed to create order: %w", err)
	}

	logger.Info("Order created", "draft_id", draft.ID, "order_id", orderID)
	return orderID, nil
}

// NotifyCustomer publishes the placed order unless the customer opted out.
func (a *CheckoutActivities) NotifyCustomer(ctx context.Context, draft models.OrderDraft, orderID string) error {
	logger := activity.GetLogger(ctx)

	enabled, err := preferences.New(a.kv, draft.SessionID, a.storeLogger(ctx, draft.SessionID)).Notifications(ctx)
	if err != nil {
		return fmt.Errorf("failed to read notification preference: %w", err)
	}
	if !enabled {
		logger.Info("Notifications disabled, skipping", "order_id", orderID)
		return nil
	}

	logger.Info("Notifying customer", "order_id", orderID)
	if err := a.notifier.OrderPlaced(ctx, notify.NewOrderPlaced(draft, orderID, time.Now())); err != nil {
		return fmt.Errorf("failed to notify customer: %w", err)
	}

	logger.Info("Customer notified successfully", "order_id", orderID)
	return nil
}

// ClearCart empties the cart of a session after a completed checkout.
func (a *CheckoutActivities) ClearCart(ctx context.Context, sessionID string) error {
	logger := activity.GetLogger(ctx)

	c, err := cart.Open(ctx, a.kv, sessionID, a.storeLogger(ctx, sessionID))
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}
	if err := c.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	logger.Info("Cart cleared", "session_id", sessionID)
	return nil
}
