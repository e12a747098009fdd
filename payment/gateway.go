// Package payment charges order drafts through a payment gateway.
package payment

import (
	"context"
	"errors"
	"fmt"

	"restaurant-ordering/models"
)

var (
	ErrInvalidAmount = errors.New("invalid payment amount")
	ErrGateway       = errors.New("payment gateway error")
)

// Gateway charges the total of a draft. A declined charge is reported in
// the result; the error is reserved for requests that did not complete.
type Gateway interface {
	Charge(ctx context.Context, draft models.OrderDraft, attempt int) (models.PaymentResult, error)
}

// IdempotencyKey identifies one charge attempt of a draft. Repeating an
// attempt with the same key never charges twice.
func IdempotencyKey(draftID string, attempt int) string {
	return fmt.Sprintf("%s-%d", draftID, attempt)
}
