package payment

import (
	"context"
	"fmt"
	"time"

	"restaurant-ordering/models"
	"restaurant-ordering/pricing"

	"github.com/shopspring/decimal"
)

// Simulator is an in-process gateway for development and tests. It approves
// any positive amount up to Limit.
type Simulator struct {
	Limit decimal.Decimal
	Delay time.Duration
}

// NewSimulator creates a simulator with the default 9999.00 limit
func NewSimulator() *Simulator {
	return &Simulator{Limit: decimal.NewFromInt(9999)}
}

// Charge returns a deterministic reference derived from the draft and attempt.
func (s *Simulator) Charge(ctx context.Context, draft models.OrderDraft, attempt int) (models.PaymentResult, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return models.PaymentResult{}, ctx.Err()
		}
	}

	total := draft.Totals.Total.Round(2)
	if !total.IsPositive() {
		return models.PaymentResult{}, fmt.Errorf("%w: %s", ErrInvalidAmount, pricing.Format(total))
	}

	ref := "pi_sim_" + IdempotencyKey(shortID(draft.ID), attempt)
	if total.GreaterThan(s.Limit) {
		return models.PaymentResult{
			Ref:           ref,
			Status:        models.PaymentStatusFailed,
			FailureReason: "Payment amount exceeds authorization limit",
		}, nil
	}
	return models.PaymentResult{Ref: ref, Status: models.PaymentStatusSucceeded}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
