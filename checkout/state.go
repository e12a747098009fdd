// Package checkout is the checkout state machine. It has no I/O: Reduce
// maps a state and an event to the next state plus the effects the driver
// must run, and the driver feeds the effect outcomes back as events.
package checkout

import (
	"time"

	"restaurant-ordering/models"
	"restaurant-ordering/pricing"
)

// Phase is the checkout step currently shown to the customer
type Phase string

const (
	PhaseIdle            Phase = "IDLE"
	PhaseValidating      Phase = "VALIDATING"
	PhaseAwaitingPayment Phase = "AWAITING_PAYMENT"
	PhasePersisting      Phase = "PERSISTING"
	PhaseSucceeded       Phase = "SUCCEEDED"
	PhaseFailed          Phase = "FAILED"
)

// InFlight reports whether a checkout attempt is running and must resolve
// before any new action is accepted.
func (p Phase) InFlight() bool {
	return p == PhaseValidating || p == PhaseAwaitingPayment || p == PhasePersisting
}

// IsTerminal reports whether the phase ends an attempt.
func (p Phase) IsTerminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

func (p Phase) String() string {
	return string(p)
}

// FailureKind distinguishes failures for the presentation layer
type FailureKind string

const (
	FailureValidation      FailureKind = "validation"
	FailureUnauthenticated FailureKind = "unauthenticated"
	FailurePayment         FailureKind = "payment"
	FailureOrderWrite      FailureKind = "order_write"
)

// Failure is the user-facing error of a failed attempt
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (f Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Retryable reports whether Retry is accepted for this failure.
func (f Failure) Retryable() bool {
	return f.Kind == FailurePayment || f.Kind == FailureOrderWrite
}

// FieldError is an inline form error. It never leaves the form.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Submission is everything captured when the customer presses "place order"
type Submission struct {
	DraftID     string              `json:"draft_id"`
	SessionID   string              `json:"session_id"`
	Customer    models.CustomerInfo `json:"customer"`
	Lines       []models.CartLine   `json:"lines"`
	User        *models.User        `json:"user,omitempty"`
	Rates       pricing.Rates       `json:"rates"`
	SubmittedAt time.Time           `json:"submitted_at"`
}

// State is the checkout state exposed to the presentation layer
type State struct {
	Phase       Phase               `json:"phase"`
	Customer    models.CustomerInfo `json:"customer"`
	FieldError  *FieldError         `json:"field_error,omitempty"`
	Pending     *Submission         `json:"pending,omitempty"`
	Draft       *models.OrderDraft  `json:"draft,omitempty"`
	PaymentRef  string              `json:"payment_ref,omitempty"`
	OrderID     string              `json:"order_id,omitempty"`
	LastOrderID string              `json:"last_order_id,omitempty"`
	Failure     *Failure            `json:"failure,omitempty"`
	Attempts    int                 `json:"attempts"`
	// Clearing is set once a succeeded checkout is dismissed and stays set
	// until the cart is emptied.
	Clearing  bool   `json:"clearing,omitempty"`
	CartError string `json:"cart_error,omitempty"`
}

// PaidButUnrecorded reports whether the customer was charged but the order
// could not be written.
func (s State) PaidButUnrecorded() bool {
	return s.Phase == PhaseFailed && s.Failure != nil && s.Failure.Kind == FailureOrderWrite
}

// Initial returns the idle state
func Initial() State {
	return State{Phase: PhaseIdle}
}
