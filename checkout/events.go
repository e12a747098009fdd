package checkout

import "restaurant-ordering/models"

// Event is an input to Reduce
type Event interface {
	eventName() string
}

// Submit starts a checkout attempt.
type Submit struct {
	Submission Submission
}

// Validated carries the outcome of the Validate effect; Problem is nil
// when the form is complete. Snapshot, when set, replaces the pending
// submission with the cart and account data read during validation.
type Validated struct {
	Problem  *FieldError
	Snapshot *Submission
}

// PaymentCompleted carries the outcome of the Charge effect. Err is set
// when the gateway could not be reached or rejected the request.
type PaymentCompleted struct {
	Result models.PaymentResult
	Err    string
}

// OrderWritten carries the outcome of the CreateOrder effect.
type OrderWritten struct {
	OrderID string
	Err     string
}

type Retry struct{}

type Cancel struct{}

type Acknowledge struct{}

// DismissTimeout fires when the success display window has elapsed.
type DismissTimeout struct{}

// CartCleared carries the outcome of the ClearCart effect.
type CartCleared struct {
	Err string
}

func (Submit) eventName() string           { return "submit" }
func (Validated) eventName() string        { return "validated" }
func (PaymentCompleted) eventName() string { return "payment_completed" }
func (OrderWritten) eventName() string     { return "order_written" }
func (Retry) eventName() string            { return "retry" }
func (Cancel) eventName() string           { return "cancel" }
func (Acknowledge) eventName() string      { return "acknowledge" }
func (DismissTimeout) eventName() string   { return "dismiss_timeout" }
func (CartCleared) eventName() string      { return "cart_cleared" }

// Effect is work Reduce asks the driver to perform
type Effect interface {
	effectName() string
}

// Validate asks the driver to check the submitted form and answer with Validated.
type Validate struct {
	Submission Submission
}

// Charge asks the driver to charge the draft and answer with PaymentCompleted.
type Charge struct {
	Draft   models.OrderDraft
	Attempt int
}

// CreateOrder asks the driver to record the paid order and answer with OrderWritten.
type CreateOrder struct {
	Draft      models.OrderDraft
	PaymentRef string
}

// Notify announces a placed order. Its outcome is not fed back.
type Notify struct {
	Draft   models.OrderDraft
	OrderID string
}

// StartDismissTimer starts the success display window; when it elapses
// the driver sends DismissTimeout.
type StartDismissTimer struct{}

// StopDismissTimer cancels a running display window.
type StopDismissTimer struct{}

// ClearCart empties the session's cart and answers with CartCleared.
type ClearCart struct {
	SessionID string
}

func (Validate) effectName() string          { return "validate" }
func (Charge) effectName() string            { return "charge" }
func (CreateOrder) effectName() string       { return "create_order" }
func (Notify) effectName() string            { return "notify" }
func (StartDismissTimer) effectName() string { return "start_dismiss_timer" }
func (StopDismissTimer) effectName() string  { return "stop_dismiss_timer" }
func (ClearCart) effectName() string         { return "clear_cart" }

// EventName returns a short name of ev for logging.
func EventName(ev Event) string {
	return ev.eventName()
}

// EffectName returns a short name of eff for logging.
func EffectName(eff Effect) string {
	return eff.effectName()
}
