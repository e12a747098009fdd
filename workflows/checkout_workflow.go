package workflows

import (
	"errors"
	"fmt"
	"time"

	"restaurant-ordering/activities"
	"restaurant-ordering/checkout"
	"restaurant-ordering/models"
	"restaurant-ordering/pricing"

	"github.com/google/uuid"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	SignalSubmit      = "submit"
	SignalRetry       = "retry"
	SignalCancel      = "cancel"
	SignalAcknowledge = "acknowledge"
	QueryState        = "state"
)

const (
	defaultDismissAfter = 10 * time.Second
	defaultIdleTimeout  = 30 * time.Minute
)

// CheckoutParams configures a checkout session.
type CheckoutParams struct {
	SessionID    string        `json:"session_id"`
	Rates        pricing.Rates `json:"rates"`
	DismissAfter time.Duration `json:"dismiss_after"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// SubmitSignal is sent when the customer places the order.
type SubmitSignal struct {
	Customer models.CustomerInfo `json:"customer"`
}

// CheckoutResult describes how a checkout session ended. DraftID,
// PaymentRef and Failure are set when the customer was charged for an
// order that was never recorded.
type CheckoutResult struct {
	SessionID   string            `json:"session_id"`
	LastOrderID string            `json:"last_order_id,omitempty"`
	Reason      string            `json:"reason"`
	DraftID     string            `json:"draft_id,omitempty"`
	PaymentRef  string            `json:"payment_ref,omitempty"`
	Failure     *checkout.Failure `json:"failure,omitempty"`
}

const (
	EndCompleted   = "completed"
	EndCancelled   = "cancelled"
	EndIdleTimeout = "idle_timeout"
)

// CheckoutWorkflow drives one checkout session of a device. Signals and
// activity outcomes are fed to checkout.Reduce one at a time and the
// returned effects are executed here.
func CheckoutWorkflow(ctx workflow.Context, params CheckoutParams) (CheckoutResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("CheckoutWorkflow started", "session_id", params.SessionID)

	if params.SessionID == "" {
		return CheckoutResult{}, temporal.NewNonRetryableApplicationError("session id is required", "InvalidParams", nil)
	}
	if params.DismissAfter <= 0 {
		params.DismissAfter = defaultDismissAfter
	}
	if params.IdleTimeout <= 0 {
		params.IdleTimeout = defaultIdleTimeout
	}

	d := &checkoutDriver{
		params: params,
		state:  checkout.Initial(),
		logger: logger,
	}

	err := workflow.SetQueryHandler(ctx, QueryState, func() (checkout.State, error) {
		return d.state, nil
	})
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("failed to set query handler: %w", err)
	}

	return d.run(ctx)
}

type pendingOp struct {
	name   string
	future workflow.Future
	done   func(ctx workflow.Context, f workflow.Future)
}

type checkoutDriver struct {
	params CheckoutParams
	state  checkout.State
	logger log.Logger

	ops []*pendingOp

	dismissTimer  workflow.Future
	cancelDismiss workflow.CancelFunc

	idleTimer  workflow.Future
	cancelIdle workflow.CancelFunc

	// unrecorded is the last failed state that held a charged order
	unrecorded *checkout.State

	end string
}

func (d *checkoutDriver) run(ctx workflow.Context) (CheckoutResult, error) {
	submitCh := workflow.GetSignalChannel(ctx, SignalSubmit)
	retryCh := workflow.GetSignalChannel(ctx, SignalRetry)
	cancelCh := workflow.GetSignalChannel(ctx, SignalCancel)
	ackCh := workflow.GetSignalChannel(ctx, SignalAcknowledge)
	signals := []workflow.ReceiveChannel{submitCh, retryCh, cancelCh, ackCh}

	for {
		if d.finished() && !pendingSignals(signals) {
			return d.result(), nil
		}
		d.armIdleTimer(ctx)

		selector := workflow.NewSelector(ctx)

		// signals wait in their channels until the cart of a dismissed
		// checkout is cleared
		if !d.state.Clearing {
			d.addSignalHandlers(ctx, selector, submitCh, retryCh, cancelCh, ackCh)
		}

		for _, op := range d.ops {
			selector.AddFuture(op.future, func(f workflow.Future) {
				d.removeOp(op)
				d.logger.Debug("Checkout step finished", "session_id", d.params.SessionID, "step", op.name)
				op.done(ctx, f)
			})
		}

		if d.dismissTimer != nil {
			selector.AddFuture(d.dismissTimer, func(f workflow.Future) {
				d.dismissTimer, d.cancelDismiss = nil, nil
				if err := f.Get(ctx, nil); err != nil {
					if !isCanceled(err) {
						d.logger.Warn("Dismiss timer failed", "session_id", d.params.SessionID, "error", err)
					}
					return
				}
				d.dispatch(ctx, checkout.DismissTimeout{})
			})
		}

		if d.idleTimer != nil {
			selector.AddFuture(d.idleTimer, func(f workflow.Future) {
				d.idleTimer, d.cancelIdle = nil, nil
				if err := f.Get(ctx, nil); err != nil {
					return
				}
				if d.end == "" {
					d.end = EndIdleTimeout
				}
			})
		}

		selector.Select(ctx)
	}
}

func (d *checkoutDriver) addSignalHandlers(ctx workflow.Context, selector workflow.Selector, submitCh, retryCh, cancelCh, ackCh workflow.ReceiveChannel) {
	selector.AddReceive(submitCh, func(c workflow.ReceiveChannel, more bool) {
		var sig SubmitSignal
		c.Receive(ctx, &sig)
		d.onSignal()
		d.submit(ctx, sig)
	})
	selector.AddReceive(retryCh, func(c workflow.ReceiveChannel, more bool) {
		var signal string
		c.Receive(ctx, &signal)
		d.onSignal()
		d.dispatch(ctx, checkout.Retry{})
	})
	selector.AddReceive(cancelCh, func(c workflow.ReceiveChannel, more bool) {
		var signal string
		c.Receive(ctx, &signal)
		d.onSignal()
		before := d.state
		if d.dispatch(ctx, checkout.Cancel{}) {
			if before.PaidButUnrecorded() {
				d.unrecorded = &before
				d.logger.Error("Checkout cancelled with a charged order that was not recorded",
					"session_id", d.params.SessionID, "draft_id", before.Draft.ID, "payment_ref", before.PaymentRef)
			}
			d.end = EndCancelled
		}
	})
	selector.AddReceive(ackCh, func(c workflow.ReceiveChannel, more bool) {
		var signal string
		c.Receive(ctx, &signal)
		d.onSignal()
		d.dispatch(ctx, checkout.Acknowledge{})
	})
}

// result builds the outcome of the session and logs it.
func (d *checkoutDriver) result() CheckoutResult {
	res := CheckoutResult{SessionID: d.params.SessionID, LastOrderID: d.state.LastOrderID, Reason: d.end}
	if u := d.unrecorded; u != nil {
		res.DraftID = u.Draft.ID
		res.PaymentRef = u.PaymentRef
		res.Failure = u.Failure
		d.logger.Error("CheckoutWorkflow completed with an unrecorded order", "session_id", res.SessionID,
			"reason", res.Reason, "draft_id", res.DraftID, "payment_ref", res.PaymentRef)
		return res
	}
	d.logger.Info("CheckoutWorkflow completed", "session_id", res.SessionID, "reason", res.Reason, "order_id", res.LastOrderID)
	return res
}

// submit snapshots the request and starts validation.
func (d *checkoutDriver) submit(ctx workflow.Context, sig SubmitSignal) {
	var draftID string
	encoded := workflow.SideEffect(ctx, func(ctx workflow.Context) interface{} {
		return uuid.New().String()
	})
	if err := encoded.Get(&draftID); err != nil {
		d.logger.Error("Failed to generate draft id", "error", err)
		return
	}

	accepted := d.dispatch(ctx, checkout.Submit{Submission: checkout.Submission{
		DraftID:     draftID,
		SessionID:   d.params.SessionID,
		Customer:    sig.Customer,
		Rates:       d.params.Rates,
		SubmittedAt: workflow.Now(ctx),
	}})
	if accepted {
		d.end = ""
	}
}

// finished reports whether the session has ended and nothing is left running.
func (d *checkoutDriver) finished() bool {
	return d.end != "" && len(d.ops) == 0 && d.dismissTimer == nil && !d.state.Phase.InFlight()
}

// dispatch feeds ev to the reducer and runs the resulting effects. It
// reports whether the event was accepted.
func (d *checkoutDriver) dispatch(ctx workflow.Context, ev checkout.Event) bool {
	from := d.state.Phase
	next, effects, err := checkout.Reduce(d.state, ev)
	if err != nil {
		d.logger.Warn("Checkout event rejected", "session_id", d.params.SessionID, "event", checkout.EventName(ev), "phase", from, "error", err)
		return false
	}
	d.state = next
	if from != next.Phase {
		d.logger.Info("Checkout phase changed", "session_id", d.params.SessionID, "event", checkout.EventName(ev), "from", from, "to", next.Phase)
	}

	for _, eff := range effects {
		d.runEffect(ctx, eff)
	}
	return true
}

func (d *checkoutDriver) runEffect(ctx workflow.Context, eff checkout.Effect) {
	var act *activities.CheckoutActivities

	switch e := eff.(type) {
	case checkout.Validate:
		sub := e.Submission
		f := workflow.ExecuteActivity(withLoadOptions(ctx), act.LoadCheckoutContext, sub.SessionID)
		d.addOp(checkout.EffectName(eff), f, func(ctx workflow.Context, f workflow.Future) {
			var cc activities.CheckoutContext
			if err := f.Get(ctx, &cc); err != nil {
				d.logger.Error("Failed to load checkout context", "session_id", sub.SessionID, "error", err)
				d.dispatch(ctx, checkout.Validated{Problem: &checkout.FieldError{
					Field:   "form",
					Message: "Checkout is temporarily unavailable, please try again",
				}})
				return
			}
			snapshot := sub
			snapshot.Lines = cc.Lines
			snapshot.User = cc.User
			snapshot.Customer = checkout.Prefill(sub.Customer, cc.User, cc.Profile)
			d.dispatch(ctx, checkout.Validated{
				Problem:  checkout.ValidateSubmission(snapshot),
				Snapshot: &snapshot,
			})
		})

	case checkout.Charge:
		f := workflow.ExecuteActivity(withSingleAttempt(ctx), act.Charge, e.Draft, e.Attempt)
		d.addOp(checkout.EffectName(eff), f, func(ctx workflow.Context, f workflow.Future) {
			var result models.PaymentResult
			if err := f.Get(ctx, &result); err != nil {
				d.logger.Error("Payment failed", "draft_id", e.Draft.ID, "attempt", e.Attempt, "error", err)
				d.dispatch(ctx, checkout.PaymentCompleted{Err: err.Error()})
				return
			}
			d.dispatch(ctx, checkout.PaymentCompleted{Result: result})
		})

	case checkout.CreateOrder:
		f := workflow.ExecuteActivity(withSingleAttempt(ctx), act.CreateOrder, e.Draft, e.PaymentRef)
		d.addOp(checkout.EffectName(eff), f, func(ctx workflow.Context, f workflow.Future) {
			var orderID string
			if err := f.Get(ctx, &orderID); err != nil {
				d.logger.Error("Order write failed", "draft_id", e.Draft.ID, "payment_ref", e.PaymentRef, "error", err)
				d.dispatch(ctx, checkout.OrderWritten{Err: err.Error()})
				return
			}
			d.dispatch(ctx, checkout.OrderWritten{OrderID: orderID})
		})

	case checkout.Notify:
		f := workflow.ExecuteActivity(withRetries(ctx), act.NotifyCustomer, e.Draft, e.OrderID)
		d.addOp(checkout.EffectName(eff), f, func(ctx workflow.Context, f workflow.Future) {
			if err := f.Get(ctx, nil); err != nil {
				// Don't fail the checkout if notification fails
				d.logger.Warn("Failed to notify customer", "order_id", e.OrderID, "error", err)
			}
		})

	case checkout.StartDismissTimer:
		timerCtx, cancel := workflow.WithCancel(ctx)
		d.dismissTimer = workflow.NewTimer(timerCtx, d.params.DismissAfter)
		d.cancelDismiss = cancel

	case checkout.StopDismissTimer:
		if d.cancelDismiss != nil {
			d.cancelDismiss()
		}
		d.dismissTimer, d.cancelDismiss = nil, nil

	case checkout.ClearCart:
		f := workflow.ExecuteActivity(withRetries(ctx), act.ClearCart, e.SessionID)
		d.addOp(checkout.EffectName(eff), f, func(ctx workflow.Context, f workflow.Future) {
			var cleared checkout.CartCleared
			if err := f.Get(ctx, nil); err != nil {
				d.logger.Error("Failed to clear cart", "session_id", e.SessionID, "error", err)
				cleared.Err = err.Error()
			}
			if d.dispatch(ctx, cleared) && d.state.Phase == checkout.PhaseIdle {
				d.end = EndCompleted
			}
		})

	default:
		d.logger.Error("Unknown checkout effect", "effect", fmt.Sprintf("%T", eff))
	}
}

func (d *checkoutDriver) addOp(name string, f workflow.Future, done func(workflow.Context, workflow.Future)) {
	d.ops = append(d.ops, &pendingOp{name: name, future: f, done: done})
}

func (d *checkoutDriver) removeOp(op *pendingOp) {
	for i, o := range d.ops {
		if o == op {
			d.ops = append(d.ops[:i], d.ops[i+1:]...)
			return
		}
	}
}

// armIdleTimer keeps an idle timer running while nothing is in progress.
// A charged order that failed to record never times out.
func (d *checkoutDriver) armIdleTimer(ctx workflow.Context) {
	waiting := d.state.Phase == checkout.PhaseIdle ||
		(d.state.Phase == checkout.PhaseFailed && !d.state.PaidButUnrecorded())
	idle := waiting && len(d.ops) == 0 && d.end == ""
	switch {
	case idle && d.idleTimer == nil:
		timerCtx, cancel := workflow.WithCancel(ctx)
		d.idleTimer = workflow.NewTimer(timerCtx, d.params.IdleTimeout)
		d.cancelIdle = cancel
	case !idle && d.idleTimer != nil:
		d.stopIdleTimer()
	}
}

// onSignal restarts the idle window on customer activity.
func (d *checkoutDriver) onSignal() {
	if d.idleTimer != nil {
		d.stopIdleTimer()
	}
}

func (d *checkoutDriver) stopIdleTimer() {
	if d.cancelIdle != nil {
		d.cancelIdle()
	}
	d.idleTimer, d.cancelIdle = nil, nil
}

func pendingSignals(chs []workflow.ReceiveChannel) bool {
	for _, ch := range chs {
		if ch.Len() > 0 {
			return true
		}
	}
	return false
}

func withLoadOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    5 * time.Second,
			MaximumAttempts:    3,
		},
	})
}

// withSingleAttempt is used for payment and order writes, which must never
// be repeated without the customer asking for it.
func withSingleAttempt(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		HeartbeatTimeout:    20 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
}

func withRetries(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	})
}

func isCanceled(err error) bool {
	var canceled *temporal.CanceledError
	return errors.As(err, &canceled)
}
