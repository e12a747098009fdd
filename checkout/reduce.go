package checkout

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
)

var (
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrCannotCancel       = errors.New("checkout cannot be cancelled while in progress")
	ErrNotRetryable       = errors.New("checkout failure is not retryable")
	ErrInvalidTransition  = errors.New("event not accepted in current phase")
)

const (
	msgSignIn              = "Please sign in to place an order"
	msgPaymentUnavailable  = "Payment could not be processed, please try again"
	msgPaymentDeclined     = "Payment was declined"
	msgOrderProcessingFail = "Order processing failed: your payment was received, retry to save your order"
	msgCartNotCleared      = "Your order was placed but the cart could not be emptied"
	maxReasonLen           = 160
)

// Reduce applies ev to s. It returns the next state and the effects to run,
// or s unchanged and an error when ev is not accepted in the current phase.
func Reduce(s State, ev Event) (State, []Effect, error) {
	switch e := ev.(type) {
	case Submit:
		if s.Phase.InFlight() {
			return s, nil, ErrCheckoutInProgress
		}
		if s.Phase != PhaseIdle {
			return s, nil, invalid(s, ev)
		}
		sub := e.Submission
		sub.Lines = slices.Clone(sub.Lines)
		next := State{
			Phase:       PhaseValidating,
			Customer:    sub.Customer,
			Pending:     &sub,
			LastOrderID: s.LastOrderID,
		}
		return next, []Effect{Validate{Submission: sub}}, nil

	case Validated:
		if s.Phase != PhaseValidating || s.Pending == nil {
			return s, nil, invalid(s, ev)
		}
		sub := *s.Pending
		if e.Snapshot != nil {
			sub = *e.Snapshot
			sub.DraftID = s.Pending.DraftID
			sub.Lines = slices.Clone(sub.Lines)
		}
		if e.Problem != nil {
			return State{
				Phase:       PhaseIdle,
				Customer:    sub.Customer,
				FieldError:  e.Problem,
				LastOrderID: s.LastOrderID,
			}, nil, nil
		}
		if sub.User == nil || sub.User.ID == "" {
			return State{
				Phase:       PhaseFailed,
				Customer:    sub.Customer,
				Failure:     &Failure{Kind: FailureUnauthenticated, Message: msgSignIn},
				LastOrderID: s.LastOrderID,
			}, nil, nil
		}
		draft := NewDraft(sub)
		next := State{
			Phase:       PhaseAwaitingPayment,
			Customer:    sub.Customer,
			Draft:       &draft,
			Attempts:    1,
			LastOrderID: s.LastOrderID,
		}
		return next, []Effect{Charge{Draft: draft, Attempt: 1}}, nil

	case PaymentCompleted:
		if s.Phase != PhaseAwaitingPayment || s.Draft == nil {
			return s, nil, invalid(s, ev)
		}
		next := s
		if e.Err != "" || !e.Result.Succeeded() {
			next.Phase = PhaseFailed
			next.Failure = &Failure{Kind: FailurePayment, Message: paymentReason(e)}
			return next, nil, nil
		}
		next.Phase = PhasePersisting
		next.PaymentRef = e.Result.Ref
		next.Failure = nil
		return next, []Effect{CreateOrder{Draft: *s.Draft, PaymentRef: e.Result.Ref}}, nil

	case OrderWritten:
		if s.Phase != PhasePersisting || s.Draft == nil {
			return s, nil, invalid(s, ev)
		}
		next := s
		if e.Err != "" || e.OrderID == "" {
			next.Phase = PhaseFailed
			next.Failure = &Failure{Kind: FailureOrderWrite, Message: msgOrderProcessingFail}
			return next, nil, nil
		}
		next.Phase = PhaseSucceeded
		next.OrderID = e.OrderID
		next.Failure = nil
		return next, []Effect{
			Notify{Draft: *s.Draft, OrderID: e.OrderID},
			StartDismissTimer{},
		}, nil

	case Retry:
		if s.Phase != PhaseFailed || s.Failure == nil {
			return s, nil, invalid(s, ev)
		}
		next := s
		next.Failure = nil
		switch s.Failure.Kind {
		case FailurePayment:
			next.Phase = PhaseAwaitingPayment
			next.Attempts++
			return next, []Effect{Charge{Draft: *s.Draft, Attempt: next.Attempts}}, nil
		case FailureOrderWrite:
			// the charge went through; only the order write is repeated
			next.Phase = PhasePersisting
			return next, []Effect{CreateOrder{Draft: *s.Draft, PaymentRef: s.PaymentRef}}, nil
		default:
			return s, nil, ErrNotRetryable
		}

	case Cancel:
		if s.Phase.InFlight() {
			return s, nil, ErrCannotCancel
		}
		if s.Phase != PhaseFailed {
			return s, nil, invalid(s, ev)
		}
		return State{Phase: PhaseIdle, Customer: s.Customer, LastOrderID: s.LastOrderID}, nil, nil

	case Acknowledge:
		if s.Phase != PhaseSucceeded {
			return s, nil, invalid(s, ev)
		}
		if s.Clearing {
			return s, nil, nil
		}
		return clearing(s), []Effect{StopDismissTimer{}, ClearCart{SessionID: s.Draft.SessionID}}, nil

	case DismissTimeout:
		// a timer that lost the race against Acknowledge is ignored
		if s.Phase != PhaseSucceeded || s.Clearing {
			return s, nil, nil
		}
		return clearing(s), []Effect{ClearCart{SessionID: s.Draft.SessionID}}, nil

	case CartCleared:
		if s.Phase != PhaseSucceeded || !s.Clearing {
			return s, nil, invalid(s, ev)
		}
		if e.Err != "" {
			// stay on the success screen; the next dismissal tries again
			next := s
			next.Clearing = false
			next.CartError = msgCartNotCleared
			return next, []Effect{StartDismissTimer{}}, nil
		}
		return completed(s), nil, nil
	}

	return s, nil, fmt.Errorf("unknown event %T", ev)
}

func clearing(s State) State {
	next := s
	next.Clearing = true
	next.CartError = ""
	return next
}

func completed(s State) State {
	return State{Phase: PhaseIdle, LastOrderID: s.OrderID}
}

func invalid(s State, ev Event) error {
	return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev.eventName(), s.Phase)
}

func paymentReason(e PaymentCompleted) string {
	if e.Err != "" {
		return msgPaymentUnavailable
	}
	reason := sanitize(e.Result.FailureReason)
	if reason == "" {
		return msgPaymentDeclined
	}
	return reason
}

// sanitize keeps a gateway message printable and short.
func sanitize(msg string) string {
	msg = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, msg)
	msg = strings.Join(strings.Fields(msg), " ")
	if r := []rune(msg); len(r) > maxReasonLen {
		msg = string(r[:maxReasonLen-1]) + "…"
	}
	return msg
}
