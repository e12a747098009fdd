package checkout

import (
	"slices"
	"strings"

	"restaurant-ordering/models"
	"restaurant-ordering/preferences"
	"restaurant-ordering/pricing"
)

// ValidateSubmission checks the fields required before payment: a non-empty cart,
// phone and address. Name and email are optional.
func ValidateSubmission(sub Submission) *FieldError {
	if len(sub.Lines) == 0 {
		return &FieldError{Field: "cart", Message: "Your cart is empty"}
	}
	if strings.TrimSpace(sub.Customer.Phone) == "" {
		return &FieldError{Field: "phone", Message: "Please provide a phone number"}
	}
	if strings.TrimSpace(sub.Customer.Address) == "" {
		return &FieldError{Field: "address", Message: "Please provide a delivery address"}
	}
	return nil
}

// Prefill completes empty form fields: email from the signed-in user,
// phone and address from the saved profile. The name is taken from the
// user's display name, then the profile, then the user's email.
func Prefill(c models.CustomerInfo, user *models.User, profile preferences.Profile) models.CustomerInfo {
	if user != nil && c.Email == "" {
		c.Email = user.Email
	}
	if c.Name == "" && user != nil {
		c.Name = user.DisplayName
	}
	if c.Name == "" {
		c.Name = profile.Name
	}
	if c.Name == "" && user != nil {
		c.Name = user.Email
	}
	if c.Phone == "" {
		c.Phone = profile.Phone
	}
	if c.Address == "" {
		c.Address = profile.Address
	}
	return c
}

// NewDraft freezes a submission into an order draft with computed totals.
func NewDraft(sub Submission) models.OrderDraft {
	lines := slices.Clone(sub.Lines)
	draft := models.OrderDraft{
		ID:        sub.DraftID,
		SessionID: sub.SessionID,
		Lines:     lines,
		Customer:  sub.Customer,
		Totals:    pricing.Quote(lines, sub.Rates),
		Currency:  sub.Rates.Currency,
		CreatedAt: sub.SubmittedAt,
	}
	if sub.User != nil {
		draft.UserID = sub.User.ID
	}
	return draft
}
