package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"restaurant-ordering/models"
	"restaurant-ordering/pricing"
)

// HTTPGateway creates confirmed payment intents over a Stripe-style REST API.
type HTTPGateway struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// NewHTTPGateway creates a gateway client for baseURL
func NewHTTPGateway(baseURL, secretKey string) *HTTPGateway {
	return &HTTPGateway{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
	}
}

type intentResponse struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Charge posts the rounded draft total in minor units.
func (g *HTTPGateway) Charge(ctx context.Context, draft models.OrderDraft, attempt int) (models.PaymentResult, error) {
	amount := pricing.MinorUnits(draft.Totals.Total)
	if amount <= 0 {
		return models.PaymentResult{}, fmt.Errorf("%w: %s", ErrInvalidAmount, pricing.Format(draft.Totals.Total))
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", draft.Currency)
	form.Set("confirm", "true")
	form.Set("metadata[draft_id]", draft.ID)
	if draft.Customer.Email != "" {
		form.Set("receipt_email", draft.Customer.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return models.PaymentResult{}, fmt.Errorf("failed to create payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", IdempotencyKey(draft.ID, attempt))
	if g.secretKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.secretKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return models.PaymentResult{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.PaymentResult{}, fmt.Errorf("failed to read payment response: %w", err)
	}

	var intent intentResponse
	if err := json.Unmarshal(body, &intent); err != nil {
		return models.PaymentResult{}, fmt.Errorf("%w: status %d: undecodable response", ErrGateway, resp.StatusCode)
	}

	// card errors come back as 402 with a message for the customer
	if resp.StatusCode == http.StatusPaymentRequired && intent.Error != nil {
		return models.PaymentResult{
			Ref:           intent.ID,
			Status:        models.PaymentStatusFailed,
			FailureReason: intent.Error.Message,
		}, nil
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if intent.Error != nil {
			msg = intent.Error.Message
		}
		return models.PaymentResult{}, fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, msg)
	}

	result := models.PaymentResult{Ref: intent.ID, Status: models.PaymentStatus(intent.Status)}
	if !result.Succeeded() {
		result.Status = models.PaymentStatusFailed
		if intent.LastPaymentError != nil {
			result.FailureReason = intent.LastPaymentError.Message
		}
	}
	return result, nil
}
