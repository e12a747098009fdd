package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"restaurant-ordering/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDraft(total string) models.OrderDraft {
	return models.OrderDraft{
		ID:       "3f9a1c2e-draft",
		Currency: "eur",
		Customer: models.CustomerInfo{Email: "amal@example.com"},
		Totals:   models.Totals{Total: decimal.RequireFromString(total)},
	}
}

func TestHTTPGatewayCharge(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantStatus models.PaymentStatus
		wantReason string
	}{
		{
			name:       "Succeeded",
			status:     http.StatusOK,
			body:       `{"id":"pi_123","status":"succeeded"}`,
			wantStatus: models.PaymentStatusSucceeded,
		},
		{
			name:       "Requires payment method",
			status:     http.StatusOK,
			body:       `{"id":"pi_124","status":"requires_payment_method","last_payment_error":{"message":"Insufficient funds"}}`,
			wantStatus: models.PaymentStatusFailed,
			wantReason: "Insufficient funds",
		},
		{
			name:       "Card declined",
			status:     http.StatusPaymentRequired,
			body:       `{"error":{"type":"card_error","message":"Your card was declined."}}`,
			wantStatus: models.PaymentStatusFailed,
			wantReason: "Your card was declined.",
		},
		{
			name:    "Server error",
			status:  http.StatusInternalServerError,
			body:    `{"error":{"type":"api_error","message":"boom"}}`,
			wantErr: true,
		},
		{
			name:    "Not JSON",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1/payment_intents", r.URL.Path)
				assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
				assert.Equal(t, "3f9a1c2e-draft-2", r.Header.Get("Idempotency-Key"))
				assert.NoError(t, r.ParseForm())
				assert.Equal(t, "2460", r.PostForm.Get("amount"))
				assert.Equal(t, "eur", r.PostForm.Get("currency"))
				assert.Equal(t, "true", r.PostForm.Get("confirm"))
				assert.Equal(t, "3f9a1c2e-draft", r.PostForm.Get("metadata[draft_id]"))

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			gw := NewHTTPGateway(server.URL+"/", "sk_test")
			result, err := gw.Charge(context.Background(), testDraft("24.6"), 2)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrGateway)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantReason, result.FailureReason)
		})
	}
}

func TestHTTPGatewayRejectsZeroAmount(t *testing.T) {
	gw := NewHTTPGateway("http://127.0.0.1:1", "")
	_, err := gw.Charge(context.Background(), testDraft("0.004"), 1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestHTTPGatewayUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewHTTPGateway(url, "").Charge(context.Background(), testDraft("10"), 1)
	assert.ErrorIs(t, err, ErrGateway)
}

func TestSimulatorCharge(t *testing.T) {
	tests := []struct {
		name       string
		total      string
		wantErr    bool
		wantStatus models.PaymentStatus
	}{
		{name: "Valid amount", total: "24.60", wantStatus: models.PaymentStatusSucceeded},
		{name: "At limit", total: "9999.00", wantStatus: models.PaymentStatusSucceeded},
		{name: "Above limit", total: "10000.00", wantStatus: models.PaymentStatusFailed},
		{name: "Zero amount", total: "0", wantErr: true},
		{name: "Negative amount", total: "-5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewSimulator().Charge(context.Background(), testDraft(tt.total), 1)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, "pi_sim_3f9a1c2e-1", result.Ref)
		})
	}
}

func TestSimulatorHonoursContext(t *testing.T) {
	sim := &Simulator{Limit: decimal.NewFromInt(100), Delay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Charge(ctx, testDraft("10"), 1)
	assert.ErrorIs(t, err, context.Canceled)
}
