package activities_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"restaurant-ordering/activities"
	"restaurant-ordering/auth"
	"restaurant-ordering/cart"
	"restaurant-ordering/models"
	"restaurant-ordering/notify"
	"restaurant-ordering/payment"
	"restaurant-ordering/preferences"
	"restaurant-ordering/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

type fakeSessions struct {
	user  *models.User
	token string
	err   error
}

func (f *fakeSessions) CurrentUser(context.Context, string) (*models.User, error) {
	return f.user, f.err
}

func (f *fakeSessions) AccessToken(context.Context, string) (string, error) {
	if f.token == "" {
		return "", auth.ErrNotAuthenticated
	}
	return f.token, nil
}

type fakeOrders struct {
	calls []string
	id    string
	err   error
}

func (f *fakeOrders) CreateOrder(_ context.Context, token string, draft models.OrderDraft, paymentRef string) (string, error) {
	f.calls = append(f.calls, token+"|"+draft.ID+"|"+paymentRef)
	return f.id, f.err
}

type recordingNotifier struct {
	events []notify.OrderPlaced
	err    error
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, ev notify.OrderPlaced) error {
	n.events = append(n.events, ev)
	return n.err
}

func testDraft(total string) models.OrderDraft {
	return models.OrderDraft{
		ID:        "draft-0001",
		SessionID: "session-1",
		UserID:    "user-1",
		Currency:  "eur",
		Lines: []models.CartLine{
			{ItemID: "A", Name: "Shawarma", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
		},
		Totals: models.Totals{Total: decimal.RequireFromString(total)},
	}
}

func newEnv() *testsuite.TestActivityEnvironment {
	testSuite := &testsuite.WorkflowTestSuite{}
	return testSuite.NewTestActivityEnvironment()
}

func TestLoadCheckoutContext(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()

	c, err := cart.Open(ctx, kv, "session-1", nil)
	require.NoError(t, err)
	require.NoError(t, c.AddItem(ctx, models.MenuItem{ID: "A", Name: "Shawarma", Price: decimal.RequireFromString("10.00")}))
	require.NoError(t, c.AddItem(ctx, models.MenuItem{ID: "A", Name: "Shawarma", Price: decimal.RequireFromString("10.00")}))
	require.NoError(t, preferences.New(kv, "session-1", nil).SaveProfile(ctx, preferences.Profile{Phone: "+1000", Address: "1 Main St"}))

	tests := []struct {
		name       string
		sessions   *fakeSessions
		wantErr    bool
		wantUserID string
	}{
		{name: "Success - Signed In", sessions: &fakeSessions{user: &models.User{ID: "user-1"}}, wantUserID: "user-1"},
		{name: "Success - Signed Out", sessions: &fakeSessions{}},
		{name: "Failure - Session Store Down", sessions: &fakeSessions{err: errors.New("redis: connection refused")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv()
			act := activities.NewCheckoutActivities(kv, tt.sessions, payment.NewSimulator(), &fakeOrders{}, &recordingNotifier{}, nil)
			env.RegisterActivity(act)

			val, err := env.ExecuteActivity(act.LoadCheckoutContext, "session-1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			var got activities.CheckoutContext
			require.NoError(t, val.Get(&got))
			require.Len(t, got.Lines, 1)
			assert.Equal(t, 2, got.Lines[0].Quantity)
			assert.Equal(t, "+1000", got.Profile.Phone)
			if tt.wantUserID == "" {
				assert.Nil(t, got.User)
			} else {
				require.NotNil(t, got.User)
				assert.Equal(t, tt.wantUserID, got.User.ID)
			}
		})
	}
}

func TestCharge(t *testing.T) {
	tests := []struct {
		name          string
		total         string
		wantErr       bool
		errorContains string
		wantStatus    models.PaymentStatus
	}{
		{name: "Success - Valid Amount", total: "24.60", wantStatus: models.PaymentStatusSucceeded},
		{name: "Declined - Above Limit", total: "15000.00", wantStatus: models.PaymentStatusFailed},
		{name: "Failure - Zero Amount", total: "0", wantErr: true, errorContains: "invalid payment amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv()
			act := activities.NewCheckoutActivities(storage.NewMemory(), &fakeSessions{}, payment.NewSimulator(), &fakeOrders{}, &recordingNotifier{}, nil)
			env.RegisterActivity(act)

			val, err := env.ExecuteActivity(act.Charge, testDraft(tt.total), 2)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)

			var result models.PaymentResult
			require.NoError(t, val.Get(&result))
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, "pi_sim_draft-00-2", result.Ref)
		})
	}
}

func TestCreateOrder(t *testing.T) {
	tests := []struct {
		name          string
		sessions      *fakeSessions
		orders        *fakeOrders
		wantErr       bool
		errorContains string
		wantCalls     int
	}{
		{
			name:      "Success - Order Written",
			sessions:  &fakeSessions{token: "jwt"},
			orders:    &fakeOrders{id: "order-1"},
			wantCalls: 1,
		},
		{
			name:          "Failure - No Session",
			sessions:      &fakeSessions{},
			orders:        &fakeOrders{id: "order-1"},
			wantErr:       true,
			errorContains: "session expired",
		},
		{
			name:          "Failure - Backend Error",
			sessions:      &fakeSessions{token: "jwt"},
			orders:        &fakeOrders{err: errors.New("graphql request failed: permission denied")},
			wantErr:       true,
			errorContains: "permission denied",
			wantCalls:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv()
			act := activities.NewCheckoutActivities(storage.NewMemory(), tt.sessions, payment.NewSimulator(), tt.orders, &recordingNotifier{}, nil)
			env.RegisterActivity(act)

			val, err := env.ExecuteActivity(act.CreateOrder, testDraft("24.60"), "pi_1")
			assert.Len(t, tt.orders.calls, tt.wantCalls)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)

			var orderID string
			require.NoError(t, val.Get(&orderID))
			assert.Equal(t, "order-1", orderID)
			assert.Equal(t, []string{"jwt|draft-0001|pi_1"}, tt.orders.calls)
		})
	}
}

func TestNotifyCustomer(t *testing.T) {
	tests := []struct {
		name       string
		optOut     bool
		notifyErr  error
		wantErr    bool
		wantEvents int
	}{
		{name: "Success - Published", wantEvents: 1},
		{name: "Success - Opted Out", optOut: true},
		{name: "Failure - Broker Down", notifyErr: errors.New("channel closed"), wantErr: true, wantEvents: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := storage.NewMemory()
			if tt.optOut {
				require.NoError(t, preferences.New(kv, "session-1", nil).SetNotifications(context.Background(), false))
			}
			notifier := &recordingNotifier{err: tt.notifyErr}

			env := newEnv()
			act := activities.NewCheckoutActivities(kv, &fakeSessions{}, payment.NewSimulator(), &fakeOrders{}, notifier, nil)
			env.RegisterActivity(act)

			_, err := env.ExecuteActivity(act.NotifyCustomer, testDraft("24.60"), "order-1")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, notifier.events, tt.wantEvents)
			if tt.wantEvents > 0 {
				assert.Equal(t, "order-1", notifier.events[0].OrderID)
				assert.Equal(t, "24.60", notifier.events[0].Total)
			}
		})
	}
}

func TestClearCart(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	c, err := cart.Open(ctx, kv, "session-1", nil)
	require.NoError(t, err)
	require.NoError(t, c.AddItem(ctx, models.MenuItem{ID: "A", Name: "Shawarma", Price: decimal.RequireFromString("10.00")}))

	other, err := cart.Open(ctx, kv, "session-2", nil)
	require.NoError(t, err)
	require.NoError(t, other.AddItem(ctx, models.MenuItem{ID: "B", Name: "Tea", Price: decimal.RequireFromString("2.00")}))

	env := newEnv()
	act := activities.NewCheckoutActivities(kv, &fakeSessions{}, payment.NewSimulator(), &fakeOrders{}, &recordingNotifier{}, nil)
	env.RegisterActivity(act)

	_, err = env.ExecuteActivity(act.ClearCart, "session-1")
	require.NoError(t, err)

	reloaded, err := cart.Open(ctx, kv, "session-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.ItemCount())

	reloaded, err = cart.Open(ctx, kv, "session-2", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.ItemCount())
}

func TestStoreWarningsUseActivityLogger(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, storage.ScopedKey(storage.KeyCart, "session-1"), "{not json"))

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	env := newEnv()
	act := activities.NewCheckoutActivities(kv, &fakeSessions{}, payment.NewSimulator(), &fakeOrders{}, &recordingNotifier{}, logger)
	env.RegisterActivity(act)

	val, err := env.ExecuteActivity(act.LoadCheckoutContext, "session-1")
	require.NoError(t, err)
	var got activities.CheckoutContext
	require.NoError(t, val.Get(&got))
	assert.Empty(t, got.Lines)

	assert.Contains(t, logs.String(), `"msg":"Discarding corrupt cart snapshot"`)
	assert.Contains(t, logs.String(), `"session_id":"session-1"`)
	assert.Contains(t, logs.String(), `"activity":"LoadCheckoutContext"`)
}
