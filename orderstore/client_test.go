package orderstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"restaurant-ordering/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// fakeBackend answers GraphQL requests with respond and records them.
type fakeBackend struct {
	mu       sync.Mutex
	requests []recorded
	respond  func(r recorded) string
}

func (f *fakeBackend) serve(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		var req recorded
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.respond(req)))
	}))
	t.Cleanup(server.Close)
	return server
}

func testDraft() models.OrderDraft {
	return models.OrderDraft{
		ID:     "draft-1",
		UserID: "user-1",
		Lines: []models.CartLine{
			{ItemID: "A", Name: "Shawarma", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2, ImageRef: "img/a.png"},
			{ItemID: "B", Name: "Hummus", UnitPrice: decimal.RequireFromString("4.5"), Quantity: 1},
		},
		Customer: models.CustomerInfo{Name: "Amal", Email: "amal@example.com", Phone: "+1000", Address: "1 Main St"},
		Totals:   models.Totals{Total: decimal.RequireFromString("29.16")},
	}
}

func TestCreateOrder(t *testing.T) {
	backend := &fakeBackend{respond: func(r recorded) string {
		if strings.Contains(r.Query, "insert_orders_one") {
			return `{"data":{"insert_orders_one":{"id":"order-1","total":29.16,"status":"pending"}}}`
		}
		return `{"data":{"insert_order_items_one":{"id":"item"}}}`
	}}
	client := NewClient(backend.serve(t).URL)

	id, err := client.CreateOrder(context.Background(), "token-1", testDraft(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", id)

	require.Len(t, backend.requests, 3)
	order := backend.requests[0].Variables["order"].(map[string]any)
	assert.Equal(t, "user-1", order["user_id"])
	assert.Equal(t, "29.16", order["total"])
	assert.Equal(t, "pending", order["status"])
	assert.Equal(t, "pi_1", order["payment_ref"])
	assert.Equal(t, "1 Main St", order["delivery_address"])

	item := backend.requests[1].Variables["item"].(map[string]any)
	assert.Equal(t, "order-1", item["order_id"])
	assert.Equal(t, "Shawarma", item["item_name"])
	assert.Equal(t, "img/a.png", item["item_image"])
	assert.Equal(t, float64(2), item["quantity"])
	assert.Equal(t, "10.00", item["price"])
	assert.Equal(t, "4.50", backend.requests[2].Variables["item"].(map[string]any)["price"])
}

func TestCreateOrderErrors(t *testing.T) {
	tests := []struct {
		name    string
		respond func(r recorded) string
		wantID  string
	}{
		{
			name:    "GraphQL error",
			respond: func(recorded) string { return `{"errors":[{"message":"permission denied"}]}` },
		},
		{
			name:    "Missing id",
			respond: func(recorded) string { return `{"data":{"insert_orders_one":null}}` },
		},
		{
			name: "Item insert fails",
			respond: func(r recorded) string {
				if strings.Contains(r.Query, "insert_orders_one") {
					return `{"data":{"insert_orders_one":{"id":"order-2"}}}`
				}
				return `{"errors":[{"message":"constraint violation"}]}`
			},
			wantID: "order-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{respond: tt.respond}
			id, err := NewClient(backend.serve(t).URL).CreateOrder(context.Background(), "token-1", testDraft(), "pi_1")
			assert.ErrorIs(t, err, ErrGraphQL)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestCreateOrderHTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).CreateOrder(context.Background(), "", testDraft(), "pi_1")
	assert.ErrorIs(t, err, ErrGraphQL)
	assert.Contains(t, err.Error(), "503")
}

func TestListOrders(t *testing.T) {
	backend := &fakeBackend{respond: func(r recorded) string {
		if strings.Contains(r.Query, "GetUserOrders") {
			return `{"data":{"orders":[
				{"id":"o2","total":"12.50","status":"preparing","created_at":"2026-10-18T12:00:00Z"},
				{"id":"o1","total":24.6,"status":"completed","created_at":"2026-10-17T12:00:00Z"}
			]}}`
		}
		switch r.Variables["orderId"] {
		case "o1":
			return `{"data":{"order_items":[{"id":"i1","item_name":"Shawarma","quantity":2,"price":10}]}}`
		default:
			return `{"data":{"order_items":[{"id":"i2","item_name":"Falafel","quantity":1,"price":"12.50"},{"id":"i3","item_name":"Tea","quantity":1,"price":"0"}]}}`
		}
	}}
	client := NewClient(backend.serve(t).URL)

	orders, err := client.ListOrders(context.Background(), "token-1", "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "o2", orders[0].ID)
	assert.Equal(t, models.OrderStatusPreparing, orders[0].Status)
	assert.Len(t, orders[0].Items, 2)
	assert.Equal(t, "o1", orders[1].ID)
	assert.True(t, decimal.RequireFromString("24.60").Equal(orders[1].Total))
	require.Len(t, orders[1].Items, 1)
	assert.Equal(t, "Shawarma", orders[1].Items[0].Name)
	assert.Len(t, backend.requests, 3)
}

func TestListOrdersItemFailure(t *testing.T) {
	backend := &fakeBackend{respond: func(r recorded) string {
		if strings.Contains(r.Query, "GetUserOrders") {
			return `{"data":{"orders":[{"id":"o1","total":1,"status":"pending"}]}}`
		}
		return `{"errors":[{"message":"timeout"}]}`
	}}

	_, err := NewClient(backend.serve(t).URL).ListOrders(context.Background(), "token-1", "user-1")
	assert.ErrorIs(t, err, ErrGraphQL)
}
