// Package orderstore records paid orders in the hosted GraphQL backend and
// reads the order history back.
package orderstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"restaurant-ordering/models"
	"restaurant-ordering/pricing"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var ErrGraphQL = errors.New("graphql request failed")

// Client is a GraphQL client for the orders and order_items tables.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	concurrency int
}

// NewClient creates a client for the GraphQL endpoint
func NewClient(endpoint string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		endpoint:    endpoint,
		concurrency: 4,
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

const createOrderMutation = `mutation CreateOrder($order: orders_insert_input!) {
  insert_orders_one(object: $order) { id total status created_at }
}`

const createOrderItemMutation = `mutation CreateOrderItem($item: order_items_insert_input!) {
  insert_order_items_one(object: $item) { id }
}`

const userOrdersQuery = `query GetUserOrders($userId: uuid!) {
  orders(where: {user_id: {_eq: $userId}}, order_by: {created_at: desc}) {
    id total status customer_name customer_phone delivery_address payment_ref created_at
  }
}`

const orderItemsQuery = `query GetOrderItems($orderId: uuid!) {
  order_items(where: {order_id: {_eq: $orderId}}) { id item_name item_image quantity price }
}`

// CreateOrder writes the order and then each of its items. The returned ID
// is empty when the order row could not be written.
func (c *Client) CreateOrder(ctx context.Context, token string, draft models.OrderDraft, paymentRef string) (string, error) {
	order := map[string]any{
		"user_id":          draft.UserID,
		"total":            pricing.Format(draft.Totals.Total),
		"status":           models.OrderStatusPending,
		"customer_name":    draft.Customer.Name,
		"customer_email":   draft.Customer.Email,
		"customer_phone":   draft.Customer.Phone,
		"delivery_address": draft.Customer.Address,
		"payment_ref":      paymentRef,
	}

	var created struct {
		InsertOrdersOne *struct {
			ID string `json:"id"`
		} `json:"insert_orders_one"`
	}
	if err := c.do(ctx, token, createOrderMutation, map[string]any{"order": order}, &created); err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	if created.InsertOrdersOne == nil || created.InsertOrdersOne.ID == "" {
		return "", fmt.Errorf("create order: %w: no order id returned", ErrGraphQL)
	}
	orderID := created.InsertOrdersOne.ID

	for _, line := range draft.Lines {
		item := map[string]any{
			"order_id":   orderID,
			"item_name":  line.Name,
			"item_image": line.ImageRef,
			"quantity":   line.Quantity,
			"price":      pricing.Format(line.UnitPrice),
		}
		if err := c.do(ctx, token, createOrderItemMutation, map[string]any{"item": item}, nil); err != nil {
			return orderID, fmt.Errorf("create order item %q: %w", line.ItemID, err)
		}
	}
	return orderID, nil
}

// ListOrders returns the orders of userID, newest first, with their items.
func (c *Client) ListOrders(ctx context.Context, token, userID string) ([]models.OrderRecord, error) {
	var out struct {
		Orders []orderRow `json:"orders"`
	}
	if err := c.do(ctx, token, userOrdersQuery, map[string]any{"userId": userID}, &out); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	records := make([]models.OrderRecord, len(out.Orders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, row := range out.Orders {
		records[i] = row.record()
		g.Go(func() error {
			var items struct {
				OrderItems []models.OrderRecordItem `json:"order_items"`
			}
			if err := c.do(gctx, token, orderItemsQuery, map[string]any{"orderId": row.ID}, &items); err != nil {
				return fmt.Errorf("list items of order %s: %w", row.ID, err)
			}
			records[i].Items = items.OrderItems
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

type orderRow struct {
	ID              string             `json:"id"`
	Total           decimal.Decimal    `json:"total"`
	Status          models.OrderStatus `json:"status"`
	CustomerName    string             `json:"customer_name"`
	CustomerPhone   string             `json:"customer_phone"`
	DeliveryAddress string             `json:"delivery_address"`
	PaymentRef      string             `json:"payment_ref"`
	CreatedAt       time.Time          `json:"created_at"`
}

func (r orderRow) record() models.OrderRecord {
	return models.OrderRecord{
		ID:              r.ID,
		Total:           r.Total,
		Status:          r.Status,
		CustomerName:    r.CustomerName,
		CustomerPhone:   r.CustomerPhone,
		DeliveryAddress: r.DeliveryAddress,
		PaymentRef:      r.PaymentRef,
		CreatedAt:       r.CreatedAt,
	}
}

func (c *Client) do(ctx context.Context, token, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGraphQL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrGraphQL, resp.StatusCode, string(body))
	}

	var gr graphqlResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrGraphQL, err)
	}
	if len(gr.Errors) > 0 {
		return fmt.Errorf("%w: %s", ErrGraphQL, gr.Errors[0].Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrGraphQL, err)
	}
	return nil
}
