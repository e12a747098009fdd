package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"restaurant-ordering/auth"
	"restaurant-ordering/cart"
	"restaurant-ordering/config"
	"restaurant-ordering/favorites"
	"restaurant-ordering/logging"
	"restaurant-ordering/models"
	"restaurant-ordering/orderstore"
	"restaurant-ordering/preferences"
	"restaurant-ordering/pricing"
	"restaurant-ordering/storage"
	"restaurant-ordering/workflows"

	"github.com/shopspring/decimal"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

type options struct {
	session string

	add            string
	setQty         string
	qty            int
	remove         string
	showCart       bool
	toggleFavorite string
	name           string
	price          string

	signIn   string
	password string
	signOut  bool

	saveProfile bool
	theme       string

	submit  bool
	retry   bool
	cancel  bool
	ack     bool
	query   bool
	history bool

	customerName string
	email        string
	phone        string
	address      string
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to config file")
	var o options
	flag.StringVar(&o.session, "session", "local", "Device session ID")
	flag.StringVar(&o.add, "add", "", "Add one unit of this menu item ID to the cart (use -name and -price)")
	flag.StringVar(&o.setQty, "set-qty", "", "Set the quantity of this cart item (use -qty)")
	flag.IntVar(&o.qty, "qty", 1, "Quantity for -set-qty")
	flag.StringVar(&o.remove, "remove", "", "Remove this item from the cart")
	flag.BoolVar(&o.showCart, "show-cart", false, "Print the cart, totals and favorites")
	flag.StringVar(&o.toggleFavorite, "toggle-favorite", "", "Toggle this item as favorite (use -name and -price)")
	flag.StringVar(&o.name, "name", "", "Menu item name")
	flag.StringVar(&o.price, "price", "0", "Menu item price")
	flag.StringVar(&o.signIn, "sign-in", "", "Sign in with this email (use -password)")
	flag.StringVar(&o.password, "password", "", "Password for -sign-in")
	flag.BoolVar(&o.signOut, "sign-out", false, "Sign out the session")
	flag.BoolVar(&o.saveProfile, "save-profile", false, "Save -customer-name, -phone and -address as delivery profile")
	flag.StringVar(&o.theme, "theme", "", "Set the theme (light or dark)")
	flag.BoolVar(&o.submit, "submit", false, "Place the order")
	flag.BoolVar(&o.retry, "retry", false, "Retry a failed checkout")
	flag.BoolVar(&o.cancel, "cancel", false, "Dismiss a failed checkout")
	flag.BoolVar(&o.ack, "ack", false, "Acknowledge a successful checkout")
	flag.BoolVar(&o.query, "query", false, "Query checkout state")
	flag.BoolVar(&o.history, "history", false, "List past orders")
	flag.StringVar(&o.customerName, "customer-name", "", "Customer name")
	flag.StringVar(&o.email, "email", "", "Customer email")
	flag.StringVar(&o.phone, "phone", "", "Customer phone")
	flag.StringVar(&o.address, "address", "", "Delivery address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Unable to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{Service: "checkout-starter", Env: cfg.AppEnv, Level: cfg.LogLevel, Writer: os.Stderr})

	ctx := context.Background()
	kv, closeStore, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		fatal(logger, "Unable to open storage", err)
	}
	defer closeStore.Close()

	if err := runLocal(ctx, kv, cfg, logger, o); err != nil {
		fatal(logger, "Command failed", err)
	}

	if !(o.submit || o.retry || o.cancel || o.ack || o.query) {
		return
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.Temporal(logger),
	})
	if err != nil {
		fatal(logger, "Unable to create Temporal client", err)
	}
	defer c.Close()

	if err := runCheckout(ctx, c, cfg, logger, o); err != nil {
		fatal(logger, "Checkout command failed", err)
	}
}

// runLocal handles the commands that only touch device storage and the
// hosted backend.
func runLocal(ctx context.Context, kv storage.Store, cfg *config.Config, logger *slog.Logger, o options) error {
	sessions := auth.NewClient(cfg.Auth.URL, kv, cfg.Auth.JWTSecret, logger)

	switch {
	case o.signIn != "":
		user, err := sessions.SignIn(ctx, o.session, o.signIn, o.password)
		if err != nil {
			return err
		}
		logger.Info("Signed in", "user_id", user.ID, "email", user.Email)
	case o.signOut:
		if err := sessions.SignOut(ctx, o.session); err != nil {
			return err
		}
		logger.Info("Signed out", "session_id", o.session)
	}

	prefs := preferences.New(kv, o.session, logger)
	if o.theme != "" {
		if err := prefs.SetTheme(ctx, preferences.Theme(o.theme)); err != nil {
			return err
		}
	}
	if o.saveProfile {
		profile := preferences.Profile{Name: o.customerName, Phone: o.phone, Address: o.address}
		if err := prefs.SaveProfile(ctx, profile); err != nil {
			return err
		}
		logger.Info("Profile saved", "session_id", o.session)
	}

	if o.add != "" || o.setQty != "" || o.remove != "" || o.toggleFavorite != "" || o.showCart {
		if err := runCart(ctx, kv, cfg, logger, o); err != nil {
			return err
		}
	}

	if o.history {
		return printHistory(ctx, sessions, orderstore.NewClient(cfg.Orders.GraphQLURL), o.session)
	}
	return nil
}

func runCart(ctx context.Context, kv storage.Store, cfg *config.Config, logger *slog.Logger, o options) error {
	c, err := cart.Open(ctx, kv, o.session, logger)
	if err != nil {
		return err
	}
	favs, err := favorites.Open(ctx, kv, o.session, logger)
	if err != nil {
		return err
	}

	item := func(id string) (models.MenuItem, error) {
		price, err := decimal.NewFromString(o.price)
		if err != nil {
			return models.MenuItem{}, fmt.Errorf("invalid price %q: %w", o.price, err)
		}
		name := o.name
		if name == "" {
			name = id
		}
		return models.MenuItem{ID: id, Name: name, Price: price}, nil
	}

	switch {
	case o.add != "":
		mi, err := item(o.add)
		if err != nil {
			return err
		}
		if err := c.AddItem(ctx, mi); err != nil {
			return err
		}
	case o.setQty != "":
		if err := c.UpdateQuantity(ctx, o.setQty, o.qty); err != nil {
			return err
		}
	case o.remove != "":
		if err := c.RemoveItem(ctx, o.remove); err != nil {
			return err
		}
	}

	if o.toggleFavorite != "" {
		mi, err := item(o.toggleFavorite)
		if err != nil {
			return err
		}
		liked, err := favs.ToggleItem(ctx, mi)
		if err != nil {
			return err
		}
		logger.Info("Favorite toggled", "item_id", mi.ID, "liked", liked)
	}

	totals := pricing.Quote(c.Items(), cfg.Pricing)
	view := map[string]any{
		"items":        c.Items(),
		"item_count":   c.ItemCount(),
		"subtotal":     pricing.Format(totals.Subtotal),
		"tax":          pricing.Format(totals.Tax),
		"delivery_fee": pricing.Format(totals.DeliveryFee),
		"total":        pricing.Format(totals.Total),
		"favorites":    favs.Favorites(),
	}
	return printJSON("Cart", view)
}

func runCheckout(ctx context.Context, c client.Client, cfg *config.Config, logger *slog.Logger, o options) error {
	workflowID := "checkout-" + o.session

	switch {
	case o.submit:
		params := workflows.CheckoutParams{
			SessionID:    o.session,
			Rates:        cfg.Pricing,
			DismissAfter: cfg.GetDismissAfter(),
			IdleTimeout:  cfg.GetIdleTimeout(),
		}
		sig := workflows.SubmitSignal{Customer: models.CustomerInfo{
			Name:    o.customerName,
			Email:   o.email,
			Phone:   o.phone,
			Address: o.address,
		}}
		opts := client.StartWorkflowOptions{
			ID:                       workflowID,
			TaskQueue:                cfg.Temporal.TaskQueue,
			WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
			WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
		}
		we, err := c.SignalWithStartWorkflow(ctx, workflowID, workflows.SignalSubmit, sig, opts, workflows.CheckoutWorkflow, params)
		if err != nil {
			return fmt.Errorf("unable to submit checkout: %w", err)
		}
		logger.Info("Checkout submitted", "workflow_id", we.GetID(), "run_id", we.GetRunID())
		logger.Info("To follow progress, run: go run ./starter -query -session " + o.session)
		return nil

	case o.retry, o.cancel, o.ack:
		signal := workflows.SignalRetry
		if o.cancel {
			signal = workflows.SignalCancel
		} else if o.ack {
			signal = workflows.SignalAcknowledge
		}
		if err := c.SignalWorkflow(ctx, workflowID, "", signal, signal); err != nil {
			return fmt.Errorf("failed to send signal: %w", err)
		}
		logger.Info("Signal sent", "signal", signal, "workflow_id", workflowID)
		return nil

	case o.query:
		resp, err := c.QueryWorkflow(ctx, workflowID, "", workflows.QueryState)
		if err != nil {
			return fmt.Errorf("failed to query workflow: %w", err)
		}
		var state json.RawMessage
		if err := resp.Get(&state); err != nil {
			return fmt.Errorf("failed to decode query result: %w", err)
		}
		return printJSON("Checkout state", state)
	}
	return nil
}

func printHistory(ctx context.Context, sessions *auth.Client, orders *orderstore.Client, sessionID string) error {
	user, err := sessions.CurrentUser(ctx, sessionID)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.New("sign in to see your orders")
	}
	token, err := sessions.AccessToken(ctx, sessionID)
	if err != nil {
		return err
	}
	history, err := orders.ListOrders(ctx, token, user.ID)
	if err != nil {
		return err
	}
	return printJSON("Order history", history)
}

func printJSON(title string, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", title, err)
	}
	fmt.Printf("%s:\n%s\n", title, out)
	return nil
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
