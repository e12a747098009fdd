package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"

	"restaurant-ordering/activities"
	"restaurant-ordering/auth"
	"restaurant-ordering/config"
	"restaurant-ordering/logging"
	"restaurant-ordering/notify"
	"restaurant-ordering/orderstore"
	"restaurant-ordering/payment"
	"restaurant-ordering/storage"
	"restaurant-ordering/workflows"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// Version information - update this when deploying new versions
const WorkerVersion = "2.0.0"

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Unable to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{
		Service: "checkout-worker",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	ctx := context.Background()

	kv, closeStore, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		fatal(logger, "Unable to open storage", err, "driver", cfg.Storage.Driver)
	}
	defer closeStore.Close()

	var gateway payment.Gateway = payment.NewSimulator()
	if cfg.Payment.URL != "" {
		gateway = payment.NewHTTPGateway(cfg.Payment.URL, cfg.Payment.SecretKey)
	}

	var notifier notify.Notifier = notify.LogNotifier{Logger: logger}
	if cfg.Notify.RabbitMQURL != "" {
		publisher, err := notify.Dial(cfg.Notify.RabbitMQURL)
		if err != nil {
			fatal(logger, "Unable to connect to RabbitMQ", err)
		}
		defer closeQuietly(publisher)
		notifier = publisher
	}

	checkoutActivities := activities.NewCheckoutActivities(
		kv,
		auth.NewClient(cfg.Auth.URL, kv, cfg.Auth.JWTSecret, logger),
		gateway,
		orderstore.NewClient(cfg.Orders.GraphQLURL),
		notifier,
		logger,
	)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.Temporal(logger),
	})
	if err != nil {
		fatal(logger, "Unable to create Temporal client", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     100,
		MaxConcurrentWorkflowTaskExecutionSize: 50,
	})

	w.RegisterWorkflow(workflows.CheckoutWorkflow)
	w.RegisterActivity(checkoutActivities)

	logger.Info("Starting Temporal worker",
		"version", WorkerVersion,
		"temporal_address", cfg.Temporal.Address,
		"task_queue", cfg.Temporal.TaskQueue,
		"storage", cfg.Storage.Driver,
		"payment_simulated", cfg.Payment.URL == "",
		"rabbitmq", cfg.Notify.RabbitMQURL != "",
	)

	if err := w.Run(worker.InterruptCh()); err != nil {
		fatal(logger, "Unable to start worker", err)
	}
}

func fatal(logger *slog.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append(args, "error", err)...)
	os.Exit(1)
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
